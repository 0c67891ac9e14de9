package netconn

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/coregx/netconn/wire"
)

// pendingCall is one outstanding RMI call awaiting its correlated response
// (spec §4.2.1: "outstanding call table").
type pendingCall struct {
	done   chan struct{}
	once   sync.Once
	result any
	err    error
}

func (p *pendingCall) complete(result any, err error) {
	p.once.Do(func() {
		p.result, p.err = result, err
		close(p.done)
	})
}

// callTable is the Connection's outstanding call table. Every entry is
// matched to exactly one response or dropped with a logged error; it is
// never matched twice (spec §3, "Remote proxy cache" neighbor invariant on
// correlation).
type callTable struct {
	mu    sync.Mutex
	calls map[int32]*pendingCall
}

func newCallTable() *callTable {
	return &callTable{calls: make(map[int32]*pendingCall)}
}

func (t *callTable) register(id int32) *pendingCall {
	pc := &pendingCall{done: make(chan struct{})}
	t.mu.Lock()
	t.calls[id] = pc
	t.mu.Unlock()
	return pc
}

// take removes and returns the entry for id, or ok=false if none is
// outstanding (already completed, or never registered: e.g. a reply to a
// call this peer never made).
func (t *callTable) take(id int32) (*pendingCall, bool) {
	t.mu.Lock()
	pc, ok := t.calls[id]
	if ok {
		delete(t.calls, id)
	}
	t.mu.Unlock()
	return pc, ok
}

// drain empties the table, releasing every waiter with cause (spec §6.3:
// "every outstanding RMI call ... is released with an OperationCancelled
// error").
func (t *callTable) drain(cause error) {
	t.mu.Lock()
	calls := t.calls
	t.calls = make(map[int32]*pendingCall)
	t.mu.Unlock()
	for _, pc := range calls {
		pc.complete(nil, cause)
	}
}

// Call performs one outgoing RMI invocation and blocks until the
// correlated response arrives, ctx is cancelled, or the connection closes
// (spec §4.2.2). resultType is the return type the caller statically
// expects, used to decode InvokeResult.ResultBlob; pass nil for a
// void-returning method.
func (c *Connection) Call(ctx context.Context, id ControllerID, method string, paramTypeNames []string, args []any, resultType reflect.Type) (any, error) {
	if st := c.State(); st == StateClosed || st == StateBroken {
		return nil, wire.NewError(wire.KindObjectDisposed, 0, 0, "", ErrClosed)
	}

	blobs := make([][]byte, len(args))
	for i, a := range args {
		b, err := c.codec.Serializer.Marshal(a)
		if err != nil {
			return nil, wire.NewError(wire.KindSerializationError, 0, 0, "", err)
		}
		blobs[i] = b
	}

	msgID := c.nextMessageID()
	pc := c.calls.register(msgID)

	req := InvokeRequest{
		ControllerFullName:     string(id),
		MethodName:             method,
		ParameterTypeFullNames: paramTypeNames,
		ParameterBlobs:         blobs,
	}

	if err := c.writeFrame(msgID, 0, req); err != nil {
		if pc2, ok := c.calls.take(msgID); ok {
			pc2.complete(nil, err)
		}
		return nil, err
	}

	select {
	case <-pc.done:
	case <-ctx.Done():
		if pc2, ok := c.calls.take(msgID); ok {
			pc2.complete(nil, wire.NewError(wire.KindOperationCancelled, msgID, 0, "", ctx.Err()))
		}
		<-pc.done
	case <-c.closeCtx.Done():
		<-pc.done
	}

	if pc.err != nil {
		return nil, pc.err
	}
	if resultType == nil {
		return nil, nil
	}
	return c.codec.Serializer.Unmarshal(pc.result.([]byte), resultType)
}

// completeFromResponse routes a decoded InvokeResult to its waiter (spec
// §4.2.3, response correlation). A response with no matching table entry
// is logged and dropped: the caller either already timed out or this is a
// stray duplicate.
func (c *Connection) completeFromResponse(inResponseTo int32, res InvokeResult) {
	pc, ok := c.calls.take(inResponseTo)
	if !ok {
		c.logger.Warn("netconn: response correlated to unknown call", zap.Int32("messageId", inResponseTo))
		return
	}
	if res.ExceptionCode != 0 {
		pc.complete(nil, wire.NewError(wire.Kind(res.ExceptionCode), 0, inResponseTo, "", errors.New(res.ExceptionMessage)))
		return
	}
	pc.complete(res.ResultBlob, nil)
}

// completeFromReadError routes a frame-level decode/read failure correlated
// to inResponseTo to its waiter (spec §4.2.3: "matched to the outstanding
// call ... delivered as its error").
func (c *Connection) completeFromReadError(inResponseTo int32, err error) {
	pc, ok := c.calls.take(inResponseTo)
	if !ok {
		c.logger.Warn("netconn: read error correlated to unknown call", zap.Int32("messageId", inResponseTo), zap.Error(err))
		return
	}
	pc.complete(nil, err)
}

// handleIncomingRequest resolves and invokes a controller method on behalf
// of a remote InvokeRequest, then sends the InvokeResult back correlated to
// msgID (spec §4.3). It runs on its own goroutine so a slow or blocking
// method never stalls the receive loop (spec §5: "incoming RMI requests
// dispatch onto their own goroutines").
func (c *Connection) handleIncomingRequest(msgID int32, req InvokeRequest) {
	controller, err := c.controllers.resolve(c, ControllerID(req.ControllerFullName))
	if err != nil {
		c.replyError(msgID, wire.KindControllerNotFound, err.Error())
		return
	}

	method, ok := findMethod(controller, req.MethodName, req.ParameterTypeFullNames)
	if !ok {
		c.replyError(msgID, wire.KindMethodNotFound, fmt.Sprintf("netconn: no method %q matching parameter types %v", req.MethodName, req.ParameterTypeFullNames))
		return
	}

	args := make([]reflect.Value, len(req.ParameterBlobs))
	for i, blob := range req.ParameterBlobs {
		pt := method.Type.In(i + 1)
		v, err := c.codec.Serializer.Unmarshal(blob, pt)
		if err != nil {
			c.replyError(msgID, wire.KindMethodInvokeException, err.Error())
			return
		}
		args[i] = reflect.ValueOf(v)
	}

	callArgs := append([]reflect.Value{reflect.ValueOf(controller)}, args...)
	results, invokeErr := safeCall(method.Func, callArgs)
	if invokeErr != nil {
		c.replyError(msgID, wire.KindMethodInvokeException, invokeErr.Error())
		return
	}

	resultBlob, methodErr := extractResult(results, c.codec.Serializer)
	if methodErr != nil {
		c.replyError(msgID, wire.KindMethodInvokeException, methodErr.Error())
		return
	}

	c.replyResult(msgID, resultBlob)
}

// safeCall invokes fn and recovers a panic into an error, the Go analogue
// of unwrapping a reflective invocation's wrapper exception.
func safeCall(fn reflect.Value, args []reflect.Value) (results []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("netconn: controller method panicked: %v", r)
		}
	}()
	results = fn.Call(args)
	return results, nil
}

// extractResult normalizes a controller method's return values into a
// serialized result blob, per the conventions documented on Future: a
// method may return nothing, a bare value, a bare error, (value, error), or
// a Future[T] channel awaited for its single FutureResult[T].
func extractResult(results []reflect.Value, s serializeMarshaler) ([]byte, error) {
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		v := results[0]
		if v.Kind() == reflect.Chan {
			return awaitFuture(v, s)
		}
		if err, ok := v.Interface().(error); ok {
			return nil, err
		}
		return s.Marshal(v.Interface())
	case 2:
		if err, _ := results[1].Interface().(error); err != nil {
			return nil, err
		}
		return s.Marshal(results[0].Interface())
	default:
		return nil, fmt.Errorf("netconn: unsupported method return arity %d", len(results))
	}
}

// serializeMarshaler is the slice of serialize.Serializer that extractResult
// needs; named locally to avoid an import cycle with the serialize package.
type serializeMarshaler interface {
	Marshal(v any) ([]byte, error)
}

// awaitFuture receives the single FutureResult[T] a Future[T] channel
// carries and extracts its Value/Err fields by reflection, since the
// concrete T is not known at this call site.
func awaitFuture(ch reflect.Value, s serializeMarshaler) ([]byte, error) {
	v, ok := ch.Recv()
	if !ok {
		return nil, fmt.Errorf("netconn: future channel closed without a value")
	}
	errField := v.FieldByName("Err")
	if !errField.IsNil() {
		if err, ok := errField.Interface().(error); ok && err != nil {
			return nil, err
		}
	}
	return s.Marshal(v.FieldByName("Value").Interface())
}
