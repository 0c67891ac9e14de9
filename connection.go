package netconn

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/coregx/netconn/wire"
)

// State is a Connection's position in the lifecycle state machine of spec
// §4.2.1: New -> Established -> Listening (toggles back to Established) ->
// Closing -> Closed, with Broken reachable from any state once Established.
type State int32

const (
	StateNew State = iota
	StateEstablished
	StateListening
	StateClosing
	StateClosed
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateEstablished:
		return "Established"
	case StateListening:
		return "Listening"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	case StateBroken:
		return "Broken"
	default:
		return "Unknown"
	}
}

// ErrClosed is the Cause carried by KindObjectDisposed/KindOperationCancelled
// errors produced once the connection has shut down, whether by Close or by
// a transport failure.
var ErrClosed = errors.New("netconn: connection closed")

// ErrListening is returned by ReadObject when called while the background
// Listening loop owns frame receipt (spec §4.2.1, precondition on ReadObject).
var ErrListening = errors.New("netconn: ReadObject is unavailable while Listening is enabled")

// Connection is NetworkConnection (spec §2 item 1): a TCP (or TLS) socket
// already past its handshake, exchanging framed objects with a correlated
// RMI layer on top. It is safe for concurrent use; at most one WriteObject
// and one read operation (ReadObject or the Listening loop) are in flight
// at any instant.
type Connection struct {
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	codec  *wire.ValueCodec
	cp     wire.Codepage
	logger *zap.Logger

	writeMu sync.Mutex
	readMu  sync.Mutex

	msgID atomic.Int32

	state     atomic.Int32
	listenGen atomic.Int64

	calls       *callTable
	controllers *controllerRegistry
	proxies     sync.Map

	closeCtx  context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	observerMu      sync.Mutex
	onClosed        []func(error)
	onReceived      []func(any)
	onReceivedError []func(error)
}

// New wraps an already-open (and, if required, already authenticated) net.Conn
// in a Connection. Server and Client call this once their respective
// handshakes (TLS, then credential exchange) have completed.
func New(conn net.Conn, controllers *Controllers, cfg Config) *Connection {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	if controllers == nil {
		controllers = NewControllers()
	}

	c := &Connection{
		conn:        conn,
		r:           bufio.NewReader(conn),
		w:           bufio.NewWriter(conn),
		codec:       wire.NewValueCodec(cfg.Serializer, cfg.Types),
		cp:          cfg.Codepage,
		logger:      cfg.Logger,
		calls:       newCallTable(),
		controllers: controllers.controllerRegistry,
		closeCtx:    ctx,
		cancel:      cancel,
	}
	c.state.Store(int32(StateEstablished))
	return c
}

// State reports the connection's current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) setState(s State) { c.state.Store(int32(s)) }

func (c *Connection) nextMessageID() int32 {
	return c.msgID.Add(1)
}

// RemoteAddr returns the underlying socket's remote address.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// WriteObject sends v as a single application frame (spec §4.1, "the
// simplest exchange is one peer writing an application object"). It is safe
// to call concurrently with RMI calls and with another WriteObject; writes
// serialize on a single mutex.
func (c *Connection) WriteObject(v any) error {
	return c.writeFrame(0, 0, v)
}

func (c *Connection) writeFrame(msgID, inResponseTo int32, v any) error {
	switch c.State() {
	case StateClosed, StateBroken:
		return wire.NewError(wire.KindObjectDisposed, msgID, inResponseTo, "", ErrClosed)
	}

	c.writeMu.Lock()
	err := wire.WriteFrame(c.w, c.cp, msgID, inResponseTo, v, c.codec)
	c.writeMu.Unlock()

	if err == nil {
		return nil
	}

	var werr *wire.Error
	if errors.As(err, &werr) && werr.Kind == wire.KindSerializationError {
		// A value that cannot be encoded never touched the wire: the
		// connection is still healthy (spec §4.2.2, local serialization
		// errors on outgoing application messages stay non-fatal).
		return werr
	}

	c.fail(err)
	return err
}

// ReadObject blocks for the next application frame, transparently handling
// any RMI request/response frames that arrive first (spec §4.2.1). It must
// not be called while Listening is enabled.
func (c *Connection) ReadObject() (any, error) {
	if c.State() == StateListening {
		return nil, ErrListening
	}
	env, err := c.readNext()
	if err != nil {
		return nil, err
	}
	return env.Value, nil
}

// readNext reads and classifies frames until an application-level envelope
// arrives, transparently routing RMI request/response frames along the way
// (spec §4.2.1/§4.2.3). Only one reader — ReadObject or the Listening loop
// — may be inside this call at a time.
func (c *Connection) readNext() (*wire.Envelope, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for {
		env, err := wire.ReadFrame(c.r, c.codec)
		if err != nil {
			if handled := c.routeReadError(err); handled {
				continue
			}
			c.fail(err)
			return nil, err
		}

		switch {
		case env.IsApplication():
			return env, nil
		case env.InResponseToID != 0:
			if res, ok := env.Value.(InvokeResult); ok {
				c.completeFromResponse(env.InResponseToID, res)
			} else {
				c.logger.Warn("netconn: response frame carried an unexpected value type")
			}
		default:
			if req, ok := env.Value.(InvokeRequest); ok {
				go c.handleIncomingRequest(env.MessageID, req)
			} else {
				c.logger.Warn("netconn: request frame carried an unexpected value type")
			}
		}
	}
}

// routeReadError implements spec §4.2.3's correlation rule for a failed
// frame decode: a SerializationError/SerializationTypeNotFound is always
// non-fatal (spec §7), whether or not it names a correlation id. If it
// names an outstanding call, that waiter is released with a
// DataReceivingError wrapping it; if it names an incoming request, the
// remote caller is sent a DataReceivingError reply. In every case the error
// is also reported to this peer's ReceivedError observers. Any other kind
// of read failure is fatal. Returns true when the caller should keep
// reading.
func (c *Connection) routeReadError(err error) bool {
	var werr *wire.Error
	if !errors.As(err, &werr) {
		return false
	}
	if werr.Kind != wire.KindSerializationError && werr.Kind != wire.KindSerializationTypeNotFound {
		return false
	}

	switch {
	case werr.InResponseToID != 0:
		c.completeFromReadError(werr.InResponseToID,
			wire.NewError(wire.KindDataReceivingError, werr.MessageID, werr.InResponseToID, werr.TypeName, werr))
	case werr.MessageID != 0:
		c.replyError(werr.MessageID, wire.KindDataReceivingError, werr.Error())
	}
	c.fireReceivedError(werr)
	return true
}

// replyResult sends a successful InvokeResult correlated to msgID.
func (c *Connection) replyResult(msgID int32, resultBlob []byte) {
	res := InvokeResult{ResultBlob: resultBlob}
	if err := c.writeFrame(c.nextMessageID(), msgID, res); err != nil {
		c.logger.Warn("netconn: failed to send invoke result", zap.Int32("inResponseTo", msgID), zap.Error(err))
	}
}

// replyError sends a failed InvokeResult correlated to msgID.
func (c *Connection) replyError(msgID int32, kind wire.Kind, message string) {
	res := InvokeResult{ExceptionCode: int32(kind), ExceptionMessage: message}
	if err := c.writeFrame(c.nextMessageID(), msgID, res); err != nil {
		c.logger.Warn("netconn: failed to send invoke error", zap.Int32("inResponseTo", msgID), zap.Error(err))
	}
}

// SetListening toggles the background receive loop (spec §4.2.1). Turning
// it on starts a goroutine that delivers application frames to the
// onReceived observers; turning it off lets ReadObject resume. Every call
// supersedes the running loop without aborting a read it already has in
// flight: a superseded loop delivers the frame that read returns, then
// notices its generation stamp changed and exits before starting another
// read.
func (c *Connection) SetListening(on bool) {
	if on {
		gen := c.listenGen.Add(1)
		c.setState(StateListening)
		go c.listenLoop(gen)
		return
	}

	c.listenGen.Add(1)
	if c.State() == StateListening {
		c.setState(StateEstablished)
	}
}

func (c *Connection) listenLoop(gen int64) {
	for {
		if c.listenGen.Load() != gen {
			return
		}
		env, err := c.readNext()
		if err != nil {
			return // readNext already routed fatal errors via fail()
		}
		// A read already in flight when this loop was superseded still
		// delivers its frame; the check at the top then ends the loop.
		c.fireReceived(env.Value)
	}
}

// Close performs an orderly shutdown (spec §4.2.1): the socket is closed,
// every outstanding RMI call is released with KindOperationCancelled, and
// onClosed observers fire exactly once.
func (c *Connection) Close() error {
	return c.shutdown(StateClosed, nil)
}

// fail transitions the connection to Broken because of a transport or
// protocol failure, releasing waiters the same way Close does but
// preserving cause for observers.
func (c *Connection) fail(cause error) {
	c.shutdown(StateBroken, cause)
}

func (c *Connection) shutdown(target State, cause error) error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.setState(StateClosing)
		c.cancel()
		closeErr = c.conn.Close()
		c.calls.drain(wire.NewError(wire.KindOperationCancelled, 0, 0, "", ErrClosed))
		c.controllers.forget(c)
		c.setState(target)
		c.closeErr = cause
		c.fireClosed(cause)
	})
	return closeErr
}
