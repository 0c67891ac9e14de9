package netconn

import (
	"fmt"
	"reflect"
	"sync"
)

// invokeRequestTypeName and invokeResultTypeName are the reserved Object
// TypeNames the RMI envelope travels under. They are registered into every
// Connection's Registry automatically (see registerEnvelopeTypes) so
// application code never has to know about them.
const (
	invokeRequestTypeName = "netconn.InvokeRequest"
	invokeResultTypeName  = "netconn.InvokeResult"
)

// InvokeRequest is the Object payload of an outgoing RMI call (spec §4.2.2,
// "Invoke request"). Parameters travel pre-serialized: each entry is the
// connection's Serializer applied to one argument, so the receiving side
// can decode each one against the exact parameter type of the method it
// resolves, rather than against whatever a generic decode would guess.
type InvokeRequest struct {
	ControllerFullName     string
	MethodName             string
	ParameterTypeFullNames []string
	ParameterBlobs         [][]byte
}

// InvokeResult is the Object payload of an RMI response (spec §4.2.2,
// "Invoke result"). ExceptionCode is zero on success; otherwise it carries
// the wire.Kind of the failure. ResultBlob is the serialized return value,
// decoded by the caller against the return type it statically expects.
type InvokeResult struct {
	ExceptionCode    int32
	ExceptionMessage string
	FullException    string
	ResultBlob       []byte
}

// ControllerID names a registered controller, the RMI analogue of a service
// name. Identify builds one from a Go interface value and a module label so
// two peers compiled from the same source agree on the string without
// either side hand-typing it.
type ControllerID string

// Identify derives a ControllerID from the interface type of iface. module
// is typically the defining package's import path, included so identically
// named interfaces in different packages don't collide.
func Identify(iface any, module string) ControllerID {
	t := reflect.TypeOf(iface)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return ControllerID(fmt.Sprintf("%s, %s", t.Name(), module))
}

// Resolver produces the controller instance that serves a given connection.
// Use Instance, Constructor, or Factory to build one; Use registers it.
type Resolver interface {
	resolve(c *Connection) (any, error)
}

type instanceResolver struct{ v any }

func (r instanceResolver) resolve(*Connection) (any, error) { return r.v, nil }

// Instance registers a single pre-built controller instance shared by every
// connection (spec §4.3: "a single shared instance").
func Instance(v any) Resolver { return instanceResolver{v} }

type constructorResolver struct{ fn func() any }

func (r constructorResolver) resolve(*Connection) (any, error) { return r.fn(), nil }

// Constructor registers a factory invoked once per connection, with no
// access to the connection itself (spec §4.3: "constructed fresh per
// resolution").
func Constructor(fn func() any) Resolver { return constructorResolver{fn} }

type factoryResolver struct{ fn func(*Connection) (any, error) }

func (r factoryResolver) resolve(c *Connection) (any, error) { return r.fn(c) }

// Factory registers a per-connection constructor that receives the
// connection it is being resolved for, letting the controller reach back
// into RMI, peer metadata, or connection-scoped state (spec §4.3: "given
// the requesting connection").
func Factory(fn func(*Connection) (any, error)) Resolver { return factoryResolver{fn} }

// controllerRegistry holds the append-only id -> Resolver table and
// memoizes each id's first resolution per connection (spec §4.3: "first
// resolution for a given connection is memoized; later calls for the same
// id on the same connection reuse it").
type controllerRegistry struct {
	mu        sync.RWMutex
	resolvers map[ControllerID]Resolver
	cache     sync.Map // map[cacheKey]any, scoped per Connection
}

type cacheKey struct {
	conn *Connection
	id   ControllerID
}

func newControllerRegistry() *controllerRegistry {
	return &controllerRegistry{resolvers: make(map[ControllerID]Resolver)}
}

// Use registers resolver under id. Re-registering the same id replaces the
// resolver for future resolutions; it does not invalidate instances already
// memoized for live connections.
func (r *controllerRegistry) Use(id ControllerID, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[id] = resolver
}

func (r *controllerRegistry) resolve(c *Connection, id ControllerID) (any, error) {
	key := cacheKey{conn: c, id: id}
	if v, ok := r.cache.Load(key); ok {
		return v, nil
	}

	r.mu.RLock()
	resolver, ok := r.resolvers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("netconn: no controller registered for %q", id)
	}

	instance, err := resolver.resolve(c)
	if err != nil {
		return nil, err
	}

	actual, _ := r.cache.LoadOrStore(key, instance)
	return actual, nil
}

// forget drops every memoized instance for c, called on connection close so
// per-connection controllers don't outlive the peer they were built for.
func (r *controllerRegistry) forget(c *Connection) {
	r.cache.Range(func(k, _ any) bool {
		if key, ok := k.(cacheKey); ok && key.conn == c {
			r.cache.Delete(k)
		}
		return true
	})
}

// Future is the deferred-result convention for controller methods that
// compute asynchronously (spec §4.3, "Deferred method results"): a method
// may return Future[T] instead of (T, error); the dispatcher receives
// exactly one FutureResult[T] from the channel before replying.
type Future[T any] <-chan FutureResult[T]

// FutureResult is the single value a Future channel carries.
type FutureResult[T any] struct {
	Value T
	Err   error
}

// findMethod locates the exported method named name on controller whose
// parameter list (excluding the receiver) matches paramTypeNames exactly,
// per spec §4.3's "name plus parameter type full names" resolution rule.
func findMethod(controller any, name string, paramTypeNames []string) (reflect.Method, bool) {
	t := reflect.TypeOf(controller)
	m, ok := t.MethodByName(name)
	if !ok {
		return reflect.Method{}, false
	}

	numIn := m.Type.NumIn() - 1 // drop the receiver
	if numIn != len(paramTypeNames) {
		return reflect.Method{}, false
	}
	for i := 0; i < numIn; i++ {
		if m.Type.In(i+1).String() != paramTypeNames[i] {
			return reflect.Method{}, false
		}
	}
	return m, true
}
