package netconn

import "reflect"

// Stub builds a statically-typed RMI client for interface T on top of a
// Connection. Go cannot synthesize a method set at runtime the way a
// reflective dynamic proxy can, so a Stub is the hand-written equivalent of
// a generated client — one small struct per interface whose methods call
// Connection.Call with the interface's controller id and forward their
// arguments. See adderClient in rmi_test.go for a worked Stub.
type Stub[T any] func(c *Connection) T

// GetController returns the RMI client for id on c, building it with stub on
// first use and memoizing it thereafter (spec §3, "Remote proxy cache": one
// instance per connection per interface, built lazily, reused afterward).
func GetController[T any](c *Connection, id ControllerID, stub Stub[T]) T {
	key := proxyKey{id: id, t: reflect.TypeOf((*T)(nil)).Elem()}
	if v, ok := c.proxies.Load(key); ok {
		return v.(T)
	}
	built := stub(c)
	actual, _ := c.proxies.LoadOrStore(key, built)
	return actual.(T)
}

type proxyKey struct {
	id ControllerID
	t  reflect.Type
}
