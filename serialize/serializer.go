// Package serialize provides the pluggable object-serialization contract
// consumed by the wire framer (package wire) and the connection core
// (package netconn). The concrete wire format of a serialized object is
// explicitly out of scope for this repository: callers may swap in any
// Serializer implementation as long as it can marshal an application value
// to bytes and unmarshal bytes back into a value of a known reflect.Type.
package serialize

import "reflect"

// Serializer converts application values to and from byte sequences.
//
// Implementations must be safe for concurrent use: NetworkConnection may
// serialize a reply on a background RMI goroutine while the foreground
// path serializes an outgoing application message.
type Serializer interface {
	// Name identifies the serializer on log lines and error messages.
	Name() string

	// Marshal encodes v to its wire representation.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into a new value of type t. The returned value
	// is always a distinct instance, never aliased to a cached original.
	Unmarshal(data []byte, t reflect.Type) (any, error)
}
