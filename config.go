// Package netconn implements NetworkConnection, the core of the duplex
// framed object protocol with correlated RMI (spec §4.2): it owns the wire
// framing, the request/response correlation table, the concurrent
// receive/dispatch loop, the asynchronous RMI call path, controller
// resolution, and the orderly shutdown protocol.
package netconn

import (
	"sync"

	"go.uber.org/zap"

	"github.com/coregx/netconn/serialize"
	"github.com/coregx/netconn/wire"
)

// Config is the configuration surface of spec §6.4, passed explicitly to
// constructors instead of read from a process-wide mutable slot.
type Config struct {
	// Codepage is the text encoding used for this peer's outgoing frames
	// (spec §6.4 default: UTF-8).
	Codepage wire.Codepage

	// Serializer marshals/unmarshals Object payloads. Defaults to
	// DefaultSerializer() (json-iterator) if nil.
	Serializer serialize.Serializer

	// Types resolves Object TypeNames to Go types on decode and names
	// outgoing Object values on encode. Defaults to a fresh Registry if
	// nil; the RMI envelope types are registered into it either way.
	Types *serialize.Registry

	// Logger receives the library's internal diagnostics: dropped
	// correlation ids, frames carrying an unexpected value type, and RMI
	// replies that could not be sent. Defaults to a no-op logger.
	Logger *zap.Logger

	// DisconnectClientsOnDispose controls whether a Server actively closes
	// every live peer connection when it shuts down (spec §6.4).
	DisconnectClientsOnDispose bool
}

var (
	defaultSerializerOnce sync.Once
	defaultSerializerVal  serialize.Serializer

	defaultRegistryOnce sync.Once
	defaultRegistryVal  *serialize.Registry
)

// DefaultSerializer returns the process default Serializer (json-iterator
// based), built once and then immutable, so concurrent first-use callers
// never race on its initialization.
func DefaultSerializer() serialize.Serializer {
	defaultSerializerOnce.Do(func() {
		defaultSerializerVal = serialize.NewJSON()
	})
	return defaultSerializerVal
}

// DefaultRegistry returns the process default type Registry, pre-seeded
// with the RMI envelope types so every Connection can exchange Invoke
// requests/results without extra setup.
func DefaultRegistry() *serialize.Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistryVal = serialize.NewRegistry()
		registerEnvelopeTypes(defaultRegistryVal)
	})
	return defaultRegistryVal
}

func registerEnvelopeTypes(r *serialize.Registry) {
	r.Register(invokeRequestTypeName, InvokeRequest{})
	r.Register(invokeResultTypeName, InvokeResult{})
}

func (c Config) withDefaults() Config {
	if c.Codepage == 0 {
		c.Codepage = wire.DefaultCodepage
	}
	if c.Serializer == nil {
		c.Serializer = DefaultSerializer()
	}
	if c.Types == nil {
		c.Types = serialize.NewRegistry()
	}
	registerEnvelopeTypes(c.Types)
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
