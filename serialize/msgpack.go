package serialize

import (
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgPack is an alternate Serializer exercising the pluggable contract of
// spec §4.1/§6.4 with a compact binary codec, as goridge does alongside its
// JSON codec.
type MsgPack struct{}

// NewMsgPack returns a ready-to-use MessagePack serializer.
func NewMsgPack() *MsgPack { return &MsgPack{} }

func (m *MsgPack) Name() string { return "msgpack" }

func (m *MsgPack) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (m *MsgPack) Unmarshal(data []byte, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	if err := msgpack.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}
