package serialize

import (
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

// JSON is the default Serializer (spec §6.4): a JSON codec that preserves
// enough type information to round-trip through the connection's Registry.
// It is backed by json-iterator/go configured for ConfigCompatibleWithStandardLibrary,
// the same drop-in replacement for encoding/json used by goridge's RPC codec.
type JSON struct {
	api jsoniter.API
}

// NewJSON returns a ready-to-use JSON serializer.
func NewJSON() *JSON {
	return &JSON{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

func (j *JSON) Name() string { return "json" }

func (j *JSON) Marshal(v any) ([]byte, error) {
	return j.api.Marshal(v)
}

func (j *JSON) Unmarshal(data []byte, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	if err := j.api.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}
