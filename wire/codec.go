package wire

import (
	"fmt"
	"strconv"
	"time"

	"github.com/coregx/netconn/serialize"
)

// rawBytesTypeName is the magic TypeName that bypasses the serializer
// entirely, per spec §4.1: "Object payload with TypeName == byte[] is
// transmitted verbatim (no serializer call) in both directions."
const rawBytesTypeName = "byte[]"

// dateTimeLayout is the invariant-culture round-trip textual form used for
// TypeCode DateTime (spec §4.1: ISO-8601 "o" format).
const dateTimeLayout = "2006-01-02T15:04:05.9999999Z07:00"

// ValueCodec converts between application values and the scalar/Object
// wire representations of spec §6.1. It owns no I/O; Framer (ReadFrame/
// WriteFrame) uses it to turn a decoded header into a Go value and back.
type ValueCodec struct {
	Serializer serialize.Serializer
	Types      *serialize.Registry
}

// NewValueCodec pairs a Serializer with the Registry used to resolve
// Object TypeNames on decode and to name outgoing Object values.
func NewValueCodec(s serialize.Serializer, types *serialize.Registry) *ValueCodec {
	return &ValueCodec{Serializer: s, Types: types}
}

// classify picks the TypeCode for an outgoing value and, for Object
// values, the TypeName that will accompany it on the wire.
func (c *ValueCodec) classify(v any) (TypeCode, string, error) {
	switch x := v.(type) {
	case nil:
		return Empty, "", nil
	case dbNullType:
		return DBNull, "", nil
	case []byte:
		return Object, rawBytesTypeName, nil
	case bool:
		return Boolean, "", nil
	case CharValue:
		return Char, "", nil
	case int8:
		return SByte, "", nil
	case uint8:
		return Byte, "", nil
	case int16:
		return Int16, "", nil
	case uint16:
		return UInt16, "", nil
	case int32:
		return Int32, "", nil
	case uint32:
		return UInt32, "", nil
	case int64:
		return Int64, "", nil
	case uint64:
		return UInt64, "", nil
	case float32:
		return Single, "", nil
	case float64:
		return Double, "", nil
	case DecimalValue:
		return Decimal, "", nil
	case time.Time:
		return DateTime, "", nil
	case string:
		return String, "", nil
	default:
		name, ok := c.Types.NameOf(v)
		if !ok {
			return Empty, "", fmt.Errorf("wire: no registered type name for %T", v)
		}
		return Object, name, nil
	}
}

// EncodeValue renders v as its TypeCode, TypeName (Object only), and the
// raw content bytes (already text-encoded for textual TypeCodes; callers
// still apply the frame's codepage).
func (c *ValueCodec) EncodeValue(v any, cp Codepage) (typeCode TypeCode, typeName string, textual bool, content []byte, err error) {
	typeCode, typeName, err = c.classify(v)
	if err != nil {
		return 0, "", false, nil, err
	}

	switch typeCode {
	case Empty, DBNull:
		return typeCode, "", false, nil, nil
	case Object:
		if typeName == rawBytesTypeName {
			return typeCode, typeName, false, v.([]byte), nil
		}
		data, merr := c.Serializer.Marshal(v)
		if merr != nil {
			return 0, "", false, nil, merr
		}
		return typeCode, typeName, false, data, nil
	case Boolean:
		return typeCode, "", true, []byte(strconv.FormatBool(v.(bool))), nil
	case Char:
		return typeCode, "", true, []byte(string(rune(v.(CharValue)))), nil
	case SByte:
		return typeCode, "", true, []byte(strconv.FormatInt(int64(v.(int8)), 10)), nil
	case Byte:
		return typeCode, "", true, []byte(strconv.FormatUint(uint64(v.(uint8)), 10)), nil
	case Int16:
		return typeCode, "", true, []byte(strconv.FormatInt(int64(v.(int16)), 10)), nil
	case UInt16:
		return typeCode, "", true, []byte(strconv.FormatUint(uint64(v.(uint16)), 10)), nil
	case Int32:
		return typeCode, "", true, []byte(strconv.FormatInt(int64(v.(int32)), 10)), nil
	case UInt32:
		return typeCode, "", true, []byte(strconv.FormatUint(uint64(v.(uint32)), 10)), nil
	case Int64:
		return typeCode, "", true, []byte(strconv.FormatInt(v.(int64), 10)), nil
	case UInt64:
		return typeCode, "", true, []byte(strconv.FormatUint(v.(uint64), 10)), nil
	case Single:
		return typeCode, "", true, []byte(strconv.FormatFloat(float64(v.(float32)), 'G', -1, 32)), nil
	case Double:
		return typeCode, "", true, []byte(strconv.FormatFloat(v.(float64), 'G', -1, 64)), nil
	case Decimal:
		return typeCode, "", true, []byte(v.(DecimalValue)), nil
	case DateTime:
		return typeCode, "", true, []byte(v.(time.Time).Format(dateTimeLayout)), nil
	case String:
		return typeCode, "", true, []byte(v.(string)), nil
	default:
		return 0, "", false, nil, fmt.Errorf("wire: unhandled type code %s", typeCode)
	}
}

// DecodeValue reconstructs a Go value from a frame's TypeCode/TypeName and
// already codepage-decoded textual content (or raw bytes for non-textual
// content). msgID/inResponseTo are threaded through only to build
// SerializationError/SerializationTypeNotFound with correlation ids intact.
func (c *ValueCodec) DecodeValue(typeCode TypeCode, typeName string, raw []byte, text string, msgID, inResponseTo int32) (any, error) {
	switch typeCode {
	case Empty:
		return nil, nil
	case DBNull:
		return DBNull, nil
	case Object:
		if typeName == rawBytesTypeName {
			return append([]byte(nil), raw...), nil
		}
		t, ok := c.Types.Lookup(typeName)
		if !ok {
			return nil, NewError(KindSerializationTypeNotFound, msgID, inResponseTo, typeName,
				fmt.Errorf("wire: type %q is not registered on this peer", typeName))
		}
		v, err := c.Serializer.Unmarshal(raw, t)
		if err != nil {
			return nil, NewError(KindSerializationError, msgID, inResponseTo, typeName, err)
		}
		return v, nil
	case Boolean:
		b, err := strconv.ParseBool(text)
		return wrapScalarErr(b, err, typeCode, msgID, inResponseTo)
	case Char:
		r := []rune(text)
		if len(r) != 1 {
			return nil, NewError(KindSerializationError, msgID, inResponseTo, "", fmt.Errorf("wire: Char content %q is not one rune", text))
		}
		return CharValue(r[0]), nil
	case SByte:
		n, err := strconv.ParseInt(text, 10, 8)
		return wrapScalarErr(int8(n), err, typeCode, msgID, inResponseTo)
	case Byte:
		n, err := strconv.ParseUint(text, 10, 8)
		return wrapScalarErr(uint8(n), err, typeCode, msgID, inResponseTo)
	case Int16:
		n, err := strconv.ParseInt(text, 10, 16)
		return wrapScalarErr(int16(n), err, typeCode, msgID, inResponseTo)
	case UInt16:
		n, err := strconv.ParseUint(text, 10, 16)
		return wrapScalarErr(uint16(n), err, typeCode, msgID, inResponseTo)
	case Int32:
		n, err := strconv.ParseInt(text, 10, 32)
		return wrapScalarErr(int32(n), err, typeCode, msgID, inResponseTo)
	case UInt32:
		n, err := strconv.ParseUint(text, 10, 32)
		return wrapScalarErr(uint32(n), err, typeCode, msgID, inResponseTo)
	case Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		return wrapScalarErr(n, err, typeCode, msgID, inResponseTo)
	case UInt64:
		n, err := strconv.ParseUint(text, 10, 64)
		return wrapScalarErr(n, err, typeCode, msgID, inResponseTo)
	case Single:
		f, err := strconv.ParseFloat(text, 32)
		return wrapScalarErr(float32(f), err, typeCode, msgID, inResponseTo)
	case Double:
		f, err := strconv.ParseFloat(text, 64)
		return wrapScalarErr(f, err, typeCode, msgID, inResponseTo)
	case Decimal:
		return DecimalValue(text), nil
	case DateTime:
		t, err := time.Parse(dateTimeLayout, text)
		return wrapScalarErr(t, err, typeCode, msgID, inResponseTo)
	case String:
		return text, nil
	default:
		return nil, NewError(KindProtocolViolation, msgID, inResponseTo, "", fmt.Errorf("wire: unknown type code %d", typeCode))
	}
}

func wrapScalarErr[T any](v T, err error, typeCode TypeCode, msgID, inResponseTo int32) (any, error) {
	if err != nil {
		return nil, NewError(KindSerializationError, msgID, inResponseTo, "",
			fmt.Errorf("wire: decode %s: %w", typeCode, err))
	}
	return v, nil
}
