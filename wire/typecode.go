// Package wire implements the bit-exact frame layout of the duplex framed
// object protocol (spec §6.1): a 9-byte correlation/type header followed by
// an optional codepage, type name, and content. It is the Framer described
// in spec §4.1 — the lowest layer of the protocol, with no knowledge of
// sockets, RMI correlation, or controllers.
package wire

// TypeCode identifies the wire representation of a frame's value, per
// spec §6.1.
type TypeCode byte

const (
	Empty    TypeCode = 0
	Object   TypeCode = 1
	DBNull   TypeCode = 2
	Boolean  TypeCode = 3
	Char     TypeCode = 4
	SByte    TypeCode = 5
	Byte     TypeCode = 6
	Int16    TypeCode = 7
	UInt16   TypeCode = 8
	Int32    TypeCode = 9
	UInt32   TypeCode = 10
	Int64    TypeCode = 11
	UInt64   TypeCode = 12
	Single   TypeCode = 13
	Double   TypeCode = 14
	Decimal  TypeCode = 15
	DateTime TypeCode = 16
	String   TypeCode = 18
)

func (t TypeCode) String() string {
	switch t {
	case Empty:
		return "Empty"
	case Object:
		return "Object"
	case DBNull:
		return "DBNull"
	case Boolean:
		return "Boolean"
	case Char:
		return "Char"
	case SByte:
		return "SByte"
	case Byte:
		return "Byte"
	case Int16:
		return "Int16"
	case UInt16:
		return "UInt16"
	case Int32:
		return "Int32"
	case UInt32:
		return "UInt32"
	case Int64:
		return "Int64"
	case UInt64:
		return "UInt64"
	case Single:
		return "Single"
	case Double:
		return "Double"
	case Decimal:
		return "Decimal"
	case DateTime:
		return "DateTime"
	case String:
		return "String"
	default:
		return "Unknown"
	}
}

// bareFrame reports whether a frame of this TypeCode ends right after the
// 9-byte header, per spec §6.1 ("If TypeCode ∈ {0 (Empty), 2 (DBNull)}:
// frame ends here").
func (t TypeCode) bareFrame() bool {
	return t == Empty || t == DBNull
}
