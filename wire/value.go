package wire

// CharValue represents a single wire Char (TypeCode 4). Go's rune is an
// alias for int32, which already names TypeCode Int32; CharValue is a
// distinct type so the codec can tell the two TypeCodes apart at the Go
// type level.
type CharValue rune

// DecimalValue represents a wire Decimal (TypeCode 15). The protocol only
// ever needs the invariant-culture textual form on either side of the
// wire, so DecimalValue keeps the canonical decimal digits as a string
// instead of round-tripping through a floating-point type that could lose
// precision.
type DecimalValue string

// dbNullType is the Go representation of TypeCode DBNull — distinct from
// nil (which represents TypeCode Empty).
type dbNullType struct{}

// DBNull is the sentinel value that encodes as TypeCode DBNull.
var DBNull = dbNullType{}

// IsDBNull reports whether v is the DBNull sentinel.
func IsDBNull(v any) bool {
	_, ok := v.(dbNullType)
	return ok
}
