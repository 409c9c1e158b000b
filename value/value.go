package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface representing one decoded or to-be-encoded datum.
// Only Null, Bool, Int, Uint, Float, String, Struct, Seq and Union implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an absent optional member.
type Null struct{}

func (Null) value() {}

// Bool represents an IDL boolean.
type Bool bool

func (Bool) value() {}

// Int represents any signed IDL integer and enum values.
type Int int64

func (Int) value() {}

// Uint represents any unsigned IDL integer, octets and chars.
type Uint uint64

func (Uint) value() {}

// Float represents float and double.
type Float float64

func (Float) value() {}

// String represents bounded and unbounded strings.
type String string

func (String) value() {}

// Struct holds member values in ordinal order.
type Struct []Value

func (Struct) value() {}

// Seq holds sequence elements, or array elements of one dimension.
type Seq []Value

func (Seq) value() {}

// Union holds the discriminator and the selected member value.
// Value is nil when the discriminator selects no member.
type Union struct {
	Disc  int64
	Value Value
}

func (Union) value() {}

// Equal reports whether two values are structurally identical.
// Floats compare by bit pattern so NaN payloads survive round trips.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Uint:
		y, ok := b.(Uint)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && math.Float64bits(float64(x)) == math.Float64bits(float64(y))
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Struct:
		y, ok := b.(Struct)
		return ok && equalList(x, y)
	case Seq:
		y, ok := b.(Seq)
		return ok && equalList(x, y)
	case Union:
		y, ok := b.(Union)
		return ok && x.Disc == y.Disc && Equal(x.Value, y.Value)
	default:
		return false
	}
}

func equalList(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Format renders a value in a compact, deterministic text form for
// diagnostics and golden files.
func Format(v Value) string {
	var sb strings.Builder
	format(&sb, v)
	return sb.String()
}

func format(sb *strings.Builder, v Value) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("<nil>")
	case Null:
		sb.WriteString("null")
	case Bool:
		sb.WriteString(strconv.FormatBool(bool(x)))
	case Int:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case Uint:
		sb.WriteString(strconv.FormatUint(uint64(x), 10) + "u")
	case Float:
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 64))
	case String:
		sb.WriteString(strconv.Quote(string(x)))
	case Struct:
		sb.WriteByte('{')
		for i, f := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, f)
		}
		sb.WriteByte('}')
	case Seq:
		sb.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, e)
		}
		sb.WriteByte(']')
	case Union:
		fmt.Fprintf(sb, "<%d:", x.Disc)
		format(sb, x.Value)
		sb.WriteByte('>')
	default:
		fmt.Fprintf(sb, "%T", v)
	}
}
