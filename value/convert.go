package value

import "fmt"

// Signed matches the Go types generated for signed IDL integers and enums.
type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned matches the Go types generated for unsigned IDL integers, octets and chars.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Floating matches float and double.
type Floating interface {
	~float32 | ~float64
}

// ConversionError reports a value whose dynamic type or range does not fit
// the Go field it is assigned to.
type ConversionError struct {
	Want string
	Got  Value
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s (%T) to %s", Format(e.Got), e.Got, e.Want)
}

// SeqOf converts a Go slice element by element.
func SeqOf[T any](s []T, f func(T) Value) Seq {
	out := make(Seq, len(s))
	for i, e := range s {
		out[i] = f(e)
	}
	return out
}

// Optional converts a pointer field; nil becomes Null.
func Optional[T any](p *T, f func(T) Value) Value {
	if p == nil {
		return Null{}
	}
	return f(*p)
}

// BoolDisc maps a boolean discriminator to its label value.
func BoolDisc(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// AsStruct asserts v is a Struct with exactly n members.
func AsStruct(v Value, n int) (Struct, error) {
	s, ok := v.(Struct)
	if !ok {
		return nil, &ConversionError{Want: "struct", Got: v}
	}
	if len(s) != n {
		return nil, fmt.Errorf("struct has %d members, want %d", len(s), n)
	}
	return s, nil
}

// AsUnion asserts v is a Union.
func AsUnion(v Value) (Union, error) {
	u, ok := v.(Union)
	if !ok {
		return Union{}, &ConversionError{Want: "union", Got: v}
	}
	return u, nil
}

// ToInt converts an Int to a signed Go integer, rejecting values that overflow T.
func ToInt[T Signed](v Value) (T, error) {
	i, ok := v.(Int)
	if !ok {
		return 0, &ConversionError{Want: "int", Got: v}
	}
	t := T(i)
	if Int(t) != i {
		return 0, &ConversionError{Want: fmt.Sprintf("%T", t), Got: v}
	}
	return t, nil
}

// ToUint converts a Uint to an unsigned Go integer, rejecting values that overflow T.
func ToUint[T Unsigned](v Value) (T, error) {
	u, ok := v.(Uint)
	if !ok {
		return 0, &ConversionError{Want: "uint", Got: v}
	}
	t := T(u)
	if Uint(t) != u {
		return 0, &ConversionError{Want: fmt.Sprintf("%T", t), Got: v}
	}
	return t, nil
}

// ToFloat converts a Float to float32 or float64.
func ToFloat[T Floating](v Value) (T, error) {
	f, ok := v.(Float)
	if !ok {
		return 0, &ConversionError{Want: "float", Got: v}
	}
	return T(f), nil
}

// ToBool converts a Bool.
func ToBool(v Value) (bool, error) {
	b, ok := v.(Bool)
	if !ok {
		return false, &ConversionError{Want: "bool", Got: v}
	}
	return bool(b), nil
}

// ToString converts a String.
func ToString(v Value) (string, error) {
	s, ok := v.(String)
	if !ok {
		return "", &ConversionError{Want: "string", Got: v}
	}
	return string(s), nil
}

// ToSlice converts a Seq into a freshly allocated slice.
func ToSlice[T any](v Value, f func(Value) (T, error)) ([]T, error) {
	s, ok := v.(Seq)
	if !ok {
		return nil, &ConversionError{Want: "sequence", Got: v}
	}
	out := make([]T, len(s))
	for i, e := range s {
		t, err := f(e)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// ToArray fills dst from a Seq of exactly len(dst) elements.
func ToArray[T any](v Value, dst []T, f func(Value) (T, error)) error {
	s, ok := v.(Seq)
	if !ok {
		return &ConversionError{Want: "array", Got: v}
	}
	if len(s) != len(dst) {
		return fmt.Errorf("array has %d elements, want %d", len(s), len(dst))
	}
	for i, e := range s {
		t, err := f(e)
		if err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
		dst[i] = t
	}
	return nil
}

// ToOptional converts an optional member; Null becomes a nil pointer.
func ToOptional[T any](v Value, f func(Value) (T, error)) (*T, error) {
	if _, ok := v.(Null); ok {
		return nil, nil
	}
	t, err := f(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
