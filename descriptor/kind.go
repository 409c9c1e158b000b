package descriptor

import "fmt"

// Kind identifies the shape of a descriptor node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindChar
	KindOctet
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindEnum
	KindStruct
	KindUnion
	KindSequence
	KindArray
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindBool:     "bool",
	KindChar:     "char",
	KindOctet:    "octet",
	KindInt8:     "int8",
	KindUint8:    "uint8",
	KindInt16:    "int16",
	KindUint16:   "uint16",
	KindInt32:    "int32",
	KindUint32:   "uint32",
	KindInt64:    "int64",
	KindUint64:   "uint64",
	KindFloat32:  "float32",
	KindFloat64:  "float64",
	KindString:   "string",
	KindEnum:     "enum",
	KindStruct:   "struct",
	KindUnion:    "union",
	KindSequence: "sequence",
	KindArray:    "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s && Kind(k) != KindInvalid {
			return Kind(k), nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if k == KindInvalid || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("cannot marshal %s", k)
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Primitive reports whether k is a fixed-size primitive (bool through float64).
func (k Kind) Primitive() bool {
	return k >= KindBool && k <= KindFloat64
}

// Scalar reports whether k is a primitive or an enum. Sequences and arrays of
// scalars carry no DHEADER in XCDR2.
func (k Kind) Scalar() bool {
	return k.Primitive() || k == KindEnum
}

// Size returns the encoded size of a scalar kind, or 0 for other kinds.
func (k Kind) Size() int {
	switch k {
	case KindBool, KindChar, KindOctet, KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32, KindEnum:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	}
	return 0
}

// Signed reports whether values of k travel as value.Int.
func (k Kind) Signed() bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindEnum:
		return true
	}
	return false
}

// Unsigned reports whether values of k travel as value.Uint.
func (k Kind) Unsigned() bool {
	switch k {
	case KindChar, KindOctet, KindUint8, KindUint16, KindUint32, KindUint64:
		return true
	}
	return false
}

// Discriminator reports whether k may discriminate a union.
func (k Kind) Discriminator() bool {
	switch k {
	case KindFloat32, KindFloat64:
		return false
	}
	return k.Scalar()
}

// Extensibility is the XTypes extensibility kind of a struct or union.
type Extensibility uint8

const (
	Final Extensibility = iota
	Appendable
	Mutable
)

func (e Extensibility) String() string {
	switch e {
	case Final:
		return "final"
	case Appendable:
		return "appendable"
	case Mutable:
		return "mutable"
	}
	return fmt.Sprintf("extensibility(%d)", uint8(e))
}

// ParseExtensibility accepts final, appendable and mutable.
func ParseExtensibility(s string) (Extensibility, error) {
	switch s {
	case "final", "":
		return Final, nil
	case "appendable":
		return Appendable, nil
	case "mutable":
		return Mutable, nil
	}
	return Final, fmt.Errorf("unknown extensibility %q", s)
}

func (e Extensibility) MarshalText() ([]byte, error) {
	if e > Mutable {
		return nil, fmt.Errorf("cannot marshal %s", e)
	}
	return []byte(e.String()), nil
}

func (e *Extensibility) UnmarshalText(b []byte) error {
	parsed, err := ParseExtensibility(string(b))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
