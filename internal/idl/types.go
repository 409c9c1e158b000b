package idl

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/cdrgen/descriptor"
)

// Kind is the variant of a TypeNode.
type Kind int

const (
	KindInvalid Kind = iota
	KindPrimitive
	KindString
	KindEnum
	KindStruct
	KindUnion
	KindSequence
	KindArray
	KindAlias
	KindRef
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindPrimitive: "primitive",
	KindString:    "string",
	KindEnum:      "enum",
	KindStruct:    "struct",
	KindUnion:     "union",
	KindSequence:  "sequence",
	KindArray:     "array",
	KindAlias:     "typedef",
	KindRef:       "ref",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// AutoID selects how member ids are assigned when @id is absent.
type AutoID int

const (
	AutoSequential AutoID = iota
	AutoHash
)

func (a AutoID) String() string {
	if a == AutoHash {
		return "hash"
	}
	return "sequential"
}

// ParseAutoID accepts "sequential" (also the empty string) and "hash".
func ParseAutoID(s string) (AutoID, error) {
	switch s {
	case "", "sequential":
		return AutoSequential, nil
	case "hash":
		return AutoHash, nil
	}
	return 0, fmt.Errorf("unknown autoid %q", s)
}

// Annotations are the IDL annotations the backend understands. Key, Optional
// and ID apply to members; Extensibility and AutoID to structs and unions.
type Annotations struct {
	Key           bool
	Optional      bool
	ID            *uint32
	Extensibility descriptor.Extensibility
	AutoID        AutoID
}

// TypeNode is one node of the type model.
type TypeNode struct {
	Kind Kind
	Prim descriptor.Kind
	// Name is the scoped name ("a::b::T") of a declared type, or the name
	// as written for a Ref.
	Name string

	// Bounded reports whether Bound was given; a zero or negative Bound is
	// kept so validation can report it.
	Bounded bool
	Bound   int64
	Dims    []int64

	// Elem is the element of a sequence or array and the target of an alias.
	Elem *TypeNode

	Members     []*Member
	Disc        *TypeNode
	Cases       []*UnionCase
	Enumerators []Enumerator

	Annotations Annotations
	Pos         token.Pos

	// Scope is the module path a Ref was written in; Target is set once the
	// compiler has resolved it.
	Scope  []string
	Target *TypeNode
}

// Member is one field of a struct.
type Member struct {
	Index       int
	Name        string
	Type        *TypeNode
	Annotations Annotations
	Pos         token.Pos

	// ID is the effective member id, explicit @id or auto-assigned.
	ID uint32
}

// Key reports whether the member is annotated @key.
func (m *Member) Key() bool { return m.Annotations.Key }

// Optional reports whether the member is annotated @optional.
func (m *Member) Optional() bool { return m.Annotations.Optional }

// UnionCase is one branch of a union.
type UnionCase struct {
	Labels []int64
	// LabelRefs are enumerator labels; the compiler appends their values to
	// Labels once the discriminator is resolved.
	LabelRefs []string

	Default bool
	Name    string
	Type    *TypeNode
	Pos     token.Pos
}

// Enumerator is one constant of an enum.
type Enumerator struct {
	Name  string
	Value int32
}

// Declared reports whether n is a named declaration rather than an
// anonymous type expression.
func (n *TypeNode) Declared() bool {
	switch n.Kind {
	case KindEnum, KindStruct, KindUnion, KindAlias:
		return true
	}
	return false
}

// Resolve follows references and typedefs to the underlying node. It
// returns nil when a reference in the chain is unresolved.
func (n *TypeNode) Resolve() *TypeNode {
	seen := 0
	for n != nil {
		switch n.Kind {
		case KindRef:
			n = n.Target
		case KindAlias:
			n = n.Elem
		default:
			return n
		}
		// alias cycles are reported by validation
		if seen++; seen > 1024 {
			return nil
		}
	}
	return nil
}

// VisitMembers calls fn for each struct member in declaration order until
// fn returns false.
func (n *TypeNode) VisitMembers(fn func(*Member) bool) {
	for _, m := range n.Members {
		if !fn(m) {
			return
		}
	}
}

// ShortName is the last component of a scoped name.
func (n *TypeNode) ShortName() string {
	if i := strings.LastIndex(n.Name, "::"); i >= 0 {
		return n.Name[i+2:]
	}
	return n.Name
}

// Module is the module path of a declared type.
func (n *TypeNode) Module() []string {
	parts := SplitScoped(n.Name)
	if len(parts) == 0 {
		return nil
	}
	return parts[:len(parts)-1]
}

// String renders the node as an IDL type expression. Declared types render
// as their scoped name.
func (n *TypeNode) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Kind {
	case KindPrimitive:
		return PrimitiveName(n.Prim)
	case KindString:
		if n.Bounded {
			return fmt.Sprintf("string<%d>", n.Bound)
		}
		return "string"
	case KindSequence:
		if n.Bounded {
			return fmt.Sprintf("sequence<%s, %d>", n.Elem, n.Bound)
		}
		return fmt.Sprintf("sequence<%s>", n.Elem)
	case KindArray:
		var b strings.Builder
		b.WriteString(n.Elem.String())
		for _, d := range n.Dims {
			fmt.Fprintf(&b, "[%d]", d)
		}
		return b.String()
	}
	return n.Name
}

// SplitScoped splits "::a::b::T" or "a::b::T" into its components.
func SplitScoped(name string) []string {
	name = strings.TrimPrefix(name, "::")
	if name == "" {
		return nil
	}
	return strings.Split(name, "::")
}

// JoinScoped joins components into a scoped name.
func JoinScoped(parts ...string) string {
	return strings.Join(parts, "::")
}

var primitiveNames = map[descriptor.Kind]string{
	descriptor.KindBool:    "boolean",
	descriptor.KindChar:    "char",
	descriptor.KindOctet:   "octet",
	descriptor.KindInt8:    "int8",
	descriptor.KindUint8:   "uint8",
	descriptor.KindInt16:   "short",
	descriptor.KindUint16:  "unsigned short",
	descriptor.KindInt32:   "long",
	descriptor.KindUint32:  "unsigned long",
	descriptor.KindInt64:   "long long",
	descriptor.KindUint64:  "unsigned long long",
	descriptor.KindFloat32: "float",
	descriptor.KindFloat64: "double",
}

// PrimitiveName is the IDL spelling of a primitive kind.
func PrimitiveName(k descriptor.Kind) string {
	if s, ok := primitiveNames[k]; ok {
		return s
	}
	return k.String()
}
