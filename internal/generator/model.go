package generator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/internal/idl"
	"github.com/roach88/cdrgen/internal/naming"
)

// Import paths of the runtime packages generated code depends on.
const (
	DescriptorPackage = "github.com/roach88/cdrgen/descriptor"
	ValuePackage      = "github.com/roach88/cdrgen/value"
)

// GoFile is the template input for one generated Go file.
type GoFile struct {
	Package string
	Topic   string
	Imports []string
	Decls   []Decl
}

// Decl is one generated declaration; exactly one of the pointers is set.
type Decl struct {
	Alias  *Alias
	Enum   *Enum
	Struct *Struct
	Union  *Union
}

// Alias is a typedef, emitted as a Go type alias.
type Alias struct {
	IDLName string
	Name    string
	Type    string
}

// Enum is an IDL enum backed by int32.
type Enum struct {
	IDLName     string
	Name        string
	Enumerators []EnumConst
}

// EnumConst is one enumerator constant.
type EnumConst struct {
	IDLName string
	Name    string
	Value   int32
}

// Field is a struct member or union case.
type Field struct {
	IDLName string
	Name    string
	Type    string
	// ToValue converts the field to a value.Value.
	ToValue string
	// FromValue is a func(value.Value) (T, error) for the field type.
	FromValue string
	// Labels are the union case labels; Default marks the default case.
	Labels  string
	Default bool
}

// Struct is an IDL struct.
type Struct struct {
	IDLName    string
	Name       string
	Fields     []Field
	Descriptor string
}

// Union is an IDL union. Disc holds the discriminator.
type Union struct {
	IDLName     string
	Name        string
	DiscType    string
	DiscToInt   string
	DiscFromInt string
	Cases       []Field
	Descriptor  string
}

// mapper renders Go types and conversion expressions for type nodes.
type mapper struct {
	binding *naming.Binding
}

var primitiveTypes = map[descriptor.Kind]string{
	descriptor.KindBool:    "bool",
	descriptor.KindChar:    "byte",
	descriptor.KindOctet:   "byte",
	descriptor.KindInt8:    "int8",
	descriptor.KindUint8:   "uint8",
	descriptor.KindInt16:   "int16",
	descriptor.KindUint16:  "uint16",
	descriptor.KindInt32:   "int32",
	descriptor.KindUint32:  "uint32",
	descriptor.KindInt64:   "int64",
	descriptor.KindUint64:  "uint64",
	descriptor.KindFloat32: "float32",
	descriptor.KindFloat64: "float64",
}

// goType is the Go spelling of t. References and declared types use
// their bound identifier.
func (m *mapper) goType(t *idl.TypeNode) string {
	switch t.Kind {
	case idl.KindRef:
		if t.Target != nil {
			return m.goType(t.Target)
		}
	case idl.KindPrimitive:
		return primitiveTypes[t.Prim]
	case idl.KindString:
		return "string"
	case idl.KindSequence:
		return "[]" + m.goType(t.Elem)
	case idl.KindArray:
		return dimsPrefix(t.Dims) + m.goType(t.Elem)
	}
	if id, ok := m.binding.Type(t.Name); ok {
		return id
	}
	return "any"
}

func dimsPrefix(dims []int64) string {
	var b strings.Builder
	for _, d := range dims {
		fmt.Fprintf(&b, "[%d]", d)
	}
	return b.String()
}

// toValue renders an expression converting x, of type t, to a value.Value.
// x must be addressable.
func (m *mapper) toValue(t *idl.TypeNode, x string) string {
	r := t.Resolve()
	switch r.Kind {
	case idl.KindPrimitive:
		switch {
		case r.Prim == descriptor.KindBool:
			return "value.Bool(" + x + ")"
		case r.Prim == descriptor.KindFloat32 || r.Prim == descriptor.KindFloat64:
			return "value.Float(" + x + ")"
		case r.Prim.Signed():
			return "value.Int(" + x + ")"
		default:
			return "value.Uint(" + x + ")"
		}
	case idl.KindString:
		return "value.String(" + x + ")"
	case idl.KindEnum:
		return "value.Int(" + x + ")"
	case idl.KindStruct, idl.KindUnion:
		return x + ".ToValue()"
	case idl.KindSequence:
		return fmt.Sprintf("value.SeqOf(%s, func(e %s) value.Value { return %s })",
			x, m.goType(r.Elem), m.toValue(r.Elem, "e"))
	case idl.KindArray:
		return m.arrayToValue(r.Dims, r.Elem, x)
	}
	return "nil"
}

func (m *mapper) arrayToValue(dims []int64, elem *idl.TypeNode, x string) string {
	if len(dims) == 0 {
		return m.toValue(elem, x)
	}
	return fmt.Sprintf("value.SeqOf(%s[:], func(e %s) value.Value { return %s })",
		x, dimsPrefix(dims[1:])+m.goType(elem), m.arrayToValue(dims[1:], elem, "e"))
}

// fromValue renders a func(value.Value) (T, error) for t.
func (m *mapper) fromValue(t *idl.TypeNode) string {
	r := t.Resolve()
	switch r.Kind {
	case idl.KindPrimitive:
		gt := primitiveTypes[r.Prim]
		switch {
		case r.Prim == descriptor.KindBool:
			return "value.ToBool"
		case r.Prim == descriptor.KindFloat32 || r.Prim == descriptor.KindFloat64:
			return "value.ToFloat[" + gt + "]"
		case r.Prim.Signed():
			return "value.ToInt[" + gt + "]"
		default:
			return "value.ToUint[" + gt + "]"
		}
	case idl.KindString:
		return "value.ToString"
	case idl.KindEnum:
		return "value.ToInt[" + m.goType(r) + "]"
	case idl.KindStruct, idl.KindUnion:
		return fmt.Sprintf("func(v value.Value) (t %s, err error) { err = t.FromValue(v); return }", m.goType(r))
	case idl.KindSequence:
		return fmt.Sprintf("func(v value.Value) ([]%s, error) { return value.ToSlice(v, %s) }",
			m.goType(r.Elem), m.fromValue(r.Elem))
	case idl.KindArray:
		return m.arrayFromValue(r.Dims, r.Elem)
	}
	return "nil"
}

func (m *mapper) arrayFromValue(dims []int64, elem *idl.TypeNode) string {
	if len(dims) == 0 {
		return m.fromValue(elem)
	}
	return fmt.Sprintf("func(v value.Value) (a %s, err error) { err = value.ToArray(v, a[:], %s); return }",
		dimsPrefix(dims)+m.goType(elem), m.arrayFromValue(dims[1:], elem))
}

// field builds the template input for a struct member or union case.
func (m *mapper) field(owner, idlName string, t *idl.TypeNode, optional bool) (Field, error) {
	name, ok := m.binding.Member(owner, idlName)
	if !ok {
		return Field{}, fmt.Errorf("no binding for %s::%s", owner, idlName)
	}
	f := Field{IDLName: idlName, Name: name, Type: m.goType(t)}
	x := "x." + name
	if optional {
		f.Type = "*" + f.Type
		f.ToValue = fmt.Sprintf("value.Optional(%s, func(e %s) value.Value { return %s })",
			x, m.goType(t), m.toValue(t, "e"))
		f.FromValue = fmt.Sprintf("func(v value.Value) (*%s, error) { return value.ToOptional(v, %s) }",
			m.goType(t), m.fromValue(t))
		return f, nil
	}
	f.ToValue = m.toValue(t, x)
	f.FromValue = m.fromValue(t)
	return f, nil
}

func (m *mapper) buildStruct(n *idl.TypeNode, desc []byte) (*Struct, error) {
	s := &Struct{IDLName: n.Name, Name: m.goType(n), Descriptor: goBytes(desc)}
	for _, mem := range n.Members {
		f, err := m.field(n.Name, mem.Name, mem.Type, mem.Optional())
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, f)
	}
	return s, nil
}

func (m *mapper) buildUnion(n *idl.TypeNode, desc []byte) (*Union, error) {
	u := &Union{IDLName: n.Name, Name: m.goType(n), DiscType: m.goType(n.Disc), Descriptor: goBytes(desc)}
	if d := n.Disc.Resolve(); d.Kind == idl.KindPrimitive && d.Prim == descriptor.KindBool {
		u.DiscToInt = "value.BoolDisc(x.Disc)"
		u.DiscFromInt = "u.Disc != 0"
	} else {
		u.DiscToInt = "int64(x.Disc)"
		u.DiscFromInt = u.DiscType + "(u.Disc)"
	}
	for _, c := range n.Cases {
		f, err := m.field(n.Name, c.Name, c.Type, false)
		if err != nil {
			return nil, err
		}
		labels := make([]string, len(c.Labels))
		for i, l := range c.Labels {
			labels[i] = strconv.FormatInt(l, 10)
		}
		f.Labels = strings.Join(labels, ", ")
		f.Default = c.Default
		u.Cases = append(u.Cases, f)
	}
	return u, nil
}

func (m *mapper) buildEnum(n *idl.TypeNode) (*Enum, error) {
	e := &Enum{IDLName: n.Name, Name: m.goType(n)}
	for _, en := range n.Enumerators {
		id, ok := m.binding.Enumerator(n.Name, en.Name)
		if !ok {
			return nil, fmt.Errorf("no binding for enumerator %s::%s", n.Name, en.Name)
		}
		e.Enumerators = append(e.Enumerators, EnumConst{IDLName: en.Name, Name: id, Value: en.Value})
	}
	return e, nil
}

func (m *mapper) buildAlias(n *idl.TypeNode) *Alias {
	return &Alias{IDLName: n.Name, Name: m.goType(n), Type: m.goType(n.Elem)}
}

// goBytes renders canonical descriptor JSON as a Go string literal.
func goBytes(data []byte) string {
	s := string(data)
	if strconv.CanBackquote(s) {
		return "`" + s + "`"
	}
	return strconv.Quote(s)
}
