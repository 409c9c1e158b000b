package generator

import (
	"fmt"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/internal/idl"
	"github.com/roach88/cdrgen/internal/naming"
)

// flattener lowers a type graph into a descriptor node table. Declared
// enums, structs and unions get one node each so recursive references
// become node indices; anonymous types get a node per use.
type flattener struct {
	binding  *naming.Binding
	nodes    []descriptor.Node
	declared map[*idl.TypeNode]int
}

// BuildDescriptor flattens root depth-first in member order. root is
// Nodes[0]. Field names come from the binding.
func BuildDescriptor(root *idl.TypeNode, b *naming.Binding) (*descriptor.Descriptor, error) {
	f := &flattener{binding: b, declared: make(map[*idl.TypeNode]int)}
	if _, err := f.add(root); err != nil {
		return nil, err
	}
	d, err := descriptor.New(f.nodes)
	if err != nil {
		return nil, &GenerationError{
			Code:    ErrCodeDescriptor,
			Message: fmt.Sprintf("descriptor for %s: %v", root.Name, err),
		}
	}
	return d, nil
}

func (f *flattener) add(t *idl.TypeNode) (int, error) {
	r := t.Resolve()
	if r == nil {
		return 0, genErr(ErrCodeUnresolved, "unresolved type %s", t)
	}
	if i, ok := f.declared[r]; ok {
		return i, nil
	}

	i := len(f.nodes)
	f.nodes = append(f.nodes, descriptor.Node{})
	if r.Declared() {
		f.declared[r] = i
	}

	n, err := f.lower(r)
	if err != nil {
		return 0, err
	}
	f.nodes[i] = n
	return i, nil
}

func (f *flattener) lower(t *idl.TypeNode) (descriptor.Node, error) {
	var err error
	switch t.Kind {
	case idl.KindPrimitive:
		return descriptor.Node{Kind: t.Prim}, nil

	case idl.KindString:
		return descriptor.Node{Kind: descriptor.KindString, Bound: bound(t)}, nil

	case idl.KindSequence:
		n := descriptor.Node{Kind: descriptor.KindSequence, Bound: bound(t)}
		n.Elem, err = f.add(t.Elem)
		return n, err

	case idl.KindArray:
		n := descriptor.Node{Kind: descriptor.KindArray}
		for _, d := range t.Dims {
			n.Dims = append(n.Dims, uint32(d))
		}
		n.Elem, err = f.add(t.Elem)
		return n, err

	case idl.KindEnum:
		n := descriptor.Node{Kind: descriptor.KindEnum, Name: t.Name}
		for _, e := range t.Enumerators {
			n.Enumerators = append(n.Enumerators, descriptor.Enumerator{Name: e.Name, Value: e.Value})
		}
		return n, nil

	case idl.KindStruct:
		n := descriptor.Node{Kind: descriptor.KindStruct, Name: t.Name, Ext: t.Annotations.Extensibility}
		for _, m := range t.Members {
			field, ok := f.binding.Member(t.Name, m.Name)
			if !ok {
				return n, fmt.Errorf("no binding for member %s::%s", t.Name, m.Name)
			}
			ti, err := f.add(m.Type)
			if err != nil {
				return n, err
			}
			n.Members = append(n.Members, descriptor.Member{
				Name:     m.Name,
				Field:    field,
				ID:       m.ID,
				Key:      m.Key(),
				Optional: m.Optional(),
				Type:     ti,
			})
		}
		return n, nil

	case idl.KindUnion:
		n := descriptor.Node{Kind: descriptor.KindUnion, Name: t.Name, Ext: t.Annotations.Extensibility}
		if n.Disc, err = f.add(t.Disc); err != nil {
			return n, err
		}
		for _, c := range t.Cases {
			field, ok := f.binding.Member(t.Name, c.Name)
			if !ok {
				return n, fmt.Errorf("no binding for case %s::%s", t.Name, c.Name)
			}
			ti, err := f.add(c.Type)
			if err != nil {
				return n, err
			}
			n.Cases = append(n.Cases, descriptor.Case{
				Labels:  append([]int64(nil), c.Labels...),
				Default: c.Default,
				Name:    c.Name,
				Field:   field,
				Type:    ti,
			})
		}
		return n, nil
	}
	return descriptor.Node{}, fmt.Errorf("cannot describe %s type %s", t.Kind, t)
}

func bound(t *idl.TypeNode) uint32 {
	if !t.Bounded {
		return 0
	}
	return uint32(t.Bound)
}
