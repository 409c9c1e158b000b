package cdr

import (
	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/value"
)

// Default returns the default value of node i: zero numbers, false, empty
// strings and sequences, the first enumerator, and Null for optional members.
// A union defaults to the first label of its first case.
func Default(d *descriptor.Descriptor, i int, optional bool) value.Value {
	if optional {
		return value.Null{}
	}
	n := d.Node(i)
	switch {
	case n.Kind == descriptor.KindBool:
		return value.Bool(false)
	case n.Kind == descriptor.KindFloat32, n.Kind == descriptor.KindFloat64:
		return value.Float(0)
	case n.Kind == descriptor.KindEnum:
		return value.Int(n.Enumerators[0].Value)
	case n.Kind.Signed():
		return value.Int(0)
	case n.Kind.Unsigned():
		return value.Uint(0)
	case n.Kind == descriptor.KindString:
		return value.String("")
	case n.Kind == descriptor.KindSequence:
		return value.Seq{}
	case n.Kind == descriptor.KindArray:
		return defaultArray(d, n, n.Dims)
	case n.Kind == descriptor.KindStruct:
		out := make(value.Struct, len(n.Members))
		for mi, m := range n.Members {
			out[mi] = Default(d, m.Type, m.Optional)
		}
		return out
	case n.Kind == descriptor.KindUnion:
		return defaultUnion(d, n)
	}
	return nil
}

func defaultArray(d *descriptor.Descriptor, n *descriptor.Node, dims []uint32) value.Value {
	if len(dims) == 0 {
		return Default(d, n.Elem, false)
	}
	out := make(value.Seq, dims[0])
	for j := range out {
		out[j] = defaultArray(d, n, dims[1:])
	}
	return out
}

func defaultUnion(d *descriptor.Descriptor, n *descriptor.Node) value.Value {
	for _, c := range n.Cases {
		if len(c.Labels) > 0 {
			return value.Union{Disc: c.Labels[0], Value: Default(d, c.Type, false)}
		}
	}
	// no labels at all: any valid discriminator selects the default case
	u := value.Union{}
	if disc := d.Node(n.Disc); disc.Kind == descriptor.KindEnum {
		u.Disc = int64(disc.Enumerators[0].Value)
	}
	if ci := n.CaseFor(u.Disc); ci >= 0 {
		u.Value = Default(d, n.Cases[ci].Type, false)
	}
	return u
}
