package cdr

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/value"
)

// DiscKey names the discriminator entry of a union in native form.
const DiscKey = "$disc"

// FromNative converts a tree decoded from JSON or YAML into a value of d's
// root type. Structs are maps keyed by IDL member name; members left out take
// their default. Enums accept an enumerator name or its number. A union is a
// map holding one case name and, optionally, DiscKey; without DiscKey the
// first label of the case is used.
func FromNative(d *descriptor.Descriptor, v any) (value.Value, error) {
	c := &converter{d: d}
	out, err := c.from(0, v, d.Name())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ToNative converts a value of d's root type into maps, slices and scalars
// that encoding/json and yaml.v3 can marshal. It is the inverse of
// FromNative.
func ToNative(d *descriptor.Descriptor, v value.Value) (any, error) {
	c := &converter{d: d}
	return c.to(0, v, d.Name())
}

type converter struct {
	d *descriptor.Descriptor
}

func (c *converter) errorf(path, format string, args ...any) error {
	return fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...))
}

func (c *converter) from(i int, v any, path string) (value.Value, error) {
	n := c.d.Node(i)
	switch {
	case n.Kind == descriptor.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, c.errorf(path, "expected bool, got %T", v)
		}
		return value.Bool(b), nil
	case n.Kind == descriptor.KindFloat32, n.Kind == descriptor.KindFloat64:
		f, err := toFloat(v)
		if err != nil {
			return nil, c.errorf(path, "%v", err)
		}
		return value.Float(f), nil
	case n.Kind == descriptor.KindEnum:
		return c.enumFrom(n, v, path)
	case n.Kind == descriptor.KindChar:
		if s, ok := v.(string); ok {
			if len(s) != 1 {
				return nil, c.errorf(path, "char must be a single byte, got %q", s)
			}
			return value.Uint(s[0]), nil
		}
		u, err := toUint(v)
		if err != nil {
			return nil, c.errorf(path, "%v", err)
		}
		return value.Uint(u), nil
	case n.Kind.Signed():
		i, err := toInt(v)
		if err != nil {
			return nil, c.errorf(path, "%v", err)
		}
		return value.Int(i), nil
	case n.Kind.Unsigned():
		u, err := toUint(v)
		if err != nil {
			return nil, c.errorf(path, "%v", err)
		}
		return value.Uint(u), nil
	case n.Kind == descriptor.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, c.errorf(path, "expected string, got %T", v)
		}
		return value.String(s), nil
	case n.Kind == descriptor.KindSequence:
		return c.listFrom(n.Elem, v, -1, path)
	case n.Kind == descriptor.KindArray:
		return c.arrayFrom(n, n.Dims, v, path)
	case n.Kind == descriptor.KindStruct:
		return c.structFrom(n, v, path)
	case n.Kind == descriptor.KindUnion:
		return c.unionFrom(n, v, path)
	}
	return nil, c.errorf(path, "unsupported kind %s", n.Kind)
}

func (c *converter) enumFrom(n *descriptor.Node, v any, path string) (value.Value, error) {
	if s, ok := v.(string); ok {
		for _, e := range n.Enumerators {
			if e.Name == s {
				return value.Int(e.Value), nil
			}
		}
		return nil, c.errorf(path, "%q is not an enumerator of %s", s, n.Name)
	}
	i, err := toInt(v)
	if err != nil {
		return nil, c.errorf(path, "%v", err)
	}
	return value.Int(i), nil
}

func (c *converter) listFrom(elem int, v any, want int, path string) (value.Seq, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, c.errorf(path, "expected list, got %T", v)
	}
	if want >= 0 && len(list) != want {
		return nil, c.errorf(path, "expected %d elements, got %d", want, len(list))
	}
	out := make(value.Seq, len(list))
	for j, e := range list {
		ev, err := c.from(elem, e, path+"["+strconv.Itoa(j)+"]")
		if err != nil {
			return nil, err
		}
		out[j] = ev
	}
	return out, nil
}

func (c *converter) arrayFrom(n *descriptor.Node, dims []uint32, v any, path string) (value.Value, error) {
	if len(dims) == 1 {
		return c.listFrom(n.Elem, v, int(dims[0]), path)
	}
	list, ok := v.([]any)
	if !ok || len(list) != int(dims[0]) {
		return nil, c.errorf(path, "expected list of %d elements", dims[0])
	}
	out := make(value.Seq, len(list))
	for j, e := range list {
		ev, err := c.arrayFrom(n, dims[1:], e, path+"["+strconv.Itoa(j)+"]")
		if err != nil {
			return nil, err
		}
		out[j] = ev
	}
	return out, nil
}

func (c *converter) structFrom(n *descriptor.Node, v any, path string) (value.Value, error) {
	obj, ok := asMap(v)
	if !ok {
		return nil, c.errorf(path, "expected map for struct %s, got %T", n.Name, v)
	}
	known := make(map[string]bool, len(n.Members))
	out := make(value.Struct, len(n.Members))
	for mi, m := range n.Members {
		known[m.Name] = true
		raw, present := obj[m.Name]
		if !present || (raw == nil && m.Optional) {
			out[mi] = Default(c.d, m.Type, m.Optional)
			continue
		}
		mv, err := c.from(m.Type, raw, path+"."+m.Name)
		if err != nil {
			return nil, err
		}
		out[mi] = mv
	}
	for k := range obj {
		if !known[k] {
			return nil, c.errorf(path, "unknown member %q of %s", k, n.Name)
		}
	}
	return out, nil
}

func (c *converter) unionFrom(n *descriptor.Node, v any, path string) (value.Value, error) {
	obj, ok := asMap(v)
	if !ok {
		return nil, c.errorf(path, "expected map for union %s, got %T", n.Name, v)
	}
	var out value.Union
	rawDisc, hasDisc := obj[DiscKey]
	if hasDisc {
		dv, err := c.from(n.Disc, rawDisc, path+"."+DiscKey)
		if err != nil {
			return nil, err
		}
		out.Disc = discOf(dv)
	}

	caseIdx := -1
	for ci, cs := range n.Cases {
		if _, ok := obj[cs.Name]; ok {
			if caseIdx >= 0 {
				return nil, c.errorf(path, "union %s sets more than one case", n.Name)
			}
			caseIdx = ci
		}
	}
	extra := len(obj) - btoi(hasDisc) - btoi(caseIdx >= 0)
	if extra > 0 {
		return nil, c.errorf(path, "union %s has unknown entries", n.Name)
	}

	switch {
	case caseIdx < 0 && !hasDisc:
		return nil, c.errorf(path, "union %s needs a case or %s", n.Name, DiscKey)
	case caseIdx < 0:
		if n.CaseFor(out.Disc) >= 0 {
			return nil, c.errorf(path, "discriminator %d selects a case but none is given", out.Disc)
		}
		return out, nil
	case !hasDisc:
		cs := &n.Cases[caseIdx]
		if len(cs.Labels) == 0 {
			return nil, c.errorf(path, "default case %s needs %s", cs.Name, DiscKey)
		}
		out.Disc = cs.Labels[0]
	case n.CaseFor(out.Disc) != caseIdx:
		return nil, c.errorf(path, "discriminator %d does not select case %s", out.Disc, n.Cases[caseIdx].Name)
	}

	cs := &n.Cases[caseIdx]
	cv, err := c.from(cs.Type, obj[cs.Name], path+"."+cs.Name)
	if err != nil {
		return nil, err
	}
	out.Value = cv
	return out, nil
}

func discOf(v value.Value) int64 {
	switch x := v.(type) {
	case value.Bool:
		return value.BoolDisc(bool(x))
	case value.Int:
		return int64(x)
	case value.Uint:
		return int64(x)
	}
	return 0
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, e := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = e
		}
		return out, true
	}
	return nil, false
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int64(x), nil
	case json.Number:
		return x.Int64()
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toUint(v any) (uint64, error) {
	switch x := v.(type) {
	case int:
		if x < 0 {
			return 0, fmt.Errorf("%d is negative", x)
		}
		return uint64(x), nil
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("%d is negative", x)
		}
		return uint64(x), nil
	case uint64:
		return x, nil
	case float64:
		if x != math.Trunc(x) || x < 0 || x >= math.MaxUint64 {
			return 0, fmt.Errorf("%v is not an unsigned integer", x)
		}
		return uint64(x), nil
	case json.Number:
		return strconv.ParseUint(x.String(), 10, 64)
	}
	return 0, fmt.Errorf("expected unsigned integer, got %T", v)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func (c *converter) to(i int, v value.Value, path string) (any, error) {
	n := c.d.Node(i)
	switch x := v.(type) {
	case value.Null:
		return nil, nil
	case value.Bool:
		return bool(x), nil
	case value.Float:
		return float64(x), nil
	case value.String:
		return string(x), nil
	case value.Uint:
		if n.Kind == descriptor.KindChar {
			return string(rune(byte(x))), nil
		}
		return uint64(x), nil
	case value.Int:
		if n.Kind == descriptor.KindEnum {
			for _, e := range n.Enumerators {
				if int64(e.Value) == int64(x) {
					return e.Name, nil
				}
			}
		}
		return int64(x), nil
	case value.Seq:
		return c.listTo(n, x, path)
	case value.Struct:
		if n.Kind != descriptor.KindStruct || len(x) != len(n.Members) {
			return nil, c.errorf(path, "struct value does not match %s %s", n.Kind, n.Name)
		}
		out := make(map[string]any, len(x))
		for mi, m := range n.Members {
			mv, err := c.to(m.Type, x[mi], path+"."+m.Name)
			if err != nil {
				return nil, err
			}
			out[m.Name] = mv
		}
		return out, nil
	case value.Union:
		if n.Kind != descriptor.KindUnion {
			return nil, c.errorf(path, "union value does not match %s %s", n.Kind, n.Name)
		}
		out := map[string]any{DiscKey: x.Disc}
		if ci := n.CaseFor(x.Disc); ci >= 0 {
			cs := &n.Cases[ci]
			cv, err := c.to(cs.Type, x.Value, path+"."+cs.Name)
			if err != nil {
				return nil, err
			}
			out[cs.Name] = cv
		}
		return out, nil
	}
	return nil, c.errorf(path, "unsupported value %T", v)
}

func (c *converter) listTo(n *descriptor.Node, s value.Seq, path string) (any, error) {
	elem := n.Elem
	if n.Kind == descriptor.KindArray && len(n.Dims) > 1 {
		// outer dimensions of a multi-dimensional array stay on this node
		sub := *n
		sub.Dims = n.Dims[1:]
		return c.nestedTo(&sub, s, path)
	}
	out := make([]any, len(s))
	for j, e := range s {
		ev, err := c.to(elem, e, path+"["+strconv.Itoa(j)+"]")
		if err != nil {
			return nil, err
		}
		out[j] = ev
	}
	return out, nil
}

func (c *converter) nestedTo(n *descriptor.Node, s value.Seq, path string) (any, error) {
	out := make([]any, len(s))
	for j, e := range s {
		inner, ok := e.(value.Seq)
		if !ok {
			return nil, c.errorf(path, "expected nested array, got %s", value.Format(e))
		}
		ev, err := c.listTo(n, inner, path+"["+strconv.Itoa(j)+"]")
		if err != nil {
			return nil, err
		}
		out[j] = ev
	}
	return out, nil
}
