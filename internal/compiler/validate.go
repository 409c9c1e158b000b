package compiler

import (
	"fmt"
	"math"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/internal/idl"
)

// validator collects every type error of a unit; it never stops early.
type validator struct {
	c    *Context
	errs []error
}

// validate checks all declarations of the context. Unresolved references
// are skipped here; the generator reports them.
func validate(c *Context) []error {
	v := &validator{c: c}
	for _, n := range c.Types() {
		switch n.Kind {
		case idl.KindStruct:
			v.validateStruct(n)
		case idl.KindUnion:
			v.validateUnion(n)
		case idl.KindEnum:
			v.validateEnum(n)
		case idl.KindAlias:
			v.validateExpr(n.Elem, n.Name, "")
		}
	}
	v.errs = append(v.errs, analyzeRecursion(c)...)
	return v.errs
}

func (v *validator) add(code string, n *idl.TypeNode, field, format string, args ...any) {
	v.errs = append(v.errs, &TypeError{
		Code:    code,
		Type:    n.Name,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Pos:     n.Pos,
	})
}

// validateExpr checks bounds and dimensions of an anonymous type
// expression. Referenced declarations are validated on their own.
func (v *validator) validateExpr(t *idl.TypeNode, typeName, field string) {
	for ; t != nil; t = t.Elem {
		switch t.Kind {
		case idl.KindString, idl.KindSequence:
			if t.Bounded && t.Bound <= 0 {
				v.errs = append(v.errs, &TypeError{Code: ErrNonPositiveBound, Type: typeName, Field: field,
					Message: fmt.Sprintf("bound of %s must be positive", t), Pos: t.Pos})
			} else if t.Bound > math.MaxUint32 {
				v.errs = append(v.errs, &TypeError{Code: ErrNonPositiveBound, Type: typeName, Field: field,
					Message: fmt.Sprintf("bound of %s exceeds %d", t, uint32(math.MaxUint32)), Pos: t.Pos})
			}
		case idl.KindArray:
			dims := make([]uint32, 0, len(t.Dims))
			for _, d := range t.Dims {
				if d <= 0 || d > math.MaxUint32 {
					v.errs = append(v.errs, &TypeError{Code: ErrNonPositiveBound, Type: typeName, Field: field,
						Message: fmt.Sprintf("array dimension %d must be positive and fit in 32 bits", d), Pos: t.Pos})
					continue
				}
				dims = append(dims, uint32(d))
			}
			if _, ok := descriptor.ArrayCount(dims); !ok {
				v.errs = append(v.errs, &TypeError{Code: ErrArrayTooLarge, Type: typeName, Field: field,
					Message: fmt.Sprintf("array %v has more than %d elements", t.Dims, uint64(descriptor.MaxArrayElements)), Pos: t.Pos})
			}
		case idl.KindRef:
			return
		}
	}
}

func (v *validator) validateStruct(n *idl.TypeNode) {
	names := make(map[string]bool, len(n.Members))
	ids := make(map[uint32]string, len(n.Members))
	n.VisitMembers(func(m *idl.Member) bool {
		if m.Name != "" {
			if names[m.Name] {
				v.add(ErrDuplicateMember, n, m.Name, "duplicate member name")
			}
			names[m.Name] = true
		}
		if prev, dup := ids[m.ID]; dup {
			v.add(ErrDuplicateMemberID, n, m.Name, "member id %d already used by %s", m.ID, prev)
		} else {
			ids[m.ID] = m.Name
		}
		if m.ID > maxMemberID {
			v.add(ErrInvalidAnnotation, n, m.Name, "member id %d exceeds 28 bits", m.ID)
		}
		v.validateExpr(m.Type, n.Name, m.Name)
		if m.Key() {
			if m.Optional() {
				v.add(ErrKeyNotAddressable, n, m.Name, "key member cannot be optional")
			} else if msg := keyProblem(m.Type, map[*idl.TypeNode]bool{n: true}); msg != "" {
				v.add(ErrKeyNotAddressable, n, m.Name, "%s", msg)
			}
		}
		return true
	})
}

// keyProblem explains why a key member type cannot be serialized into a
// key, or returns "".
func keyProblem(t *idl.TypeNode, seen map[*idl.TypeNode]bool) string {
	r := t.Resolve()
	if r == nil {
		return ""
	}
	switch r.Kind {
	case idl.KindUnion:
		return fmt.Sprintf("union %s cannot be part of a key", r.Name)
	case idl.KindSequence:
		if e := r.Elem.Resolve(); e != nil && e.Kind == idl.KindSequence {
			return "sequence of sequence cannot be part of a key"
		}
		return keyProblem(r.Elem, seen)
	case idl.KindArray:
		return keyProblem(r.Elem, seen)
	case idl.KindStruct:
		if seen[r] {
			return fmt.Sprintf("struct %s recursively contains its own key", r.Name)
		}
		seen[r] = true
		defer delete(seen, r)
		keyed := false
		for _, m := range r.Members {
			keyed = keyed || m.Key()
		}
		for _, m := range r.Members {
			if keyed && !m.Key() {
				continue
			}
			if m.Optional() {
				return fmt.Sprintf("optional member %s.%s cannot be part of a key", r.Name, m.Name)
			}
			if msg := keyProblem(m.Type, seen); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func (v *validator) validateUnion(n *idl.TypeNode) {
	if n.Annotations.Extensibility == descriptor.Mutable {
		v.add(ErrMutableUnion, n, "", "unions cannot be mutable")
	}

	disc := v.discriminator(n)
	names := make(map[string]bool, len(n.Cases))
	labels := make(map[int64]string)
	defaults := 0
	for _, uc := range n.Cases {
		if uc.Name != "" {
			if names[uc.Name] {
				v.add(ErrDuplicateMember, n, uc.Name, "duplicate case name")
			}
			names[uc.Name] = true
		}
		if uc.Default {
			if defaults++; defaults == 2 {
				v.add(ErrMultipleDefaults, n, uc.Name, "more than one default case")
			}
		}
		v.validateExpr(uc.Type, n.Name, uc.Name)

		for _, l := range uc.Labels {
			if prev, dup := labels[l]; dup {
				v.add(ErrDuplicateLabel, n, uc.Name, "label %d already used by case %s", l, prev)
				continue
			}
			labels[l] = uc.Name
			if disc != nil && !labelFits(disc, l) {
				v.add(ErrInvalidDiscriminator, n, uc.Name, "label %d is not a valid %s", l, disc)
			}
		}
		for _, ref := range uc.LabelRefs {
			if disc == nil {
				continue
			}
			if disc.Kind != idl.KindEnum {
				v.add(ErrInvalidDiscriminator, n, uc.Name, "label %q needs an enum discriminator", ref)
			} else if _, ok := enumeratorValue(disc, ref); !ok {
				v.add(ErrInvalidDiscriminator, n, uc.Name, "%q is not an enumerator of %s", ref, disc.Name)
			}
		}
	}
}

// discriminator returns the resolved discriminator type, or nil when it is
// unresolved or invalid.
func (v *validator) discriminator(n *idl.TypeNode) *idl.TypeNode {
	if n.Disc == nil || n.Disc.Kind == idl.KindInvalid {
		return nil
	}
	d := n.Disc.Resolve()
	if d == nil {
		return nil
	}
	switch {
	case d.Kind == idl.KindEnum:
		return d
	case d.Kind == idl.KindPrimitive && d.Prim.Discriminator():
		return d
	}
	v.add(ErrInvalidDiscriminator, n, "discriminator", "%s cannot discriminate a union", n.Disc)
	return nil
}

func labelFits(disc *idl.TypeNode, l int64) bool {
	if disc.Kind == idl.KindEnum {
		for _, e := range disc.Enumerators {
			if int64(e.Value) == l {
				return true
			}
		}
		return false
	}
	return disc.Prim.Holds(l)
}

func (v *validator) validateEnum(n *idl.TypeNode) {
	if len(n.Enumerators) == 0 {
		v.add(ErrInvalidEnum, n, "", "enum has no enumerators")
		return
	}
	names := make(map[string]bool, len(n.Enumerators))
	values := make(map[int32]string, len(n.Enumerators))
	for _, e := range n.Enumerators {
		if names[e.Name] {
			v.add(ErrInvalidEnum, n, e.Name, "duplicate enumerator")
		}
		names[e.Name] = true
		if prev, dup := values[e.Value]; dup {
			v.add(ErrInvalidEnum, n, e.Name, "value %d already used by %s", e.Value, prev)
		} else {
			values[e.Value] = e.Name
		}
	}
}
