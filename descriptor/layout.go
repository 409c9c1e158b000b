package descriptor

import "math"

// maxMinSize caps MinSize. A capped value is still a lower bound.
const maxMinSize = math.MaxInt32

func satAdd(a, b int) int { return min(a+b, maxMinSize) }

func satMul(a int, n uint64) int {
	if a != 0 && n > uint64(maxMinSize/a) {
		return maxMinSize
	}
	return a * int(n)
}

// computeLayout fills Align and MinSize for every node. It runs after cycle
// checking, so recursion only follows by-value edges and terminates.
func (d *Descriptor) computeLayout() {
	done := make([]bool, len(d.nodes))
	var visit func(i int)
	visit = func(i int) {
		if done[i] {
			return
		}
		done[i] = true
		n := &d.nodes[i]
		switch {
		case n.Kind.Scalar():
			n.Align, n.MinSize = n.Kind.Size(), n.Kind.Size()
		case n.Kind == KindString, n.Kind == KindSequence:
			n.Align, n.MinSize = 4, 4
		case n.Kind == KindArray:
			visit(n.Elem)
			e := &d.nodes[n.Elem]
			n.Align, n.MinSize = e.Align, satMul(e.MinSize, n.Count())
		case n.Kind == KindStruct:
			n.Align = 1
			final := 0
			for _, m := range n.Members {
				if m.Optional {
					// presence flag in XCDR2, or nothing in mutable form
					final++
					continue
				}
				visit(m.Type)
				t := &d.nodes[m.Type]
				n.Align = max(n.Align, t.Align)
				final = satAdd(final, t.MinSize)
			}
			switch n.Ext {
			case Final:
				n.MinSize = final
			case Appendable:
				n.MinSize = min(final, 4)
			case Mutable:
				n.MinSize = 4
			}
		case n.Kind == KindUnion:
			visit(n.Disc)
			disc := &d.nodes[n.Disc]
			n.Align = disc.Align
			for _, c := range n.Cases {
				visit(c.Type)
				n.Align = max(n.Align, d.nodes[c.Type].Align)
			}
			n.MinSize = disc.MinSize
		}
	}
	for i := range d.nodes {
		visit(i)
	}
}

// keySizeLimit stops key sizing once the answer is known to exceed a key hash.
const keySizeLimit = 16

// maxKeySize returns the largest possible big-endian XCDR2 key serialization of
// the root type, or -1 if it is unbounded. Values above keySizeLimit are
// lower bounds only.
func (d *Descriptor) maxKeySize() int {
	if !d.Keyed() {
		return 0
	}
	s := keySizer{d: d, exact: true}
	if !s.node(0) {
		return -1
	}
	return s.off
}

type keySizer struct {
	d     *Descriptor
	off   int
	exact bool
}

func (s *keySizer) prim(size int) {
	a := min(size, 4)
	if s.exact {
		s.off = (s.off + a - 1) &^ (a - 1)
	} else {
		s.off += a - 1
	}
	s.off += size
}

// node accounts for node i and reports false when the size is unbounded.
func (s *keySizer) node(i int) bool {
	if s.off > keySizeLimit {
		return true
	}
	n := s.d.Node(i)
	switch n.Kind {
	case KindString:
		if n.Bound == 0 {
			return false
		}
		s.prim(4)
		s.off += int(n.Bound) + 1
		s.exact = false
	case KindSequence:
		if n.Bound == 0 {
			return false
		}
		s.prim(4)
		s.exact = false
		for range n.Bound {
			before := s.off
			if !s.node(n.Elem) {
				return false
			}
			if s.off > keySizeLimit || s.off == before {
				break
			}
		}
	case KindArray:
		for range n.Count() {
			before := s.off
			if !s.node(n.Elem) {
				return false
			}
			if s.off > keySizeLimit || s.off == before {
				break
			}
		}
	case KindStruct:
		for _, mi := range n.KeyMembers() {
			if !s.node(n.Members[mi].Type) {
				return false
			}
		}
	default:
		s.prim(n.Kind.Size())
	}
	return true
}
