package descriptor

import (
	"fmt"
	"math"
	"slices"
)

// Node is one entry of a descriptor's node table. Which fields are meaningful
// depends on Kind; the rest are zero.
type Node struct {
	Kind Kind `json:"kind"`

	// Name is the scoped IDL name of an enum, struct or union (a::b::T).
	Name string `json:"name,omitempty"`

	// Ext applies to structs and unions.
	Ext Extensibility `json:"ext,omitempty"`

	// Bound limits string length or sequence count; 0 means unbounded.
	Bound uint32 `json:"bound,omitempty"`

	// Dims holds array dimensions, outermost first.
	Dims []uint32 `json:"dims,omitempty"`

	// Elem is the element node of a sequence or array.
	Elem int `json:"elem"`

	Members []Member `json:"members,omitempty"`

	// Disc is the discriminator node of a union.
	Disc  int    `json:"disc"`
	Cases []Case `json:"cases,omitempty"`

	Enumerators []Enumerator `json:"enumerators,omitempty"`

	// Align is the natural alignment of the node under XCDR1 (1, 2, 4 or 8).
	Align int `json:"-"`
	// MinSize is a lower bound on the encoded size of the node in any
	// encoding version. Decoders use it to reject element counts that the
	// remaining bytes cannot hold.
	MinSize int `json:"-"`

	byID        map[uint32]int
	byLabel     map[int64]int
	defaultCase int
	enumValues  map[int64]struct{}
	keyOrder    []int
	keyFlagged  bool
}

// Member is a struct member in ordinal order.
type Member struct {
	// Name is the IDL member name.
	Name string `json:"name"`
	// Field is the resolved identifier used by generated code.
	Field    string `json:"field"`
	ID       uint32 `json:"id"`
	Key      bool   `json:"key,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Type     int    `json:"type"`
}

// Case is one branch of a union.
type Case struct {
	Labels  []int64 `json:"labels,omitempty"`
	Default bool    `json:"default,omitempty"`
	Name    string  `json:"name"`
	Field   string  `json:"field"`
	Type    int     `json:"type"`
}

// Enumerator is one named enum value.
type Enumerator struct {
	Name  string `json:"name"`
	Value int32  `json:"value"`
}

// Descriptor is an immutable, validated node table.
type Descriptor struct {
	nodes  []Node
	typeID string
	keyMax int

	allFinal    bool
	hasOptional bool
	hasMutable  bool
}

// New validates nodes and returns a descriptor holding a private copy of them.
// Derived metadata (Align, MinSize) is recomputed regardless of input.
func New(nodes []Node) (*Descriptor, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("descriptor has no nodes")
	}
	d := &Descriptor{nodes: copyNodes(nodes)}
	if k := d.nodes[0].Kind; k != KindStruct && k != KindUnion {
		return nil, fmt.Errorf("node 0: root must be a struct or union, got %s", k)
	}
	for i := range d.nodes {
		if err := d.checkNode(i); err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, d.nodes[i].describe(), err)
		}
	}
	if err := d.checkByValueCycles(); err != nil {
		return nil, err
	}
	for i := range d.nodes {
		if d.nodes[i].Kind == KindStruct {
			if err := d.checkKeys(i); err != nil {
				return nil, fmt.Errorf("node %d (%s): %w", i, d.nodes[i].describe(), err)
			}
		}
	}
	d.computeLayout()
	d.keyMax = d.maxKeySize()
	d.scanFlags()

	canonical, err := d.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	d.typeID = hashWithDomain(DomainDescriptor, canonical)
	return d, nil
}

func copyNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = Node{
			Kind:        n.Kind,
			Name:        n.Name,
			Ext:         n.Ext,
			Bound:       n.Bound,
			Dims:        slices.Clone(n.Dims),
			Elem:        n.Elem,
			Members:     slices.Clone(n.Members),
			Disc:        n.Disc,
			Cases:       make([]Case, len(n.Cases)),
			Enumerators: slices.Clone(n.Enumerators),
		}
		for j, c := range n.Cases {
			c.Labels = slices.Clone(c.Labels)
			out[i].Cases[j] = c
		}
		if len(n.Cases) == 0 {
			out[i].Cases = nil
		}
	}
	return out
}

func (n *Node) describe() string {
	if n.Name != "" {
		return n.Kind.String() + " " + n.Name
	}
	return n.Kind.String()
}

// Len returns the number of nodes.
func (d *Descriptor) Len() int { return len(d.nodes) }

// Node returns node i. The returned node must not be modified.
func (d *Descriptor) Node(i int) *Node { return &d.nodes[i] }

// Root returns node 0.
func (d *Descriptor) Root() *Node { return &d.nodes[0] }

// Name returns the scoped IDL name of the described type.
func (d *Descriptor) Name() string { return d.nodes[0].Name }

// TypeID returns the content hash of the descriptor.
func (d *Descriptor) TypeID() string { return d.typeID }

// Nodes returns a copy of the node table.
func (d *Descriptor) Nodes() []Node { return copyNodes(d.nodes) }

// Keyed reports whether the described type has key members.
func (d *Descriptor) Keyed() bool {
	root := &d.nodes[0]
	return root.Kind == KindStruct && root.keyFlagged
}

// KeyFitsHash reports whether every serialized key of this type fits in
// 16 bytes, in which case the key hash is the zero-padded key itself rather
// than its MD5 digest.
func (d *Descriptor) KeyFitsHash() bool {
	return d.keyMax >= 0 && d.keyMax <= 16
}

// Plain reports whether every struct and union is FINAL and no member is
// optional. Plain types encode as classic CDR (XCDR1) by default.
func (d *Descriptor) Plain() bool { return d.allFinal && !d.hasOptional }

// SupportsXCDR1 reports whether the type can be encoded without XCDR2
// constructs. Optional and MUTABLE members need XCDR2; APPENDABLE types fall
// back to the FINAL layout.
func (d *Descriptor) SupportsXCDR1() bool { return !d.hasOptional && !d.hasMutable }

func (d *Descriptor) scanFlags() {
	d.allFinal = true
	for i := range d.nodes {
		n := &d.nodes[i]
		if n.Kind != KindStruct && n.Kind != KindUnion {
			continue
		}
		if n.Ext != Final {
			d.allFinal = false
		}
		if n.Ext == Mutable {
			d.hasMutable = true
		}
		for _, m := range n.Members {
			if m.Optional {
				d.hasOptional = true
			}
		}
	}
}

// MemberByID returns the index of the struct member with the given id.
func (n *Node) MemberByID(id uint32) (int, bool) {
	i, ok := n.byID[id]
	return i, ok
}

// CaseFor returns the index of the union case selected by disc, falling back
// to the default case. It returns -1 when no case is selected.
func (n *Node) CaseFor(disc int64) int {
	if i, ok := n.byLabel[disc]; ok {
		return i
	}
	return n.defaultCase
}

// ValidEnum reports whether v is one of the enum's values.
func (n *Node) ValidEnum(v int64) bool {
	_, ok := n.enumValues[v]
	return ok
}

// KeyMembers returns the member indices that form the key of a struct, in
// key serialization order: declaration order, or member id order for MUTABLE
// types. A struct without key members contributes all of its members when it
// is nested inside another key.
func (n *Node) KeyMembers() []int { return n.keyOrder }

// HasKeyMembers reports whether any member of the struct is marked key.
func (n *Node) HasKeyMembers() bool { return n.keyFlagged }

// MaxArrayElements bounds the total element count of an array, across all
// of its dimensions.
const MaxArrayElements = math.MaxUint32

// ArrayCount returns the product of dims, or false when the product exceeds
// MaxArrayElements.
func ArrayCount(dims []uint32) (uint64, bool) {
	c := uint64(1)
	for _, d := range dims {
		if d != 0 && c > MaxArrayElements/uint64(d) {
			return 0, false
		}
		c *= uint64(d)
	}
	return c, true
}

// Count returns the number of elements in an array node (product of dims).
func (n *Node) Count() uint64 {
	c, _ := ArrayCount(n.Dims)
	return c
}

func (d *Descriptor) ref(i int) error {
	if i < 0 || i >= len(d.nodes) {
		return fmt.Errorf("node reference %d out of range", i)
	}
	return nil
}

func (d *Descriptor) checkNode(i int) error {
	n := &d.nodes[i]
	switch {
	case n.Kind.Primitive(), n.Kind == KindString:
		if n.Kind != KindString && n.Bound != 0 {
			return fmt.Errorf("bound on %s", n.Kind)
		}
		return nil
	case n.Kind == KindSequence:
		return d.ref(n.Elem)
	case n.Kind == KindArray:
		if len(n.Dims) == 0 {
			return fmt.Errorf("array without dimensions")
		}
		for _, dim := range n.Dims {
			if dim == 0 {
				return fmt.Errorf("array dimension must be positive")
			}
		}
		if _, ok := ArrayCount(n.Dims); !ok {
			return fmt.Errorf("array %v has more than %d elements", n.Dims, uint64(MaxArrayElements))
		}
		return d.ref(n.Elem)
	case n.Kind == KindEnum:
		return d.checkEnum(n)
	case n.Kind == KindStruct:
		return d.checkStruct(n)
	case n.Kind == KindUnion:
		return d.checkUnion(n)
	}
	return fmt.Errorf("invalid kind %s", n.Kind)
}

func (d *Descriptor) checkEnum(n *Node) error {
	if len(n.Enumerators) == 0 {
		return fmt.Errorf("enum has no enumerators")
	}
	names := make(map[string]bool, len(n.Enumerators))
	n.enumValues = make(map[int64]struct{}, len(n.Enumerators))
	for _, e := range n.Enumerators {
		if names[e.Name] {
			return fmt.Errorf("duplicate enumerator %q", e.Name)
		}
		names[e.Name] = true
		if _, dup := n.enumValues[int64(e.Value)]; dup {
			return fmt.Errorf("duplicate enumerator value %d", e.Value)
		}
		n.enumValues[int64(e.Value)] = struct{}{}
	}
	return nil
}

func (d *Descriptor) checkStruct(n *Node) error {
	if n.Ext > Mutable {
		return fmt.Errorf("invalid extensibility %d", n.Ext)
	}
	names := make(map[string]bool, len(n.Members))
	n.byID = make(map[uint32]int, len(n.Members))
	for i, m := range n.Members {
		if m.Name == "" {
			return fmt.Errorf("member %d has no name", i)
		}
		if names[m.Name] {
			return fmt.Errorf("duplicate member name %q", m.Name)
		}
		names[m.Name] = true
		if _, dup := n.byID[m.ID]; dup {
			return fmt.Errorf("duplicate member id %d (%s)", m.ID, m.Name)
		}
		if m.ID > 0x0FFFFFFF {
			return fmt.Errorf("member %s: id %d exceeds 28 bits", m.Name, m.ID)
		}
		n.byID[m.ID] = i
		if err := d.ref(m.Type); err != nil {
			return fmt.Errorf("member %s: %w", m.Name, err)
		}
		if m.Key && m.Optional {
			return fmt.Errorf("member %s: key member cannot be optional", m.Name)
		}
		if m.Key {
			n.keyFlagged = true
		}
	}

	var order []int
	for i, m := range n.Members {
		if m.Key || !n.keyFlagged {
			order = append(order, i)
		}
	}
	if n.Ext == Mutable {
		slices.SortStableFunc(order, func(a, b int) int {
			return int(n.Members[a].ID) - int(n.Members[b].ID)
		})
	}
	n.keyOrder = order
	return nil
}

func (d *Descriptor) checkUnion(n *Node) error {
	if n.Ext == Mutable {
		return fmt.Errorf("mutable unions are not supported")
	}
	if n.Ext > Mutable {
		return fmt.Errorf("invalid extensibility %d", n.Ext)
	}
	if err := d.ref(n.Disc); err != nil {
		return fmt.Errorf("discriminator: %w", err)
	}
	disc := &d.nodes[n.Disc]
	if !disc.Kind.Discriminator() {
		return fmt.Errorf("invalid discriminator kind %s", disc.Kind)
	}
	n.byLabel = make(map[int64]int)
	n.defaultCase = -1
	names := make(map[string]bool, len(n.Cases))
	for i, c := range n.Cases {
		if names[c.Name] {
			return fmt.Errorf("duplicate case name %q", c.Name)
		}
		names[c.Name] = true
		if err := d.ref(c.Type); err != nil {
			return fmt.Errorf("case %s: %w", c.Name, err)
		}
		if c.Default {
			if n.defaultCase >= 0 {
				return fmt.Errorf("more than one default case")
			}
			n.defaultCase = i
		} else if len(c.Labels) == 0 {
			return fmt.Errorf("case %s has no labels", c.Name)
		}
		for _, l := range c.Labels {
			if _, dup := n.byLabel[l]; dup {
				return fmt.Errorf("duplicate case label %d", l)
			}
			if err := checkLabel(disc, l); err != nil {
				return fmt.Errorf("case %s: %w", c.Name, err)
			}
			n.byLabel[l] = i
		}
	}
	return nil
}

func checkLabel(disc *Node, l int64) error {
	switch disc.Kind {
	case KindBool:
		if l != 0 && l != 1 {
			return fmt.Errorf("label %d out of range for bool", l)
		}
	case KindEnum:
		// enum nodes may not be checked yet; compare against the raw list
		for _, e := range disc.Enumerators {
			if int64(e.Value) == l {
				return nil
			}
		}
		return fmt.Errorf("label %d is not an enumerator of %s", l, disc.Name)
	default:
		if !disc.Kind.Holds(l) {
			return fmt.Errorf("label %d out of range for %s", l, disc.Kind)
		}
	}
	return nil
}

// Holds reports whether v is representable by the integer kind k. Bool
// holds 0 and 1.
func (k Kind) Holds(v int64) bool {
	if k == KindBool {
		return v == 0 || v == 1
	}
	lo, hi := intRange(k)
	return v >= lo && (hi < 0 || v <= hi)
}

// intRange returns the representable range of an integer kind; hi is -1 when
// the kind covers all non-negative int64 values.
func intRange(k Kind) (lo, hi int64) {
	switch k {
	case KindInt8:
		return -1 << 7, 1<<7 - 1
	case KindChar, KindOctet, KindUint8:
		return 0, 1<<8 - 1
	case KindInt16:
		return -1 << 15, 1<<15 - 1
	case KindUint16:
		return 0, 1<<16 - 1
	case KindInt32:
		return -1 << 31, 1<<31 - 1
	case KindUint32:
		return 0, 1<<32 - 1
	case KindInt64:
		return -1 << 63, 1<<63 - 1
	}
	return 0, -1
}

// checkByValueCycles rejects types that contain themselves without a sequence
// or optional member in between; such types have no finite encoding.
func (d *Descriptor) checkByValueCycles() error {
	const (
		unvisited = iota
		active
		done
	)
	state := make([]int, len(d.nodes))
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case active:
			return fmt.Errorf("node %d (%s): type contains itself by value", i, d.nodes[i].describe())
		case done:
			return nil
		}
		state[i] = active
		n := &d.nodes[i]
		switch n.Kind {
		case KindArray:
			if err := visit(n.Elem); err != nil {
				return err
			}
		case KindStruct:
			for _, m := range n.Members {
				if m.Optional {
					continue
				}
				if err := visit(m.Type); err != nil {
					return err
				}
			}
		case KindUnion:
			for _, c := range n.Cases {
				if err := visit(c.Type); err != nil {
					return err
				}
			}
		}
		state[i] = done
		return nil
	}
	for i := range d.nodes {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

func (d *Descriptor) checkKeys(i int) error {
	n := &d.nodes[i]
	if !n.keyFlagged {
		return nil
	}
	for _, mi := range n.keyOrder {
		m := n.Members[mi]
		if err := d.checkKeyType(m.Type, map[int]bool{i: true}); err != nil {
			return fmt.Errorf("key member %s: %w", m.Name, err)
		}
	}
	return nil
}

func (d *Descriptor) checkKeyType(i int, seen map[int]bool) error {
	n := &d.nodes[i]
	switch n.Kind {
	case KindUnion:
		return fmt.Errorf("union %s cannot be part of a key", n.Name)
	case KindSequence:
		if d.nodes[n.Elem].Kind == KindSequence {
			return fmt.Errorf("sequence of sequence cannot be part of a key")
		}
		return d.checkKeyType(n.Elem, seen)
	case KindArray:
		return d.checkKeyType(n.Elem, seen)
	case KindStruct:
		if seen[i] {
			return fmt.Errorf("struct %s recursively contains its own key", n.Name)
		}
		seen[i] = true
		defer delete(seen, i)
		for _, mi := range n.keyOrder {
			m := n.Members[mi]
			if m.Optional {
				return fmt.Errorf("optional member %s.%s cannot be part of a key", n.Name, m.Name)
			}
			if err := d.checkKeyType(m.Type, seen); err != nil {
				return err
			}
		}
	}
	return nil
}
