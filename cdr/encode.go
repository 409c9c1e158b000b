package cdr

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/value"
)

// Encode serializes v, a value shaped like d's root type, including the
// encapsulation header and trailing padding.
func Encode(d *descriptor.Descriptor, v value.Value, opts ...Option) ([]byte, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	version := o.version
	if version == VersionAuto {
		version = XCDR2
		if d.Plain() {
			version = XCDR1
		}
	}
	if version == XCDR1 && !d.SupportsXCDR1() {
		return nil, &EncodeError{
			Code:    ErrCodeUnsupported,
			Path:    d.Name(),
			Message: "optional or mutable members require XCDR2",
		}
	}

	e := newEncoder(d, version == XCDR2, o.bigEndian, HeaderSize)
	rep := representation(version, d.Root().Ext, o.bigEndian)
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(rep))
	e.buf = append(e.buf, 0, 0)

	e.push(d.Name())
	if err := e.node(0, v); err != nil {
		return nil, err
	}

	pad := (4 - (len(e.buf)-HeaderSize)%4) % 4
	e.buf = append(e.buf, make([]byte, pad)...)
	binary.BigEndian.PutUint16(e.buf[2:4], uint16(pad))
	return e.buf, nil
}

type encoder struct {
	d        *descriptor.Descriptor
	buf      []byte
	order    binary.AppendByteOrder
	v2       bool
	maxAlign int
	origin   int
	keyMode  bool
	path     []string
}

// maxPrealloc caps the initial buffer capacity taken from a type's minimum size.
const maxPrealloc = 64 << 10

func newEncoder(d *descriptor.Descriptor, v2, bigEndian bool, origin int) *encoder {
	e := &encoder{
		d:        d,
		buf:      make([]byte, 0, origin+min(d.Root().MinSize, maxPrealloc)+16),
		v2:       v2,
		maxAlign: 8,
		origin:   origin,
		order:    binary.LittleEndian,
	}
	if bigEndian {
		e.order = binary.BigEndian
	}
	if v2 {
		e.maxAlign = 4
	}
	return e
}

func (e *encoder) offset() int { return len(e.buf) - e.origin }

func (e *encoder) push(s string) { e.path = append(e.path, s) }
func (e *encoder) pop()          { e.path = e.path[:len(e.path)-1] }

func (e *encoder) pathString() string {
	var sb strings.Builder
	for i, p := range e.path {
		if i > 0 && !strings.HasPrefix(p, "[") {
			sb.WriteByte('.')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func (e *encoder) fail(code ErrorCode, format string, args ...any) error {
	return &EncodeError{
		Code:    code,
		Path:    e.pathString(),
		Offset:  e.offset(),
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *encoder) mismatch(want string, v value.Value) error {
	return e.fail(ErrCodeValue, "expected %s, got %s", want, value.Format(v))
}

func (e *encoder) align(n int) {
	a := min(n, e.maxAlign)
	for e.offset()%a != 0 {
		e.buf = append(e.buf, 0)
	}
}

func (e *encoder) u8(v uint8) { e.buf = append(e.buf, v) }

func (e *encoder) u16(v uint16) {
	e.align(2)
	e.buf = e.order.AppendUint16(e.buf, v)
}

func (e *encoder) u32(v uint32) {
	e.align(4)
	e.buf = e.order.AppendUint32(e.buf, v)
}

func (e *encoder) u64(v uint64) {
	e.align(8)
	e.buf = e.order.AppendUint64(e.buf, v)
}

// beginDHeader reserves a DHEADER and returns its position for endDHeader.
func (e *encoder) beginDHeader() int {
	e.u32(0)
	return len(e.buf)
}

func (e *encoder) endDHeader(start int) {
	e.putUint32(start-4, uint32(len(e.buf)-start))
}

func (e *encoder) putUint32(at int, v uint32) {
	if e.order == binary.BigEndian {
		binary.BigEndian.PutUint32(e.buf[at:], v)
	} else {
		binary.LittleEndian.PutUint32(e.buf[at:], v)
	}
}

// needsDHeader reports whether a sequence or array of elem carries a DHEADER.
func (e *encoder) needsDHeader(elem int) bool {
	return e.v2 && !e.keyMode && !e.d.Node(elem).Kind.Scalar()
}

func (e *encoder) node(i int, v value.Value) error {
	n := e.d.Node(i)
	switch n.Kind {
	case descriptor.KindString:
		return e.str(n, v)
	case descriptor.KindSequence:
		return e.sequence(n, v)
	case descriptor.KindArray:
		return e.array(n, v)
	case descriptor.KindStruct:
		return e.structure(n, v)
	case descriptor.KindUnion:
		return e.union(n, v)
	}
	return e.scalar(n, v)
}

func (e *encoder) scalar(n *descriptor.Node, v value.Value) error {
	k := n.Kind
	switch {
	case k == descriptor.KindBool:
		b, ok := v.(value.Bool)
		if !ok {
			return e.mismatch("bool", v)
		}
		if b {
			e.u8(1)
		} else {
			e.u8(0)
		}
		return nil
	case k == descriptor.KindFloat32 || k == descriptor.KindFloat64:
		f, ok := v.(value.Float)
		if !ok {
			return e.mismatch("float", v)
		}
		if k == descriptor.KindFloat32 {
			e.u32(math.Float32bits(float32(f)))
		} else {
			e.u64(math.Float64bits(float64(f)))
		}
		return nil
	case k.Signed():
		i, ok := v.(value.Int)
		if !ok {
			return e.mismatch("int", v)
		}
		if k == descriptor.KindEnum {
			if !n.ValidEnum(int64(i)) {
				return e.fail(ErrCodeValue, "%d is not an enumerator of %s", i, n.Name)
			}
		} else if !fitsSigned(int64(i), k.Size()) {
			return e.fail(ErrCodeValue, "%d overflows %s", i, k)
		}
		e.uint(uint64(i), k.Size())
		return nil
	case k.Unsigned():
		u, ok := v.(value.Uint)
		if !ok {
			return e.mismatch("uint", v)
		}
		if !fitsUnsigned(uint64(u), k.Size()) {
			return e.fail(ErrCodeValue, "%d overflows %s", u, k)
		}
		e.uint(uint64(u), k.Size())
		return nil
	}
	return e.fail(ErrCodeUnsupported, "cannot encode %s", k)
}

// uint writes the low size bytes of v.
func (e *encoder) uint(v uint64, size int) {
	switch size {
	case 1:
		e.u8(uint8(v))
	case 2:
		e.u16(uint16(v))
	case 4:
		e.u32(uint32(v))
	default:
		e.u64(v)
	}
}

func fitsSigned(v int64, size int) bool {
	if size >= 8 {
		return true
	}
	bits := uint(size * 8)
	return v >= -1<<(bits-1) && v < 1<<(bits-1)
}

func fitsUnsigned(v uint64, size int) bool {
	return size >= 8 || v < 1<<uint(size*8)
}

func (e *encoder) str(n *descriptor.Node, v value.Value) error {
	s, ok := v.(value.String)
	if !ok {
		return e.mismatch("string", v)
	}
	if n.Bound > 0 && len(s) > int(n.Bound) {
		return e.fail(ErrCodeBound, "string of length %d exceeds bound %d", len(s), n.Bound)
	}
	if strings.IndexByte(string(s), 0) >= 0 {
		return e.fail(ErrCodeValue, "string contains a NUL byte")
	}
	e.u32(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	return nil
}

func (e *encoder) sequence(n *descriptor.Node, v value.Value) error {
	s, ok := v.(value.Seq)
	if !ok {
		return e.mismatch("sequence", v)
	}
	if n.Bound > 0 && len(s) > int(n.Bound) {
		return e.fail(ErrCodeBound, "sequence of length %d exceeds bound %d", len(s), n.Bound)
	}
	start := -1
	if e.needsDHeader(n.Elem) {
		start = e.beginDHeader()
	}
	e.u32(uint32(len(s)))
	for j, elem := range s {
		e.push("[" + strconv.Itoa(j) + "]")
		if err := e.node(n.Elem, elem); err != nil {
			return err
		}
		e.pop()
	}
	if start >= 0 {
		e.endDHeader(start)
	}
	return nil
}

func (e *encoder) array(n *descriptor.Node, v value.Value) error {
	start := -1
	if e.needsDHeader(n.Elem) {
		start = e.beginDHeader()
	}
	if err := e.dims(n, n.Dims, v); err != nil {
		return err
	}
	if start >= 0 {
		e.endDHeader(start)
	}
	return nil
}

// dims walks nested Seq values, one level per remaining dimension.
func (e *encoder) dims(n *descriptor.Node, dims []uint32, v value.Value) error {
	if len(dims) == 0 {
		return e.node(n.Elem, v)
	}
	s, ok := v.(value.Seq)
	if !ok {
		return e.mismatch("array", v)
	}
	if len(s) != int(dims[0]) {
		return e.fail(ErrCodeValue, "array of length %d, want %d", len(s), dims[0])
	}
	for j, elem := range s {
		e.push("[" + strconv.Itoa(j) + "]")
		if err := e.dims(n, dims[1:], elem); err != nil {
			return err
		}
		e.pop()
	}
	return nil
}

func (e *encoder) structure(n *descriptor.Node, v value.Value) error {
	s, ok := v.(value.Struct)
	if !ok {
		return e.mismatch("struct "+n.Name, v)
	}
	if len(s) != len(n.Members) {
		return e.fail(ErrCodeValue, "struct %s has %d members, got %d", n.Name, len(n.Members), len(s))
	}
	if e.keyMode {
		for _, mi := range n.KeyMembers() {
			if err := e.member(n, mi, s[mi]); err != nil {
				return err
			}
		}
		return nil
	}

	if !e.v2 || n.Ext == descriptor.Final {
		for mi := range n.Members {
			if err := e.member(n, mi, s[mi]); err != nil {
				return err
			}
		}
		return nil
	}

	start := e.beginDHeader()
	for mi := range n.Members {
		var err error
		if n.Ext == descriptor.Mutable {
			err = e.mutableMember(n, mi, s[mi])
		} else {
			err = e.member(n, mi, s[mi])
		}
		if err != nil {
			return err
		}
	}
	e.endDHeader(start)
	return nil
}

// member writes one FINAL or APPENDABLE member, with a presence flag when
// it is optional.
func (e *encoder) member(n *descriptor.Node, mi int, v value.Value) error {
	m := &n.Members[mi]
	e.push(m.Name)
	defer e.pop()
	if m.Optional {
		if _, absent := v.(value.Null); absent {
			e.u8(0)
			return nil
		}
		e.u8(1)
	}
	return e.node(m.Type, v)
}

const (
	emMustUnderstand = 1 << 31
	emIDMask         = 0x0FFFFFFF
)

// mutableMember writes EMHEADER [NEXTINT] payload. Scalars of 1, 2, 4 and 8
// bytes use length codes 0 to 3; everything else uses code 4 with an explicit
// NEXTINT length.
func (e *encoder) mutableMember(n *descriptor.Node, mi int, v value.Value) error {
	m := &n.Members[mi]
	if _, absent := v.(value.Null); absent && m.Optional {
		return nil
	}
	e.push(m.Name)
	defer e.pop()

	header := m.ID & emIDMask
	if m.Key {
		header |= emMustUnderstand
	}
	t := e.d.Node(m.Type)
	if t.Kind.Scalar() {
		var lc uint32
		switch t.Kind.Size() {
		case 1:
			lc = 0
		case 2:
			lc = 1
		case 4:
			lc = 2
		case 8:
			lc = 3
		}
		e.u32(header | lc<<28)
		return e.node(m.Type, v)
	}
	e.u32(header | 4<<28)
	start := e.beginDHeader()
	if err := e.node(m.Type, v); err != nil {
		return err
	}
	e.endDHeader(start)
	return nil
}

func (e *encoder) union(n *descriptor.Node, v value.Value) error {
	u, ok := v.(value.Union)
	if !ok {
		return e.mismatch("union "+n.Name, v)
	}
	start := -1
	if e.v2 && !e.keyMode && n.Ext == descriptor.Appendable {
		start = e.beginDHeader()
	}

	disc := e.d.Node(n.Disc)
	var dv value.Value
	switch {
	case disc.Kind == descriptor.KindBool:
		if u.Disc != 0 && u.Disc != 1 {
			return e.fail(ErrCodeValue, "bool discriminator %d", u.Disc)
		}
		dv = value.Bool(u.Disc == 1)
	case disc.Kind.Signed():
		dv = value.Int(u.Disc)
	default:
		if u.Disc < 0 {
			return e.fail(ErrCodeValue, "negative discriminator %d for %s", u.Disc, disc.Kind)
		}
		dv = value.Uint(u.Disc)
	}
	e.push("$disc")
	if err := e.scalar(disc, dv); err != nil {
		return err
	}
	e.pop()

	ci := n.CaseFor(u.Disc)
	if ci < 0 {
		if u.Value != nil {
			if _, null := u.Value.(value.Null); !null {
				return e.fail(ErrCodeValue, "discriminator %d selects no member", u.Disc)
			}
		}
	} else {
		c := &n.Cases[ci]
		e.push(c.Name)
		if err := e.node(c.Type, u.Value); err != nil {
			return err
		}
		e.pop()
	}

	if start >= 0 {
		e.endDHeader(start)
	}
	return nil
}
