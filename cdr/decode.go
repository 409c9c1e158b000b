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

// Decode parses a serialized sample, header included, into a value shaped
// like d's root type. The byte order and encoding version come from the
// header.
func Decode(d *descriptor.Descriptor, data []byte) (value.Value, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	version, err := h.Version()
	if err != nil {
		return nil, &DecodeError{Code: ErrCodeUnsupported, Path: d.Name(), Message: err.Error()}
	}

	body := data[HeaderSize:]
	end := len(body) - h.Padding()
	if end < 0 {
		return nil, &DecodeError{
			Code:    ErrCodeTruncated,
			Path:    d.Name(),
			Message: fmt.Sprintf("padding %d exceeds payload of %d bytes", h.Padding(), len(body)),
		}
	}

	dec := &decoder{
		d:        d,
		data:     body,
		end:      end,
		order:    h.ByteOrder(),
		v2:       version == XCDR2,
		maxAlign: 8,
	}
	if dec.v2 {
		dec.maxAlign = 4
	}
	dec.push(d.Name())
	v, err := dec.node(0)
	if err != nil {
		return nil, err
	}
	if err := dec.trailing(d.Root()); err != nil {
		return nil, err
	}
	return v, nil
}

type decoder struct {
	d        *descriptor.Descriptor
	data     []byte
	pos      int
	end      int
	order    binary.ByteOrder
	v2       bool
	maxAlign int
	path     []string
}

func (r *decoder) push(s string) { r.path = append(r.path, s) }
func (r *decoder) pop()          { r.path = r.path[:len(r.path)-1] }

func (r *decoder) pathString() string {
	var sb strings.Builder
	for i, p := range r.path {
		if i > 0 && !strings.HasPrefix(p, "[") {
			sb.WriteByte('.')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func (r *decoder) fail(code ErrorCode, format string, args ...any) error {
	return &DecodeError{
		Code:    code,
		Path:    r.pathString(),
		Offset:  r.pos,
		Message: fmt.Sprintf(format, args...),
	}
}

func (r *decoder) mismatch(format string, args ...any) error {
	return &SchemaMismatchError{
		Path:    r.pathString(),
		Offset:  r.pos,
		Message: fmt.Sprintf(format, args...),
	}
}

// trailing checks what is left after the root value. FINAL roots must
// consume the buffer; up to three zero bytes that pad the payload to a
// multiple of four are accepted from writers that leave the padding bits
// of the options word unset.
func (r *decoder) trailing(root *descriptor.Node) error {
	rest := r.end - r.pos
	if rest == 0 || root.Ext != descriptor.Final {
		return nil
	}
	if rest < 4 && r.end%4 == 0 {
		zero := true
		for _, b := range r.data[r.pos:r.end] {
			zero = zero && b == 0
		}
		if zero {
			return nil
		}
	}
	return r.mismatch("%d unexpected trailing bytes", rest)
}

// aligned returns the position after aligning to n without moving.
func (r *decoder) aligned(n int) int {
	a := min(n, r.maxAlign)
	return (r.pos + a - 1) &^ (a - 1)
}

func (r *decoder) need(n int) error {
	if n < 0 || r.pos+n > r.end {
		return r.fail(ErrCodeTruncated, "need %d bytes, %d remain", n, r.end-r.pos)
	}
	return nil
}

func (r *decoder) take(size int) ([]byte, error) {
	r.pos = min(r.aligned(size), r.end)
	if err := r.need(size); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+size]
	r.pos += size
	return b, nil
}

func (r *decoder) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *decoder) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *decoder) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *decoder) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *decoder) uint(size int) (uint64, error) {
	switch size {
	case 1:
		v, err := r.u8()
		return uint64(v), err
	case 2:
		v, err := r.u16()
		return uint64(v), err
	case 4:
		v, err := r.u32()
		return uint64(v), err
	}
	return r.u64()
}

// dheader reads a DHEADER and returns the end of the region it delimits.
func (r *decoder) dheader() (int, error) {
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	if err := r.need(int(n)); err != nil {
		return 0, err
	}
	return r.pos + int(n), nil
}

// within runs f with the readable region narrowed to [pos, end) and then
// moves past the region, skipping whatever f left unread.
func (r *decoder) within(end int, f func() error) error {
	outer := r.end
	r.end = end
	err := f()
	r.end = outer
	if err != nil {
		return err
	}
	r.pos = end
	return nil
}

func (r *decoder) needsDHeader(elem int) bool {
	return r.v2 && !r.d.Node(elem).Kind.Scalar()
}

// checkCount rejects element counts the remaining bytes cannot hold, before
// anything is allocated.
func (r *decoder) checkCount(count uint64, elem int) error {
	minSize := uint64(max(r.d.Node(elem).MinSize, 1))
	if remaining := uint64(r.end - r.pos); count > remaining/minSize {
		return r.fail(ErrCodeTruncated, "%d elements cannot fit in %d bytes", count, remaining)
	}
	return nil
}

func (r *decoder) node(i int) (value.Value, error) {
	n := r.d.Node(i)
	switch n.Kind {
	case descriptor.KindString:
		return r.str(n)
	case descriptor.KindSequence:
		return r.sequence(n)
	case descriptor.KindArray:
		return r.array(n)
	case descriptor.KindStruct:
		return r.structure(n)
	case descriptor.KindUnion:
		return r.union(n)
	}
	return r.scalar(n)
}

func (r *decoder) scalar(n *descriptor.Node) (value.Value, error) {
	k := n.Kind
	raw, err := r.uint(k.Size())
	if err != nil {
		return nil, err
	}
	switch {
	case k == descriptor.KindBool:
		if raw > 1 {
			r.pos--
			return nil, r.fail(ErrCodeInvalid, "invalid bool byte 0x%02x", raw)
		}
		return value.Bool(raw == 1), nil
	case k == descriptor.KindFloat32:
		return value.Float(math.Float32frombits(uint32(raw))), nil
	case k == descriptor.KindFloat64:
		return value.Float(math.Float64frombits(raw)), nil
	case k == descriptor.KindEnum:
		v := int64(int32(raw))
		if !n.ValidEnum(v) {
			r.pos -= 4
			return nil, r.fail(ErrCodeInvalid, "%d is not an enumerator of %s", v, n.Name)
		}
		return value.Int(v), nil
	case k.Signed():
		return value.Int(signExtend(raw, k.Size())), nil
	}
	return value.Uint(raw), nil
}

func signExtend(raw uint64, size int) int64 {
	switch size {
	case 1:
		return int64(int8(raw))
	case 2:
		return int64(int16(raw))
	case 4:
		return int64(int32(raw))
	}
	return int64(raw)
}

func (r *decoder) str(n *descriptor.Node) (value.Value, error) {
	length, err := r.u32()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		// some writers encode the empty string without a terminator
		return value.String(""), nil
	}
	if n.Bound > 0 && length-1 > n.Bound {
		return nil, r.fail(ErrCodeBound, "string of length %d exceeds bound %d", length-1, n.Bound)
	}
	if err := r.need(int(length)); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+int(length)]
	if b[length-1] != 0 {
		return nil, r.fail(ErrCodeInvalid, "string is not NUL terminated")
	}
	r.pos += int(length)
	return value.String(b[:length-1]), nil
}

func (r *decoder) sequence(n *descriptor.Node) (value.Value, error) {
	var out value.Seq
	read := func() error {
		count, err := r.u32()
		if err != nil {
			return err
		}
		if n.Bound > 0 && count > n.Bound {
			return r.fail(ErrCodeBound, "sequence of length %d exceeds bound %d", count, n.Bound)
		}
		if err := r.checkCount(uint64(count), n.Elem); err != nil {
			return err
		}
		out = make(value.Seq, count)
		for j := range out {
			r.push("[" + strconv.Itoa(j) + "]")
			v, err := r.node(n.Elem)
			if err != nil {
				return err
			}
			r.pop()
			out[j] = v
		}
		return nil
	}
	if err := r.delimited(r.needsDHeader(n.Elem), read); err != nil {
		return nil, err
	}
	return out, nil
}

// delimited runs f inside a DHEADER region when dh is set.
func (r *decoder) delimited(dh bool, f func() error) error {
	if !dh {
		return f()
	}
	end, err := r.dheader()
	if err != nil {
		return err
	}
	return r.within(end, f)
}

func (r *decoder) array(n *descriptor.Node) (value.Value, error) {
	var out value.Value
	read := func() error {
		count, ok := descriptor.ArrayCount(n.Dims)
		if !ok {
			return r.fail(ErrCodeInvalid, "array %v has too many elements", n.Dims)
		}
		if err := r.checkCount(count, n.Elem); err != nil {
			return err
		}
		v, err := r.dims(n, n.Dims)
		out = v
		return err
	}
	if err := r.delimited(r.needsDHeader(n.Elem), read); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *decoder) dims(n *descriptor.Node, dims []uint32) (value.Value, error) {
	if len(dims) == 0 {
		return r.node(n.Elem)
	}
	if err := r.checkCount(uint64(dims[0]), n.Elem); err != nil {
		return nil, err
	}
	out := make(value.Seq, dims[0])
	for j := range out {
		r.push("[" + strconv.Itoa(j) + "]")
		v, err := r.dims(n, dims[1:])
		if err != nil {
			return nil, err
		}
		r.pop()
		out[j] = v
	}
	return out, nil
}

func (r *decoder) structure(n *descriptor.Node) (value.Value, error) {
	out := make(value.Struct, len(n.Members))
	switch {
	case !r.v2 || n.Ext == descriptor.Final:
		return out, r.positional(n, out, n.Ext != descriptor.Final)
	case n.Ext == descriptor.Appendable:
		end, err := r.dheader()
		if err != nil {
			return nil, err
		}
		return out, r.within(end, func() error { return r.positional(n, out, true) })
	}
	end, err := r.dheader()
	if err != nil {
		return nil, err
	}
	return out, r.within(end, func() error { return r.mutable(n, out) })
}

// positional reads members in ordinal order. When tolerant, members past the
// end of the region take their default value; otherwise running out of data
// at a member boundary is a schema mismatch.
func (r *decoder) positional(n *descriptor.Node, out value.Struct, tolerant bool) error {
	for mi := range n.Members {
		m := &n.Members[mi]
		if r.exhausted(m) {
			if !tolerant {
				return r.mismatch("data ends before member %s (%d of %d)", m.Name, mi, len(n.Members))
			}
			for ; mi < len(n.Members); mi++ {
				out[mi] = Default(r.d, n.Members[mi].Type, n.Members[mi].Optional)
			}
			return nil
		}
		r.push(m.Name)
		v, err := r.member(m)
		if err != nil {
			return err
		}
		r.pop()
		out[mi] = v
	}
	return nil
}

// exhausted reports whether the region ends before m: either no bytes are
// left, or only alignment padding that cannot hold the member.
func (r *decoder) exhausted(m *descriptor.Member) bool {
	if r.pos >= r.end {
		return true
	}
	if m.Optional {
		return false
	}
	t := r.d.Node(m.Type)
	return r.aligned(t.Align) >= r.end && r.end-r.pos < t.MinSize
}

func (r *decoder) member(m *descriptor.Member) (value.Value, error) {
	if m.Optional {
		present, err := r.u8()
		if err != nil {
			return nil, err
		}
		switch present {
		case 0:
			return value.Null{}, nil
		case 1:
		default:
			r.pos--
			return nil, r.fail(ErrCodeInvalid, "invalid presence flag 0x%02x", present)
		}
	}
	return r.node(m.Type)
}

func (r *decoder) mutable(n *descriptor.Node, out value.Struct) error {
	seen := make([]bool, len(n.Members))
	for r.aligned(4) < r.end {
		header, err := r.u32()
		if err != nil {
			return err
		}
		id := header & emIDMask
		mustUnderstand := header&emMustUnderstand != 0
		size, err := r.memberLength(header >> 28 & 0x7)
		if err != nil {
			return err
		}
		if err := r.need(size); err != nil {
			return err
		}
		end := r.pos + size

		mi, known := n.MemberByID(id)
		if !known {
			if mustUnderstand {
				return r.fail(ErrCodeMustUnderstand, "unknown must-understand member id %d", id)
			}
			r.pos = end
			continue
		}
		if seen[mi] {
			return r.fail(ErrCodeDuplicate, "member id %d occurs twice", id)
		}
		seen[mi] = true

		m := &n.Members[mi]
		r.push(m.Name)
		err = r.within(end, func() error {
			v, err := r.node(m.Type)
			out[mi] = v
			return err
		})
		if err != nil {
			return err
		}
		r.pop()
	}
	for mi, ok := range seen {
		if !ok {
			out[mi] = Default(r.d, n.Members[mi].Type, n.Members[mi].Optional)
		}
	}
	return nil
}

// memberLength decodes an EMHEADER length code. Codes 5 to 7 derive the
// length from the NEXTINT but leave it in place, because it is the first
// word of the member itself (a string length or sequence count).
func (r *decoder) memberLength(lc uint32) (int, error) {
	switch lc {
	case 0, 1, 2, 3:
		return 1 << lc, nil
	case 4:
		n, err := r.u32()
		return int(n), err
	}
	if err := r.need(4); err != nil {
		return 0, err
	}
	next := int(r.order.Uint32(r.data[r.pos:]))
	switch lc {
	case 5:
		return 4 + next, nil
	case 6:
		return 4 + 4*next, nil
	}
	return 4 + 8*next, nil
}

func (r *decoder) union(n *descriptor.Node) (value.Value, error) {
	var out value.Union
	read := func() error {
		disc := r.d.Node(n.Disc)
		r.push("$disc")
		dv, err := r.scalar(disc)
		if err != nil {
			return err
		}
		r.pop()
		switch x := dv.(type) {
		case value.Bool:
			if x {
				out.Disc = 1
			}
		case value.Int:
			out.Disc = int64(x)
		case value.Uint:
			out.Disc = int64(x)
		}
		ci := n.CaseFor(out.Disc)
		if ci < 0 {
			return nil
		}
		c := &n.Cases[ci]
		r.push(c.Name)
		v, err := r.node(c.Type)
		if err != nil {
			return err
		}
		r.pop()
		out.Value = v
		return nil
	}
	if err := r.delimited(r.v2 && n.Ext == descriptor.Appendable, read); err != nil {
		return nil, err
	}
	return out, nil
}
