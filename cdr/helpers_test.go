package cdr

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/value"
)

func mustDescriptor(t *testing.T, nodes ...descriptor.Node) *descriptor.Descriptor {
	t.Helper()
	d, err := descriptor.New(nodes)
	require.NoError(t, err)
	return d
}

// hexBytes parses space separated hex such as "00 01 2a".
func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	require.NoError(t, err)
	return b
}

func requireValue(t *testing.T, want, got value.Value) {
	t.Helper()
	if !value.Equal(want, got) {
		t.Fatalf("value mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
}

// keyed describes struct T { @key long id; string<128> name; }.
func keyed(t *testing.T) *descriptor.Descriptor {
	return mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "T", Members: []descriptor.Member{
			{Name: "id", Field: "ID", ID: 0, Key: true, Type: 1},
			{Name: "name", Field: "Name", ID: 1, Type: 2},
		}},
		descriptor.Node{Kind: descriptor.KindInt32},
		descriptor.Node{Kind: descriptor.KindString, Bound: 128},
	)
}

// rich exercises every kind in one FINAL type.
//
//	enum Color { RED, GREEN = 5 };
//	union Choice switch (short) { case 1: long l; case 2: case 3: string s; default: octet o; };
//	struct Point { short x; double y; };
//	struct Rich {
//	  boolean flag; char c; octet o; int8 i8; uint8 u8; short i16; unsigned short u16;
//	  long i32; unsigned long u32; long long i64; unsigned long long u64;
//	  float f32; double f64; string s; Color color;
//	  sequence<Point, 4> points; long grid[2][3]; Choice choice; sequence<string> names;
//	};
func rich(t *testing.T) *descriptor.Descriptor {
	k := func(kind descriptor.Kind) descriptor.Node { return descriptor.Node{Kind: kind} }
	return mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "Rich", Members: []descriptor.Member{
			{Name: "flag", ID: 0, Type: 1},
			{Name: "c", ID: 1, Type: 2},
			{Name: "o", ID: 2, Type: 3},
			{Name: "i8", ID: 3, Type: 4},
			{Name: "u8", ID: 4, Type: 5},
			{Name: "i16", ID: 5, Type: 6},
			{Name: "u16", ID: 6, Type: 7},
			{Name: "i32", ID: 7, Type: 8},
			{Name: "u32", ID: 8, Type: 9},
			{Name: "i64", ID: 9, Type: 10},
			{Name: "u64", ID: 10, Type: 11},
			{Name: "f32", ID: 11, Type: 12},
			{Name: "f64", ID: 12, Type: 13},
			{Name: "s", ID: 13, Type: 14},
			{Name: "color", ID: 14, Type: 15},
			{Name: "points", ID: 15, Type: 16},
			{Name: "grid", ID: 16, Type: 18},
			{Name: "choice", ID: 17, Type: 19},
			{Name: "names", ID: 18, Type: 20},
		}},
		k(descriptor.KindBool),    // 1
		k(descriptor.KindChar),    // 2
		k(descriptor.KindOctet),   // 3
		k(descriptor.KindInt8),    // 4
		k(descriptor.KindUint8),   // 5
		k(descriptor.KindInt16),   // 6
		k(descriptor.KindUint16),  // 7
		k(descriptor.KindInt32),   // 8
		k(descriptor.KindUint32),  // 9
		k(descriptor.KindInt64),   // 10
		k(descriptor.KindUint64),  // 11
		k(descriptor.KindFloat32), // 12
		k(descriptor.KindFloat64), // 13
		k(descriptor.KindString),  // 14
		descriptor.Node{Kind: descriptor.KindEnum, Name: "Color", Enumerators: []descriptor.Enumerator{ // 15
			{Name: "RED", Value: 0}, {Name: "GREEN", Value: 5},
		}},
		descriptor.Node{Kind: descriptor.KindSequence, Bound: 4, Elem: 17}, // 16
		descriptor.Node{Kind: descriptor.KindStruct, Name: "Point", Members: []descriptor.Member{ // 17
			{Name: "x", ID: 0, Type: 6},
			{Name: "y", ID: 1, Type: 13},
		}},
		descriptor.Node{Kind: descriptor.KindArray, Dims: []uint32{2, 3}, Elem: 8}, // 18
		descriptor.Node{Kind: descriptor.KindUnion, Name: "Choice", Disc: 6, Cases: []descriptor.Case{ // 19
			{Labels: []int64{1}, Name: "l", Type: 8},
			{Labels: []int64{2, 3}, Name: "s", Type: 14},
			{Default: true, Name: "o", Type: 3},
		}},
		descriptor.Node{Kind: descriptor.KindSequence, Elem: 14}, // 20
	)
}

func richValue(choice value.Union) value.Struct {
	return value.Struct{
		value.Bool(true),
		value.Uint('x'),
		value.Uint(0xff),
		value.Int(-8),
		value.Uint(200),
		value.Int(-1234),
		value.Uint(65000),
		value.Int(-70000),
		value.Uint(4000000000),
		value.Int(-1 << 40),
		value.Uint(1 << 63),
		value.Float(1.5),
		value.Float(-2.25e10),
		value.String("hello"),
		value.Int(5),
		value.Seq{
			value.Struct{value.Int(1), value.Float(0.5)},
			value.Struct{value.Int(-1), value.Float(2)},
		},
		value.Seq{
			value.Seq{value.Int(1), value.Int(2), value.Int(3)},
			value.Seq{value.Int(4), value.Int(5), value.Int(6)},
		},
		choice,
		value.Seq{value.String("a"), value.String(""), value.String("ccc")},
	}
}
