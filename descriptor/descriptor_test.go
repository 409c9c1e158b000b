package descriptor

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keyedNodes describes struct T { @key long id; string<128> name; }.
func keyedNodes() []Node {
	return []Node{
		{Kind: KindStruct, Name: "T", Members: []Member{
			{Name: "id", Field: "ID", ID: 0, Key: true, Type: 1},
			{Name: "name", Field: "Name", ID: 1, Type: 2},
		}},
		{Kind: KindInt32},
		{Kind: KindString, Bound: 128},
	}
}

func TestNewComputesLayout(t *testing.T) {
	d, err := New(keyedNodes())
	require.NoError(t, err)

	assert.Equal(t, "T", d.Name())
	assert.Equal(t, 4, d.Root().Align)
	assert.Equal(t, 8, d.Root().MinSize)
	assert.True(t, d.Keyed())
	assert.True(t, d.KeyFitsHash(), "a long key is 4 bytes")
	assert.Equal(t, []int{0}, d.Root().KeyMembers())
	assert.Len(t, d.TypeID(), 64)
}

func TestNewCopiesInput(t *testing.T) {
	nodes := keyedNodes()
	d, err := New(nodes)
	require.NoError(t, err)

	nodes[0].Members[0].Name = "changed"
	assert.Equal(t, "id", d.Root().Members[0].Name)
}

func TestCanonicalForm(t *testing.T) {
	d, err := New([]Node{
		{Kind: KindStruct, Name: "T", Members: []Member{{Name: "id", Field: "ID", Key: true, Type: 1}}},
		{Kind: KindInt32},
	})
	require.NoError(t, err)

	got, err := d.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t,
		`{"nodes":[{"ext":"final","kind":"struct","members":[{"field":"ID","id":0,"key":true,"name":"id","type":1}],"name":"T"},{"kind":"int32"}]}`,
		string(got))
}

func TestUnmarshalRoundTrip(t *testing.T) {
	d, err := New(keyedNodes())
	require.NoError(t, err)

	data, err := d.MarshalJSON()
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, d.TypeID(), back.TypeID())
	assert.Equal(t, uint32(128), back.Node(2).Bound)
}

func TestUnmarshalRejectsUnknownFields(t *testing.T) {
	_, err := Unmarshal([]byte(`{"nodes":[{"kind":"struct","name":"T","bogus":1}]}`))
	require.Error(t, err)
}

func TestMustUnmarshalPanics(t *testing.T) {
	assert.Panics(t, func() { MustUnmarshal([]byte(`{"nodes":[]}`)) })
}

func TestTypeIDTracksLayout(t *testing.T) {
	a, err := New(keyedNodes())
	require.NoError(t, err)

	nodes := keyedNodes()
	nodes[2].Bound = 64
	b, err := New(nodes)
	require.NoError(t, err)

	assert.NotEqual(t, a.TypeID(), b.TypeID())
}

func TestNewRejectsInvalidShapes(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		want  string
	}{
		{
			name:  "primitive root",
			nodes: []Node{{Kind: KindInt32}},
			want:  "root must be a struct or union",
		},
		{
			name: "struct contains itself",
			nodes: []Node{
				{Kind: KindStruct, Name: "R", Members: []Member{{Name: "self", Type: 0}}},
			},
			want: "contains itself by value",
		},
		{
			name: "array of self",
			nodes: []Node{
				{Kind: KindStruct, Name: "R", Members: []Member{{Name: "arr", Type: 1}}},
				{Kind: KindArray, Dims: []uint32{2}, Elem: 0},
			},
			want: "contains itself by value",
		},
		{
			name: "zero dimension",
			nodes: []Node{
				{Kind: KindStruct, Name: "A", Members: []Member{{Name: "a", Type: 1}}},
				{Kind: KindArray, Dims: []uint32{0}, Elem: 2},
				{Kind: KindInt8},
			},
			want: "dimension must be positive",
		},
		{
			name: "array element count overflows",
			nodes: []Node{
				{Kind: KindStruct, Name: "A", Members: []Member{{Name: "a", Type: 1}}},
				{Kind: KindArray, Dims: []uint32{1 << 31, 1 << 31, 4}, Elem: 2},
				{Kind: KindInt8},
			},
			want: "has more than 4294967295 elements",
		},
		{
			name: "duplicate member id",
			nodes: []Node{
				{Kind: KindStruct, Name: "S", Members: []Member{{Name: "a", ID: 3, Type: 1}, {Name: "b", ID: 3, Type: 1}}},
				{Kind: KindInt8},
			},
			want: "duplicate member id",
		},
		{
			name: "sequence of sequence key",
			nodes: []Node{
				{Kind: KindStruct, Name: "K", Members: []Member{{Name: "k", Key: true, Type: 1}}},
				{Kind: KindSequence, Elem: 2},
				{Kind: KindSequence, Elem: 3},
				{Kind: KindInt8},
			},
			want: "sequence of sequence",
		},
		{
			name: "union key",
			nodes: []Node{
				{Kind: KindStruct, Name: "K", Members: []Member{{Name: "k", Key: true, Type: 1}}},
				{Kind: KindUnion, Name: "U", Disc: 2, Cases: []Case{{Labels: []int64{1}, Name: "a", Type: 2}}},
				{Kind: KindInt32},
			},
			want: "cannot be part of a key",
		},
		{
			name: "optional key",
			nodes: []Node{
				{Kind: KindStruct, Name: "K", Members: []Member{{Name: "k", Key: true, Optional: true, Type: 1}}},
				{Kind: KindInt32},
			},
			want: "cannot be optional",
		},
		{
			name: "two defaults",
			nodes: []Node{
				{Kind: KindUnion, Name: "U", Disc: 1, Cases: []Case{
					{Default: true, Name: "a", Type: 1},
					{Default: true, Name: "b", Type: 1},
				}},
				{Kind: KindInt32},
			},
			want: "more than one default",
		},
		{
			name: "mutable union",
			nodes: []Node{
				{Kind: KindUnion, Name: "U", Ext: Mutable, Disc: 1, Cases: []Case{{Labels: []int64{1}, Name: "a", Type: 1}}},
				{Kind: KindInt32},
			},
			want: "mutable unions",
		},
		{
			name: "float discriminator",
			nodes: []Node{
				{Kind: KindUnion, Name: "U", Disc: 1, Cases: []Case{{Labels: []int64{1}, Name: "a", Type: 1}}},
				{Kind: KindFloat32},
			},
			want: "invalid discriminator",
		},
		{
			name: "label out of range",
			nodes: []Node{
				{Kind: KindUnion, Name: "U", Disc: 1, Cases: []Case{{Labels: []int64{300}, Name: "a", Type: 1}}},
				{Kind: KindOctet},
			},
			want: "out of range",
		},
		{
			name: "dangling reference",
			nodes: []Node{
				{Kind: KindStruct, Name: "S", Members: []Member{{Name: "a", Type: 7}}},
			},
			want: "out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.nodes)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestArrayCount(t *testing.T) {
	tests := []struct {
		dims []uint32
		want uint64
		ok   bool
	}{
		{[]uint32{3}, 3, true},
		{[]uint32{2, 3, 4}, 24, true},
		{[]uint32{65535, 65537}, 4294967295, true},
		{[]uint32{65536, 65536}, 0, false},
		{[]uint32{1 << 31, 1 << 31, 4}, 0, false},
	}
	for _, tt := range tests {
		got, ok := ArrayCount(tt.dims)
		assert.Equal(t, tt.ok, ok, "%v", tt.dims)
		assert.Equal(t, tt.want, got, "%v", tt.dims)
	}
}

func TestLargeArrayMinSizeSaturates(t *testing.T) {
	d, err := New([]Node{
		{Kind: KindStruct, Name: "Big", Members: []Member{{Name: "grid", Type: 1}, {Name: "more", Type: 1}}},
		{Kind: KindArray, Dims: []uint32{65535, 65535}, Elem: 2},
		{Kind: KindInt64},
	})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, d.Root().MinSize)
	assert.Equal(t, uint64(65535*65535), d.Node(1).Count())
}

func TestRecursionThroughSequence(t *testing.T) {
	d, err := New([]Node{
		{Kind: KindStruct, Name: "Tree", Members: []Member{
			{Name: "value", Type: 1},
			{Name: "children", ID: 1, Type: 2},
			{Name: "parent", ID: 2, Optional: true, Type: 0},
		}},
		{Kind: KindInt64},
		{Kind: KindSequence, Elem: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, d.Root().Align)
	assert.Equal(t, 8+4+1, d.Root().MinSize)
}

func TestMutableKeyOrder(t *testing.T) {
	d, err := New([]Node{
		{Kind: KindStruct, Name: "M", Ext: Mutable, Members: []Member{
			{Name: "b", ID: 20, Key: true, Type: 1},
			{Name: "x", ID: 5, Type: 1},
			{Name: "a", ID: 10, Key: true, Type: 1},
		}},
		{Kind: KindInt32},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, d.Root().KeyMembers())

	i, ok := d.Root().MemberByID(5)
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, 4, d.Root().MinSize)
}

func TestKeyFitsHash(t *testing.T) {
	tests := []struct {
		name string
		key  []Node
		want bool
	}{
		{"four longs", []Node{{Kind: KindArray, Dims: []uint32{4}, Elem: 2}, {Kind: KindInt32}}, true},
		{"octet then long long", []Node{{Kind: KindStruct, Name: "P", Members: []Member{
			{Name: "a", Type: 2}, {Name: "b", ID: 1, Type: 3}, {Name: "c", ID: 2, Type: 3},
		}}, {Kind: KindOctet}, {Kind: KindInt64}}, false},
		{"unbounded string", []Node{{Kind: KindString}}, false},
		{"short bounded string", []Node{{Kind: KindString, Bound: 8}}, true},
		{"long bounded string", []Node{{Kind: KindString, Bound: 12}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := append([]Node{
				{Kind: KindStruct, Name: "K", Members: []Member{{Name: "k", Key: true, Type: 1}}},
			}, tt.key...)
			d, err := New(nodes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.KeyFitsHash())
		})
	}
}

func TestUnionLookup(t *testing.T) {
	d, err := New([]Node{
		{Kind: KindUnion, Name: "U", Disc: 1, Cases: []Case{
			{Labels: []int64{1, 2}, Name: "a", Type: 1},
			{Default: true, Name: "b", Type: 2},
		}},
		{Kind: KindInt32},
		{Kind: KindString},
	})
	require.NoError(t, err)
	u := d.Root()
	assert.Equal(t, 0, u.CaseFor(2))
	assert.Equal(t, 1, u.CaseFor(99))
}

func TestCanonicalStringEscaping(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCanonicalString(&buf, "<a&b> \\u2028"))
	assert.Equal(t, "\"<a&b> \\\\u2028\"", buf.String())

	buf.Reset()
	require.NoError(t, writeCanonicalString(&buf, "x\u2028y"))
	assert.Equal(t, "\"x\u2028y\"", buf.String())
}

func TestCompareKeysRFC8785(t *testing.T) {
	// U+E000 sorts after a surrogate pair in UTF-16 but before it in UTF-8.
	assert.Negative(t, compareKeysRFC8785("\U0001F600", "\uE000"))
	assert.Negative(t, compareKeysRFC8785("a", "ab"))
	assert.Zero(t, compareKeysRFC8785("x", "x"))
}
