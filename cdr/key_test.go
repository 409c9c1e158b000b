package cdr

import (
	"crypto/md5"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/value"
)

func TestKeyDeterminism(t *testing.T) {
	d := keyed(t)

	a, err := KeyOf(d, value.Struct{value.Int(42), value.String("abc")})
	require.NoError(t, err)
	b, err := KeyOf(d, value.Struct{value.Int(42), value.String("xyz")})
	require.NoError(t, err)
	c, err := KeyOf(d, value.Struct{value.Int(43), value.String("abc")})
	require.NoError(t, err)

	assert.Equal(t, a, b, "non-key members must not affect the key")
	assert.NotEqual(t, a, c, "key members must affect the key")

	h, err := KeyHash(d, value.Struct{value.Int(42), value.String("abc")})
	require.NoError(t, err)
	assert.Equal(t, [KeyHashSize]byte{0, 0, 0, 42}, h)
}

func TestKeyMutableOrder(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "MK", Ext: descriptor.Mutable, Members: []descriptor.Member{
			{Name: "b", ID: 20, Key: true, Type: 1},
			{Name: "x", ID: 5, Type: 1},
			{Name: "a", ID: 10, Key: true, Type: 2},
		}},
		descriptor.Node{Kind: descriptor.KindInt32},
		descriptor.Node{Kind: descriptor.KindInt16},
	)
	key, err := KeyOf(d, value.Struct{value.Int(1), value.Int(2), value.Int(3)})
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 03 00 00  00 00 00 01"), key, "member id order, no headers")
}

func TestKeyNestedStruct(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "Outer", Members: []descriptor.Member{
			{Name: "in", Key: true, Type: 1},
			{Name: "v", ID: 1, Type: 2},
		}},
		descriptor.Node{Kind: descriptor.KindStruct, Name: "Inner", Ext: descriptor.Appendable, Members: []descriptor.Member{
			{Name: "p", Type: 2},
			{Name: "q", ID: 1, Type: 3},
		}},
		descriptor.Node{Kind: descriptor.KindInt32},
		descriptor.Node{Kind: descriptor.KindOctet},
	)
	key, err := KeyOf(d, value.Struct{value.Struct{value.Int(5), value.Uint(7)}, value.Int(99)})
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 00 00 05 07"), key, "all members of a keyless nested struct, no DHEADER")
}

func TestKeyHashDigest(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "K", Members: []descriptor.Member{
			{Name: "name", Key: true, Type: 1},
		}},
		descriptor.Node{Kind: descriptor.KindString},
	)
	v := value.Struct{value.String("abc")}

	key, err := KeyOf(d, v)
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 00 00 04 61 62 63 00"), key)

	h, err := KeyHash(d, v)
	require.NoError(t, err)
	assert.Equal(t, md5.Sum(key), h, "unbounded keys are hashed")
}

func TestKeylessType(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "N", Members: []descriptor.Member{
			{Name: "a", Type: 1},
		}},
		descriptor.Node{Kind: descriptor.KindInt32},
	)
	key, err := KeyOf(d, value.Struct{value.Int(1)})
	require.NoError(t, err)
	assert.Empty(t, key)

	h, err := KeyHash(d, value.Struct{value.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, [KeyHashSize]byte{}, h)
}

func TestKeyOfRejectsBadValue(t *testing.T) {
	_, err := KeyOf(keyed(t), value.Struct{value.String("nope"), value.String("")})
	assert.True(t, IsEncodeError(err))
}
