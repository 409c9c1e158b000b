package cdr

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/value"
)

func TestConcreteScenario(t *testing.T) {
	d := keyed(t)
	v := value.Struct{value.Int(42), value.String("abc")}

	data, err := Encode(d, v)
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 01 00 00 2a 00 00 00 04 00 00 00 61 62 63 00"), data)

	got, err := Decode(d, data)
	require.NoError(t, err)
	requireValue(t, v, got)

	key, err := KeyOf(d, v)
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 00 00 2a"), key)

	other, err := KeyOf(d, value.Struct{value.Int(42), value.String("something else")})
	require.NoError(t, err)
	assert.Equal(t, key, other)
}

func TestEncodeBigEndian(t *testing.T) {
	d := keyed(t)
	v := value.Struct{value.Int(42), value.String("abc")}

	data, err := Encode(d, v, WithBigEndian())
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 00 00 00 00 00 00 2a 00 00 00 04 61 62 63 00"), data)

	got, err := Decode(d, data)
	require.NoError(t, err)
	requireValue(t, v, got)
}

func TestEncodeForcedXCDR2(t *testing.T) {
	d := keyed(t)
	data, err := Encode(d, value.Struct{value.Int(42), value.String("abc")}, WithVersion(XCDR2))
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 07 00 00 2a 00 00 00 04 00 00 00 61 62 63 00"), data)
}

func TestAlignment(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "A", Members: []descriptor.Member{
			{Name: "a", ID: 0, Type: 1},
			{Name: "b", ID: 1, Type: 2},
		}},
		descriptor.Node{Kind: descriptor.KindOctet},
		descriptor.Node{Kind: descriptor.KindFloat64},
	)
	v := value.Struct{value.Uint(1), value.Float(1)}

	v1, err := Encode(d, v)
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 01 00 00  01 00 00 00 00 00 00 00  00 00 00 00 00 00 f0 3f"), v1,
		"XCDR1 aligns doubles to 8")

	v2, err := Encode(d, v, WithVersion(XCDR2))
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 07 00 00  01 00 00 00  00 00 00 00 00 00 f0 3f"), v2,
		"XCDR2 caps alignment at 4")

	for _, data := range [][]byte{v1, v2} {
		got, err := Decode(d, data)
		require.NoError(t, err)
		requireValue(t, v, got)
	}
}

func TestTrailingPadding(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "P", Members: []descriptor.Member{
			{Name: "a", ID: 0, Type: 1},
			{Name: "b", ID: 1, Type: 2},
		}},
		descriptor.Node{Kind: descriptor.KindInt32},
		descriptor.Node{Kind: descriptor.KindOctet},
	)
	v := value.Struct{value.Int(7), value.Uint(9)}

	data, err := Encode(d, v)
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 01 00 03  07 00 00 00  09 00 00 00"), data)

	got, err := Decode(d, data)
	require.NoError(t, err)
	requireValue(t, v, got)

	// padding bits left unset by the writer
	got, err = Decode(d, hexBytes(t, "00 01 00 00  07 00 00 00  09 00 00 00"))
	require.NoError(t, err)
	requireValue(t, v, got)
}

func TestRoundTripBothByteOrders(t *testing.T) {
	d := rich(t)
	choices := []value.Union{
		{Disc: 1, Value: value.Int(-5)},
		{Disc: 3, Value: value.String("three")},
		{Disc: 42, Value: value.Uint(7)},
	}
	for _, choice := range choices {
		v := richValue(choice)
		for _, opts := range [][]Option{
			nil,
			{WithBigEndian()},
			{WithVersion(XCDR2)},
			{WithVersion(XCDR2), WithBigEndian()},
		} {
			data, err := Encode(d, v, opts...)
			require.NoError(t, err)
			assert.Zero(t, (len(data)-HeaderSize)%4, "payload is padded to 4")

			got, err := Decode(d, data)
			require.NoError(t, err)
			requireValue(t, v, got)
		}
	}
}

func TestByteOrderIsTheOnlyDifference(t *testing.T) {
	d := keyed(t)
	v := value.Struct{value.Int(0x01020304), value.String("")}

	le, err := Encode(d, v)
	require.NoError(t, err)
	be, err := Encode(d, v, WithBigEndian())
	require.NoError(t, err)

	assert.Equal(t, hexBytes(t, "01 02 03 04"), be[4:8])
	assert.Equal(t, hexBytes(t, "04 03 02 01"), le[4:8])

	fromLE, err := Decode(d, le)
	require.NoError(t, err)
	fromBE, err := Decode(d, be)
	require.NoError(t, err)
	requireValue(t, fromLE, fromBE)
}

func TestBoundEnforcement(t *testing.T) {
	d := keyed(t)

	_, err := Encode(d, value.Struct{value.Int(1), value.String(strings.Repeat("x", 129))})
	require.Error(t, err)
	assert.True(t, IsEncodeError(err))
	assert.Equal(t, ErrCodeBound, Code(err))
	assert.Contains(t, err.Error(), "T.name")

	_, err = Encode(d, value.Struct{value.Int(1), value.String(strings.Repeat("x", 128))})
	require.NoError(t, err)

	// declared length 200 exceeds the bound; only 4 payload bytes follow
	_, err = Decode(d, hexBytes(t, "00 01 00 00  01 00 00 00  c8 00 00 00  61 62 63 00"))
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
	assert.Equal(t, ErrCodeBound, Code(err))
}

func TestSequenceBound(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "S", Members: []descriptor.Member{
			{Name: "xs", ID: 0, Type: 1},
		}},
		descriptor.Node{Kind: descriptor.KindSequence, Bound: 2, Elem: 2},
		descriptor.Node{Kind: descriptor.KindInt16},
	)
	_, err := Encode(d, value.Struct{value.Seq{value.Int(1), value.Int(2), value.Int(3)}})
	assert.Equal(t, ErrCodeBound, Code(err))

	_, err = Decode(d, hexBytes(t, "00 01 00 00  03 00 00 00  01 00 02 00 03 00 00 00"))
	assert.Equal(t, ErrCodeBound, Code(err))
}

func TestHugeCountRejectedBeforeAllocation(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "S", Members: []descriptor.Member{
			{Name: "xs", ID: 0, Type: 1},
		}},
		descriptor.Node{Kind: descriptor.KindSequence, Elem: 2},
		descriptor.Node{Kind: descriptor.KindInt64},
	)
	_, err := Decode(d, hexBytes(t, "00 01 00 00  ff ff ff ff  00 00 00 00"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeTruncated, Code(err))

	_, err = Decode(d, hexBytes(t, "00 01 00 00  ff ff ff ff"))
	assert.Equal(t, ErrCodeTruncated, Code(err))
}

func TestHugeArrayRejectedBeforeAllocation(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "S", Members: []descriptor.Member{
			{Name: "grid", ID: 0, Type: 1},
		}},
		descriptor.Node{Kind: descriptor.KindArray, Dims: []uint32{65535, 65535}, Elem: 2},
		descriptor.Node{Kind: descriptor.KindInt8},
	)
	_, err := Decode(d, hexBytes(t, "00 01 00 00  01 02 03 04  05 06 07 08"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeTruncated, Code(err))

	_, err = Encode(d, value.Struct{value.Seq{}})
	require.Error(t, err)
}

func TestFinalMismatch(t *testing.T) {
	d := keyed(t)

	_, err := Decode(d, hexBytes(t, "00 01 00 00  2a 00 00 00"))
	require.Error(t, err)
	assert.True(t, IsSchemaMismatch(err), "ending at a member boundary: %v", err)

	_, err = Decode(d, hexBytes(t, "00 01 00 00  2a 00 00 00  04 00 00 00 61 62 63 00  01 02 03 04"))
	require.Error(t, err)
	assert.True(t, IsSchemaMismatch(err), "trailing bytes: %v", err)

	_, err = Decode(d, hexBytes(t, "00 01 00 00  2a 00 00 00  04 00 00 00 61 62"))
	require.Error(t, err)
	assert.True(t, IsDecodeError(err), "ending inside a member: %v", err)
	assert.Equal(t, ErrCodeTruncated, Code(err))
}

func TestMalformedInput(t *testing.T) {
	d := rich(t)
	good, err := Encode(d, richValue(value.Union{Disc: 1, Value: value.Int(0)}))
	require.NoError(t, err)

	t.Run("bool", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[HeaderSize] = 2
		_, err := Decode(d, bad)
		assert.Equal(t, ErrCodeInvalid, Code(err))
	})

	t.Run("header only", func(t *testing.T) {
		_, err := Decode(d, good[:2])
		assert.Equal(t, ErrCodeTruncated, Code(err))
	})

	t.Run("parameter list cdr", func(t *testing.T) {
		_, err := Decode(d, hexBytes(t, "00 03 00 00 00 00 00 00"))
		assert.Equal(t, ErrCodeUnsupported, Code(err))
	})

	t.Run("every truncation fails cleanly", func(t *testing.T) {
		for n := HeaderSize; n < len(good); n++ {
			_, err := Decode(d, good[:n])
			assert.Error(t, err, "length %d", n)
		}
	})
}

func TestStringTerminator(t *testing.T) {
	d := keyed(t)
	_, err := Decode(d, hexBytes(t, "00 01 00 00  2a 00 00 00  04 00 00 00 61 62 63 64"))
	assert.Equal(t, ErrCodeInvalid, Code(err))

	// zero length is read as an empty string
	got, err := Decode(d, hexBytes(t, "00 01 00 00  2a 00 00 00  00 00 00 00"))
	require.NoError(t, err)
	requireValue(t, value.Struct{value.Int(42), value.String("")}, got)
}

func TestEnumValidation(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindStruct, Name: "E", Members: []descriptor.Member{
			{Name: "c", ID: 0, Type: 1},
		}},
		descriptor.Node{Kind: descriptor.KindEnum, Name: "Color", Enumerators: []descriptor.Enumerator{
			{Name: "RED", Value: 0}, {Name: "GREEN", Value: 1},
		}},
	)
	_, err := Encode(d, value.Struct{value.Int(3)})
	assert.Equal(t, ErrCodeValue, Code(err))

	_, err = Decode(d, hexBytes(t, "00 01 00 00  03 00 00 00"))
	assert.Equal(t, ErrCodeInvalid, Code(err))
}

func TestEncodeRejectsMismatchedValues(t *testing.T) {
	d := keyed(t)
	tests := []struct {
		name string
		v    value.Value
	}{
		{"not a struct", value.Seq{}},
		{"too few members", value.Struct{value.Int(1)}},
		{"wrong scalar", value.Struct{value.Uint(1), value.String("")}},
		{"overflow", value.Struct{value.Int(1 << 40), value.String("")}},
		{"embedded nul", value.Struct{value.Int(1), value.String("a\x00b")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(d, tt.v)
			require.Error(t, err)
			assert.Equal(t, ErrCodeValue, Code(err))
		})
	}
}

func TestUnionWithoutSelectedCase(t *testing.T) {
	d := mustDescriptor(t,
		descriptor.Node{Kind: descriptor.KindUnion, Name: "U", Disc: 1, Cases: []descriptor.Case{
			{Labels: []int64{1}, Name: "a", Type: 2},
		}},
		descriptor.Node{Kind: descriptor.KindInt32},
		descriptor.Node{Kind: descriptor.KindInt16},
	)
	v := value.Union{Disc: 7}
	data, err := Encode(d, v)
	require.NoError(t, err)
	assert.Equal(t, hexBytes(t, "00 01 00 00  07 00 00 00"), data)

	got, err := Decode(d, data)
	require.NoError(t, err)
	requireValue(t, v, got)

	_, err = Encode(d, value.Union{Disc: 7, Value: value.Int(1)})
	assert.Equal(t, ErrCodeValue, Code(err))
}

func TestConcurrentUse(t *testing.T) {
	d := rich(t)
	v := richValue(value.Union{Disc: 2, Value: value.String("x")})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := Encode(d, v, WithVersion(XCDR2))
			if err != nil {
				errs <- err
				return
			}
			got, err := Decode(d, data)
			if err != nil {
				errs <- err
				return
			}
			if !value.Equal(v, got) {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
