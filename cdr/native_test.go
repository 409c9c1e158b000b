package cdr

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cdrgen/value"
)

const richYAML = `
flag: true
c: x
o: 255
i8: -8
u8: 200
i16: -1234
u16: 65000
i32: -70000
u32: 4000000000
i64: -1099511627776
u64: 9223372036854775808
f32: 1.5
f64: -2.25e10
s: hello
color: GREEN
points: [{x: 1, y: 0.5}, {x: -1, y: 2}]
grid: [[1, 2, 3], [4, 5, 6]]
choice: {s: three}
names: [a, "", ccc]
`

func TestFromNativeYAML(t *testing.T) {
	d := rich(t)
	var tree any
	require.NoError(t, yaml.Unmarshal([]byte(richYAML), &tree))

	got, err := FromNative(d, tree)
	require.NoError(t, err)
	requireValue(t, richValue(value.Union{Disc: 2, Value: value.String("three")}), got)
}

func TestNativeJSONRoundTrip(t *testing.T) {
	d := rich(t)
	want := richValue(value.Union{Disc: 42, Value: value.Uint(9)})

	native, err := ToNative(d, want)
	require.NoError(t, err)
	data, err := json.Marshal(native)
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	require.NoError(t, dec.Decode(&tree))

	got, err := FromNative(d, tree)
	require.NoError(t, err)
	requireValue(t, want, got)
}

func TestFromNativeDefaultsAndErrors(t *testing.T) {
	d := keyed(t)

	got, err := FromNative(d, map[string]any{"id": 7})
	require.NoError(t, err)
	requireValue(t, value.Struct{value.Int(7), value.String("")}, got)

	_, err = FromNative(d, map[string]any{"id": 7, "nope": 1})
	assert.ErrorContains(t, err, `unknown member "nope"`)

	_, err = FromNative(d, map[string]any{"id": 1.5})
	assert.ErrorContains(t, err, "T.id")

	_, err = FromNative(d, []any{})
	assert.Error(t, err)
}

func TestFromNativeUnionDiscriminator(t *testing.T) {
	d := rich(t)
	var tree map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(richYAML), &tree))

	tree["choice"] = map[string]any{DiscKey: 3, "s": "x"}
	got, err := FromNative(d, tree)
	require.NoError(t, err)
	assert.Equal(t, value.Union{Disc: 3, Value: value.String("x")}, got.(value.Struct)[17])

	tree["choice"] = map[string]any{DiscKey: 1, "s": "x"}
	_, err = FromNative(d, tree)
	assert.ErrorContains(t, err, "does not select")

	tree["choice"] = map[string]any{"o": 1}
	_, err = FromNative(d, tree)
	assert.ErrorContains(t, err, "needs")
}
