package generator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// holderRoundTrip is compiled together with the code generated for
// holderIDL. It checks that ToValue lays fields out in member order and
// that samples survive both byte orders.
const holderRoundTrip = `package holder

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/cdrgen/cdr"
	"github.com/roach88/cdrgen/sertype"
	"github.com/roach88/cdrgen/value"
)

func sample() Holder {
	return Holder{
		ID:    7,
		Color: ColorBlue,
		Shape: Shape{Disc: ColorBlue, Side: [2]int32{3, -4}},
		Name:  "holder",
		Grid:  [2][3]int16{{1, 2, 3}, {-4, -5, -6}},
		Tags:  []string{"a", "bb"},
		Tree: &Tree{Children: []Tree{
			{Leaf: true},
			{Children: []Tree{{}}},
		}},
		UnusedOctet: 0xfe,
	}
}

func TestToValueIsPositional(t *testing.T) {
	in := sample()
	leaf := value.Struct{value.Seq{}, value.Bool(true)}
	empty := value.Struct{value.Seq{}, value.Bool(false)}
	want := value.Struct{
		value.Uint(7),
		value.Int(10),
		value.Union{Disc: 10, Value: value.Seq{value.Int(3), value.Int(-4)}},
		value.String("holder"),
		value.Seq{
			value.Seq{value.Int(1), value.Int(2), value.Int(3)},
			value.Seq{value.Int(-4), value.Int(-5), value.Int(-6)},
		},
		value.Seq{value.String("a"), value.String("bb")},
		value.Struct{value.Seq{leaf, value.Struct{value.Seq{empty}, value.Bool(false)}}, value.Bool(false)},
		value.Uint(0xfe),
	}
	if got := in.ToValue(); !value.Equal(got, want) {
		t.Fatalf("ToValue() = %s, want %s", value.Format(got), value.Format(want))
	}
}

func TestRoundTrip(t *testing.T) {
	for _, opts := range [][]cdr.Option{nil, {cdr.WithBigEndian()}} {
		in := sample()
		buf, err := sertype.SerializeSample(&in, opts...)
		if err != nil {
			t.Fatalf("SerializeSample: %v", err)
		}
		var out Holder
		if err := sertype.DeserializeInto(&out, buf.Bytes()); err != nil {
			t.Fatalf("DeserializeInto: %v", err)
		}
		if diff := cmp.Diff(in, out, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("round trip mismatch (-in +out):\n%s", diff)
		}
	}

	var absent Holder
	buf, err := sertype.SerializeSample(&absent)
	if err != nil {
		t.Fatalf("SerializeSample: %v", err)
	}
	var out Holder
	if err := sertype.DeserializeInto(&out, buf.Bytes()); err != nil {
		t.Fatalf("DeserializeInto: %v", err)
	}
	if out.Tree != nil {
		t.Errorf("absent optional decoded as %+v", out.Tree)
	}
}
`

// TestGeneratedCodeBuilds writes the generated package into the module and
// runs its tests with the go tool.
func TestGeneratedCodeBuilds(t *testing.T) {
	if testing.Short() {
		t.Skip("builds generated code")
	}
	goTool, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go tool not found")
	}

	out := generate(t, holderIDL, Options{Package: "holder"})

	// The package must live inside the module to import it.
	parent, err := os.MkdirTemp(".", "generated")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(parent) })
	dir := filepath.Join(parent, "holder")

	require.NoError(t, New(Options{}).Write(context.Background(), out, dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "holder_test.go"), []byte(holderRoundTrip), 0644))

	cmd := exec.CommandContext(t.Context(), goTool, "test", "-count=1", "./"+filepath.ToSlash(dir))
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "go test of generated code:\n%s", output)
}
