package conformance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotOmitsEmptyFields(t *testing.T) {
	r := NewResult("s")
	r.Type = "demo::T"
	r.TypeID = "ignored"
	r.Cases = []CaseResult{
		{Name: "a", Bytes: "00 01", Value: "{1}"},
		{Name: "b", Error: "E410"},
	}
	r.AddError("not in the snapshot")

	want := "scenario: s\n" +
		"type: demo::T\n" +
		"case a\n" +
		"  bytes: 00 01\n" +
		"  value: {1}\n" +
		"case b\n" +
		"  error: E410\n"
	assert.Equal(t, want, string(Snapshot(r)))
}

func TestGoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	path := GoldenPath(dir, "keyed")
	assert.Equal(t, filepath.Join(dir, "golden", "keyed.golden"), path)

	err := CompareGolden(path, []byte("x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read golden file")

	require.NoError(t, UpdateGolden(path, []byte("x\n")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))

	assert.NoError(t, CompareGolden(path, []byte("x\n")))
	err = CompareGolden(path, []byte("y\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot differs")
}
