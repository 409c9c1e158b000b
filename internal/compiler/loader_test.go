package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.cue"), []byte(`
package idl

modules: demo: struct: Keyed: {
	members: [
		{name: "id", type: "long", key: true},
		{name: "name", type: "string<128>"},
	]
}
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "topic.cue"), []byte(`
package idl

topic: "demo::Keyed"
`), 0644))

	c := NewContext()
	res, err := LoadDir(c, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.FileCount)
	assert.Equal(t, "demo::Keyed", c.Topic)
	_, ok := c.Lookup("demo::Keyed")
	assert.True(t, ok)
}

func TestLoadDirErrors(t *testing.T) {
	c := NewContext()

	_, err := LoadDir(c, filepath.Join(t.TempDir(), "missing"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)

	_, err = LoadDir(c, t.TempDir())
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNoFiles, le.Code)

	file := filepath.Join(t.TempDir(), "x.cue")
	require.NoError(t, os.WriteFile(file, []byte("package idl\n"), 0644))
	_, err = LoadDir(c, file)
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestLoadDirReturnsTypeErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(`
package idl

modules: m: struct: S: {members: [{name: "s", type: "string<0>"}]}
`), 0644))

	_, err := LoadDir(NewContext(), dir)
	require.Error(t, err)
	assert.True(t, IsTypeError(err))
	assert.Contains(t, err.Error(), "bad.cue")
}
