package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invalidCUE = `package idl

modules: demo: struct: Bad: {
	members: [
		{name: "x", type: "long"},
		{name: "x", type: "short"},
		{name: "p", type: "nowhere::P"},
	]
}
`

func TestValidateValidIDL(t *testing.T) {
	out, err := execute(t, "validate", writeIDL(t, keyedCUE))
	require.NoError(t, err)
	assert.Equal(t, "✓ 1 type(s) valid\n", out)
}

func TestValidateValidIDLJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", writeIDL(t, keyedCUE))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Types)
	assert.Equal(t, "demo::Keyed", resp.Data.Topic)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, "validate", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateInvalidIDL(t *testing.T) {
	out, err := execute(t, "validate", writeIDL(t, invalidCUE))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E205: demo::Bad.x:")
	assert.Contains(t, out, "E302: demo::Bad: unresolved type reference nowhere::P")
}

func TestValidateInvalidIDLJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", writeIDL(t, invalidCUE))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 2)
	assert.Equal(t, "E205", resp.Data.Errors[0].Code)
	assert.Equal(t, "x", resp.Data.Errors[0].Field)
	assert.Equal(t, "E302", resp.Data.Errors[1].Code)
	assert.Positive(t, resp.Data.Errors[1].Line)
	assert.Equal(t, "E205", resp.Error.Code)
}

func TestValidateVerboseOutput(t *testing.T) {
	dir := writeIDL(t, keyedCUE)

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--verbose", "validate", dir})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, errOut.String(), "Found 1 CUE file(s)")
	assert.Equal(t, "✓ 1 type(s) valid\n", out.String())
}
