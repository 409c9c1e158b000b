package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/roach88/cdrgen/cdr"
	"github.com/roach88/cdrgen/internal/compiler"
	"github.com/roach88/cdrgen/internal/generator"
	"github.com/roach88/cdrgen/internal/naming"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E001", "IDL compilation failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "IDL compilation failed", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"file": "test.cue", "line": "42"}
	err := formatter.Error("E002", "syntax error", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("2 type(s) valid")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "2 type(s) valid")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E001", "IDL compilation failed", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "IDL compilation failed")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "test.cue"}
	err := formatter.Error("E001", "IDL compilation failed", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "test.cue")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Processing test.cue")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_TextErrorListsDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("E302", "2 unresolved type reference(s)", []string{"demo::A", "demo::B"}))
	assert.Equal(t, "Error [E302]: 2 unresolved type reference(s)\n  demo::A\n  demo::B\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "x"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestClassify(t *testing.T) {
	typeErrs := multierr.Combine(
		&compiler.TypeError{Code: compiler.ErrDuplicateMember, Type: "demo::A", Field: "x", Message: "duplicate member"},
		&compiler.TypeError{Code: compiler.ErrNonPositiveBound, Type: "demo::B", Message: "bound must be positive"},
	)

	tests := []struct {
		name    string
		err     error
		code    string
		exit    int
		details int
	}{
		{"load", &compiler.LoadError{Code: compiler.ErrCodeNotFound, Message: "IDL directory not found: x"}, "E005", ExitCommandError, 0},
		{"generation", &generator.GenerationError{Code: generator.ErrCodeUnresolved, Message: "m", Details: []string{"a", "b"}}, "E302", ExitFailure, 2},
		{"name conflict", &naming.NameConflictError{Scope: "demo", Identifier: "A", Paths: []string{"demo::a", "demo::A"}}, "E301", ExitFailure, 2},
		{"single type error", &compiler.TypeError{Code: compiler.ErrDuplicateType, Message: "m"}, "E212", ExitFailure, 0},
		{"batched type errors", typeErrs, "E205", ExitFailure, 2},
		{"codec", &cdr.EncodeError{Code: cdr.ErrCodeBound, Message: "too long"}, "E401", ExitFailure, 0},
		{"input", &InputError{What: "hex", Err: errors.New("odd length")}, ErrCodeBadInput, ExitCommandError, 0},
		{"wrapped", WrapExitError(ExitCommandError, "invalid config", &cdr.DecodeError{Code: cdr.ErrCodeTruncated}), "E410", ExitCommandError, 0},
		{"plain", errors.New("boom"), ErrCodeGeneric, ExitFailure, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit, message, details := classify(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.exit, exit)
			assert.NotEmpty(t, message)
			assert.Len(t, details, tt.details)
		})
	}
}

func TestFailPrintsHint(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail(errors.WithHint(errors.New("bad package"), "use a lower-case identifier"))
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeGeneric, resp.Error.Code)
	assert.Equal(t, "use a lower-case identifier", resp.Error.Hint)
}
