package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"go.uber.org/multierr"

	"github.com/roach88/cdrgen/cdr"
	"github.com/roach88/cdrgen/internal/compiler"
	"github.com/roach88/cdrgen/internal/generator"
	"github.com/roach88/cdrgen/internal/naming"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Type errors, codec failures, failed scenarios
	ExitCommandError = 2 // Command error (invalid paths, unreadable config, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E302", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
	Hint    string `json:"hint,omitempty"`
}

func newFormatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: errOut, // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encodeJSON(CLIResponse{Status: "ok", Data: data})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format. A []string of details
// is always listed; other details only in verbose mode.
func (f *OutputFormatter) Error(code, message string, details any) error {
	return f.errorWithHint(code, message, details, "")
}

func (f *OutputFormatter) errorWithHint(code, message string, details any, hint string) error {
	if f.Format == "json" {
		return f.encodeJSON(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
				Hint:    hint,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	switch d := details.(type) {
	case nil:
	case []string:
		for _, line := range d {
			fmt.Fprintf(f.Writer, "  %s\n", line)
		}
	default:
		if f.Verbose {
			fmt.Fprintf(f.Writer, "Details: %v\n", details)
		}
	}
	if hint != "" {
		fmt.Fprintf(f.Writer, "Hint: %s\n", hint)
	}
	return nil
}

func (f *OutputFormatter) encodeJSON(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Fail reports err in the configured format and returns the ExitError the
// command should return.
func (f *OutputFormatter) Fail(err error) error {
	code, exit, message, details := classify(err)
	_ = f.errorWithHint(code, message, details, errors.FlattenHints(err))
	return WrapExitError(exit, code, err)
}

// classify maps an error from the compiler, generator or codec to its
// code, exit code, message and per-item details.
func classify(err error) (code string, exit int, message string, details []string) {
	var (
		exitErr     *ExitError
		inputErr    *InputError
		loadErr     *compiler.LoadError
		genErr      *generator.GenerationError
		conflictErr *naming.NameConflictError
		typeErr     *compiler.TypeError
	)
	switch {
	case errors.As(err, &exitErr):
		code = ErrCodeGeneric
		if exitErr.Err != nil {
			code, _, _, details = classify(exitErr.Err)
		}
		return code, exitErr.Code, exitErr.Error(), details
	case errors.As(err, &inputErr):
		return ErrCodeBadInput, ExitCommandError, inputErr.Error(), nil
	case errors.As(err, &loadErr):
		return loadErr.Code, ExitCommandError, loadErr.Error(), nil
	case errors.As(err, &genErr):
		return genErr.Code, ExitFailure, genErr.Message, genErr.Details
	case errors.As(err, &conflictErr):
		return naming.ErrCodeNameConflict, ExitFailure, conflictErr.Error(), conflictErr.Paths
	case errors.As(err, &typeErr):
		errs := multierr.Errors(err)
		if len(errs) == 1 {
			return typeErr.Code, ExitFailure, typeErr.Error(), nil
		}
		for _, e := range errs {
			details = append(details, e.Error())
		}
		return typeErr.Code, ExitFailure, fmt.Sprintf("%d type error(s)", len(errs)), details
	}
	if c := cdr.Code(err); c != "" {
		return string(c), ExitFailure, err.Error(), nil
	}
	return ErrCodeGeneric, ExitFailure, err.Error(), nil
}
