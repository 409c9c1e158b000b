package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/cdrgen/internal/compiler"
	"github.com/roach88/cdrgen/internal/generator"
)

// Diagnostic is one problem found in the IDL documents.
type Diagnostic struct {
	Code    string `json:"code"`
	Type    string `json:"type,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Types  int          `json:"types"`
	Topic  string       `json:"topic,omitempty"`
	Errors []Diagnostic `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <idl-dir>",
		Short: "Check IDL documents without generating",
		Long: `Compile the CUE IDL documents in a directory and report every type
error and unresolved reference at once, without generating output.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, idlDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	c, res, err := loadIDL(idlDir, opts.Logger(cmd.ErrOrStderr()))
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		// Nothing was compiled; this is a command error (exit code 2)
		return formatter.Fail(err)
	}
	if res != nil {
		formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, idlDir)
	}

	diags := collectDiagnostics(c)
	if len(diags) > 0 {
		return outputValidationErrors(formatter, diags)
	}

	result := ValidationResult{Valid: true, Types: len(c.Types()), Topic: c.Topic}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d type(s) valid\n", result.Types)
	return nil
}

// collectDiagnostics lists the type errors of c followed by its
// unresolved references.
func collectDiagnostics(c *compiler.Context) []Diagnostic {
	var diags []Diagnostic
	for _, err := range c.Diagnostics() {
		var te *compiler.TypeError
		if !errors.As(err, &te) {
			diags = append(diags, Diagnostic{Code: ErrCodeGeneric, Message: err.Error()})
			continue
		}
		d := Diagnostic{Code: te.Code, Type: te.Type, Field: te.Field, Message: te.Message}
		if te.Pos.IsValid() {
			d.File = te.Pos.Filename()
			d.Line = te.Pos.Line()
		}
		diags = append(diags, d)
	}
	for _, u := range c.Unresolved() {
		d := Diagnostic{
			Code:    generator.ErrCodeUnresolved,
			Type:    u.From,
			Message: fmt.Sprintf("unresolved type reference %s", u.Name),
		}
		if u.Pos.IsValid() {
			d.File = u.Pos.Filename()
			d.Line = u.Pos.Line()
		}
		diags = append(diags, d)
	}
	return diags
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, diags []Diagnostic) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: diags},
			Error: &CLIError{
				Code:    diags[0].Code,
				Message: diags[0].Message,
			},
		}
		if err := formatter.encodeJSON(response); err != nil {
			return err
		}
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(diags)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, d := range diags {
		if d.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", d.File, d.Line)
		}
		subject := d.Type
		if d.Field != "" {
			subject += "." + d.Field
		}
		if subject != "" {
			subject += ": "
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s%s\n\n", d.Code, subject, d.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(diags)))
}
