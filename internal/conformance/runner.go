package conformance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cdrgen/cdr"
	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/internal/compiler"
	"github.com/roach88/cdrgen/internal/generator"
	"github.com/roach88/cdrgen/value"
)

// Runner executes scenarios.
type Runner struct {
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for per-case diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a scenario with a default Runner.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	return NewRunner().Run(ctx, s)
}

// Run compiles the scenario's IDL and executes its cases. The error is
// non-nil only when the type under test cannot be built; case failures are
// reported in the Result.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	d, err := r.describe(s)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	result := NewResult(s.Name)
	result.Type = d.Name()
	result.TypeID = d.TypeID()
	for _, c := range s.Cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cr, err := r.runCase(d, &c)
		if err != nil {
			result.AddError(fmt.Sprintf("%s: %v", c.Name, err))
		}
		result.Cases = append(result.Cases, cr)
		r.logger.Debug("ran case", "scenario", s.Name, "case", c.Name, "error", cr.Error)
	}
	return result, nil
}

func (r *Runner) describe(s *Scenario) (*descriptor.Descriptor, error) {
	c := compiler.NewContext(compiler.WithLogger(r.logger))
	if s.IDL != "" {
		if err := compiler.CompileSource(c, s.Name+".cue", s.IDL); err != nil {
			return nil, err
		}
	} else if _, err := compiler.LoadDir(c, s.IDLDir); err != nil {
		return nil, err
	}
	return generator.New(generator.Options{Logger: r.logger}).Describe(c, s.Type)
}

// runCase fills in what the case produced and returns the first unmet
// expectation.
func (r *Runner) runCase(d *descriptor.Descriptor, c *Case) (CaseResult, error) {
	cr := CaseResult{Name: c.Name}

	var got value.Value
	var err error
	if c.Hex != "" {
		got, err = r.decodeCase(d, c, &cr)
	} else {
		got, err = r.encodeCase(d, c, &cr)
	}
	if err != nil {
		if code := cdr.Code(err); code != "" {
			cr.Error = string(code)
			return cr, checkError(c.Expect.Error, code, err)
		}
		return cr, err
	}
	if c.Expect.Error != "" {
		return cr, fmt.Errorf("expected error %s, got none", c.Expect.Error)
	}
	cr.Value = value.Format(got)

	if d.Keyed() {
		key, err := cdr.KeyOf(d, got)
		if err != nil {
			return cr, fmt.Errorf("key: %w", err)
		}
		hash, err := cdr.KeyHash(d, got)
		if err != nil {
			return cr, fmt.Errorf("key hash: %w", err)
		}
		cr.Key = FormatHex(key)
		cr.KeyHash = FormatHex(hash[:])
	}

	for _, check := range []struct{ field, want, got string }{
		{"bytes", c.Expect.Bytes, cr.Bytes},
		{"key", c.Expect.Key, cr.Key},
		{"keyhash", c.Expect.KeyHash, cr.KeyHash},
	} {
		if err := checkHex(check.field, check.want, check.got); err != nil {
			return cr, err
		}
	}
	if c.Expect.Sample != nil {
		want, err := cdr.FromNative(d, c.Expect.Sample)
		if err != nil {
			return cr, fmt.Errorf("expect.sample: %w", err)
		}
		if !value.Equal(got, want) {
			return cr, fmt.Errorf("decoded %s, want %s", cr.Value, value.Format(want))
		}
	}
	return cr, nil
}

func (r *Runner) encodeCase(d *descriptor.Descriptor, c *Case, cr *CaseResult) (value.Value, error) {
	v, err := cdr.FromNative(d, c.Sample)
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}
	var opts []cdr.Option
	if c.BigEndian {
		opts = append(opts, cdr.WithBigEndian())
	}
	if c.XCDR != 0 {
		opts = append(opts, cdr.WithVersion(cdr.Version(c.XCDR)))
	}
	data, err := cdr.Encode(d, v, opts...)
	if err != nil {
		return nil, err
	}
	cr.Bytes = FormatHex(data)

	back, err := cdr.Decode(d, data)
	if err != nil {
		return nil, fmt.Errorf("decoding own output: %w", err)
	}
	if !value.Equal(back, v) {
		return nil, fmt.Errorf("round trip changed %s into %s", value.Format(v), value.Format(back))
	}
	return back, nil
}

func (r *Runner) decodeCase(d *descriptor.Descriptor, c *Case, cr *CaseResult) (value.Value, error) {
	data, err := ParseHex(c.Hex)
	if err != nil {
		return nil, fmt.Errorf("hex: %w", err)
	}
	cr.Bytes = FormatHex(data)
	return cdr.Decode(d, data)
}

func checkError(want string, got cdr.ErrorCode, err error) error {
	switch {
	case want == "":
		return err
	case want != string(got):
		return fmt.Errorf("expected error %s, got %w", want, err)
	}
	return nil
}

func checkHex(field, want, got string) error {
	if want == "" {
		return nil
	}
	b, err := ParseHex(want)
	if err != nil {
		return fmt.Errorf("expect.%s: %w", field, err)
	}
	if w := FormatHex(b); w != got {
		return fmt.Errorf("%s:\n  got  %s\n  want %s", field, got, w)
	}
	return nil
}
