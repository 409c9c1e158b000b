package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cdrgen/cdr"
	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/internal/conformance"
	"github.com/roach88/cdrgen/value"
)

// CodecOptions holds flags shared by encode, decode and key.
type CodecOptions struct {
	*RootOptions
	Type   string // scoped IDL name; defaults to the topic
	Config string
	Sample string // YAML or JSON sample file, "-" for stdin
	Hex    string

	BigEndian bool
	XCDR1     bool
	XCDR2     bool
}

// EncodeResult is the output of the encode command.
type EncodeResult struct {
	Type           string `json:"type"`
	TypeID         string `json:"type_id"`
	Representation string `json:"representation"`
	Size           int    `json:"size"`
	Bytes          string `json:"bytes"`
}

// DecodeResult is the output of the decode command.
type DecodeResult struct {
	Type           string `json:"type"`
	Representation string `json:"representation"`
	Sample         any    `json:"sample"`
}

// KeyResult is the output of the key command.
type KeyResult struct {
	Type    string `json:"type"`
	Keyed   bool   `json:"keyed"`
	Key     string `json:"key"`
	KeyHash string `json:"keyhash"`
}

func addCodecFlags(cmd *cobra.Command, opts *CodecOptions) {
	cmd.Flags().StringVar(&opts.Type, "type", "", "scoped name of the struct or union (default: the IDL topic)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "naming config file (.yaml, .yml or .toml)")
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CodecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode <idl-dir>",
		Short: "Serialize a sample and print it as hex",
		Long: `Serialize a sample, written in YAML or JSON keyed by IDL member name,
and print the encoded bytes, encapsulation header included.

The encoding defaults to XCDR1 for types that are FINAL throughout with no
optional members, and XCDR2 otherwise.`,
		Example: `  cdrgen encode ./idl --type demo::Keyed --sample keyed.yaml
  cdrgen encode ./idl --sample keyed.yaml --big-endian --xcdr2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, args[0], cmd)
		},
	}

	addCodecFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Sample, "sample", "", `sample file, or "-" for stdin`)
	cmd.Flags().BoolVar(&opts.BigEndian, "big-endian", false, "encode big endian")
	cmd.Flags().BoolVar(&opts.XCDR1, "xcdr1", false, "force XCDR1")
	cmd.Flags().BoolVar(&opts.XCDR2, "xcdr2", false, "force XCDR2")
	cmd.MarkFlagsMutuallyExclusive("xcdr1", "xcdr2")
	_ = cmd.MarkFlagRequired("sample")

	return cmd
}

func runEncode(opts *CodecOptions, idlDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	d, err := describeType(idlDir, opts.Type, opts.Config, opts.Logger(cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail(err)
	}
	v, err := sampleValue(d, opts.Sample, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(err)
	}

	var encOpts []cdr.Option
	if opts.BigEndian {
		encOpts = append(encOpts, cdr.WithBigEndian())
	}
	switch {
	case opts.XCDR1:
		encOpts = append(encOpts, cdr.WithVersion(cdr.XCDR1))
	case opts.XCDR2:
		encOpts = append(encOpts, cdr.WithVersion(cdr.XCDR2))
	}
	data, err := cdr.Encode(d, v, encOpts...)
	if err != nil {
		return formatter.Fail(err)
	}
	h, err := cdr.ParseHeader(data)
	if err != nil {
		return formatter.Fail(err)
	}

	result := EncodeResult{
		Type:           d.Name(),
		TypeID:         d.TypeID(),
		Representation: h.Representation.String(),
		Size:           len(data),
		Bytes:          conformance.FormatHex(data),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	formatter.VerboseLog("%s %s, %d bytes", result.Type, result.Representation, result.Size)
	fmt.Fprintln(formatter.Writer, result.Bytes)
	return nil
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CodecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <idl-dir>",
		Short: "Decode hex bytes and print the sample as JSON",
		Long: `Decode serialized bytes, encapsulation header included, and print the
sample as JSON keyed by IDL member name. The byte order and encoding
version come from the header.`,
		Example: `  cdrgen decode ./idl --type demo::Keyed --hex "00 01 00 00 2a 00 00 00 04 00 00 00 61 62 63 00"
  cdrgen encode ./idl --sample keyed.yaml | cdrgen decode ./idl --hex -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], cmd)
		},
	}

	addCodecFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Hex, "hex", "", `hex bytes, whitespace allowed, or "-" for stdin`)
	_ = cmd.MarkFlagRequired("hex")

	return cmd
}

func runDecode(opts *CodecOptions, idlDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	d, err := describeType(idlDir, opts.Type, opts.Config, opts.Logger(cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail(err)
	}

	text := opts.Hex
	if text == "-" {
		in, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return formatter.Fail(WrapExitError(ExitCommandError, "read stdin", err))
		}
		text = string(in)
	}
	data, err := conformance.ParseHex(text)
	if err != nil {
		return formatter.Fail(&InputError{What: "hex", Err: err})
	}

	v, err := cdr.Decode(d, data)
	if err != nil {
		return formatter.Fail(err)
	}
	sample, err := cdr.ToNative(d, v)
	if err != nil {
		return formatter.Fail(err)
	}
	h, _ := cdr.ParseHeader(data)

	if formatter.Format == "json" {
		return formatter.Success(DecodeResult{
			Type:           d.Name(),
			Representation: h.Representation.String(),
			Sample:         sample,
		})
	}
	formatter.VerboseLog("%s %s, %d bytes", d.Name(), h.Representation, len(data))
	enc := json.NewEncoder(formatter.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(sample)
}

// NewKeyCommand creates the key command.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CodecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "key <idl-dir>",
		Short: "Print the serialized key and key hash of a sample",
		Long: `Print the key of a sample: its key members serialized as big-endian
XCDR2, and the 16-byte key hash derived from it. Keyless types have an
empty key and an all-zero hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKey(opts, args[0], cmd)
		},
	}

	addCodecFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Sample, "sample", "", `sample file, or "-" for stdin`)
	_ = cmd.MarkFlagRequired("sample")

	return cmd
}

func runKey(opts *CodecOptions, idlDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	d, err := describeType(idlDir, opts.Type, opts.Config, opts.Logger(cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail(err)
	}
	v, err := sampleValue(d, opts.Sample, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(err)
	}

	key, err := cdr.KeyOf(d, v)
	if err != nil {
		return formatter.Fail(err)
	}
	hash, err := cdr.KeyHash(d, v)
	if err != nil {
		return formatter.Fail(err)
	}

	result := KeyResult{
		Type:    d.Name(),
		Keyed:   d.Keyed(),
		Key:     conformance.FormatHex(key),
		KeyHash: conformance.FormatHex(hash[:]),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if !result.Keyed {
		formatter.VerboseLog("%s has no key members", result.Type)
	}
	shown := result.Key
	if shown == "" {
		shown = "(none)"
	}
	fmt.Fprintf(formatter.Writer, "key:     %s\n", shown)
	fmt.Fprintf(formatter.Writer, "keyhash: %s\n", result.KeyHash)
	return nil
}

func sampleValue(d *descriptor.Descriptor, path string, stdin io.Reader) (value.Value, error) {
	sample, err := readSample(path, stdin)
	if err != nil {
		return nil, &InputError{What: "sample", Err: err}
	}
	v, err := cdr.FromNative(d, sample)
	if err != nil {
		return nil, &InputError{What: "sample", Err: err}
	}
	return v, nil
}

// InputError reports an unreadable or ill-typed sample or hex dump.
type InputError struct {
	What string
	Err  error
}

func (e *InputError) Error() string { return fmt.Sprintf("invalid %s: %v", e.What, e.Err) }

func (e *InputError) Unwrap() error { return e.Err }
