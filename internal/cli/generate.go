package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/cdrgen/internal/generator"
	"github.com/roach88/cdrgen/internal/store"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Output  string // output directory
	Config  string // naming/package config file
	Topic   string // overrides the document topic
	Package string // overrides the configured package
	Ledger  string // type-version ledger database
	DryRun  bool
}

// GeneratedType is one descriptor of a generation run.
type GeneratedType struct {
	Type   string `json:"type"`
	Ident  string `json:"ident"`
	TypeID string `json:"type_id"`
}

// GenerateResult summarizes a generation run.
type GenerateResult struct {
	RunID string          `json:"run_id"`
	Topic string          `json:"topic"`
	Dir   string          `json:"dir,omitempty"`
	Files []string        `json:"files"`
	Types []GeneratedType `json:"types"`
	Size  string          `json:"size"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate <idl-dir>",
		Short: "Generate Go types and descriptors from IDL",
		Long: `Compile the CUE IDL documents in a directory and generate Go types with
value conversions, plus one canonical descriptor file per struct and union
reachable from the topic type.

Output is written only if every step succeeds. With --ledger, published
member ordinals are checked before writing and the run is recorded after.`,
		Example: `  cdrgen generate ./idl -o ./types
  cdrgen generate ./idl -o ./types --config cdrgen.yaml --topic demo::Keyed
  cdrgen generate ./idl -o ./types --ledger types.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(commandContext(cmd), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory")
	cmd.Flags().StringVar(&opts.Config, "config", "", "naming config file (.yaml, .yml or .toml)")
	cmd.Flags().StringVar(&opts.Topic, "topic", "", "root type, overriding the IDL document and config")
	cmd.Flags().StringVar(&opts.Package, "package", "", "Go package name, overriding the config")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "type-version ledger database, overriding the config")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "generate and check without writing")

	return cmd
}

func runGenerate(ctx context.Context, opts *GenerateOptions, idlDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.Logger(cmd.ErrOrStderr())

	if opts.Output == "" && !opts.DryRun {
		return formatter.Fail(NewExitError(ExitCommandError, "--output is required unless --dry-run is set"))
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "invalid config", err))
	}
	if opts.Package != "" {
		cfg.Package = opts.Package
	}
	if opts.Topic != "" {
		cfg.Topic = opts.Topic
	}
	if opts.Ledger != "" {
		cfg.Ledger = opts.Ledger
	}
	if err := cfg.Validate(); err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "invalid config", err))
	}
	namingOpts, err := cfg.NamingOptions()
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "invalid config", err))
	}
	namingOpts.Logger = logger

	c, res, err := loadIDL(idlDir, logger)
	if err != nil {
		return formatter.Fail(err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, idlDir)

	genOpts := generator.Options{
		Package: cfg.Package,
		Topic:   cfg.Topic,
		Naming:  namingOpts,
		Logger:  logger,
	}
	if cfg.Ledger != "" {
		ledger, err := store.Open(cfg.Ledger)
		if err != nil {
			return formatter.Fail(WrapExitError(ExitCommandError, "open ledger", err))
		}
		defer ledger.Close()
		genOpts.Ledger = ledger
	}

	g := generator.New(genOpts)
	out, err := g.Generate(ctx, c)
	if err != nil {
		return formatter.Fail(err)
	}
	if !opts.DryRun {
		if err := g.Write(ctx, out, opts.Output); err != nil {
			return formatter.Fail(err)
		}
	}

	result := GenerateResult{
		RunID: out.RunID,
		Topic: out.Topic,
		Dir:   opts.Output,
		Files: make([]string, 0, len(out.Files)),
		Types: make([]GeneratedType, 0, len(out.Descriptors)),
		Size:  humanize.Bytes(uint64(out.Size())),
	}
	for _, f := range out.Files {
		result.Files = append(result.Files, f.Name)
	}
	for _, d := range out.Descriptors {
		result.Types = append(result.Types, GeneratedType{Type: d.Type, Ident: d.Ident, TypeID: d.Descriptor.TypeID()})
	}
	return outputGenerateSuccess(formatter, result, opts.DryRun)
}

func outputGenerateSuccess(formatter *OutputFormatter, result GenerateResult, dryRun bool) error {
	if formatter.Format == "json" {
		return formatter.encodeJSON(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}

	w := formatter.Writer
	verb := "Generated"
	if dryRun {
		verb = "Checked"
	}
	fmt.Fprintf(w, "✓ %s %d type(s) for topic %s (%s)\n", verb, len(result.Types), result.Topic, result.Size)
	for _, t := range result.Types {
		fmt.Fprintf(w, "  %-24s %s\n", t.Ident, t.TypeID)
	}
	if !dryRun {
		for _, f := range result.Files {
			fmt.Fprintf(w, "  wrote %s\n", filepath.Join(result.Dir, f))
		}
	}
	return nil
}
