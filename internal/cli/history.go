package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/cdrgen/internal/store"
)

// HistoryEntry is one published version of a type.
type HistoryEntry struct {
	Seq    int64  `json:"seq"`
	RunID  string `json:"run_id"`
	TypeID string `json:"type_id"`
	Size   string `json:"size"`
}

// HistoryMember is the published position of a struct member.
type HistoryMember struct {
	Member  string `json:"member"`
	Ordinal int    `json:"ordinal"`
	ID      uint32 `json:"id"`
	RunID   string `json:"run_id"`
}

// HistoryResult is the output of the history command for one type.
type HistoryResult struct {
	Type     string          `json:"type"`
	Versions []HistoryEntry  `json:"versions"`
	Members  []HistoryMember `json:"members"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <ledger-db> [type]",
		Short: "Show the published versions of a type",
		Long: `Show the descriptors recorded in a type-version ledger for a type, oldest
first, and the ordinals its members were published at. Without a type, list
the recorded types.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			typeName := ""
			if len(args) == 2 {
				typeName = args[1]
			}
			return runHistory(rootOpts, args[0], typeName, cmd)
		},
	}
	return cmd
}

func runHistory(opts *RootOptions, dbPath, typeName string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	// Opening creates missing databases; a ledger to read must exist.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return formatter.Fail(NewExitError(ExitCommandError, fmt.Sprintf("ledger not found: %s", dbPath)))
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, "open ledger", err))
	}
	defer s.Close()

	if typeName == "" {
		types, err := s.Types(ctx)
		if err != nil {
			return formatter.Fail(err)
		}
		if formatter.Format == "json" {
			return formatter.Success(types)
		}
		for _, t := range types {
			fmt.Fprintln(formatter.Writer, t)
		}
		return nil
	}

	versions, err := s.History(ctx, typeName)
	if err != nil {
		return formatter.Fail(err)
	}
	if len(versions) == 0 {
		return formatter.Fail(NewExitError(ExitFailure, fmt.Sprintf("type %s is not in the ledger", typeName)))
	}
	ordinals, err := s.Ordinals(ctx, typeName)
	if err != nil {
		return formatter.Fail(err)
	}

	result := HistoryResult{
		Type:     typeName,
		Versions: make([]HistoryEntry, 0, len(versions)),
		Members:  make([]HistoryMember, 0, len(ordinals)),
	}
	for _, v := range versions {
		result.Versions = append(result.Versions, HistoryEntry{
			Seq:    v.Seq,
			RunID:  v.RunID,
			TypeID: v.TypeID,
			Size:   humanize.Bytes(uint64(len(v.Descriptor))),
		})
	}
	for _, o := range ordinals {
		result.Members = append(result.Members, HistoryMember(o))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "%s: %d version(s)\n", result.Type, len(result.Versions))
	for _, v := range result.Versions {
		fmt.Fprintf(w, "  #%d  %s  run %s  (%s)\n", v.Seq, v.TypeID, v.RunID, v.Size)
	}
	if len(result.Members) > 0 {
		fmt.Fprintln(w, "members:")
		for _, m := range result.Members {
			fmt.Fprintf(w, "  %d  %-20s id %#x  since %s\n", m.Ordinal, m.Member, m.ID, m.RunID)
		}
	}
	return nil
}
