package conformance

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as the text compared against golden files.
// Only what the codec produced appears; expectations and pass state do
// not.
func Snapshot(r *Result) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "scenario: %s\n", r.Scenario)
	fmt.Fprintf(&b, "type: %s\n", r.Type)
	for _, c := range r.Cases {
		fmt.Fprintf(&b, "case %s\n", c.Name)
		line := func(label, v string) {
			if v != "" {
				fmt.Fprintf(&b, "  %s: %s\n", label, v)
			}
		}
		line("bytes", c.Bytes)
		line("key", c.Key)
		line("keyhash", c.KeyHash)
		line("value", c.Value)
		line("error", c.Error)
	}
	return b.Bytes()
}

// GoldenPath is where the golden snapshot of a scenario in dir lives.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, "golden", name+".golden")
}

// CompareGolden checks a snapshot against the golden file at path.
func CompareGolden(path string, snapshot []byte) error {
	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, snapshot) {
		return fmt.Errorf("snapshot differs from %s:\n--- want\n%s--- got\n%s", path, want, snapshot)
	}
	return nil
}

// UpdateGolden writes a snapshot to the golden file at path.
func UpdateGolden(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden dir: %w", err)
	}
	if err := os.WriteFile(path, snapshot, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/conformance -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), s)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, Snapshot(result))
	return result, nil
}
