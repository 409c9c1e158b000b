package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/internal/compiler"
	"github.com/roach88/cdrgen/internal/config"
	"github.com/roach88/cdrgen/internal/generator"
)

// Error code constants shared by all commands. Load failures reuse the
// compiler's codes.
const (
	ErrCodeGeneric     = compiler.ErrCodeGeneric
	ErrCodeNotFound    = compiler.ErrCodeNotFound
	ErrCodeWriteFailed = compiler.ErrCodeWriteFailed
	ErrCodeBadInput    = "E008" // sample or hex input unreadable
)

// loadIDL compiles the CUE IDL documents in dir. The context is returned
// even when compilation reports type errors, so callers can list them.
func loadIDL(dir string, logger *slog.Logger) (*compiler.Context, *compiler.LoadResult, error) {
	c := compiler.NewContext(compiler.WithLogger(logger))
	res, err := compiler.LoadDir(c, dir)
	return c, res, err
}

// loadConfig reads the generator configuration, or the defaults when path
// is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// describeType compiles dir and builds the descriptor of typeName, or of
// the document's topic when typeName is empty.
func describeType(dir, typeName, configPath string, logger *slog.Logger) (*descriptor.Descriptor, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	naming, err := cfg.NamingOptions()
	if err != nil {
		return nil, err
	}
	c, _, err := loadIDL(dir, logger)
	if err != nil {
		return nil, err
	}
	if typeName == "" {
		typeName = cfg.Topic
	}
	g := generator.New(generator.Options{Naming: naming, Logger: logger})
	return g.Describe(c, typeName)
}

// readSample reads a sample in native form from a YAML or JSON file, or
// from stdin when path is "-".
func readSample(path string, stdin io.Reader) (any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}

	var sample any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&sample); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.WithHint(errors.Newf("sample %s is empty", path),
				"write the sample as a YAML or JSON map keyed by IDL member name")
		}
		return nil, fmt.Errorf("parse sample %s: %w", path, err)
	}
	return sample, nil
}
