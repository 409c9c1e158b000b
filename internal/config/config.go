// Package config loads the generator configuration from YAML or TOML.
package config

import (
	"bytes"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cdrgen/internal/naming"
)

// Config is the generator configuration file.
type Config struct {
	// Package is the Go package name of generated files.
	Package string `yaml:"package" toml:"package"`
	// Topic overrides the root type named by the IDL document.
	Topic          string   `yaml:"topic" toml:"topic"`
	CaseConvention string   `yaml:"case_convention" toml:"case_convention"`
	ReservedWords  []string `yaml:"reserved_words" toml:"reserved_words"`
	// Ledger is the path of the type-version ledger database, if any.
	Ledger string `yaml:"ledger" toml:"ledger"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{Package: "types", CaseConvention: "pascal"}
}

// Load reads a configuration file. The format follows the extension:
// .yaml/.yml or .toml. Unknown fields are rejected in both formats.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch format := normalizeFormat(filepath.Ext(path)); format {
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse YAML config %s: %w", path, err)
		}
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse TOML config %s: %w", path, err)
		}
	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported config format %q", filepath.Ext(path)),
			"use a .yaml, .yml or .toml file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalizeFormat(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

// Validate checks the package name and case convention.
func (c *Config) Validate() error {
	if !token.IsIdentifier(c.Package) || c.Package == "_" {
		return errors.WithHint(
			errors.Newf("package %q is not a valid Go package name", c.Package),
			"set package to a lower-case identifier such as \"types\"")
	}
	if _, err := naming.ParseConvention(c.CaseConvention); err != nil {
		return errors.WithHint(errors.Wrap(err, "case_convention"),
			"case_convention is one of pascal, camel, snake, preserve")
	}
	return nil
}

// NamingOptions returns the resolver options the configuration selects.
func (c *Config) NamingOptions() (naming.Options, error) {
	conv, err := naming.ParseConvention(c.CaseConvention)
	if err != nil {
		return naming.Options{}, err
	}
	return naming.Options{ReservedWords: c.ReservedWords, Convention: conv}, nil
}
