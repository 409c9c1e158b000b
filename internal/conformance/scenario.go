package conformance

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a set of codec cases for one type.
type Scenario struct {
	// Name uniquely identifies this scenario and its golden file.
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// IDL is an inline CUE IDL document.
	IDL string `yaml:"idl,omitempty"`
	// IDLDir is a directory of CUE IDL files, relative to the scenario file.
	IDLDir string `yaml:"idl_dir,omitempty"`

	// Type is the scoped name of the struct or union under test. It
	// defaults to the document's topic.
	Type string `yaml:"type,omitempty"`

	Cases []Case `yaml:"cases"`
}

// Case is one encode or decode check. Exactly one of Sample and Hex is set.
type Case struct {
	Name string `yaml:"name"`

	// Sample is encoded; it uses the native form of cdr.FromNative.
	Sample any `yaml:"sample,omitempty"`
	// Hex is decoded, header included.
	Hex string `yaml:"hex,omitempty"`

	// BigEndian and XCDR select the encoding of Sample. XCDR is 1, 2 or 0
	// for the version the type prefers.
	BigEndian bool `yaml:"big_endian,omitempty"`
	XCDR      int  `yaml:"xcdr,omitempty"`

	Expect Expect `yaml:"expect,omitempty"`
}

// Expect lists what a case must produce. Empty fields are not checked.
type Expect struct {
	Bytes   string `yaml:"bytes,omitempty"`
	Key     string `yaml:"key,omitempty"`
	KeyHash string `yaml:"keyhash,omitempty"`
	// Sample is the decoded value in native form.
	Sample any `yaml:"sample,omitempty"`
	// Error is the codec error code, such as E401.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and validates a scenario file. IDLDir is resolved
// against the directory holding the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.IDLDir != "" && !filepath.IsAbs(s.IDLDir) {
		s.IDLDir = filepath.Join(filepath.Dir(path), s.IDLDir)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.IDL == "") == (s.IDLDir == "") {
		return fmt.Errorf("exactly one of idl and idl_dir is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		seen[c.Name] = true

		if (c.Sample == nil) == (c.Hex == "") {
			return fmt.Errorf("cases[%d]: exactly one of sample and hex is required", i)
		}
		if c.Hex != "" {
			if c.BigEndian || c.XCDR != 0 {
				return fmt.Errorf("cases[%d]: big_endian and xcdr apply to samples only", i)
			}
			if _, err := ParseHex(c.Hex); err != nil {
				return fmt.Errorf("cases[%d].hex: %w", i, err)
			}
		}
		if c.XCDR < 0 || c.XCDR > 2 {
			return fmt.Errorf("cases[%d]: xcdr must be 1 or 2, got %d", i, c.XCDR)
		}
		for field, h := range map[string]string{"bytes": c.Expect.Bytes, "key": c.Expect.Key, "keyhash": c.Expect.KeyHash} {
			if _, err := ParseHex(h); err != nil {
				return fmt.Errorf("cases[%d].expect.%s: %w", i, field, err)
			}
		}
		if c.Expect.Error != "" && (c.Expect.Bytes != "" || c.Expect.Sample != nil) {
			return fmt.Errorf("cases[%d]: expect.error excludes bytes and sample", i)
		}
	}
	return nil
}

// FindScenarios returns the .yaml and .yml files under dir in lexical order.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find scenarios: %w", err)
	}
	return files, nil
}
