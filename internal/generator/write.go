package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

// rename is replaced in tests to fail part way through a commit.
var rename = os.Rename

// writeAtomic writes every file to a temporary name in dir, then commits
// them together: existing targets and descriptor files of types no longer
// generated are moved aside, the new files renamed into place, and the
// moved files removed. If any step fails, dir is restored to its previous
// contents.
func writeAtomic(dir string, files []OutputFile) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	temps := make([]string, 0, len(files))
	defer func() {
		if err == nil {
			return
		}
		for _, t := range temps {
			if rmErr := os.Remove(t); rmErr != nil && !os.IsNotExist(rmErr) {
				err = multierr.Append(err, rmErr)
			}
		}
	}()

	for _, f := range files {
		tmp, err := writeTemp(dir, f)
		if tmp != "" {
			temps = append(temps, tmp)
		}
		if err != nil {
			return err
		}
	}

	replaced, err := staleDescriptors(dir, files)
	if err != nil {
		return err
	}
	for _, f := range files {
		replaced = append(replaced, f.Name)
	}
	return commit(dir, files, temps, replaced)
}

// backup is a file moved aside during a commit.
type backup struct {
	target, moved string
}

func commit(dir string, files []OutputFile, temps, replaced []string) (err error) {
	var (
		backups []backup
		placed  []string
	)
	defer func() {
		if err == nil {
			for _, b := range backups {
				_ = os.Remove(b.moved)
			}
			return
		}
		for _, p := range slices.Backward(placed) {
			if rmErr := os.Remove(p); rmErr != nil {
				err = multierr.Append(err, rmErr)
			}
		}
		for _, b := range slices.Backward(backups) {
			if rbErr := rename(b.moved, b.target); rbErr != nil {
				err = multierr.Append(err, fmt.Errorf("restore %s: %w", b.target, rbErr))
			}
		}
	}()

	for _, name := range replaced {
		target := filepath.Join(dir, name)
		if _, err := os.Lstat(target); os.IsNotExist(err) {
			continue
		}
		moved, err := reserve(dir, "."+name+".old-*")
		if err != nil {
			return err
		}
		if err := rename(target, moved); err != nil {
			os.Remove(moved)
			return fmt.Errorf("move aside %s: %w", name, err)
		}
		backups = append(backups, backup{target: target, moved: moved})
	}

	for i, f := range files {
		target := filepath.Join(dir, f.Name)
		if err := rename(temps[i], target); err != nil {
			return fmt.Errorf("rename %s: %w", f.Name, err)
		}
		placed = append(placed, target)
	}
	return nil
}

// staleDescriptors lists descriptor files in dir that files does not
// replace.
func staleDescriptors(dir string, files []OutputFile) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output directory: %w", err)
	}
	keep := make(map[string]bool, len(files))
	for _, f := range files {
		keep[f.Name] = true
	}
	var stale []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasSuffix(name, descriptorSuffix) &&
			!strings.HasPrefix(name, ".") && !keep[name] {
			stale = append(stale, name)
		}
	}
	return stale, nil
}

// reserve creates an empty file with a unique name matching pattern.
func reserve(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("reserve %s: %w", pattern, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

func writeTemp(dir string, f OutputFile) (string, error) {
	tmp, err := os.CreateTemp(dir, "."+f.Name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", f.Name, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		return name, fmt.Errorf("write %s: %w", f.Name, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return name, fmt.Errorf("chmod %s: %w", f.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return name, fmt.Errorf("close %s: %w", f.Name, err)
	}
	return name, nil
}
