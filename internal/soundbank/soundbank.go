// Package soundbank resolves sound names like "ui/click" to files. A bank is
// either a directory tree of sound files or a JSON file naming each sound.
package soundbank

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// PathMapper turns a sound name into candidate file paths
type PathMapper interface {
	MapName(name string) ([]string, error)
	Name() string
	Type() string
}

// Bank resolves names through a mapper, checking candidates on fs
type Bank struct {
	fs     afero.Fs
	mapper PathMapper
}

func New(fs afero.Fs, mapper PathMapper) *Bank {
	slog.Debug("creating sound bank", "bank", mapper.Name(), "type", mapper.Type())
	return &Bank{fs: fs, mapper: mapper}
}

func (b *Bank) Name() string { return b.mapper.Name() }
func (b *Bank) Type() string { return b.mapper.Type() }

// Resolve finds the file for name, falling back to the default sound of
// each enclosing category: "ui/menu/open" tries "ui/menu/default",
// "ui/default" and finally "default".
func (b *Bank) Resolve(name string) (string, error) {
	return b.ResolveWithFallback(FallbackChain(name))
}

// ResolveExact finds the file for name without any fallback
func (b *Bank) ResolveExact(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("sound name cannot be empty")
	}

	candidates, err := b.mapper.MapName(name)
	if err != nil {
		return "", fmt.Errorf("mapping %s: %w", name, err)
	}

	for _, candidate := range candidates {
		info, err := b.fs.Stat(candidate)
		if err == nil && !info.IsDir() {
			slog.Debug("sound resolved", "name", name, "path", candidate, "bank", b.mapper.Name())
			return candidate, nil
		}
	}

	return "", &FileNotFoundError{Name: name, Paths: candidates}
}

// ResolveWithFallback returns the first name in names that resolves. The
// error for the first name is returned when none do.
func (b *Bank) ResolveWithFallback(names []string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("no sound names provided")
	}

	var firstErr error
	for i, name := range names {
		resolved, err := b.ResolveExact(name)
		if err == nil {
			if i > 0 {
				slog.Info("sound resolved by fallback", "wanted", names[0], "used", name, "level", i)
			}
			return resolved, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	slog.Warn("sound not found in bank", "name", names[0], "bank", b.mapper.Name(), "tried", len(names))
	return "", firstErr
}

// FallbackChain lists name followed by the category defaults above it
func FallbackChain(name string) []string {
	name = strings.Trim(path.Clean("/"+name), "/")
	if name == "" {
		return []string{DefaultSound}
	}
	chain := []string{name}
	dir := path.Dir(name)
	if path.Base(name) == DefaultSound {
		if dir == "." {
			return chain
		}
		dir = path.Dir(dir)
	}
	for {
		chain = append(chain, path.Join(dir, DefaultSound))
		if dir == "." {
			return chain
		}
		dir = path.Dir(dir)
	}
}

// DefaultSound is the name played when a category has no better match
const DefaultSound = "default"

// FileNotFoundError reports a name none of whose candidates exist
type FileNotFoundError struct {
	Name  string
	Paths []string
}

func (e *FileNotFoundError) Error() string {
	if len(e.Paths) == 0 {
		return fmt.Sprintf("sound %q is not in the bank", e.Name)
	}
	return fmt.Sprintf("sound %q not found (searched: %s)", e.Name, strings.Join(e.Paths, ", "))
}

// IsFileNotFoundError reports whether err is or wraps a FileNotFoundError
func IsFileNotFoundError(err error) bool {
	var target *FileNotFoundError
	return errors.As(err, &target)
}
