package soundbank

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// bankFile is the JSON bank format. Each sound is one path or a list of
// paths tried in order; relative paths are taken from the bank file's
// directory.
//
//	{"name": "ui", "sounds": {"click": "click.wav", "open": ["open.ogg", "click.wav"]}}
type bankFile struct {
	Name   string                     `json:"name"`
	Sounds map[string]json.RawMessage `json:"sounds"`
}

// Open loads the bank at location: a JSON bank file or a directory
func Open(fs afero.Fs, location string) (*Bank, error) {
	info, err := fs.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("sound bank %s: %w", location, err)
	}
	if info.IsDir() {
		name := filepath.Base(filepath.Clean(location))
		return New(fs, NewDirectoryMapper(name, []string{location})), nil
	}

	data, err := afero.ReadFile(fs, location)
	if err != nil {
		return nil, fmt.Errorf("reading sound bank %s: %w", location, err)
	}
	mapper, err := ParseJSON(data, filepath.Dir(location))
	if err != nil {
		return nil, fmt.Errorf("sound bank %s: %w", location, err)
	}
	if mapper.name == "" {
		mapper.name = strings.TrimSuffix(filepath.Base(location), filepath.Ext(location))
	}
	return New(fs, mapper), nil
}

// ParseJSON reads a bank file, resolving relative paths against baseDir
func ParseJSON(data []byte, baseDir string) (*JSONMapper, error) {
	var bank bankFile
	if err := json.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("invalid bank JSON: %w", err)
	}
	if len(bank.Sounds) == 0 {
		return nil, fmt.Errorf("bank defines no sounds")
	}

	mapping := make(map[string][]string, len(bank.Sounds))
	for name, raw := range bank.Sounds {
		var paths []string
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			paths = []string{single}
		} else if err := json.Unmarshal(raw, &paths); err != nil {
			return nil, fmt.Errorf("sound %q: expected a path or a list of paths", name)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("sound %q has no paths", name)
		}
		for i, p := range paths {
			if p == "" {
				return nil, fmt.Errorf("sound %q has an empty path", name)
			}
			if !filepath.IsAbs(p) && baseDir != "" {
				paths[i] = filepath.Join(baseDir, filepath.FromSlash(p))
			}
		}
		mapping[name] = paths
	}

	slog.Debug("sound bank parsed", "name", bank.Name, "sounds", len(mapping))
	return NewJSONMapper(bank.Name, mapping), nil
}
