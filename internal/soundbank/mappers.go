package soundbank

import (
	"path"
	"path/filepath"
	"strings"
)

// Extensions are tried in order for names given without one
var Extensions = []string{".wav", ".ogg", ".flac", ".mp3", ".aiff", ".aif"}

// DirectoryMapper looks for names under one or more base directories
type DirectoryMapper struct {
	name      string
	basePaths []string
}

func NewDirectoryMapper(name string, basePaths []string) *DirectoryMapper {
	return &DirectoryMapper{name: name, basePaths: basePaths}
}

// MapName yields base/name for every base, expanded with each known
// extension when name has none
func (d *DirectoryMapper) MapName(name string) ([]string, error) {
	if name == "" {
		return nil, nil
	}
	rel := filepath.FromSlash(name)

	var candidates []string
	for _, base := range d.basePaths {
		full := filepath.Join(base, rel)
		if path.Ext(name) != "" {
			candidates = append(candidates, full)
			continue
		}
		for _, ext := range Extensions {
			candidates = append(candidates, full+ext)
		}
	}
	return candidates, nil
}

func (d *DirectoryMapper) Name() string { return d.name }
func (d *DirectoryMapper) Type() string { return "directory" }

// JSONMapper maps names to the files listed in a bank file
type JSONMapper struct {
	name    string
	mapping map[string][]string
}

func NewJSONMapper(name string, mapping map[string][]string) *JSONMapper {
	return &JSONMapper{name: name, mapping: mapping}
}

// MapName returns the listed files for name; a name with an extension also
// matches the entry without it
func (j *JSONMapper) MapName(name string) ([]string, error) {
	if paths, ok := j.mapping[name]; ok {
		return paths, nil
	}
	if ext := path.Ext(name); ext != "" {
		if paths, ok := j.mapping[strings.TrimSuffix(name, ext)]; ok {
			return paths, nil
		}
	}
	return nil, nil
}

func (j *JSONMapper) Name() string { return j.name }
func (j *JSONMapper) Type() string { return "json" }

// Names lists the sounds the bank file defines
func (j *JSONMapper) Names() []string {
	names := make([]string, 0, len(j.mapping))
	for name := range j.mapping {
		names = append(names, name)
	}
	return names
}
