package fs

import (
	"github.com/spf13/afero"
)

// Factory provides filesystem instances for production and testing
type Factory interface {
	// Production returns a filesystem that operates on the real OS filesystem
	Production() afero.Fs
	// Memory returns an in-memory filesystem for testing
	Memory() afero.Fs
}

// DefaultFactory provides the standard filesystem factory implementation
type DefaultFactory struct{}

// NewDefaultFactory creates a new filesystem factory
func NewDefaultFactory() Factory {
	return &DefaultFactory{}
}

// Production returns a filesystem that operates on the real OS filesystem
func (f *DefaultFactory) Production() afero.Fs {
	return afero.NewOsFs()
}

// Memory returns an in-memory filesystem for testing
func (f *DefaultFactory) Memory() afero.Fs {
	return afero.NewMemMapFs()
}

// SoundLibrary returns a read-only view of base rooted at dir. Sound paths
// given to the engine are then resolved inside dir and cannot escape it.
// An empty dir returns a read-only view of base itself.
func SoundLibrary(base afero.Fs, dir string) afero.Fs {
	if dir != "" {
		base = afero.NewBasePathFs(base, dir)
	}
	return afero.NewReadOnlyFs(base)
}
