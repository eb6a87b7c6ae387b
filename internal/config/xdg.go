package config

import (
	"log/slog"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
)

const appDir = "mixdeck"

// XDGDirs provides XDG Base Directory compliant paths for mixdeck
type XDGDirs struct {
	fs afero.Fs
}

// NewXDGDirs creates a new XDG directory manager that creates directories on fs
func NewXDGDirs(fs afero.Fs) *XDGDirs {
	slog.Debug("creating new XDG directory manager")
	return &XDGDirs{fs: fs}
}

// GetCachePath returns the cache directory path for a specific purpose
func (x *XDGDirs) GetCachePath(purpose string) string {
	baseDir := appDir
	if purpose != "" {
		baseDir = filepath.Join(baseDir, purpose)
	}

	cachePath := filepath.Join(xdg.CacheHome, baseDir)
	slog.Debug("generated cache path", "purpose", purpose, "cache_path", cachePath)
	return cachePath
}

// GetConfigPaths returns prioritized paths where config files can be found.
// Returns paths in search order: user config dir, then system config dirs.
func (x *XDGDirs) GetConfigPaths(filename string) []string {
	var paths []string

	userConfigPath := filepath.Join(xdg.ConfigHome, appDir, filename)
	paths = append(paths, userConfigPath)

	for _, configDir := range xdg.ConfigDirs {
		paths = append(paths, filepath.Join(configDir, appDir, filename))
	}

	slog.Debug("generated config paths",
		"filename", filename,
		"total_paths", len(paths),
		"user_path", userConfigPath,
		"system_paths", len(xdg.ConfigDirs))

	return paths
}

// CreateCacheDir creates the cache directory for a specific purpose
func (x *XDGDirs) CreateCacheDir(purpose string) error {
	cachePath := x.GetCachePath(purpose)

	err := x.fs.MkdirAll(cachePath, 0755)
	if err != nil {
		slog.Error("failed to create cache directory", "path", cachePath, "error", err)
		return err
	}

	slog.Debug("cache directory ready", "path", cachePath)
	return nil
}
