package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
)

func TestXDGConfigPaths(t *testing.T) {
	dirs := NewXDGDirs(afero.NewMemMapFs())

	paths := dirs.GetConfigPaths("config.json")
	if len(paths) != 1+len(xdg.ConfigDirs) {
		t.Fatalf("expected user path plus %d system paths, got %d", len(xdg.ConfigDirs), len(paths))
	}
	if paths[0] != filepath.Join(xdg.ConfigHome, "mixdeck", "config.json") {
		t.Errorf("user config path should come first, got %s", paths[0])
	}
	for _, p := range paths {
		if !strings.HasSuffix(p, filepath.Join("mixdeck", "config.json")) {
			t.Errorf("path %s is not under a mixdeck directory", p)
		}
	}
}

func TestXDGCachePath(t *testing.T) {
	dirs := NewXDGDirs(afero.NewMemMapFs())

	if got := dirs.GetCachePath(""); got != filepath.Join(xdg.CacheHome, "mixdeck") {
		t.Errorf("unexpected base cache path %s", got)
	}
	if got := dirs.GetCachePath("logs"); got != filepath.Join(xdg.CacheHome, "mixdeck", "logs") {
		t.Errorf("unexpected logs cache path %s", got)
	}
}

func TestXDGCreateCacheDirUsesFilesystem(t *testing.T) {
	memFS := afero.NewMemMapFs()
	dirs := NewXDGDirs(memFS)

	if err := dirs.CreateCacheDir("logs"); err != nil {
		t.Fatalf("CreateCacheDir failed: %v", err)
	}
	exists, err := afero.DirExists(memFS, dirs.GetCachePath("logs"))
	if err != nil || !exists {
		t.Errorf("cache dir not created in memory filesystem: exists=%v err=%v", exists, err)
	}
}
