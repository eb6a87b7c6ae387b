package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"mixdeck.click/internal/audio"
	"mixdeck.click/internal/fs"
)

type fixedXDG struct {
	configPaths []string
	cacheDir    string
	created     []string
}

func (f *fixedXDG) GetConfigPaths(filename string) []string {
	var out []string
	for _, p := range f.configPaths {
		out = append(out, filepath.Join(p, filename))
	}
	return out
}

func (f *fixedXDG) GetCachePath(purpose string) string {
	return filepath.Join(f.cacheDir, purpose)
}

func (f *fixedXDG) CreateCacheDir(purpose string) error {
	f.created = append(f.created, purpose)
	return nil
}

func newTestManager(t *testing.T) (*ConfigManager, afero.Fs, *fixedXDG) {
	t.Helper()
	memFS := fs.NewDefaultFactory().Memory()
	xdg := &fixedXDG{
		configPaths: []string{"/home/user/.config/mixdeck", "/etc/xdg/mixdeck"},
		cacheDir:    "/home/user/.cache/mixdeck",
	}
	return NewConfigManagerWithDependencies(memFS, xdg), memFS, xdg
}

func TestDefaultConfigIsValid(t *testing.T) {
	cm, _, _ := newTestManager(t)
	config := cm.GetDefaultConfig()

	if err := cm.ValidateConfig(config); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if config.MixChannels != 8 {
		t.Errorf("expected 8 mix channels, got %d", config.MixChannels)
	}
	if config.MasterVolume != 128 || config.MusicVolume != 128 {
		t.Errorf("expected full volumes, got master=%d music=%d", config.MasterVolume, config.MusicVolume)
	}

	spec, err := cm.ToSpec(config)
	if err != nil {
		t.Fatalf("ToSpec failed: %v", err)
	}
	if spec != audio.DefaultSpec() {
		t.Errorf("expected default spec, got %+v", spec)
	}
}

func TestLoadFromFileKeepsDefaultsForMissingFields(t *testing.T) {
	cm, memFS, _ := newTestManager(t)
	err := afero.WriteFile(memFS, "/test/config.json", []byte(`{
		"frequency": 44100,
		"format": "f32",
		"mix_channels": 16,
		"log_level": "debug"
	}`), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := cm.LoadFromFile("/test/config.json")
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Frequency != 44100 || config.Format != "f32" || config.MixChannels != 16 {
		t.Errorf("file values not applied: %+v", config)
	}
	if config.OutputChannels != 2 || config.ChunkSize != audio.DefaultChunkSize {
		t.Errorf("defaults lost for missing fields: %+v", config)
	}
	if config.History == nil || !config.History.Enabled {
		t.Error("history should default to enabled")
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	cm, memFS, _ := newTestManager(t)

	if _, err := cm.LoadFromFile("/missing.json"); err == nil {
		t.Error("expected error for missing file")
	}

	afero.WriteFile(memFS, "/bad.json", []byte(`{"frequency":`), 0644)
	if _, err := cm.LoadFromFile("/bad.json"); err == nil {
		t.Error("expected error for malformed JSON")
	}

	afero.WriteFile(memFS, "/invalid.json", []byte(`{"output_channels": 6}`), 0644)
	_, err := cm.LoadFromFile("/invalid.json")
	if err == nil || !strings.Contains(err.Error(), "output_channels") {
		t.Errorf("expected output_channels validation error, got %v", err)
	}
}

func TestSaveToFileRoundTrip(t *testing.T) {
	cm, memFS, _ := newTestManager(t)
	config := cm.GetDefaultConfig()
	config.MusicCommand = "mpg123 -q"
	config.ReservedChannels = 2

	path := "/nested/dir/config.json"
	if err := cm.SaveToFile(config, path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	data, err := afero.ReadFile(memFS, path)
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved file is not JSON: %v", err)
	}
	if raw["music_command"] != "mpg123 -q" {
		t.Errorf("music_command not saved: %v", raw["music_command"])
	}

	loaded, err := cm.LoadFromFile(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.ReservedChannels != 2 {
		t.Errorf("expected 2 reserved channels, got %d", loaded.ReservedChannels)
	}
}

func TestSaveToFileRejectsInvalidConfig(t *testing.T) {
	cm, memFS, _ := newTestManager(t)
	config := cm.GetDefaultConfig()
	config.MasterVolume = 200

	if err := cm.SaveToFile(config, "/config.json"); err == nil {
		t.Fatal("expected invalid config to be rejected")
	}
	if exists, _ := afero.Exists(memFS, "/config.json"); exists {
		t.Error("invalid config should not be written")
	}
}

func TestLoadConfigSearchOrder(t *testing.T) {
	cm, memFS, _ := newTestManager(t)

	config, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig without files failed: %v", err)
	}
	if config.Frequency != audio.DefaultFrequency {
		t.Errorf("expected defaults, got %+v", config)
	}

	afero.WriteFile(memFS, "/etc/xdg/mixdeck/config.json", []byte(`{"frequency": 48000}`), 0644)
	config, _ = cm.LoadConfig()
	if config.Frequency != 48000 {
		t.Errorf("expected system config, got frequency %d", config.Frequency)
	}

	afero.WriteFile(memFS, "/home/user/.config/mixdeck/config.json", []byte(`{"frequency": 11025}`), 0644)
	config, _ = cm.LoadConfig()
	if config.Frequency != 11025 {
		t.Errorf("user config should win, got frequency %d", config.Frequency)
	}
}

func TestValidateConfig(t *testing.T) {
	cm, _, _ := newTestManager(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero frequency", func(c *Config) { c.Frequency = 0 }, "frequency"},
		{"bad format", func(c *Config) { c.Format = "s12" }, "format"},
		{"surround", func(c *Config) { c.OutputChannels = 6 }, "output_channels"},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }, "chunk_size"},
		{"negative channels", func(c *Config) { c.MixChannels = -1 }, "mix_channels"},
		{"too many reserved", func(c *Config) { c.ReservedChannels = 9 }, "reserved_channels"},
		{"loud music", func(c *Config) { c.MusicVolume = 129 }, "music_volume"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log level"},
		{"bad backend", func(c *Config) { c.AudioBackend = "alsa" }, "audio backend"},
		{"negative backups", func(c *Config) { c.FileLogging.MaxBackups = -1 }, "max_backups"},
		{"mono is fine", func(c *Config) { c.OutputChannels = 1 }, ""},
		{"headless is fine", func(c *Config) { c.AudioBackend = audio.BackendHeadless }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := cm.GetDefaultConfig()
			tt.mutate(config)
			err := cm.ValidateConfig(config)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	cm, _, _ := newTestManager(t)
	base := cm.GetDefaultConfig()

	t.Setenv("MIXDECK_FREQUENCY", "48000")
	t.Setenv("MIXDECK_FORMAT", "s24")
	t.Setenv("MIXDECK_CHANNELS", "32")
	t.Setenv("MIXDECK_MUSIC_VOLUME", "not-a-number")
	t.Setenv("MIXDECK_AUDIO_BACKEND", "headless")
	t.Setenv("MIXDECK_LOG_LEVEL", "debug")
	t.Setenv("MIXDECK_MUSIC_COMMAND", "ogg123")
	t.Setenv("MIXDECK_HISTORY", "false")

	result := cm.ApplyEnvironmentOverrides(base)

	if result.Frequency != 48000 || result.Format != "s24" || result.MixChannels != 32 {
		t.Errorf("numeric overrides not applied: %+v", result)
	}
	if result.MusicVolume != 128 {
		t.Errorf("invalid integer should be ignored, got %d", result.MusicVolume)
	}
	if result.AudioBackend != audio.BackendHeadless || result.LogLevel != "debug" {
		t.Errorf("string overrides not applied: %+v", result)
	}
	if result.MusicCommand != "ogg123" {
		t.Errorf("expected music command override, got %q", result.MusicCommand)
	}
	if result.History.Enabled {
		t.Error("history override not applied")
	}
	if !base.History.Enabled || base.Frequency == 48000 {
		t.Error("overrides must not modify the input config")
	}
}

func TestApplyEnvironmentOverridesRejectsInvalidValues(t *testing.T) {
	cm, _, _ := newTestManager(t)
	t.Setenv("MIXDECK_FORMAT", "s12")
	t.Setenv("MIXDECK_AUDIO_BACKEND", "alsa")

	result := cm.ApplyEnvironmentOverrides(cm.GetDefaultConfig())
	if result.Format != "s16" || result.AudioBackend != audio.BackendAuto {
		t.Errorf("invalid overrides should be ignored: %+v", result)
	}
}

func TestToSpecRejectsUnknownFormat(t *testing.T) {
	cm, _, _ := newTestManager(t)
	config := cm.GetDefaultConfig()
	config.Format = "dsd"
	if _, err := cm.ToSpec(config); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestApplyLogLevelWithWriter(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	cm, _, _ := newTestManager(t)
	var buf bytes.Buffer

	if err := cm.ApplyLogLevelWithWriter("warn", &buf); err != nil {
		t.Fatalf("ApplyLogLevelWithWriter failed: %v", err)
	}
	slog.Info("hidden")
	slog.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected log output: %q", buf.String())
	}

	if err := cm.ApplyLogLevelWithWriter("loud", &buf); err == nil {
		t.Error("expected error for invalid level")
	}
	if err := cm.ApplyLogLevelWithWriter("", &buf); err != nil {
		t.Errorf("empty level should be a no-op, got %v", err)
	}
}

func TestResolvePaths(t *testing.T) {
	cm, _, xdg := newTestManager(t)

	if got := cm.ResolveLogFilePath(""); got != "/home/user/.cache/mixdeck/logs/mixdeck.log" {
		t.Errorf("unexpected log path %q", got)
	}
	if got := cm.ResolveLogFilePath("/tmp/x.log"); got != "/tmp/x.log" {
		t.Errorf("explicit log path should win, got %q", got)
	}
	if got := cm.ResolveDatabasePath(""); got != "/home/user/.cache/mixdeck/history.db" {
		t.Errorf("unexpected database path %q", got)
	}

	if err := cm.EnsureCacheDir("logs"); err != nil {
		t.Fatal(err)
	}
	if len(xdg.created) != 1 || xdg.created[0] != "logs" {
		t.Errorf("expected logs cache dir to be created, got %v", xdg.created)
	}
}
