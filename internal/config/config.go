package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"mixdeck.click/internal/audio"
)

// FileLoggingConfig represents file-based logging configuration
type FileLoggingConfig struct {
	Enabled    bool   `json:"enabled"`      // Whether file logging is enabled
	Filename   string `json:"filename"`     // Log file path (empty = XDG cache path)
	MaxSizeMB  int    `json:"max_size_mb"`  // Max file size in MB before rotation
	MaxBackups int    `json:"max_backups"`  // Max number of backup files to keep
	MaxAgeDays int    `json:"max_age_days"` // Max age in days before deletion
	Compress   bool   `json:"compress"`     // Whether to compress rotated files
}

// HistoryConfig controls the play history database
type HistoryConfig struct {
	Enabled      bool   `json:"enabled"`       // Whether finished plays are recorded
	DatabasePath string `json:"database_path"` // Custom database path (empty = XDG cache path)
}

// Config represents mixdeck configuration
type Config struct {
	Frequency        int                `json:"frequency"`         // Output frames per second
	Format           string             `json:"format"`            // Output sample format (u8, s16, s24, s32, f32)
	OutputChannels   int                `json:"output_channels"`   // 1 = mono, 2 = stereo
	ChunkSize        int                `json:"chunk_size"`        // Frames per device buffer
	MixChannels      int                `json:"mix_channels"`      // Number of mixing channels
	ReservedChannels int                `json:"reserved_channels"` // Channels skipped by automatic selection
	MasterVolume     int                `json:"master_volume"`     // 0..128
	MusicVolume      int                `json:"music_volume"`      // 0..128
	AudioBackend     string             `json:"audio_backend"`     // auto, malgo, oto, headless
	MusicCommand     string             `json:"music_command"`     // External music player command line
	LogLevel         string             `json:"log_level"`         // debug, info, warn, error
	FileLogging      *FileLoggingConfig `json:"file_logging,omitempty"`
	History          *HistoryConfig     `json:"history,omitempty"`
}

// XDGInterface defines the interface for XDG directory operations
type XDGInterface interface {
	GetConfigPaths(filename string) []string
	GetCachePath(purpose string) string
	CreateCacheDir(purpose string) error
}

// ConfigManager handles loading, saving, and validating configuration
type ConfigManager struct {
	xdg XDGInterface
	fs  afero.Fs
}

// NewConfigManager creates a configuration manager backed by the OS filesystem
func NewConfigManager() *ConfigManager {
	return NewConfigManagerWithFilesystem(afero.NewOsFs())
}

// NewConfigManagerWithFilesystem creates a configuration manager on fs
func NewConfigManagerWithFilesystem(fs afero.Fs) *ConfigManager {
	slog.Debug("creating new config manager")
	return &ConfigManager{
		xdg: NewXDGDirs(fs),
		fs:  fs,
	}
}

// NewConfigManagerWithDependencies injects both the filesystem and the
// directory lookup, for tests that need fixed paths
func NewConfigManagerWithDependencies(fs afero.Fs, xdg XDGInterface) *ConfigManager {
	return &ConfigManager{xdg: xdg, fs: fs}
}

// GetDefaultConfig returns the default configuration
func (cm *ConfigManager) GetDefaultConfig() *Config {
	spec := audio.DefaultSpec()
	defaultConfig := &Config{
		Frequency:        spec.Frequency,
		Format:           spec.Format.String(),
		OutputChannels:   spec.Channels,
		ChunkSize:        spec.ChunkSize,
		MixChannels:      8,
		ReservedChannels: 0,
		MasterVolume:     128,
		MusicVolume:      128,
		AudioBackend:     audio.BackendAuto,
		LogLevel:         "warn",
		FileLogging: &FileLoggingConfig{
			Enabled:    false,
			Filename:   "", // Empty = XDG cache path
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		History: &HistoryConfig{
			Enabled:      true,
			DatabasePath: "",
		},
	}

	slog.Debug("generated default config",
		"frequency", defaultConfig.Frequency,
		"format", defaultConfig.Format,
		"mix_channels", defaultConfig.MixChannels,
		"audio_backend", defaultConfig.AudioBackend,
		"log_level", defaultConfig.LogLevel)

	return defaultConfig
}

// LoadFromFile loads configuration from a specific file. Fields missing
// from the file keep their default values.
func (cm *ConfigManager) LoadFromFile(filePath string) (*Config, error) {
	slog.Debug("loading config from file", "file_path", filePath)

	data, err := afero.ReadFile(cm.fs, filePath)
	if err != nil {
		slog.Error("failed to read config file", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := cm.GetDefaultConfig()
	err = json.Unmarshal(data, config)
	if err != nil {
		slog.Error("failed to parse config JSON", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	err = cm.ValidateConfig(config)
	if err != nil {
		slog.Error("config validation failed", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Debug("config loaded successfully",
		"file_path", filePath,
		"frequency", config.Frequency,
		"format", config.Format,
		"audio_backend", config.AudioBackend)

	return config, nil
}

// SaveToFile saves configuration to a specific file
func (cm *ConfigManager) SaveToFile(config *Config, filePath string) error {
	slog.Debug("saving config to file", "file_path", filePath)

	err := cm.ValidateConfig(config)
	if err != nil {
		slog.Error("cannot save invalid config", "error", err)
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(filePath)
	err = cm.fs.MkdirAll(dir, 0755)
	if err != nil {
		slog.Error("failed to create config directory", "directory", dir, "error", err)
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		slog.Error("failed to marshal config", "error", err)
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = afero.WriteFile(cm.fs, filePath, data, 0644)
	if err != nil {
		slog.Error("failed to write config file", "file_path", filePath, "error", err)
		return fmt.Errorf("failed to write config file: %w", err)
	}

	slog.Info("config saved successfully", "file_path", filePath)
	return nil
}

// LoadConfig loads configuration using XDG path discovery
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	slog.Debug("loading config using XDG path discovery")

	configPaths := cm.xdg.GetConfigPaths("config.json")
	slog.Debug("searching for config file", "paths", configPaths)

	for i, configPath := range configPaths {
		if _, err := cm.fs.Stat(configPath); err == nil {
			slog.Debug("found config file", "path_index", i, "path", configPath)
			return cm.LoadFromFile(configPath)
		}
	}

	slog.Debug("no config file found, using defaults")
	return cm.GetDefaultConfig(), nil
}

// ValidateConfig validates configuration values
func (cm *ConfigManager) ValidateConfig(config *Config) error {
	var errors []string

	if config.Frequency <= 0 {
		errors = append(errors, fmt.Sprintf("frequency must be positive, got %d", config.Frequency))
	}

	if _, err := audio.ParseSampleFormat(config.Format); err != nil {
		errors = append(errors, fmt.Sprintf("invalid format '%s', must be one of: u8, s16, s24, s32, f32", config.Format))
	}

	if config.OutputChannels != 1 && config.OutputChannels != 2 {
		errors = append(errors, fmt.Sprintf("output_channels must be 1 or 2, got %d", config.OutputChannels))
	}

	if config.ChunkSize <= 0 {
		errors = append(errors, fmt.Sprintf("chunk_size must be positive, got %d", config.ChunkSize))
	}

	if config.MixChannels < 0 {
		errors = append(errors, fmt.Sprintf("mix_channels must be >= 0, got %d", config.MixChannels))
	}

	if config.ReservedChannels < 0 || config.ReservedChannels > config.MixChannels {
		errors = append(errors, fmt.Sprintf("reserved_channels must be between 0 and mix_channels (%d), got %d",
			config.MixChannels, config.ReservedChannels))
	}

	if config.MasterVolume < 0 || config.MasterVolume > 128 {
		errors = append(errors, fmt.Sprintf("master_volume must be between 0 and 128, got %d", config.MasterVolume))
	}

	if config.MusicVolume < 0 || config.MusicVolume > 128 {
		errors = append(errors, fmt.Sprintf("music_volume must be between 0 and 128, got %d", config.MusicVolume))
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if config.LogLevel != "" {
		valid := false
		for _, level := range validLogLevels {
			if config.LogLevel == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("invalid log level '%s', must be one of: %s",
				config.LogLevel, strings.Join(validLogLevels, ", ")))
		}
	}

	if !cm.IsValidAudioBackend(config.AudioBackend) {
		errors = append(errors, fmt.Sprintf("invalid audio backend '%s', must be one of: %s",
			config.AudioBackend, strings.Join(cm.GetSupportedAudioBackends(), ", ")))
	}

	if config.FileLogging != nil {
		fileLogging := config.FileLogging

		if fileLogging.MaxSizeMB < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_size_mb must be >= 0, got %d", fileLogging.MaxSizeMB))
		}

		if fileLogging.MaxBackups < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_backups must be >= 0, got %d", fileLogging.MaxBackups))
		}

		if fileLogging.MaxAgeDays < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_age_days must be >= 0, got %d", fileLogging.MaxAgeDays))
		}
	}

	if len(errors) > 0 {
		errMsg := strings.Join(errors, "; ")
		slog.Error("config validation failed", "errors", errMsg)
		return fmt.Errorf("config validation failed: %s", errMsg)
	}

	slog.Debug("config validation passed")
	return nil
}

// ApplyEnvironmentOverrides applies MIXDECK_* environment variables to a copy of config
func (cm *ConfigManager) ApplyEnvironmentOverrides(config *Config) *Config {
	slog.Debug("applying environment variable overrides")

	result := *config

	envInt := func(name string, dst *int) {
		raw := os.Getenv(name)
		if raw == "" {
			return
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			slog.Warn("invalid integer environment variable", "name", name, "value", raw, "error", err)
			return
		}
		*dst = v
		slog.Debug("applied override from environment", "name", name, "value", v)
	}

	envInt("MIXDECK_FREQUENCY", &result.Frequency)
	envInt("MIXDECK_CHUNK_SIZE", &result.ChunkSize)
	envInt("MIXDECK_CHANNELS", &result.MixChannels)
	envInt("MIXDECK_MASTER_VOLUME", &result.MasterVolume)
	envInt("MIXDECK_MUSIC_VOLUME", &result.MusicVolume)

	if format := os.Getenv("MIXDECK_FORMAT"); format != "" {
		if _, err := audio.ParseSampleFormat(format); err == nil {
			result.Format = format
			slog.Debug("applied format override from environment", "value", format)
		} else {
			slog.Warn("invalid MIXDECK_FORMAT environment variable", "value", format)
		}
	}

	if logLevel := os.Getenv("MIXDECK_LOG_LEVEL"); logLevel != "" {
		result.LogLevel = logLevel
		slog.Debug("applied log level override from environment", "value", logLevel)
	}

	if audioBackend := os.Getenv("MIXDECK_AUDIO_BACKEND"); audioBackend != "" {
		if cm.IsValidAudioBackend(audioBackend) {
			result.AudioBackend = audioBackend
			slog.Debug("applied audio backend override from environment", "value", audioBackend)
		} else {
			slog.Warn("invalid MIXDECK_AUDIO_BACKEND environment variable", "value", audioBackend)
		}
	}

	if command, ok := os.LookupEnv("MIXDECK_MUSIC_COMMAND"); ok {
		result.MusicCommand = command
		slog.Debug("applied music command override from environment", "value", command)
	}

	if historyStr := os.Getenv("MIXDECK_HISTORY"); historyStr != "" {
		if enabled, err := strconv.ParseBool(historyStr); err == nil {
			history := HistoryConfig{}
			if result.History != nil {
				history = *result.History
			}
			history.Enabled = enabled
			result.History = &history
			slog.Debug("applied history override from environment", "value", enabled)
		} else {
			slog.Warn("invalid MIXDECK_HISTORY environment variable", "value", historyStr, "error", err)
		}
	}

	slog.Debug("environment overrides applied")
	return &result
}

// ToSpec converts the output settings into the spec requested from the device
func (cm *ConfigManager) ToSpec(config *Config) (audio.Spec, error) {
	format, err := audio.ParseSampleFormat(config.Format)
	if err != nil {
		return audio.Spec{}, err
	}
	spec := audio.Spec{
		Frequency: config.Frequency,
		Format:    format,
		Channels:  config.OutputChannels,
		ChunkSize: config.ChunkSize,
	}
	if err := spec.Validate(); err != nil {
		return audio.Spec{}, fmt.Errorf("invalid output settings: %w", err)
	}
	return spec, nil
}

// ParseLogLevel maps a config log level name to a slog.Level
func ParseLogLevel(logLevel string) (slog.Level, error) {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", logLevel)
	}
}

// ApplyLogLevel configures slog with the specified log level
func (cm *ConfigManager) ApplyLogLevel(logLevel string) error {
	return cm.ApplyLogLevelWithWriter(logLevel, os.Stderr)
}

// ApplyLogLevelWithWriter configures slog with the specified log level and custom writer
func (cm *ConfigManager) ApplyLogLevelWithWriter(logLevel string, writer io.Writer) error {
	if logLevel == "" {
		slog.Debug("no log level specified, keeping current slog configuration")
		return nil
	}

	level, err := ParseLogLevel(logLevel)
	if err != nil {
		slog.Error("invalid log level for slog configuration", "log_level", logLevel, "error", err)
		return err
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))

	slog.Debug("slog configured successfully", "log_level", logLevel, "slog_level", level)
	return nil
}

// ResolveLogFilePath resolves the log file path using XDG cache directory when filename is empty
func (cm *ConfigManager) ResolveLogFilePath(filename string) string {
	if filename != "" {
		return filename
	}
	return filepath.Join(cm.xdg.GetCachePath("logs"), "mixdeck.log")
}

// ResolveDatabasePath resolves the history database path, defaulting to the XDG cache directory
func (cm *ConfigManager) ResolveDatabasePath(path string) string {
	if path != "" {
		return path
	}
	return filepath.Join(cm.xdg.GetCachePath(""), "history.db")
}

// EnsureCacheDir creates the cache directory used for purpose
func (cm *ConfigManager) EnsureCacheDir(purpose string) error {
	return cm.xdg.CreateCacheDir(purpose)
}

// GetSupportedAudioBackends returns a list of all supported audio backend types
func (cm *ConfigManager) GetSupportedAudioBackends() []string {
	return audio.NewBackendFactory().GetSupportedBackends()
}

// IsValidAudioBackend checks if an audio backend type is supported
func (cm *ConfigManager) IsValidAudioBackend(backend string) bool {
	return audio.NewBackendFactory().IsValidBackendType(backend)
}
