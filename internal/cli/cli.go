package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"mixdeck.click/internal/audio"
	"mixdeck.click/internal/config"
	"mixdeck.click/internal/tracking"
)

const Version = "0.4.0"

// CLI represents the command-line interface
type CLI struct {
	rootCmd          *cobra.Command
	fs               afero.Fs
	configManager    *config.ConfigManager
	backendFactory   *audio.BackendFactory
	terminalDetector TerminalDetector

	historyDB     *sql.DB // Optional play history database
	ownsHistoryDB bool
	sessionID     string
}

type cliContextKey struct{}

// NewCLI creates a CLI working on the real filesystem
func NewCLI() *CLI {
	return NewCLIWithFilesystem(afero.NewOsFs())
}

// NewCLIWithFilesystem creates a CLI whose config, sounds and render output live on fs
func NewCLIWithFilesystem(fs afero.Fs) *CLI {
	slog.Debug("creating new CLI instance")

	rootCmd := &cobra.Command{
		Use:   "mixdeck",
		Short: "Multi-channel audio mixer",
		Long: `mixdeck mixes sound effects on a fixed set of channels together with one
streamed music track, and plays the result on a hardware backend or renders it
to a WAV file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handled, err := handleVersionFlag(cmd); handled {
				return err
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("backend", "", "Audio backend (auto, malgo, oto, headless)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("root", "", "Resolve sound paths inside this directory")
	rootCmd.PersistentFlags().String("bank", "", "Sound bank (directory or JSON file) to look names up in")
	rootCmd.PersistentFlags().Bool("no-history", false, "Do not record plays in the history database")
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(newPlayCommand())
	rootCmd.AddCommand(newMusicCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newFormatsCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return &CLI{
		rootCmd:        rootCmd,
		fs:             fs,
		configManager:  config.NewConfigManagerWithFilesystem(fs),
		backendFactory: audio.NewBackendFactory(),
	}
}

func contextWithCLI(ctx context.Context, cli *CLI) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cli)
}

func cliFromContext(ctx context.Context) *CLI {
	if cli, ok := ctx.Value(cliContextKey{}).(*CLI); ok {
		return cli
	}
	return nil
}

// mustCLI returns the CLI stored in the command context
func mustCLI(cmd *cobra.Command) (*CLI, error) {
	cli := cliFromContext(cmd.Context())
	if cli == nil {
		return nil, fmt.Errorf("CLI instance not found in context")
	}
	return cli, nil
}

// handleVersionFlag reports whether the version flag was set and printed
func handleVersionFlag(cmd *cobra.Command) (bool, error) {
	version, _ := cmd.Flags().GetBool("version")
	if version {
		cmd.Printf("mixdeck version %s\n", Version)
		return true, nil
	}
	return false, nil
}

// loadAndValidateConfig loads configuration from flags and files, applies overrides, and validates
func (c *CLI) loadAndValidateConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	backend, _ := cmd.Flags().GetString("backend")
	logLevel, _ := cmd.Flags().GetString("log-level")
	noHistory, _ := cmd.Flags().GetBool("no-history")

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = c.configManager.LoadFromFile(configFile)
	} else {
		cfg, err = c.configManager.LoadConfig()
	}
	if err != nil {
		slog.Error("config load failed", "error", err)
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	cfg = c.configManager.ApplyEnvironmentOverrides(cfg)

	if backend != "" {
		cfg.AudioBackend = backend
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if noHistory && cfg.History != nil {
		history := *cfg.History
		history.Enabled = false
		cfg.History = &history
	}

	if err := c.configManager.ValidateConfig(cfg); err != nil {
		slog.Error("config validation failed", "error", err)
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupLogging sends records at the configured level to stderr and, when file
// logging is enabled, everything from debug up to a rotating log file
func (c *CLI) setupLogging(cfg *config.Config, stderr io.Writer) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	}

	if cfg.FileLogging != nil && cfg.FileLogging.Enabled {
		logFilePath := c.configManager.ResolveLogFilePath(cfg.FileLogging.Filename)
		logDir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			slog.Error("failed to create log directory", "path", logDir, "error", err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    cfg.FileLogging.MaxSizeMB,
				MaxBackups: cfg.FileLogging.MaxBackups,
				MaxAge:     cfg.FileLogging.MaxAgeDays,
				Compress:   cfg.FileLogging.Compress,
			}
			handlers = append(handlers, slog.NewTextHandler(fileWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}

	slog.SetDefault(slog.New(NewMultiLevelHandler(handlers...)))
	slog.Debug("logging setup completed",
		"level", level.String(),
		"handlers", len(handlers),
		"file_enabled", len(handlers) > 1)
}

// initializeHistory opens the history database when enabled. Failures are
// logged and playback continues without history.
func (c *CLI) initializeHistory(cfg *config.Config) {
	if c.historyDB != nil {
		return
	}
	if cfg.History == nil || !cfg.History.Enabled {
		slog.Debug("play history disabled")
		return
	}

	dbPath := c.configManager.ResolveDatabasePath(cfg.History.DatabasePath)
	db, err := tracking.NewDatabase(dbPath)
	if err != nil {
		slog.Error("failed to open history database, continuing without history", "path", dbPath, "error", err)
		return
	}
	c.historyDB = db
	c.ownsHistoryDB = true
	slog.Debug("history database initialized", "path", dbPath)
}

// session returns the id recorded with every play of this invocation
func (c *CLI) session() string {
	if c.sessionID == "" {
		c.sessionID = fmt.Sprintf("%d-%d", os.Getpid(), time.Now().UnixNano())
	}
	return c.sessionID
}

// Run executes the CLI with the given arguments and I/O streams
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	slog.Debug("CLI run started", "args", args)

	defer func() {
		if c.historyDB != nil && c.ownsHistoryDB {
			if err := c.historyDB.Close(); err != nil {
				slog.Error("error closing history database", "error", err)
			}
			c.historyDB = nil
		}
	}()

	c.rootCmd.SetArgs(args[1:])
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)

	ctx, stop := signalContext(context.Background())
	defer stop()

	if err := c.rootCmd.ExecuteContext(contextWithCLI(ctx, c)); err != nil {
		slog.Debug("command failed", "error", err)
		return 1
	}
	return 0
}
