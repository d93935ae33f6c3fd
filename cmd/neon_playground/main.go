// neon_playground is a live HTML/CSS/JS playground whose preview console
// output is relayed back to the host log.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajsharma/neon_playground/internal/config"
	"github.com/ajsharma/neon_playground/internal/logging"
	"github.com/ajsharma/neon_playground/internal/redact"
	"github.com/ajsharma/neon_playground/internal/transcript"
)

// flagCfg receives command-line values. Only flags the user actually set
// are copied over the loaded configuration.
var flagCfg = config.DefaultConfig()

var (
	configPath string
	cfg        *config.Config
	logger     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "neon_playground",
	Short: "Live HTML/CSS/JS playground with a preview console bridge",
	Long: `neon_playground composes three source buffers (index.html, style.css,
script.js) into one preview document, renders it in an isolated target and
relays the preview's console output back to a host log.

Example:
  # Serve the browser playground on 127.0.0.1:8080
  neon_playground serve

  # Render a project directory once and print its log
  neon_playground run ./my_project

  # Re-render on every save, Chrome as the preview surface
  neon_playground watch ./my_project --surface chrome --launch

  # Write neon-editor-project.html
  neon_playground export ./my_project`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.Version = config.Version

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "",
		"Config file (default $XDG_CONFIG_HOME/neon_playground/config.toml)")

	// Logging flags
	pf.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel,
		"Operational log level (debug, info, warn, error)")
	pf.BoolVar(&flagCfg.LogDev, "log-dev", flagCfg.LogDev,
		"Human-readable development logging")

	// Transcript flags
	pf.StringVar(&flagCfg.TranscriptDir, "transcript", flagCfg.TranscriptDir,
		"Mirror each session's log as JSONL under this directory")
	pf.BoolVarP(&flagCfg.Redact, "redact", "r", flagCfg.Redact,
		"Redact sensitive values in transcripts")
	pf.Bool("no-redact", false, "Disable transcript redaction")
	pf.DurationVar(&flagCfg.FlushInterval, "flush-interval", flagCfg.FlushInterval,
		"Flush interval for transcript buffering")
	pf.IntVar(&flagCfg.BufferSize, "buffer-size", flagCfg.BufferSize,
		"Transcript buffer size per session in bytes")

	rootCmd.AddCommand(serveCmd, runCmd, watchCmd, exportCmd, initCmd, versionCmd)
}

// flagOverrides copies a flag's value from flagCfg when the flag was set.
var flagOverrides = map[string]func(dst *config.Config){
	"log-level":      func(dst *config.Config) { dst.LogLevel = flagCfg.LogLevel },
	"log-dev":        func(dst *config.Config) { dst.LogDev = flagCfg.LogDev },
	"transcript":     func(dst *config.Config) { dst.TranscriptDir = flagCfg.TranscriptDir },
	"redact":         func(dst *config.Config) { dst.Redact = flagCfg.Redact },
	"flush-interval": func(dst *config.Config) { dst.FlushInterval = flagCfg.FlushInterval },
	"buffer-size":    func(dst *config.Config) { dst.BufferSize = flagCfg.BufferSize },
	"listen":         func(dst *config.Config) { dst.ListenAddr = flagCfg.ListenAddr },
	"rate-limit":     func(dst *config.Config) { dst.RateLimitEnabled = flagCfg.RateLimitEnabled },
	"auto-run":       func(dst *config.Config) { dst.AutoRun = flagCfg.AutoRun },
	"delay":          func(dst *config.Config) { dst.RenderDelay = flagCfg.RenderDelay },
	"surface":        func(dst *config.Config) { dst.Surface = flagCfg.Surface },
	"timeout":        func(dst *config.Config) { dst.ScriptTimeout = flagCfg.ScriptTimeout },
	"max-timers":     func(dst *config.Config) { dst.MaxTimers = flagCfg.MaxTimers },
	"pool-size":      func(dst *config.Config) { dst.PoolSize = flagCfg.PoolSize },
	"port":           func(dst *config.Config) { dst.ChromePort = flagCfg.ChromePort },
	"launch":         func(dst *config.Config) { dst.AutoLaunch = flagCfg.AutoLaunch },
}

// setup loads defaults, the config file, NEON_* variables and finally the
// flags, then builds the operational logger.
func setup(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		if def := config.DefaultPath(); def != "" {
			if _, err := os.Stat(def); err == nil {
				path = def
			} else if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to stat config file: %w", err)
			}
		}
	}

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	for name, apply := range flagOverrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply(loaded)
		}
	}
	if noRedact, _ := cmd.Flags().GetBool("no-redact"); noRedact {
		loaded.Redact = false
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded

	logCfg := logging.DefaultConfig()
	if cfg.LogDev {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.LogLevel
	logger, err = logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if path != "" {
		logger.Debug("Loaded config file", zap.String("path", path))
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newFileManager returns the transcript file manager, or nil when
// transcripts are off.
func newFileManager() (*transcript.FileManager, error) {
	if cfg.TranscriptDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(cfg.TranscriptDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	fm := transcript.NewFileManager(cfg.TranscriptDir)
	fm.SetFlushInterval(cfg.FlushInterval)
	fm.SetBufferSize(cfg.BufferSize)
	logger.Info("Writing transcripts",
		zap.String("dir", cfg.TranscriptDir),
		zap.Bool("redact", cfg.Redact),
	)
	return fm, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "neon_playground %s\n", config.Version)
	},
}

func newRedactor() *redact.Redactor {
	return redact.New(cfg.Redact)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
