// Package config provides configuration management for neon_playground.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
)

// Version is the current version of neon_playground.
// This is set at build time via ldflags.
var Version = "dev"

// EnvPrefix prefixes every environment override, e.g. NEON_LISTEN_ADDR.
const EnvPrefix = "NEON"

// Preview surfaces.
const (
	SurfaceSandbox = "sandbox"
	SurfaceChrome  = "chrome"
)

// Config holds all configuration options for neon_playground.
type Config struct {
	// Server
	ListenAddr       string `envconfig:"LISTEN_ADDR"`
	RateLimitEnabled bool   `envconfig:"RATE_LIMIT_ENABLED"`
	RateLimitRPS     int    `envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst   int    `envconfig:"RATE_LIMIT_BURST"`

	// Render loop
	AutoRun       bool          `envconfig:"AUTO_RUN"`
	RenderDelay   time.Duration `envconfig:"RENDER_DELAY"`
	IndicatorFade time.Duration `envconfig:"INDICATOR_FADE"`

	// Preview surface
	Surface       string        `envconfig:"SURFACE"`
	ScriptTimeout time.Duration `envconfig:"SCRIPT_TIMEOUT"`
	MaxTimers     int           `envconfig:"MAX_TIMERS"`
	PoolSize      int           `envconfig:"POOL_SIZE"`
	ChromePort    string        `envconfig:"CHROME_PORT"`
	AutoLaunch    bool          `envconfig:"AUTO_LAUNCH"`

	// Transcript
	TranscriptDir string        `envconfig:"TRANSCRIPT_DIR"`
	FlushInterval time.Duration `envconfig:"FLUSH_INTERVAL"`
	BufferSize    int           `envconfig:"BUFFER_SIZE"`
	Redact        bool          `envconfig:"REDACT"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL"`
	LogDev   bool   `envconfig:"LOG_DEV"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		// Server
		ListenAddr:       "127.0.0.1:8080",
		RateLimitEnabled: true,
		RateLimitRPS:     100,
		RateLimitBurst:   200,

		// Render loop
		AutoRun:       true,
		RenderDelay:   300 * time.Millisecond,
		IndicatorFade: 600 * time.Millisecond,

		// Preview surface
		Surface:       SurfaceSandbox,
		ScriptTimeout: 5 * time.Second,
		MaxTimers:     100,
		PoolSize:      4,
		ChromePort:    "9222",
		AutoLaunch:    false,

		// Transcript
		TranscriptDir: "",
		FlushInterval: 100 * time.Millisecond,
		BufferSize:    8 * 1024, // 8 KB
		Redact:        true,

		// Logging
		LogLevel: "info",
		LogDev:   false,
	}
}

// fileConfig mirrors Config for TOML files. Pointer fields distinguish keys
// that are absent from keys set to their zero value.
type fileConfig struct {
	ListenAddr       *string `toml:"listen_addr"`
	RateLimitEnabled *bool   `toml:"rate_limit_enabled"`
	RateLimitRPS     *int    `toml:"rate_limit_rps"`
	RateLimitBurst   *int    `toml:"rate_limit_burst"`

	AutoRun       *bool   `toml:"auto_run"`
	RenderDelay   *string `toml:"render_delay"`
	IndicatorFade *string `toml:"indicator_fade"`

	Surface       *string `toml:"surface"`
	ScriptTimeout *string `toml:"script_timeout"`
	MaxTimers     *int    `toml:"max_timers"`
	PoolSize      *int    `toml:"pool_size"`
	ChromePort    *string `toml:"chrome_port"`
	AutoLaunch    *bool   `toml:"auto_launch"`

	TranscriptDir *string `toml:"transcript_dir"`
	FlushInterval *string `toml:"flush_interval"`
	BufferSize    *int    `toml:"buffer_size"`
	Redact        *bool   `toml:"redact"`

	LogLevel *string `toml:"log_level"`
	LogDev   *bool   `toml:"log_dev"`
}

// LoadFromFile reads a TOML config file. Keys missing from the file keep
// their default values.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds the effective configuration: defaults, then the config file
// (if path is non-empty), then NEON_* environment variables. Command-line
// flags are applied by the caller afterwards.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	return cfg, nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "neon_playground", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "neon_playground", "config.toml")
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.ListenAddr, fc.ListenAddr)
	setBool(&c.RateLimitEnabled, fc.RateLimitEnabled)
	setInt(&c.RateLimitRPS, fc.RateLimitRPS)
	setInt(&c.RateLimitBurst, fc.RateLimitBurst)

	setBool(&c.AutoRun, fc.AutoRun)
	setString(&c.Surface, fc.Surface)
	setInt(&c.MaxTimers, fc.MaxTimers)
	setInt(&c.PoolSize, fc.PoolSize)
	setString(&c.ChromePort, fc.ChromePort)
	setBool(&c.AutoLaunch, fc.AutoLaunch)

	setString(&c.TranscriptDir, fc.TranscriptDir)
	setInt(&c.BufferSize, fc.BufferSize)
	setBool(&c.Redact, fc.Redact)

	setString(&c.LogLevel, fc.LogLevel)
	setBool(&c.LogDev, fc.LogDev)

	durations := []struct {
		key string
		dst *time.Duration
		src *string
	}{
		{"render_delay", &c.RenderDelay, fc.RenderDelay},
		{"indicator_fade", &c.IndicatorFade, fc.IndicatorFade},
		{"script_timeout", &c.ScriptTimeout, fc.ScriptTimeout},
		{"flush_interval", &c.FlushInterval, fc.FlushInterval},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, *d.src, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// Validate checks the configuration for values the program cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	} else if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("invalid listen address %q: %w", c.ListenAddr, err))
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		errs = append(errs, errors.New("rate limit rps and burst must be positive"))
	}

	if c.RenderDelay <= 0 {
		errs = append(errs, errors.New("render delay must be positive"))
	}
	if c.IndicatorFade <= 0 {
		errs = append(errs, errors.New("indicator fade must be positive"))
	}

	switch c.Surface {
	case SurfaceSandbox, SurfaceChrome:
	default:
		errs = append(errs, fmt.Errorf("unknown preview surface %q (want %s or %s)", c.Surface, SurfaceSandbox, SurfaceChrome))
	}
	if c.ScriptTimeout <= 0 {
		errs = append(errs, errors.New("script timeout must be positive"))
	}
	if c.MaxTimers < 0 {
		errs = append(errs, errors.New("max timers cannot be negative"))
	}
	if c.PoolSize < 1 {
		errs = append(errs, errors.New("pool size must be at least 1"))
	}
	if c.ChromePort == "" {
		errs = append(errs, errors.New("chrome port is required"))
	}

	if c.FlushInterval <= 0 {
		errs = append(errs, errors.New("flush interval must be positive"))
	}
	if c.BufferSize < 1024 {
		errs = append(errs, fmt.Errorf("buffer size %d is below the 1024 byte minimum", c.BufferSize))
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}
