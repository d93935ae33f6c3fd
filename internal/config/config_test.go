package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	if cfg.ListenAddr != "127.0.0.1:8080" {
		t.Errorf("expected ListenAddr 127.0.0.1:8080, got %s", cfg.ListenAddr)
	}
	if cfg.RateLimitRPS != 100 || cfg.RateLimitBurst != 200 {
		t.Errorf("expected rate limit 100/200, got %d/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	// Render loop defaults
	if cfg.AutoRun != true {
		t.Errorf("expected AutoRun true, got %v", cfg.AutoRun)
	}
	if cfg.RenderDelay != 300*time.Millisecond {
		t.Errorf("expected RenderDelay 300ms, got %v", cfg.RenderDelay)
	}
	if cfg.IndicatorFade != 600*time.Millisecond {
		t.Errorf("expected IndicatorFade 600ms, got %v", cfg.IndicatorFade)
	}

	// Surface defaults
	if cfg.Surface != SurfaceSandbox {
		t.Errorf("expected Surface sandbox, got %s", cfg.Surface)
	}
	if cfg.ChromePort != "9222" {
		t.Errorf("expected ChromePort 9222, got %s", cfg.ChromePort)
	}
	if cfg.AutoLaunch != false {
		t.Errorf("expected AutoLaunch false, got %v", cfg.AutoLaunch)
	}

	// Transcript defaults
	if cfg.TranscriptDir != "" {
		t.Errorf("expected transcript disabled, got %s", cfg.TranscriptDir)
	}
	if cfg.FlushInterval != 100*time.Millisecond {
		t.Errorf("expected FlushInterval 100ms, got %v", cfg.FlushInterval)
	}
	if cfg.BufferSize != 8*1024 {
		t.Errorf("expected BufferSize 8192, got %d", cfg.BufferSize)
	}
	if cfg.Redact != true {
		t.Errorf("expected Redact true, got %v", cfg.Redact)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
listen_addr = ":9000"
auto_run = false
render_delay = "150ms"
indicator_fade = "1s"
surface = "chrome"
chrome_port = "9223"
auto_launch = true
transcript_dir = "./test_logs"
flush_interval = "200ms"
buffer_size = 16384
redact = false
log_level = "debug"
`

	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.ListenAddr != ":9000" {
		t.Errorf("expected ListenAddr :9000, got %s", cfg.ListenAddr)
	}
	if cfg.AutoRun != false {
		t.Errorf("expected AutoRun false, got %v", cfg.AutoRun)
	}
	if cfg.RenderDelay != 150*time.Millisecond {
		t.Errorf("expected RenderDelay 150ms, got %v", cfg.RenderDelay)
	}
	if cfg.IndicatorFade != time.Second {
		t.Errorf("expected IndicatorFade 1s, got %v", cfg.IndicatorFade)
	}
	if cfg.Surface != SurfaceChrome {
		t.Errorf("expected Surface chrome, got %s", cfg.Surface)
	}
	if cfg.ChromePort != "9223" {
		t.Errorf("expected ChromePort 9223, got %s", cfg.ChromePort)
	}
	if cfg.AutoLaunch != true {
		t.Errorf("expected AutoLaunch true, got %v", cfg.AutoLaunch)
	}
	if cfg.TranscriptDir != "./test_logs" {
		t.Errorf("expected TranscriptDir ./test_logs, got %s", cfg.TranscriptDir)
	}
	if cfg.FlushInterval != 200*time.Millisecond {
		t.Errorf("expected FlushInterval 200ms, got %v", cfg.FlushInterval)
	}
	if cfg.BufferSize != 16384 {
		t.Errorf("expected BufferSize 16384, got %d", cfg.BufferSize)
	}
	if cfg.Redact != false {
		t.Errorf("expected Redact false, got %v", cfg.Redact)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel debug, got %s", cfg.LogLevel)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.toml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFileInvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	err := os.WriteFile(configPath, []byte("invalid = [toml"), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err = LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestLoadFromFileInvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_duration.toml")

	err := os.WriteFile(configPath, []byte(`render_delay = "soon"`), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err = LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadFromFilePartialConfig(t *testing.T) {
	// Config file with only some values should use defaults for others
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.toml")

	configContent := `
chrome_port = "9224"
redact = false
`

	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	// Verify specified values
	if cfg.ChromePort != "9224" {
		t.Errorf("expected ChromePort 9224, got %s", cfg.ChromePort)
	}
	if cfg.Redact != false {
		t.Errorf("expected Redact false, got %v", cfg.Redact)
	}

	// Verify defaults are preserved
	if cfg.AutoRun != true {
		t.Errorf("expected AutoRun default true, got %v", cfg.AutoRun)
	}
	if cfg.RenderDelay != 300*time.Millisecond {
		t.Errorf("expected RenderDelay default 300ms, got %v", cfg.RenderDelay)
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	err := os.WriteFile(configPath, []byte("listen_addr = \":9000\"\nsurface = \"chrome\"\n"), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("NEON_LISTEN_ADDR", ":7000")
	t.Setenv("NEON_RENDER_DELAY", "50ms")
	t.Setenv("NEON_AUTO_RUN", "false")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":7000" {
		t.Errorf("expected ListenAddr :7000, got %s", cfg.ListenAddr)
	}
	if cfg.Surface != SurfaceChrome {
		t.Errorf("expected Surface chrome from file, got %s", cfg.Surface)
	}
	if cfg.RenderDelay != 50*time.Millisecond {
		t.Errorf("expected RenderDelay 50ms, got %v", cfg.RenderDelay)
	}
	if cfg.AutoRun != false {
		t.Errorf("expected AutoRun false, got %v", cfg.AutoRun)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Surface != SurfaceSandbox {
		t.Errorf("expected default Surface, got %s", cfg.Surface)
	}
}

func TestLoadInvalidEnvironment(t *testing.T) {
	t.Setenv("NEON_MAX_TIMERS", "many")

	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric NEON_MAX_TIMERS")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty listen address",
			modify:  func(c *Config) { c.ListenAddr = "" },
			wantErr: true,
		},
		{
			name:    "listen address without port",
			modify:  func(c *Config) { c.ListenAddr = "localhost" },
			wantErr: true,
		},
		{
			name:    "zero render delay",
			modify:  func(c *Config) { c.RenderDelay = 0 },
			wantErr: true,
		},
		{
			name:    "unknown surface",
			modify:  func(c *Config) { c.Surface = "firefox" },
			wantErr: true,
		},
		{
			name:    "empty chrome port",
			modify:  func(c *Config) { c.ChromePort = "" },
			wantErr: true,
		},
		{
			name:    "buffer size too small",
			modify:  func(c *Config) { c.BufferSize = 100 },
			wantErr: true,
		},
		{
			name:    "pool size zero",
			modify:  func(c *Config) { c.PoolSize = 0 },
			wantErr: true,
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: true,
		},
		{
			name:    "rate limit disabled ignores zero rps",
			modify: func(c *Config) {
				c.RateLimitEnabled = false
				c.RateLimitRPS = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
