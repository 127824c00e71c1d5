package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Limits.MaxTokens != 100_000 {
		t.Errorf("expected default max tokens 100000, got %d", cfg.Limits.MaxTokens)
	}
	if cfg.Limits.CollectorTimeout != 2*time.Second {
		t.Errorf("expected default collector timeout 2s, got %v", cfg.Limits.CollectorTimeout)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default server addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("expected publishing disabled by default, got NATS URL %s", cfg.NATS.URL)
	}
	if cfg.Collectors.HTML.Enabled {
		t.Error("expected HTML collection disabled by default")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("expected info/text logging by default, got %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
}

func TestConfigValidate(t *testing.T) {
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
			name:    "missing server addr",
			modify:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
		},
		{
			name:    "non-positive body cap",
			modify:  func(c *Config) { c.Server.MaxBodyBytes = 0 },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
		},
		{
			name: "nats url without stream",
			modify: func(c *Config) {
				c.NATS.URL = "nats://localhost:4222"
				c.NATS.Stream = ""
			},
			wantErr: true,
		},
		{
			name:    "nats url with defaults for the rest",
			modify:  func(c *Config) { c.NATS.URL = "nats://localhost:4222" },
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

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
limits:
  max_tokens: 500
  max_bytes: 4096
  collector_timeout: 250ms
  strict_errors: true
collectors:
  relative_links: true
  html:
    enabled: true
    sanitize: true
server:
  addr: ":9090"
  max_body_bytes: 2048
nats:
  url: "nats://test:4222"
log:
  level: debug
  format: json
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Limits.MaxTokens != 500 {
		t.Errorf("expected max tokens 500, got %d", cfg.Limits.MaxTokens)
	}
	if cfg.Limits.MaxBytes != 4096 {
		t.Errorf("expected max bytes 4096, got %d", cfg.Limits.MaxBytes)
	}
	if cfg.Limits.CollectorTimeout != 250*time.Millisecond {
		t.Errorf("expected collector timeout 250ms, got %v", cfg.Limits.CollectorTimeout)
	}
	if !cfg.Limits.StrictErrors {
		t.Error("expected strict errors enabled")
	}
	if !cfg.Collectors.RelativeLinks {
		t.Error("expected relative links enabled")
	}
	if !cfg.Collectors.HTML.Enabled || !cfg.Collectors.HTML.Sanitize {
		t.Error("expected HTML collection with sanitization enabled")
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected server addr :9090, got %s", cfg.Server.Addr)
	}
	if cfg.Server.MaxBodyBytes != 2048 {
		t.Errorf("expected max body bytes 2048, got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	// Fields the file does not set keep their defaults
	if cfg.NATS.Stream != "SEMHARVEST" {
		t.Errorf("expected default stream SEMHARVEST, got %s", cfg.NATS.Stream)
	}
	if cfg.Limits.MaxNesting != 256 {
		t.Errorf("expected default max nesting 256, got %d", cfg.Limits.MaxNesting)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("SEMHARVEST_TEST_URL", "nats://from-env:4222")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
nats:
  url: "${SEMHARVEST_TEST_URL}"
  stream: "${SEMHARVEST_TEST_STREAM:-REPORTS}"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.NATS.URL != "nats://from-env:4222" {
		t.Errorf("expected URL from environment, got %s", cfg.NATS.URL)
	}
	if cfg.NATS.Stream != "REPORTS" {
		t.Errorf("expected fallback stream REPORTS, got %s", cfg.NATS.Stream)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{}
	override.Limits.MaxTokens = 2000
	override.Limits.StrictErrors = true
	override.Collectors.HTML.Enabled = true
	override.Server.Addr = ":7070"
	override.Log.Level = "debug"

	base.Merge(override)

	if base.Limits.MaxTokens != 2000 {
		t.Errorf("expected max tokens 2000, got %d", base.Limits.MaxTokens)
	}
	if !base.Limits.StrictErrors {
		t.Error("expected strict errors merged in")
	}
	if !base.Collectors.HTML.Enabled {
		t.Error("expected HTML collection merged in")
	}
	if base.Server.Addr != ":7070" {
		t.Errorf("expected server addr :7070, got %s", base.Server.Addr)
	}
	if base.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", base.Log.Level)
	}
	// Fields the override left zero keep their base values
	if base.Limits.CollectorTimeout != 2*time.Second {
		t.Errorf("expected collector timeout to remain default, got %v", base.Limits.CollectorTimeout)
	}
	if base.Server.MaxBodyBytes != 10<<20 {
		t.Errorf("expected max body bytes to remain default, got %d", base.Server.MaxBodyBytes)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":6060"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Server.Addr != ":6060" {
		t.Errorf("expected server addr :6060, got %s", loaded.Server.Addr)
	}
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("SEMHARVEST_TEST_SET", "value")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "set variable",
			input:    "x=${SEMHARVEST_TEST_SET}",
			expected: "x=value",
		},
		{
			name:     "set variable beats fallback",
			input:    "x=${SEMHARVEST_TEST_SET:-other}",
			expected: "x=value",
		},
		{
			name:     "unset variable with fallback",
			input:    "x=${SEMHARVEST_TEST_UNSET:-fallback}",
			expected: "x=fallback",
		},
		{
			name:     "unset variable without fallback",
			input:    "x=${SEMHARVEST_TEST_UNSET}",
			expected: "x=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnvWithDefaults(tt.input)
			if got != tt.expected {
				t.Errorf("ExpandEnvWithDefaults() = %q, want %q", got, tt.expected)
			}
		})
	}
}
