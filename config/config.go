// Package config provides configuration loading and management for
// Semharvest.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semharvest/extract"
	"github.com/c360studio/semharvest/extract/collectors"
)

// Config represents the complete Semharvest configuration
type Config struct {
	Limits     extract.Limits    `yaml:"limits"`
	Collectors collectors.Config `yaml:"collectors"`
	Server     ServerConfig      `yaml:"server"`
	NATS       NATSConfig        `yaml:"nats"`
	Log        LogConfig         `yaml:"log"`
}

// ServerConfig configures the HTTP API server
type ServerConfig struct {
	// Addr is the listen address (default: :8080)
	Addr string `yaml:"addr"`
	// MaxBodyBytes caps request bodies on the extract endpoint
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// ShutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// NATSConfig configures report publishing over NATS JetStream
type NATSConfig struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL string `yaml:"url"`
	// Stream is the JetStream stream holding extraction reports
	Stream string `yaml:"stream"`
	// SubjectPrefix prefixes per-document result subjects
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LogConfig configures structured logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// SlogLevel maps the configured level name onto slog. Unknown names fall
// back to info; Validate rejects them before this ever matters.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Limits:     extract.DefaultLimits(),
		Collectors: collectors.Config{},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxBodyBytes:    10 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			URL:           "", // Publishing disabled
			Stream:        "SEMHARVEST",
			SubjectPrefix: "semharvest.extract",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	if c.NATS.URL != "" {
		if c.NATS.Stream == "" {
			return fmt.Errorf("nats.stream is required when nats.url is set")
		}
		if c.NATS.SubjectPrefix == "" {
			return fmt.Errorf("nats.subject_prefix is required when nats.url is set")
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. Environment
// variables in the file are expanded before parsing; see
// ExpandEnvWithDefaults for the supported syntax.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := ExpandEnvWithDefaults(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). Boolean fields merge true over false only.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Limits
	if other.Limits.MaxTokens != 0 {
		c.Limits.MaxTokens = other.Limits.MaxTokens
	}
	if other.Limits.MaxBytes != 0 {
		c.Limits.MaxBytes = other.Limits.MaxBytes
	}
	if other.Limits.MaxNesting != 0 {
		c.Limits.MaxNesting = other.Limits.MaxNesting
	}
	if other.Limits.CollectorTimeout != 0 {
		c.Limits.CollectorTimeout = other.Limits.CollectorTimeout
	}
	if other.Limits.StrictErrors {
		c.Limits.StrictErrors = true
	}

	// Collectors
	if other.Collectors.RelativeLinks {
		c.Collectors.RelativeLinks = true
	}
	if other.Collectors.HTML.Enabled {
		c.Collectors.HTML.Enabled = true
	}
	if other.Collectors.HTML.Sanitize {
		c.Collectors.HTML.Sanitize = true
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.MaxBodyBytes != 0 {
		c.Server.MaxBodyBytes = other.Server.MaxBodyBytes
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Stream != "" {
		c.NATS.Stream = other.NATS.Stream
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}

// ExpandEnvWithDefaults expands environment variable references in a
// string. Supports ${VAR}, $VAR and ${VAR:-default} syntax; unset
// variables without a default expand to the empty string.
func ExpandEnvWithDefaults(s string) string {
	return os.Expand(s, func(name string) string {
		key, fallback, hasFallback := strings.Cut(name, ":-")
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		if hasFallback {
			return fallback
		}
		return ""
	})
}
