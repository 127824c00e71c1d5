package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c360studio/semharvest/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := rootCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	assert.True(t, names["extract"], "extract command registered")
	assert.True(t, names["serve"], "serve command registered")
	assert.True(t, names["version"], "version command registered")
}

func TestSetup_ExplicitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n  format: json\n"), 0644))

	cfg, logger, err := setup(&rootOptions{configPath: path})
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestSetup_LogLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0644))

	cfg, _, err := setup(&rootOptions{configPath: path, logLevel: "WARN"})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestSetup_InvalidLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0644))

	_, _, err := setup(&rootOptions{configPath: path, logLevel: "verbose"})
	assert.Error(t, err)
}

func TestSetup_MissingExplicitConfig(t *testing.T) {
	_, _, err := setup(&rootOptions{configPath: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestNewLogger_Formats(t *testing.T) {
	assert.NotNil(t, newLogger(config.LogConfig{Level: "info", Format: "text"}))
	assert.NotNil(t, newLogger(config.LogConfig{Level: "debug", Format: "json"}))
}
