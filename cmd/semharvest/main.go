// Package main provides the semharvest binary entry point.
// Semharvest extracts structured tokens from markdown and HTML
// documents, either as a one-shot CLI pass or as an HTTP service.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/c360studio/semharvest/config"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semharvest"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Hardened markdown token extraction",
		Long: `Semharvest runs structured collectors over markdown and HTML
documents and reports the links, headings, tables, and embedded HTML
they contain, with per-collector fault isolation and resource limits.

Configuration is layered: built-in defaults, then ~/.config/semharvest,
then a semharvest.yaml found in the working tree, then --config.`,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(newExtractCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// setup loads the layered configuration, applies flag overrides, and
// installs the configured logger as the slog default.
func setup(opts *rootOptions) (*config.Config, *slog.Logger, error) {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.NewLoader(bootstrap).Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	if opts.logLevel != "" {
		cfg.Log.Level = strings.ToLower(opts.logLevel)
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// newLogger builds a logger from the log configuration.
func newLogger(cfg config.LogConfig) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	return slog.New(handler)
}
