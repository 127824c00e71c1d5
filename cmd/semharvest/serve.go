package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/c360studio/semharvest/api"
	"github.com/c360studio/semharvest/config"
	"github.com/c360studio/semharvest/metrics"
	"github.com/c360studio/semharvest/storage"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the extraction HTTP service",
		Long: `Serve exposes the extraction pipeline over HTTP. POST markdown or
HTML to /v1/extract and receive the full report as JSON.

When nats.url is configured, results are also persisted to JetStream
key-value buckets and the document endpoints under /v1/documents are
enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(root)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The store is optional: without NATS the service still extracts,
	// it just does not persist results.
	var store api.ReportStore
	var conn *nats.Conn
	if cfg.NATS.URL != "" {
		var err error
		conn, err = nats.Connect(cfg.NATS.URL, nats.Name(appName))
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}

		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create jetstream context: %w", err)
		}

		st, err := storage.NewStore(ctx, js)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create store: %w", err)
		}
		store = st
		logger.Info("result store enabled", "url", cfg.NATS.URL)
	}

	srv := api.NewServer(cfg, store, metrics.New(), logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	logger.Info("server listening", "addr", cfg.Server.Addr)

	select {
	case err := <-errCh:
		if conn != nil {
			conn.Close()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if conn != nil {
		if err := conn.Drain(); err != nil {
			logger.Warn("nats drain failed", "error", err)
		}
		conn.Close()
	}

	logger.Info("shutdown complete")
	return nil
}
