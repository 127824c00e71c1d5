package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/semharvest/config"
	"github.com/c360studio/semharvest/harvest"
	"github.com/c360studio/semharvest/publish"
	"github.com/c360studio/semharvest/source"
	"github.com/spf13/cobra"
)

// extractOptions holds the extract command flags.
type extractOptions struct {
	JSON    bool
	Pretty  bool
	Watch   bool
	Publish bool
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract [globs...]",
		Short: "Extract tokens from markdown and HTML files",
		Long: `Extract runs the token extraction pipeline over every file matching
the given glob patterns. Patterns support single-level (*) and
recursive (**) wildcards:

  semharvest extract docs/**/*.md
  semharvest extract README.md 'site/**/*.html'

Files with an .html or .htm extension are converted to markdown before
extraction; everything else is treated as markdown. With --watch the
command keeps running and re-extracts files as they change.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(root)
			if err != nil {
				return err
			}
			if opts.Pretty {
				opts.JSON = true
			}
			return runExtract(cmd.Context(), cmd.OutOrStdout(), cfg, logger, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Emit one JSON result per document")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "Indent JSON output (implies --json)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Keep running and re-extract files when they change")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "Publish results to NATS (requires nats.url in the configuration)")

	return cmd
}

func runExtract(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger, patterns []string, opts extractOptions) error {
	files, err := resolveFiles(patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 && !opts.Watch {
		return fmt.Errorf("no files match %s", strings.Join(patterns, " "))
	}

	var pub *publish.Publisher
	if opts.Publish {
		if cfg.NATS.URL == "" {
			return fmt.Errorf("--publish requires nats.url in the configuration")
		}
		pub, err = publish.Connect(ctx, publish.Config{
			URL:           cfg.NATS.URL,
			Stream:        cfg.NATS.Stream,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer pub.Close()
	}

	hopts := harvest.Options{
		Limits:     cfg.Limits,
		Collectors: cfg.Collectors,
		Logger:     logger,
	}

	hashes := make(map[string]string, len(files))
	var failed int
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		hash, err := extractFile(ctx, out, path, hopts, opts, pub)
		if err != nil {
			failed++
			logger.Error("extract failed", "path", path, "error", err)
			continue
		}
		hashes[path] = hash
	}

	if !opts.Watch {
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(files))
		}
		return nil
	}

	return watchAndExtract(ctx, out, logger, patterns, hashes, hopts, opts, pub)
}

// extractFile runs the pipeline over a single file, writes the result,
// and returns the content hash of the file as read.
func extractFile(ctx context.Context, out io.Writer, path string, hopts harvest.Options, opts extractOptions, pub *publish.Publisher) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var res *harvest.Result
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		res, err = harvest.HTML(ctx, filepath.Base(path), content, hopts)
	default:
		res, err = harvest.Markdown(ctx, filepath.Base(path), content, hopts)
	}
	if err != nil {
		return "", err
	}

	if err := writeResult(out, path, res, opts); err != nil {
		return "", err
	}
	if err := pub.PublishResult(ctx, res); err != nil {
		return "", fmt.Errorf("publish %s: %w", res.Document.ID, err)
	}

	return source.ContentHash(content), nil
}

// writeResult prints one extraction result in the selected output mode.
func writeResult(out io.Writer, path string, res *harvest.Result, opts extractOptions) error {
	if !opts.JSON {
		rep := res.Report
		_, err := fmt.Fprintf(out, "%s: %d tokens, %d collectors, %d issues (%dms)\n",
			path, rep.TokenCount, len(rep.Results), len(rep.Issues), rep.DurationMs)
		return err
	}

	enc := json.NewEncoder(out)
	if opts.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}

// watchAndExtract re-extracts files as the watcher reports changes. It
// blocks until the context is canceled or an interrupt arrives.
func watchAndExtract(ctx context.Context, out io.Writer, logger *slog.Logger, patterns []string, hashes map[string]string, hopts harvest.Options, opts extractOptions, pub *publish.Publisher) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := newFileWatcher(patterns, logger)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Stop()

	// Seed the hash cache so unchanged files are not re-extracted when
	// the watcher sees a spurious first event.
	for path, hash := range hashes {
		watcher.SetHash(path, hash)
	}

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if event.Op == watchOpDelete {
				logger.Info("file removed", "path", event.Path)
				continue
			}
			if _, err := extractFile(ctx, out, event.Path, hopts, opts, pub); err != nil {
				logger.Error("extract failed", "path", event.Path, "error", err)
			}
		}
	}
}

// resolveFiles expands glob patterns to concrete files. Literal paths
// are stat'd directly so a missing file is reported instead of silently
// skipped; glob patterns matching nothing resolve to an empty set.
func resolveFiles(patterns []string) ([]string, error) {
	var resolved []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		paths, err := resolvePattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}

		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				resolved = append(resolved, p)
			}
		}
	}

	sort.Strings(resolved)
	return resolved, nil
}

// resolvePattern expands a single glob pattern to files.
func resolvePattern(pattern string) ([]string, error) {
	if !containsGlob(pattern) {
		absPath, err := filepath.Abs(pattern)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("path is a directory, not a file: %s", absPath)
		}

		return []string{absPath}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}

	var files []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue // Skip paths that can't be stat'd
		}
		if info.IsDir() {
			continue
		}
		absPath, err := filepath.Abs(match)
		if err != nil {
			continue
		}
		files = append(files, absPath)
	}

	return files, nil
}

// containsGlob checks if a pattern contains glob characters.
func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
