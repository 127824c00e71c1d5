package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/semharvest/source"
	"github.com/fsnotify/fsnotify"
)

const (
	// eventChannelBuffer is the size of the watch event channel.
	eventChannelBuffer = 256

	// defaultDebounce is how long to wait for more changes before processing.
	defaultDebounce = 500 * time.Millisecond
)

// watchOp indicates the type of file operation.
type watchOp string

const (
	watchOpCreate watchOp = "create"
	watchOpModify watchOp = "modify"
	watchOpDelete watchOp = "delete"
)

// watchEvent represents a change to a file matching one of the watched
// glob patterns.
type watchEvent struct {
	// Path is the absolute file path.
	Path string

	// Op is the type of change.
	Op watchOp
}

// fileWatcher watches the directories under a set of glob patterns and
// emits debounced events for matching files. Changes whose content hash
// is unchanged are suppressed, so editors that rewrite files on save do
// not trigger duplicate extractions.
type fileWatcher struct {
	patterns []string
	roots    []string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	excludes map[string]bool
	debounce time.Duration

	// Debouncing: collect changes before processing
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	// Hash-based change detection
	hashMu sync.RWMutex
	hashes map[string]string

	// Output channel
	events chan watchEvent

	// Metrics
	droppedEvents atomic.Int64
}

// newFileWatcher creates a watcher for the given glob patterns. Relative
// patterns are resolved against the current working directory.
func newFileWatcher(patterns []string, logger *slog.Logger) (*fileWatcher, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no patterns to watch")
	}
	if logger == nil {
		logger = slog.Default()
	}

	absPatterns, err := absolutePatterns(patterns)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &fileWatcher{
		patterns: absPatterns,
		roots:    watchRoots(absPatterns),
		watcher:  fsw,
		logger:   logger,
		excludes: map[string]bool{".git": true, "node_modules": true, "vendor": true},
		debounce: defaultDebounce,
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		events:   make(chan watchEvent, eventChannelBuffer),
	}, nil
}

// absolutePatterns rewrites each pattern as an absolute slash-separated
// path so that it can be matched against fsnotify event paths.
func absolutePatterns(patterns []string) ([]string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	abs := make([]string, len(patterns))
	for i, p := range patterns {
		if !filepath.IsAbs(p) {
			p = filepath.Join(wd, p)
		}
		abs[i] = filepath.ToSlash(p)
	}
	return abs, nil
}

// watchRoots returns the fixed directory prefix of each pattern. These
// are the trees that receive recursive fsnotify watches.
func watchRoots(absPatterns []string) []string {
	var roots []string
	seen := make(map[string]bool)

	for _, pattern := range absPatterns {
		base, _ := doublestar.SplitPattern(pattern)
		root := filepath.FromSlash(base)
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}
	return roots
}

// Events returns the channel of watch events.
func (w *fileWatcher) Events() <-chan watchEvent {
	return w.events
}

// Start begins watching the pattern roots for changes.
func (w *fileWatcher) Start(ctx context.Context) error {
	for _, root := range w.roots {
		if err := w.addWatchesRecursive(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}

	go w.processEvents(ctx)

	w.logger.Info("file watcher started",
		"roots", w.roots,
		"debounce", w.debounce)

	return nil
}

// Stop stops the watcher.
// The events channel is closed by processEvents when it exits.
func (w *fileWatcher) Stop() error {
	return w.watcher.Close()
}

// SetHash records the content hash for a file (used to seed the cache
// after the initial extraction pass).
func (w *fileWatcher) SetHash(path, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[path] = hash
}

// GetHash returns the recorded content hash for a file.
func (w *fileWatcher) GetHash(path string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[path]
	return hash, ok
}

// addWatchesRecursive adds watches to all directories under root.
func (w *fileWatcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Only watch directories
		if !info.IsDir() {
			return nil
		}

		// Skip excluded and hidden directories, but never the root
		// itself: the working directory may legitimately be one.
		base := filepath.Base(path)
		if path != root && (w.excludes[base] || isHidden(base)) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory",
				"path", path,
				"error", err)
		} else {
			w.logger.Debug("watching directory", "path", path)
		}

		return nil
	})
}

// isHidden reports whether a path element is a dot directory.
func isHidden(base string) bool {
	return len(base) > 1 && base[0] == '.'
}

// matchesAny reports whether the path matches one of the watched
// patterns.
func (w *fileWatcher) matchesAny(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range w.patterns {
		if ok, err := doublestar.Match(pattern, slashed); err == nil && ok {
			return true
		}
	}
	return false
}

// inExcludedDir reports whether the path has an excluded directory
// anywhere in it.
func (w *fileWatcher) inExcludedDir(path string) bool {
	dir := filepath.Dir(path)
	for dir != "" {
		base := filepath.Base(dir)
		if w.excludes[base] {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return false
}

// processEvents handles fsnotify events with debouncing.
func (w *fileWatcher) processEvents(ctx context.Context) {
	defer close(w.events) // Close events channel when goroutine exits
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent processes a single fsnotify event.
func (w *fileWatcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if !w.matchesAny(path) {
		// But handle directory creation (for new watches)
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.handleNewDirectory(path)
			}
		}
		return
	}

	if w.inExcludedDir(path) {
		return
	}

	// Accumulate pending changes
	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("file change detected",
		"path", path,
		"op", event.Op.String())
}

// handleNewDirectory adds a watch to a newly created directory.
func (w *fileWatcher) handleNewDirectory(path string) {
	base := filepath.Base(path)
	if w.excludes[base] || isHidden(base) {
		return
	}

	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("failed to watch new directory",
			"path", path,
			"error", err)
	} else {
		w.logger.Debug("added watch for new directory", "path", path)
	}
}

// flushPending processes accumulated changes.
func (w *fileWatcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}

	// Copy and clear pending
	toProcess := make(map[string]fsnotify.Op)
	for k, v := range w.pending {
		toProcess[k] = v
	}
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	// Process each change
	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event := watchEvent{Path: path}

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			// File deleted or renamed
			event.Op = watchOpDelete

			// Remove from hash cache
			w.hashMu.Lock()
			delete(w.hashes, path)
			w.hashMu.Unlock()

			w.sendEvent(event)
			continue
		}

		// Check if file still exists
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			event.Op = watchOpDelete
			w.sendEvent(event)
			continue
		}

		// Read file and compute hash
		content, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("failed to read file for hash check",
				"path", path,
				"error", err)
			continue
		}

		newHash := source.ContentHash(content)

		// Check if content actually changed
		oldHash, hadHash := w.GetHash(path)
		if hadHash && oldHash == newHash {
			// Content unchanged, skip
			continue
		}

		// Update hash cache
		w.SetHash(path, newHash)

		if op.Has(fsnotify.Create) || !hadHash {
			event.Op = watchOpCreate
		} else {
			event.Op = watchOpModify
		}

		w.sendEvent(event)
	}
}

// sendEvent sends an event to the output channel.
func (w *fileWatcher) sendEvent(event watchEvent) {
	select {
	case w.events <- event:
		w.logger.Debug("sent watch event",
			"path", event.Path,
			"op", event.Op)
	default:
		dropped := w.droppedEvents.Add(1)
		w.logger.Warn("event channel full, dropping event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}

// DroppedEvents returns the number of events dropped due to channel
// overflow.
func (w *fileWatcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}
