package compiler

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the interval at which Watch batches changes.
const DefaultDebounce = 300 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
	logger   *slog.Logger
}

// WithDebounce sets the interval at which changes are batched into one run.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(c *watchConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Watch calls run once, then again whenever a file below one of paths
// changes, until ctx is done. Directories are watched recursively and a file
// path watches that single file. Errors of run are logged and do not stop
// the watch.
func Watch(ctx context.Context, paths []string, run func(context.Context) error, opts ...WatchOption) error {
	cfg := watchConfig{debounce: DefaultDebounce, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	var (
		files = make(map[string]bool)
		roots []string
	)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			// Editors replace files on save, so the parent is watched.
			files[abs] = true
			if err := w.Add(filepath.Dir(abs)); err != nil {
				return err
			}
			continue
		}
		roots = append(roots, abs)
		if err := addRecursive(w, abs); err != nil {
			return err
		}
	}
	relevant := func(name string) bool {
		if files[name] {
			return true
		}
		for _, root := range roots {
			rel, err := filepath.Rel(root, name)
			if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
				continue
			}
			if !slices.ContainsFunc(strings.Split(rel, string(filepath.Separator)), isHidden) {
				return true
			}
		}
		return false
	}

	runOnce := func() {
		if err := run(ctx); err != nil {
			cfg.logger.Error("generation failed", slog.Any("error", err))
		}
	}
	runOnce()

	ticker := time.NewTicker(cfg.debounce)
	defer ticker.Stop()
	var pending bool
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || !relevant(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(w, event.Name); err != nil {
						cfg.logger.Warn("failed to watch directory", slog.String("path", event.Name), slog.Any("error", err))
					}
				}
			}
			cfg.logger.Debug("change detected", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			pending = true
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cfg.logger.Error("watcher error", slog.Any("error", err))
		case <-ticker.C:
			if pending {
				pending = false
				runOnce()
			}
		}
	}
}

// addRecursive watches root and every non-hidden directory below it.
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
