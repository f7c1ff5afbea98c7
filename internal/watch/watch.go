// Package watch re-runs a build whenever files under a directory change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// Filter reports whether an event on path (absolute) should trigger a rebuild.
type Filter func(path string) bool

// BuildFunc is invoked once per debounced burst of changes.
type BuildFunc func(ctx context.Context) error

// Options configures Watch.
type Options struct {
	Root      string
	Recursive bool
	Debounce  time.Duration
	Filter    Filter
	Logger    *slog.Logger
}

// Watch starts an fsnotify watcher on opts.Root and calls build after each
// debounced burst of relevant events until ctx is cancelled. Build errors
// are logged and do not stop the loop. Builds never overlap.
//
// With Recursive set, new directories created at runtime are added to the
// watch list.
func Watch(ctx context.Context, opts Options, build BuildFunc) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if opts.Recursive {
		err = addDirsRecursive(w, opts.Root)
	} else {
		err = w.Add(opts.Root)
	}
	if err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", opts.Root), slog.Bool("recursive", opts.Recursive))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			logger.Debug("watcher: rebuilding")
			if err := build(ctx); err != nil {
				logger.Warn("watcher: rebuild failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if opts.Recursive && ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					schedule()
					continue
				}
			}

			if ev.Op == fsnotify.Chmod {
				continue
			}
			if opts.Filter != nil && !opts.Filter(ev.Name) {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
