package typegen

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used by Watch when no debounce period is given.
const DefaultDebounce = 200 * time.Millisecond

type watcher struct {
	opts     Options
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	debounce time.Duration
	output   string

	mu      sync.Mutex
	timer   *time.Timer
	trigger chan struct{}
}

// Watch generates once, then regenerates whenever a file below the collector
// roots changes, until ctx is cancelled. Bursts of events within the debounce
// period cause a single regeneration. Failed runs are logged and the previous
// output is left in place.
func Watch(ctx context.Context, logger *slog.Logger, opts Options, debounce time.Duration) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fsnotify watcher")
	}
	defer fsw.Close()

	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", opts.Output)
	}
	w := &watcher{
		opts:     opts,
		logger:   logger,
		fsw:      fsw,
		debounce: debounce,
		output:   output,
		trigger:  make(chan struct{}, 1),
	}
	for _, root := range opts.Collector.Roots() {
		if err := w.addTree(root); err != nil {
			return err
		}
	}

	w.generate(ctx)
	return w.loop(ctx)
}

func (w *watcher) loop(ctx context.Context) error {
	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.trigger:
			w.generate(ctx)
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

func (w *watcher) handle(event fsnotify.Event) {
	if w.isOwnOutput(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
			}
		}
	}
	w.logger.Debug("Watcher detected change", "file", event.Name, "op", event.Op.String())
	w.schedule()
}

// isOwnOutput reports whether path is the output file or one of the temp
// files written while replacing it.
func (w *watcher) isOwnOutput(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if abs == w.output {
		return true
	}
	return filepath.Dir(abs) == filepath.Dir(w.output) &&
		strings.HasPrefix(filepath.Base(abs), "."+filepath.Base(w.output)+".")
}

func (w *watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.trigger <- struct{}{}:
		default:
		}
	})
}

func (w *watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *watcher) generate(ctx context.Context) {
	if err := Generate(ctx, w.logger, w.opts); err != nil {
		w.logger.Error("Generation failed", "error", err)
	}
}

// addTree watches dir and every directory below it; fsnotify is not recursive.
func (w *watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "watch %s", path)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return errors.Wrapf(err, "watch %s", path)
		}
		return nil
	})
}
