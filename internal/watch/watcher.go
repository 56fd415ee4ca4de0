package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"imgsync/internal/logging"
)

// DefaultDebounce is the quiet period used when Options.Debounce is unset.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Root string
	// Match selects the files whose changes are reported.
	Match func(path string) bool
	// SkipDir excludes directories from being watched, such as the image root.
	SkipDir  func(path string) bool
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher reports changed documents in batches.
type Watcher struct {
	root     string
	match    func(string) bool
	skipDir  func(string) bool
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// New constructs a Watcher.
func New(opts Options) *Watcher {
	w := &Watcher{
		root:     opts.Root,
		match:    opts.Match,
		skipDir:  opts.SkipDir,
		debounce: opts.Debounce,
		logger:   logging.NewComponentLogger(opts.Logger, "watch"),
		pending:  make(map[string]struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.match == nil {
		w.match = func(string) bool { return true }
	}
	if w.skipDir == nil {
		w.skipDir = func(string) bool { return false }
	}
	return w
}

// Run watches the root until ctx is cancelled. handle receives each batch of
// changed paths, sorted, once no new change arrived for the debounce interval.
// Batches are delivered one at a time from the calling goroutine.
func (w *Watcher) Run(ctx context.Context, handle func(context.Context, []string)) error {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, root); err != nil {
		return err
	}
	w.logger.Info("watching for document changes", logging.String("root", root))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(fsw, event) {
				timer.Reset(w.debounce)
			}
		case werr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watch error", "watch_error",
				logging.Error(werr),
				logging.String(logging.FieldImpact, "some changes may be missed until restart"),
			)
		case <-timer.C:
			if batch := w.drain(); len(batch) > 0 {
				handle(ctx, batch)
			}
		}
	}
}

// handleEvent records relevant changes and reports whether the debounce
// timer should restart.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addTree(fsw, event.Name); err != nil {
				w.logger.Debug("watch new directory failed", logging.String("path", event.Name), logging.Error(err))
			}
		}
		return false
	}
	if !info.Mode().IsRegular() || !w.match(event.Name) {
		return false
	}
	w.mu.Lock()
	w.pending[event.Name] = struct{}{}
	w.mu.Unlock()
	return true
}

func (w *Watcher) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := make([]string, 0, len(w.pending))
	for path := range w.pending {
		batch = append(batch, path)
	}
	clear(w.pending)
	slices.Sort(batch)
	return batch
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
