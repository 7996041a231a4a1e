package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a rebuild starts.
const DefaultDebounce = 500 * time.Millisecond

// skipDirs are never watched.
var skipDirs = map[string]bool{
	"__pycache__":  true,
	".git":         true,
	".venv":        true,
	"venv":         true,
	"node_modules": true,
	".mypy_cache":  true,
}

// Watcher triggers rebuilds on source changes.
type Watcher struct {
	roots    []string
	ignore   []string
	rebuild  func() error
	debounce time.Duration
	logger   *slog.Logger

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	rebuilds int
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a rebuild.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a Watcher for roots. Paths under any ignore entry (the build
// root, typically) never trigger a rebuild.
func New(roots, ignore []string, rebuild func() error, opts ...Option) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, errors.New("nothing to watch")
	}
	if rebuild == nil {
		return nil, errors.New("rebuild func cannot be nil")
	}
	w := &Watcher{
		rebuild:  rebuild,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		stopCh:   make(chan struct{}),
	}
	for _, r := range roots {
		w.roots = append(w.roots, filepath.Clean(r))
	}
	for _, i := range ignore {
		w.ignore = append(w.ignore, filepath.Clean(i))
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start subscribes to every directory under the roots and begins the
// rebuild loop.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create file watcher: %w", err)
	}
	w.fsw = fsw

	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return err
		}
	}

	w.wg.Add(1)
	go w.run(fsw.Events, fsw.Errors)
	return nil
}

// Stop halts the loop, waiting for an in-flight rebuild to finish.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.wg.Wait()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// Rebuilds returns how many rebuilds have run.
func (w *Watcher) Rebuilds() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rebuilds
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (skipDirs[d.Name()] || w.ignored(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("cannot watch %s: %w", path, err)
		}
		return nil
	})
}

// run serialises rebuilds: events are only read between rebuilds, so a
// build is never started while another is running.
func (w *Watcher) run(events <-chan fsnotify.Event, errs <-chan error) {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) && w.fsw != nil {
				w.watchIfDir(ev.Name)
			}
			if !w.Relevant(ev) {
				continue
			}
			w.logger.Debug("source changed", "path", ev.Name, "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-fire:
			timer, fire = nil, nil
			w.runRebuild()

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) runRebuild() {
	w.mu.Lock()
	w.rebuilds++
	n := w.rebuilds
	w.mu.Unlock()

	w.logger.Info("rebuilding", "run", n)
	if err := w.rebuild(); err != nil {
		w.logger.Error("rebuild failed", "error", err)
	}
}

func (w *Watcher) watchIfDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if skipDirs[filepath.Base(path)] || w.ignored(path) {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("cannot watch new directory", "path", path, "error", err)
	}
}

// Relevant reports whether ev should trigger a rebuild.
func (w *Watcher) Relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if w.ignored(ev.Name) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(ev.Name), "/") {
		if skipDirs[part] {
			return false
		}
	}
	base := filepath.Base(ev.Name)
	switch {
	case strings.HasPrefix(base, ".#"),
		strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"),
		strings.HasSuffix(base, ".pyc"):
		return false
	}
	return true
}

func (w *Watcher) ignored(path string) bool {
	path = filepath.Clean(path)
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
