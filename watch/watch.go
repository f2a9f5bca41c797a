// Package watch relinks when a manifest or descriptor file changes.
package watch

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

// SetLogger configures the watch package's logger.
func SetLogger(l *zap.Logger) {
	logger = l
}

// Watcher batches file changes and reports them after a quiet period.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	patterns  []glob.Glob
	// files are watched explicitly regardless of patterns
	files    map[string]bool
	onChange func([]string)
	pending  map[string]bool
	timer    *time.Timer
	debounce time.Duration
	done     chan struct{}
	started  bool

	callbackMu sync.Mutex
	mu         sync.Mutex
}

// New creates a watcher. Files inside watched directories trigger onChange
// when their base name matches one of patterns.
func New(debounce time.Duration, patterns []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher: fsw,
		patterns:  compiled,
		files:     make(map[string]bool),
		onChange:  onChange,
		pending:   make(map[string]bool),
		debounce:  debounce,
		done:      make(chan struct{}),
	}, nil
}

// Watch starts watching paths. A file is watched through its directory so
// that editors replacing the file atomically are still seen.
func (w *Watcher) Watch(paths []string) error {
	dirs := make(map[string]bool)
	w.mu.Lock()
	for _, p := range paths {
		p = filepath.Clean(p)
		info, err := os.Stat(p)
		if err != nil {
			w.mu.Unlock()
			return err
		}
		if info.IsDir() {
			dirs[p] = true
			continue
		}
		w.files[p] = true
		dirs[filepath.Dir(p)] = true
	}
	w.mu.Unlock()

	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		w.started = true
		go w.run()
	}
	return nil
}

// Close stops watching. Pending changes are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	started := w.started
	w.mu.Unlock()

	err := w.fsWatcher.Close()
	if started {
		<-w.done
	}
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule(filepath.Clean(event.Name))
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(path string) bool {
	path = filepath.Clean(path)
	w.mu.Lock()
	explicit := w.files[path]
	w.mu.Unlock()
	if explicit {
		return true
	}
	base := filepath.Base(path)
	for _, g := range w.patterns {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	logger.Debug("files changed", zap.Strings("paths", paths))

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}
