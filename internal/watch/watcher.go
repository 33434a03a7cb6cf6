// Package watch re-publishes jobs when their source trees change
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dorkodu/pharpub/pkg/logger"
	"github.com/dorkodu/pharpub/pkg/utils"
	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultSettlingDelay is how long a tree must stay quiet before a change fires
const DefaultSettlingDelay = 200 * time.Millisecond

var commonExclusions = map[string]bool{
	".git": true, ".svn": true, ".hg": true, ".bzr": true,
	".idea": true, ".vscode": true, "node_modules": true,
}

// Watcher watches one source tree recursively and reports settled batches
// of changed paths
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   logger.Logger
	root     string
	ignored  []string
	excludes []glob.Glob
	settling time.Duration

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
	stopped bool
}

// Option customizes a Watcher
type Option func(*Watcher) error

// WithSettlingDelay overrides DefaultSettlingDelay
func WithSettlingDelay(d time.Duration) Option {
	return func(w *Watcher) error {
		w.settling = d
		return nil
	}
}

// WithExclusions skips paths whose root-relative name, or base name,
// matches any glob
func WithExclusions(patterns ...string) Option {
	return func(w *Watcher) error {
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return fmt.Errorf("invalid exclude pattern %q: %w", p, err)
			}
			w.excludes = append(w.excludes, g)
		}
		return nil
	}
}

// WithIgnoredDirs never reports anything below the given directories
func WithIgnoredDirs(dirs ...string) Option {
	return func(w *Watcher) error {
		for _, d := range dirs {
			abs, err := filepath.Abs(d)
			if err != nil {
				return err
			}
			w.ignored = append(w.ignored, abs)
		}
		return nil
	}
}

// New creates a watcher for root. Directories are registered immediately,
// so changes made after New returns are not missed.
func New(root string, log logger.Logger, opts ...Option) (*Watcher, error) {
	if log == nil {
		log = logger.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if !utils.DirectoryExists(abs) {
		return nil, fmt.Errorf("source directory does not exist: %s", abs)
	}

	w := &Watcher{
		logger:   log,
		root:     abs,
		settling: DefaultSettlingDelay,
		pending:  make(map[string]bool),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	w.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.addDirectory(abs); err != nil {
		w.watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", abs, err)
	}
	return w, nil
}

// Root returns the watched directory
func (w *Watcher) Root() string { return w.root }

// Close releases the underlying fsnotify watcher
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

// Run dispatches settled change batches to onChange until ctx is done.
// onChange is never called concurrently with itself.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	batches := make(chan []string, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for paths := range batches {
			onChange(paths)
		}
	}()
	defer func() {
		w.mu.Lock()
		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		close(batches)
		wg.Wait()
	}()

	w.logger.Info(fmt.Sprintf("Watching %s", w.root))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || w.skip(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addDirectory(event.Name); err != nil {
						w.logger.Warn(fmt.Sprintf("Failed to watch directory %s: %v", event.Name, err))
					}
				}
			}
			w.schedule(event.Name, batches)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}

// schedule records path and restarts the settling timer
func (w *Watcher) schedule(path string, batches chan<- []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = true
	w.arm(batches)
}

// arm restarts the settling timer; callers hold w.mu
func (w *Watcher) arm(batches chan<- []string) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settling, func() { w.flush(batches) })
}

func (w *Watcher) flush(batches chan<- []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || len(w.pending) == 0 {
		return
	}

	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	select {
	case batches <- paths:
		w.pending = make(map[string]bool)
	default:
		// previous batch still queued
		w.arm(batches)
	}
}

func (w *Watcher) addDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skip(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn(fmt.Sprintf("Failed to watch directory %s: %v", path, err))
			return nil
		}
		w.logger.Debug(fmt.Sprintf("Watching directory: %s", path))
		return nil
	})
}

// skip reports whether path lies in an ignored directory or is excluded
func (w *Watcher) skip(path string) bool {
	for _, dir := range w.ignored {
		if utils.IsWithin(dir, path) {
			return true
		}
	}
	if commonExclusions[filepath.Base(path)] {
		return true
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)
	for _, g := range w.excludes {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}
