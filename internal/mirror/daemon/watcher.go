package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mdmirror/mdmirror/internal/logging"
)

// Callback receives the absolute path of a file that changed and then
// stayed quiet for the debounce window.
type Callback func(path string) error

// DefaultDebounce is the quiet period before a changed file is synced.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher watches a fixed set of globs under a root and calls back once
// per burst of changes to a matching file.
//
// fsnotify watches directories, so the watcher adds the parent directory of
// every glob and filters events by pattern. Create and Write count; Remove,
// Rename and Chmod are ignored since the mirror never deletes. Editors that
// save through a temp file produce a Create for the target name.
//
// A glob directory missing at Start is adopted when it appears, provided
// its parent exists; files already inside it by then are reported once.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	patterns []string
	debounce *debouncer
	callback Callback
	logger   *logging.Logger

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	closed  bool

	// pending holds glob directories that did not exist at Start.
	pending map[string]bool
}

// NewFileWatcher creates a watcher for globs relative to root. The watcher
// must be started with Start() before it will call back.
func NewFileWatcher(root string, globs []string, delay time.Duration, cb Callback, logger *logging.Logger) (*FileWatcher, error) {
	if cb == nil {
		return nil, errors.New("callback cannot be nil")
	}
	if len(globs) == 0 {
		return nil, errors.New("at least one glob is required")
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = logging.Default()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	patterns := make([]string, 0, len(globs))
	for _, g := range globs {
		p := filepath.Join(absRoot, g)
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", g, err)
		}
		patterns = append(patterns, p)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  watcher,
		patterns: patterns,
		callback: cb,
		logger:   logger.WithComponent("watcher"),
		done:     make(chan struct{}),
		pending:  make(map[string]bool),
	}
	fw.debounce = newDebouncer(delay, fw.invoke)
	return fw, nil
}

// Start begins watching. Pre-existing files produce no events. A glob
// whose directory does not exist yet is watched for through its parent;
// at least one directory must be watchable.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return errors.New("watcher already running")
	}
	if fw.closed {
		return errors.New("watcher is stopped")
	}

	dirs, missing := fw.dirs()
	for _, dir := range missing {
		parent := filepath.Dir(dir)
		if !isDir(parent) {
			fw.logger.Warn("skipping missing directory", "dir", dir)
			continue
		}
		fw.logger.Info("waiting for directory", "dir", dir)
		fw.pending[dir] = true
		if !slices.Contains(dirs, parent) {
			dirs = append(dirs, parent)
		}
	}

	watched := 0
	for _, dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			fw.logger.Warn("failed to watch directory", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		return errors.New("no watchable directories")
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	fw.logger.Info("watching", "patterns", fw.patterns)
	return nil
}

// Stop cancels pending callbacks and closes fsnotify. It blocks until the
// event loop and any running callback have returned. Safe to call twice.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	fw.closed = true
	fw.running = false
	fw.mu.Unlock()

	close(fw.done)
	err := fw.watcher.Close()
	fw.wg.Wait()
	fw.debounce.Stop()

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

// Matches reports whether path falls under one of the watched globs.
func (fw *FileWatcher) Matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, p := range fw.patterns {
		if ok, _ := filepath.Match(p, abs); ok {
			return true
		}
	}
	return false
}

// dirs returns the distinct parent directories of the patterns, split by
// whether they exist yet.
func (fw *FileWatcher) dirs() (existing, missing []string) {
	seen := make(map[string]bool)
	for _, p := range fw.patterns {
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if isDir(dir) {
			existing = append(existing, dir)
		} else {
			missing = append(missing, dir)
		}
	}
	return existing, missing
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// adopt starts watching dir if it is a pending glob directory, then reports
// any matching files created in it before the watch was in place.
func (fw *FileWatcher) adopt(dir string) bool {
	fw.mu.Lock()
	if !fw.pending[dir] || fw.closed || !isDir(dir) {
		fw.mu.Unlock()
		return false
	}
	if err := fw.watcher.Add(dir); err != nil {
		fw.mu.Unlock()
		fw.logger.Warn("failed to watch directory", "dir", dir, "error", err)
		return true
	}
	delete(fw.pending, dir)
	fw.mu.Unlock()

	fw.logger.Info("watching new directory", "dir", dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		fw.logger.Warn("failed to read directory", "dir", dir, "error", err)
		return true
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if !e.IsDir() && fw.Matches(path) {
			fw.debounce.Trigger(path)
		}
	}
	return true
}

// processEvents is the event loop feeding matching paths to the debouncer.
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if event.Has(fsnotify.Create) && fw.adopt(event.Name) {
				continue
			}
			if !fw.Matches(event.Name) {
				continue
			}
			fw.logger.Debug("file event", "op", event.Op.String(), "file", event.Name)
			fw.debounce.Trigger(event.Name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("watcher error", "error", err)
		}
	}
}

// invoke runs the callback. Errors and panics are logged and never stop
// the watcher.
func (fw *FileWatcher) invoke(path string) {
	defer func() {
		if r := recover(); r != nil {
			fw.logger.Error("callback panicked", "file", path, "panic", r)
		}
	}()
	if err := fw.callback(path); err != nil {
		fw.logger.Error("callback failed", "file", path, "error", err)
	}
}
