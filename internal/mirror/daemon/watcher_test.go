package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mdmirror/mdmirror/internal/logging"
)

const testDebounce = 100 * time.Millisecond

// pathLog collects callback paths.
type pathLog struct {
	mu    sync.Mutex
	paths []string
}

func (p *pathLog) add(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, filepath.Base(path))
}

func (p *pathLog) get() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

// waitFor polls cond until it holds or the timeout passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// setupRoot creates a notes root with a memory/ directory.
func setupRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "memory"), 0755); err != nil {
		t.Fatalf("Failed to create memory dir: %v", err)
	}
	return root
}

func newTestWatcher(t *testing.T, root string, cb Callback) *FileWatcher {
	t.Helper()
	fw, err := NewFileWatcher(root, []string{foldGlob("TASKS.md"), "memory/*.md"}, testDebounce, cb, logging.Discard())
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	t.Cleanup(func() { _ = fw.Stop() })
	return fw
}

func TestNewFileWatcher_Validation(t *testing.T) {
	root := t.TempDir()
	noop := func(string) error { return nil }

	if _, err := NewFileWatcher(root, nil, 0, noop, nil); err == nil {
		t.Error("expected error for no globs")
	}
	if _, err := NewFileWatcher(root, []string{"*.md"}, 0, nil, nil); err == nil {
		t.Error("expected error for nil callback")
	}
	if _, err := NewFileWatcher(root, []string{"[.md"}, 0, noop, nil); err == nil {
		t.Error("expected error for malformed glob")
	}
}

func TestFileWatcher_StartStop(t *testing.T) {
	root := setupRoot(t)
	fw := newTestWatcher(t, root, func(string) error { return nil })

	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
	if err := fw.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if err := fw.Start(); err == nil {
		t.Error("Second Start() should fail when watcher is already running")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
	if err := fw.Stop(); err != nil {
		t.Errorf("Second Stop() failed: %v", err)
	}
}

func TestFileWatcher_Matches(t *testing.T) {
	root := setupRoot(t)
	fw := newTestWatcher(t, root, func(string) error { return nil })

	tests := map[string]bool{
		"TASKS.md":             true,
		"tasks.md":             true,
		"memory/2026-10-17.md": true,
		"README.md":            false,
		"memory/sub/x.md":      false,
		"memory/notes.txt":     false,
	}
	for name, want := range tests {
		if got := fw.Matches(filepath.Join(root, name)); got != want {
			t.Errorf("Matches(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFileWatcher_CoalescesWrites(t *testing.T) {
	root := setupRoot(t)
	var log pathLog
	fw := newTestWatcher(t, root, func(p string) error { log.add(p); return nil })
	if err := fw.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	path := filepath.Join(root, "TASKS.md")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("## 🟡 Active\n- [ ] Fix login bug\n"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(log.get()) > 0 }) {
		t.Fatal("Timeout waiting for callback")
	}
	time.Sleep(4 * testDebounce)

	if got := log.get(); len(got) != 1 || got[0] != "TASKS.md" {
		t.Errorf("callbacks = %v, want exactly [TASKS.md]", got)
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	root := setupRoot(t)
	var log pathLog
	fw := newTestWatcher(t, root, func(p string) error { log.add(p); return nil })
	if err := fw.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "memory", "2026-10-17.md"), []byte("- note"), 0644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(log.get()) > 0 }) {
		t.Fatal("Timeout waiting for callback")
	}
	time.Sleep(4 * testDebounce)

	if got := log.get(); len(got) != 1 || got[0] != "2026-10-17.md" {
		t.Errorf("callbacks = %v, want [2026-10-17.md]", got)
	}
}

func TestFileWatcher_NoEventsForExistingFiles(t *testing.T) {
	root := setupRoot(t)
	if err := os.WriteFile(filepath.Join(root, "TASKS.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var log pathLog
	fw := newTestWatcher(t, root, func(p string) error { log.add(p); return nil })
	if err := fw.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	time.Sleep(5 * testDebounce)
	if got := log.get(); len(got) != 0 {
		t.Errorf("callbacks = %v, want none", got)
	}
}

func TestFileWatcher_CallbackFailuresDoNotStopWatcher(t *testing.T) {
	root := setupRoot(t)
	var log pathLog
	calls := 0
	var mu sync.Mutex
	fw := newTestWatcher(t, root, func(p string) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		log.add(p)
		switch n {
		case 1:
			panic("parser exploded")
		case 2:
			return errors.New("write failed")
		}
		return nil
	})
	if err := fw.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		name := filepath.Join(root, "memory", "2026-10-1"+string(rune('0'+i))+".md")
		if err := os.WriteFile(name, []byte("- note"), 0644); err != nil {
			t.Fatal(err)
		}
		want := i + 1
		if !waitFor(t, 2*time.Second, func() bool { return len(log.get()) >= want }) {
			t.Fatalf("Timeout waiting for callback %d", want)
		}
	}

	if !fw.IsRunning() {
		t.Error("watcher stopped after callback failures")
	}
}

func TestFileWatcher_StopCancelsPending(t *testing.T) {
	root := setupRoot(t)
	var log pathLog
	fw, err := NewFileWatcher(root, []string{"*.md"}, time.Second, func(p string) error { log.add(p); return nil }, logging.Discard())
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	if err := fw.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "TASKS.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool { return fw.debounce.Pending() > 0 })

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	time.Sleep(1500 * time.Millisecond)

	if got := log.get(); len(got) != 0 {
		t.Errorf("callbacks after Stop = %v", got)
	}
}

func TestFileWatcher_AdoptsDirectoryCreatedLater(t *testing.T) {
	root := t.TempDir()
	var log pathLog
	fw := newTestWatcher(t, root, func(p string) error { log.add(p); return nil })
	if err := fw.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// The first note may land before the directory watch is in place.
	dir := filepath.Join(root, "memory")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "2026-10-17.md"), []byte("- note"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return len(log.get()) > 0 }) {
		t.Fatal("Timeout waiting for first note")
	}

	if err := os.WriteFile(filepath.Join(dir, "2026-10-18.md"), []byte("- note"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return len(log.get()) >= 2 }) {
		t.Fatalf("callbacks = %v, want both notes", log.get())
	}
	time.Sleep(4 * testDebounce)

	got := log.get()
	if len(got) != 2 || got[0] != "2026-10-17.md" || got[1] != "2026-10-18.md" {
		t.Errorf("callbacks = %v, want [2026-10-17.md 2026-10-18.md]", got)
	}
}
