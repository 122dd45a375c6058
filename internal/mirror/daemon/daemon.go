package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mdmirror/mdmirror/internal/logging"
	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

// DefaultFullSyncInterval is how often the daemon resyncs everything to
// catch events the watcher missed or coalesced.
const DefaultFullSyncInterval = 5 * time.Minute

// Config holds configuration for the daemon.
type Config struct {
	// Root is the directory the globs are relative to.
	Root string

	// Globs are the watched patterns. See Globs for the usual set.
	Globs []string

	Debounce         time.Duration
	FullSyncInterval time.Duration

	Logger *logging.Logger
}

// Globs returns the watch patterns for the static documents and the notes
// glob. Static names match regardless of case, like the syncer does.
func Globs(files msync.Files, notesGlob string) []string {
	names := []string{files.Tasks, files.Jobs, files.Content, files.Goals, files.Memory, files.CVHistory}
	var out []string
	for _, n := range names {
		if n != "" {
			out = append(out, foldGlob(n))
		}
	}
	if notesGlob != "" {
		out = append(out, notesGlob)
	}
	return out
}

// foldGlob turns "Tasks.md" into "[tT][aA][sS][kK][sS].[mM][dD]".
func foldGlob(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`*?[]\`, r):
			b.WriteRune('\\')
			b.WriteRune(r)
		case unicode.IsLetter(r) && unicode.ToLower(r) != unicode.ToUpper(r):
			b.WriteRune('[')
			b.WriteRune(unicode.ToLower(r))
			b.WriteRune(unicode.ToUpper(r))
			b.WriteRune(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Daemon keeps the mirror current: a full sync on start, debounced
// per-file syncs from the watcher, and a periodic full resync.
//
// Daemon implements sync.Syncer so the dashboard and MCP server can serve
// either a daemon or a bare syncer.
type Daemon struct {
	syncer msync.Syncer
	config Config
	logger *logging.Logger

	mu      sync.Mutex
	state   msync.RunState
	watcher *FileWatcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// stopRequested is set by a Stop that arrives while Start is still
	// initializing; Start honors it instead of entering Running.
	stopRequested bool
}

// New creates a stopped daemon around syncer.
func New(syncer msync.Syncer, config Config) (*Daemon, error) {
	if syncer == nil {
		return nil, errors.New("syncer cannot be nil")
	}
	if len(config.Globs) == 0 {
		return nil, errors.New("at least one glob is required")
	}
	if config.Root == "" {
		config.Root = "."
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.FullSyncInterval <= 0 {
		config.FullSyncInterval = DefaultFullSyncInterval
	}
	if config.Logger == nil {
		config.Logger = logging.Default()
	}

	return &Daemon{
		syncer: syncer,
		config: config,
		logger: config.Logger.WithComponent("daemon"),
		state:  msync.StateStopped,
	}, nil
}

// State returns the current run state.
func (d *Daemon) State() msync.RunState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start runs a full sync to completion, then starts the watcher, then arms
// the periodic resync. It returns once the daemon is running. Starting a
// daemon that is not stopped does nothing.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state != msync.StateStopped {
		d.mu.Unlock()
		d.logger.Debug("start ignored", "state", d.state)
		return nil
	}
	d.state = msync.StateInitializing
	d.stopRequested = false
	d.mu.Unlock()

	d.logger.Info("starting daemon", "root", d.config.Root)

	if _, err := d.syncer.SyncAll(ctx); err != nil {
		d.setState(msync.StateStopped)
		return fmt.Errorf("initial sync failed: %w", err)
	}
	if d.abortStart() {
		return nil
	}

	// Callbacks outlive ctx; they stop with the daemon.
	runCtx, cancel := context.WithCancel(context.Background())

	watcher, err := NewFileWatcher(d.config.Root, d.config.Globs, d.config.Debounce, func(path string) error {
		_, err := d.syncer.SyncFile(runCtx, path)
		return err
	}, d.config.Logger)
	if err != nil {
		cancel()
		d.setState(msync.StateStopped)
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		cancel()
		_ = watcher.Stop()
		d.setState(msync.StateStopped)
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	d.mu.Lock()
	if d.stopRequested {
		d.stopRequested = false
		d.state = msync.StateStopped
		d.mu.Unlock()
		cancel()
		_ = watcher.Stop()
		d.logger.Info("daemon stopped during startup")
		return nil
	}
	d.watcher = watcher
	d.cancel = cancel
	d.state = msync.StateRunning
	d.mu.Unlock()

	d.wg.Add(1)
	go d.refreshLoop(runCtx)

	d.logger.Info("daemon running",
		"debounce", d.config.Debounce,
		"full_sync_interval", d.config.FullSyncInterval)
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled, then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.logger.Info("shutdown signal received")
	return d.Stop()
}

// abortStart reports whether Stop was called during initialization, and if
// so leaves the daemon stopped.
func (d *Daemon) abortStart() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.stopRequested {
		return false
	}
	d.stopRequested = false
	d.state = msync.StateStopped
	d.logger.Info("daemon stopped during startup")
	return true
}

// Stop closes the watcher, stops the ticker and waits for background work.
// Called while Start is initializing, it makes Start return without
// running. Safe to call twice.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if d.state == msync.StateInitializing {
		d.stopRequested = true
		d.mu.Unlock()
		return nil
	}
	if d.state != msync.StateRunning || d.cancel == nil {
		d.mu.Unlock()
		return nil
	}
	watcher, cancel := d.watcher, d.cancel
	d.watcher, d.cancel = nil, nil
	d.mu.Unlock()

	d.logger.Info("stopping daemon")

	cancel()
	err := watcher.Stop()
	d.wg.Wait()

	d.setState(msync.StateStopped)
	d.logger.Info("daemon stopped")
	return err
}

func (d *Daemon) setState(s msync.RunState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// refreshLoop runs a full sync every FullSyncInterval.
func (d *Daemon) refreshLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.FullSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if _, err := d.syncer.SyncAll(ctx); err != nil {
				d.logger.Error("periodic sync failed", "error", err)
			}
		}
	}
}

// SyncFile implements sync.Syncer.
func (d *Daemon) SyncFile(ctx context.Context, path string) (int, error) {
	return d.syncer.SyncFile(ctx, path)
}

// SyncAll implements sync.Syncer.
func (d *Daemon) SyncAll(ctx context.Context) (*msync.Result, error) {
	return d.syncer.SyncAll(ctx)
}

// Status implements sync.Syncer, reporting the daemon's run state.
func (d *Daemon) Status(ctx context.Context) (*msync.Status, error) {
	st, err := d.syncer.Status(ctx)
	if err != nil {
		return nil, err
	}
	st.RunState = d.State()
	return st, nil
}

// Subscribe implements sync.Syncer.
func (d *Daemon) Subscribe(o msync.Observer) {
	d.syncer.Subscribe(o)
}
