package main

import (
	"fmt"
	gosync "sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

// collector records per-file outcomes while a command runs.
type collector struct {
	mu       gosync.Mutex
	outcomes []msync.FileOutcome
}

func (c *collector) OnFileSynced(o msync.FileOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

func (c *collector) OnSyncComplete(*msync.Result) {}

func (c *collector) list() []msync.FileOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]msync.FileOutcome(nil), c.outcomes...)
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sync [path...]",
		GroupID: "sync",
		Short:   "Sync documents into the database",
		Long: `Sync markdown documents into the database.

With no arguments every known document is synced, in order: tasks, jobs,
content, goals, memory, CV history, then dated notes sorted by date.

With paths, only those files are synced. Paths may be absolute or relative
to the notes root. Unknown or missing files are recorded as skipped.

The command fails if any file could not be synced; the other files are
still written.`,
		Example: `  mirror sync
  mirror sync TASKS.md memory/2026-10-17.md
  mirror sync --root ~/notes --db ~/notes/mirror.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p := newPrinter(cmd)
			c := &collector{}
			a.syncer.Subscribe(c)

			if len(args) == 0 {
				return syncAll(cmd, a, p, c)
			}
			return syncPaths(cmd, a, p, c, args)
		},
	}
}

func syncAll(cmd *cobra.Command, a *app, p *printer, c *collector) error {
	p.Step("Syncing %s", a.cfg.Root)

	result, err := a.syncer.SyncAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	for _, o := range c.list() {
		p.outcome(o)
	}

	if len(result.Errors) > 0 {
		p.Failure("%d of %d files failed, %d new rows in %v",
			len(result.Errors), result.FilesProcessed, result.TotalRows, result.Duration.Round(time.Millisecond))
		return fmt.Errorf("%d files failed to sync", len(result.Errors))
	}
	p.Success("Synced %d files, %d new rows in %v",
		result.FilesProcessed, result.TotalRows, result.Duration.Round(time.Millisecond))
	return nil
}

func syncPaths(cmd *cobra.Command, a *app, p *printer, c *collector, paths []string) error {
	total := 0
	for _, path := range paths {
		n, err := a.syncer.SyncFile(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("sync %s failed: %w", path, err)
		}
		total += n
	}

	failed := 0
	for _, o := range c.list() {
		p.outcome(o)
		if o.Status == schema.SyncError {
			failed++
		}
	}

	if failed > 0 {
		p.Failure("%d of %d files failed, %d new rows", failed, len(paths), total)
		return fmt.Errorf("%d files failed to sync", failed)
	}
	p.Success("Synced %d files, %d new rows", len(paths), total)
	return nil
}
