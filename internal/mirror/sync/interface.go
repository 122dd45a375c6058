package sync

import (
	"context"
	"errors"
	"time"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

// ErrStoreUnavailable is the only error SyncFile and SyncAll return. Every
// other failure is recorded as a per-file outcome.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrUnknownFile is the outcome message for paths that map to no document
// type.
var ErrUnknownFile = errors.New("unrecognized file")

// Syncer keeps the store consistent with the markdown tree under a root.
//
// Per-file failures never escape: they are logged, appended to sync_log and
// reported through Status and observers. Only an unreachable store is
// returned as an error.
type Syncer interface {
	// SyncFile parses one file and writes its records. It returns the
	// number of rows inserted. Relative paths are resolved against the
	// root.
	//
	// Example:
	//   n, err := syncer.SyncFile(ctx, "TASKS.md")
	SyncFile(ctx context.Context, path string) (int, error)

	// SyncAll syncs the static documents in fixed order (tasks, jobs,
	// content, goals, memory, cv history) and then every dated note
	// matching the notes glob, sorted by path. The glob is evaluated at
	// call time.
	SyncAll(ctx context.Context) (*Result, error)

	// Status reports row counts and the latest outcome per file. It does
	// not write.
	Status(ctx context.Context) (*Status, error)

	// Subscribe registers an observer for per-file and full-sync events.
	Subscribe(o Observer)
}

// Observer is notified after every per-file sync and every full sync.
// Calls are synchronous; implementations must not block.
type Observer interface {
	OnFileSynced(outcome FileOutcome)
	OnSyncComplete(result *Result)
}

// Store is the write and read surface the syncer needs. *db.DB implements it.
type Store interface {
	Ping(ctx context.Context) error

	UpsertTasksContext(ctx context.Context, tasks []schema.Task) (int, error)
	UpsertJobsContext(ctx context.Context, jobs []schema.JobPipelineEntry) (int, error)
	UpsertContentContext(ctx context.Context, items []schema.ContentPipelineItem) (int, error)
	UpsertGoalsContext(ctx context.Context, goals []schema.Goal) (int, error)
	UpsertCVHistoryContext(ctx context.Context, entries []schema.CVHistoryEntry) (int, error)
	ReplaceHighlightsContext(ctx context.Context, fileSource string, hs []schema.MemoryHighlight) (int, error)
	UpsertDailyNotesContext(ctx context.Context, notes []schema.DailyNote) (int, error)
	GetDailyNote(ctx context.Context, date string) (*schema.DailyNote, error)

	AppendSyncLog(ctx context.Context, e schema.SyncLogEntry) (int64, error)
	TableCounts(ctx context.Context) (map[string]int, error)
	LatestSyncOutcomes(ctx context.Context) ([]schema.SyncLogEntry, error)
	LastRunTime(ctx context.Context) (time.Time, error)
}

// RunState is the lifecycle state of the engine that owns a syncer.
type RunState string

const (
	StateStopped      RunState = "stopped"
	StateInitializing RunState = "initializing"
	StateRunning      RunState = "running"
)

// FileOutcome is the result of one per-file sync attempt.
type FileOutcome struct {
	File       string            `json:"file"`
	Status     schema.SyncStatus `json:"status"`
	Rows       int               `json:"rows"`
	Error      string            `json:"error,omitempty"`
	At         time.Time         `json:"at"`
	DurationMS int64             `json:"duration_ms"`
	RunID      string            `json:"run_id,omitempty"`
}

// Result summarizes one SyncAll run. Errors holds "<file>: <message>" for
// every file whose outcome was error.
type Result struct {
	RunID          string        `json:"run_id"`
	TotalRows      int           `json:"total_rows"`
	FilesProcessed int           `json:"files_processed"`
	Errors         []string      `json:"errors"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"-"`
	DurationMS     int64         `json:"duration_ms"`
}

// Status is a read-only snapshot of the mirror.
type Status struct {
	RunState     RunState       `json:"run_state"`
	Syncing      bool           `json:"syncing"`
	LastFullSync time.Time      `json:"last_full_sync"`
	RowCounts    map[string]int `json:"row_counts"`
	Files        []FileOutcome  `json:"files"`
}
