package db

import (
	"context"
	"fmt"
	"time"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

// syncLogRow is the stored form of a sync_log row. Timestamps are TEXT.
type syncLogRow struct {
	ID           int64  `db:"id"`
	File         string `db:"file"`
	Status       string `db:"status"`
	RowsAffected int    `db:"rows_affected"`
	Error        string `db:"error"`
	Timestamp    string `db:"timestamp"`
	RunID        string `db:"run_id"`
	DurationMS   int64  `db:"duration_ms"`
}

func (r syncLogRow) entry() schema.SyncLogEntry {
	ts, _ := time.Parse(time.RFC3339Nano, r.Timestamp)
	return schema.SyncLogEntry{
		ID:           r.ID,
		File:         r.File,
		Status:       schema.SyncStatus(r.Status),
		RowsAffected: r.RowsAffected,
		Error:        r.Error,
		Timestamp:    ts,
		RunID:        r.RunID,
		DurationMS:   r.DurationMS,
	}
}

const syncLogColumns = `id, file, status, rows_affected,
	COALESCE(error, '') AS error, timestamp,
	COALESCE(run_id, '') AS run_id, COALESCE(duration_ms, 0) AS duration_ms`

// AppendSyncLog records one per-file sync attempt and returns its row id.
// A zero Timestamp is stamped with the current time.
func (db *DB) AppendSyncLog(ctx context.Context, e schema.SyncLogEntry) (int64, error) {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var runID any
	if e.RunID != "" {
		runID = e.RunID
	}
	var errText any
	if e.Error != "" {
		errText = e.Error
	}

	res, err := db.conn.ExecContext(ctx, `
	INSERT INTO sync_log (file, status, rows_affected, error, timestamp, run_id, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.File,
		string(e.Status),
		e.RowsAffected,
		errText,
		ts.UTC().Format(time.RFC3339Nano),
		runID,
		e.DurationMS,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append sync log for %s: %w", e.File, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read sync log id: %w", err)
	}
	return id, nil
}

// RecentSyncLog returns the newest sync_log rows first. A non-positive
// limit defaults to 50.
func (db *DB) RecentSyncLog(ctx context.Context, limit int) ([]schema.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []syncLogRow
	query := `SELECT ` + syncLogColumns + ` FROM sync_log ORDER BY id DESC LIMIT ?`
	if err := db.conn.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	return entries(rows), nil
}

// LatestSyncOutcomes returns the most recent sync_log row for every file,
// ordered by file.
func (db *DB) LatestSyncOutcomes(ctx context.Context) ([]schema.SyncLogEntry, error) {
	var rows []syncLogRow
	query := `SELECT ` + syncLogColumns + ` FROM sync_log
	WHERE id IN (SELECT MAX(id) FROM sync_log GROUP BY file)
	ORDER BY file`
	if err := db.conn.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query latest sync outcomes: %w", err)
	}
	return entries(rows), nil
}

// LastRunTime returns the timestamp of the newest sync_log row that belongs
// to a full sync run, or the zero time.
func (db *DB) LastRunTime(ctx context.Context) (time.Time, error) {
	var ts []string
	err := db.conn.SelectContext(ctx, &ts,
		`SELECT timestamp FROM sync_log WHERE run_id IS NOT NULL AND run_id != '' ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last run: %w", err)
	}
	if len(ts) == 0 {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", ts[0], err)
	}
	return t, nil
}

func entries(rows []syncLogRow) []schema.SyncLogEntry {
	out := make([]schema.SyncLogEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out
}
