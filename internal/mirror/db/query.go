package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

// TableCounts returns the row count of every mirrored table.
func (db *DB) TableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(schema.Tables))
	for _, table := range schema.Tables {
		var n int
		// Table names come from a fixed list.
		if err := db.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

const taskColumns = `title, status, COALESCE(category, '') AS category,
	COALESCE(description, '') AS description, COALESCE(priority, '') AS priority,
	COALESCE(source, '') AS source`

// GetTaskByTitle returns the task with the given title, or ErrNotFound.
func (db *DB) GetTaskByTitle(ctx context.Context, title string) (*schema.Task, error) {
	var task schema.Task
	err := db.conn.GetContext(ctx, &task, `SELECT `+taskColumns+` FROM tasks WHERE title = ? ORDER BY id LIMIT 1`, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %q: %w", title, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %q: %w", title, err)
	}
	return &task, nil
}

// ListTasksFilter narrows ListTasks. Zero values match everything.
type ListTasksFilter struct {
	Status   schema.TaskStatus
	Category string
	Limit    int
}

// ListTasks returns tasks ordered by insertion.
func (db *DB) ListTasks(ctx context.Context, filter ListTasksFilter) ([]schema.Task, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var tasks []schema.Task
	if err := db.conn.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// GetJob returns the pipeline entry for (company, role), or ErrNotFound.
func (db *DB) GetJob(ctx context.Context, company, role string) (*schema.JobPipelineEntry, error) {
	var job schema.JobPipelineEntry
	err := db.conn.GetContext(ctx, &job, `
	SELECT company, role, location, link, jd_status, cv_status, status, ats_score, applied_date
	FROM job_pipeline
	WHERE company = ? AND role = ?
	ORDER BY id LIMIT 1`, company, role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s / %s: %w", company, role, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s / %s: %w", company, role, err)
	}
	return &job, nil
}

// ListGoals returns every goal ordered by insertion.
func (db *DB) ListGoals(ctx context.Context) ([]schema.Goal, error) {
	var goals []schema.Goal
	err := db.conn.SelectContext(ctx, &goals,
		`SELECT category, objective, status, deadline, progress FROM goals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	return goals, nil
}

// GetDailyNote returns the note for date (YYYY-MM-DD), or ErrNotFound.
func (db *DB) GetDailyNote(ctx context.Context, date string) (*schema.DailyNote, error) {
	var note schema.DailyNote
	err := db.conn.GetContext(ctx, &note, `
	SELECT date, content, summary, COALESCE(word_count, 0) AS word_count
	FROM daily_notes WHERE date = ?`, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note %s: %w", date, err)
	}
	return &note, nil
}

// ListHighlights returns the highlights stored for fileSource. An empty
// fileSource lists all of them.
func (db *DB) ListHighlights(ctx context.Context, fileSource string) ([]schema.MemoryHighlight, error) {
	query := `SELECT section, content, file_source FROM memory_highlights`
	var args []interface{}
	if fileSource != "" {
		query += ` WHERE file_source = ?`
		args = append(args, fileSource)
	}
	query += ` ORDER BY id`

	var hs []schema.MemoryHighlight
	if err := db.conn.SelectContext(ctx, &hs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}
	return hs, nil
}

// TaskUpdatedAt returns the stored updated_at of the task with title.
func (db *DB) TaskUpdatedAt(ctx context.Context, title string) (string, error) {
	var ts sql.NullString
	err := db.conn.GetContext(ctx, &ts, `SELECT updated_at FROM tasks WHERE title = ? ORDER BY id LIMIT 1`, title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("task %q: %w", title, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get updated_at for %q: %w", title, err)
	}
	return ts.String, nil
}
