package db

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

// nowExpr renders the current time as RFC 3339 UTC inside SQLite. It is
// only used in named queries, where sqlx unescapes "::" to ":".
const nowExpr = `strftime('%Y-%m-%dT%H::%M::%SZ', 'now')`

// entity describes a natural-key upsert table. Column names double as the
// db tags of the record type, so queries bind with sqlx named parameters.
type entity struct {
	table  string
	keys   []string
	fields []string
}

var (
	taskEntity = entity{
		table:  schema.TableTasks,
		keys:   []string{"title"},
		fields: []string{"status", "category", "description", "priority", "source"},
	}
	jobEntity = entity{
		table:  schema.TableJobPipeline,
		keys:   []string{"company", "role"},
		fields: []string{"location", "link", "jd_status", "cv_status", "status", "ats_score", "applied_date"},
	}
	contentEntity = entity{
		table:  schema.TableContentPipeline,
		keys:   []string{"stage", "title"},
		fields: []string{"pillar", "file_path", "word_count", "scheduled_date", "published_date", "performance"},
	}
	goalEntity = entity{
		table:  schema.TableGoals,
		keys:   []string{"category", "objective"},
		fields: []string{"status", "deadline", "progress"},
	}
	cvEntity = entity{
		table:  schema.TableCVHistory,
		keys:   []string{"job_title", "company"},
		fields: []string{"ats_score", "status", "notes"},
	}
)

func (e entity) where() string {
	conds := make([]string, len(e.keys))
	for i, k := range e.keys {
		conds[i] = fmt.Sprintf("%s = :%s", k, k)
	}
	return strings.Join(conds, " AND ")
}

func (e entity) existsSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", e.table, e.where())
}

// updateSQL only touches rows whose mutable fields differ, so replaying
// identical content leaves updated_at alone.
func (e entity) updateSQL() string {
	sets := make([]string, len(e.fields))
	diffs := make([]string, len(e.fields))
	for i, f := range e.fields {
		sets[i] = fmt.Sprintf("%s = :%s", f, f)
		diffs[i] = fmt.Sprintf("%s IS NOT :%s", f, f)
	}
	return fmt.Sprintf("UPDATE %s SET %s, updated_at = %s WHERE %s AND (%s)",
		e.table, strings.Join(sets, ", "), nowExpr, e.where(), strings.Join(diffs, " OR "))
}

func (e entity) insertSQL() string {
	cols := append(append([]string{}, e.keys...), e.fields...)
	params := make([]string, len(cols))
	for i, c := range cols {
		params[i] = ":" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s, created_at, updated_at) VALUES (%s, %s, %s)",
		e.table, strings.Join(cols, ", "), strings.Join(params, ", "), nowExpr, nowExpr)
}

// record is a schema type whose pointer validates itself.
type record[T any] interface {
	*T
	Validate() error
}

// lastByKey keeps only the last record for each natural key, in document
// order.
func lastByKey[T any](m *reflectx.Mapper, e entity, records []T) []T {
	keys := make([]string, len(records))
	last := make(map[string]int, len(records))
	for i := range records {
		fields := m.FieldMap(reflect.ValueOf(&records[i]))
		parts := make([]string, len(e.keys))
		for j, k := range e.keys {
			parts[j] = fmt.Sprint(fields[k].Interface())
		}
		keys[i] = strings.Join(parts, "\x00")
		last[keys[i]] = i
	}
	if len(last) == len(records) {
		return records
	}

	out := make([]T, 0, len(last))
	for i := range records {
		if last[keys[i]] == i {
			out = append(out, records[i])
		}
	}
	return out
}

// upsert writes records by natural key in one transaction and returns the
// number of rows inserted. All records are validated before the transaction
// opens, so an invalid record leaves the store untouched. When a key repeats
// the last record wins.
func upsert[T any, PT record[T]](ctx context.Context, db *DB, e entity, records []T) (int, error) {
	for i := range records {
		if err := PT(&records[i]).Validate(); err != nil {
			return 0, fmt.Errorf("invalid %s record %d: %w", e.table, i+1, err)
		}
	}
	if len(records) == 0 {
		return 0, nil
	}
	records = lastByKey(db.conn.Mapper, e, records)

	existsQ, updateQ, insertQ := e.existsSQL(), e.updateSQL(), e.insertSQL()

	inserted := 0
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		for i := range records {
			rec := &records[i]

			q, args, err := tx.BindNamed(existsQ, rec)
			if err != nil {
				return fmt.Errorf("failed to bind %s lookup: %w", e.table, err)
			}
			var n int
			if err := tx.GetContext(ctx, &n, q, args...); err != nil {
				return fmt.Errorf("failed to look up %s row: %w", e.table, err)
			}

			if n > 0 {
				if _, err := tx.NamedExecContext(ctx, updateQ, rec); err != nil {
					return fmt.Errorf("failed to update %s row: %w", e.table, err)
				}
				continue
			}
			if _, err := tx.NamedExecContext(ctx, insertQ, rec); err != nil {
				return fmt.Errorf("failed to insert %s row: %w", e.table, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpsertTasks inserts or updates tasks by title.
func (db *DB) UpsertTasks(tasks []schema.Task) (int, error) {
	return db.UpsertTasksContext(context.Background(), tasks)
}

// UpsertTasksContext inserts or updates tasks with context support.
func (db *DB) UpsertTasksContext(ctx context.Context, tasks []schema.Task) (int, error) {
	return upsert(ctx, db, taskEntity, tasks)
}

// UpsertJobs inserts or updates job pipeline entries by (company, role).
func (db *DB) UpsertJobs(jobs []schema.JobPipelineEntry) (int, error) {
	return db.UpsertJobsContext(context.Background(), jobs)
}

// UpsertJobsContext inserts or updates job pipeline entries with context support.
func (db *DB) UpsertJobsContext(ctx context.Context, jobs []schema.JobPipelineEntry) (int, error) {
	return upsert(ctx, db, jobEntity, jobs)
}

// UpsertContentContext inserts or updates content items by (stage, title).
// An item that moves stage is a new row; the old stage's row stays.
func (db *DB) UpsertContentContext(ctx context.Context, items []schema.ContentPipelineItem) (int, error) {
	return upsert(ctx, db, contentEntity, items)
}

// UpsertGoalsContext inserts or updates goals by (category, objective).
func (db *DB) UpsertGoalsContext(ctx context.Context, goals []schema.Goal) (int, error) {
	return upsert(ctx, db, goalEntity, goals)
}

// UpsertCVHistoryContext inserts or updates CV entries by (job_title, company).
func (db *DB) UpsertCVHistoryContext(ctx context.Context, entries []schema.CVHistoryEntry) (int, error) {
	return upsert(ctx, db, cvEntity, entries)
}

// ReplaceHighlights deletes every highlight from fileSource and inserts hs
// in one transaction. It returns the number of rows inserted.
func (db *DB) ReplaceHighlights(fileSource string, hs []schema.MemoryHighlight) (int, error) {
	return db.ReplaceHighlightsContext(context.Background(), fileSource, hs)
}

// ReplaceHighlightsContext replaces a file's highlights with context support.
func (db *DB) ReplaceHighlightsContext(ctx context.Context, fileSource string, hs []schema.MemoryHighlight) (int, error) {
	for i := range hs {
		hs[i].FileSource = fileSource
		if err := hs[i].Validate(); err != nil {
			return 0, fmt.Errorf("invalid %s record %d: %w", schema.TableMemoryHighlights, i+1, err)
		}
	}

	insertQ := `INSERT INTO memory_highlights (section, content, file_source, created_at)
		VALUES (:section, :content, :file_source, ` + nowExpr + `)`

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_highlights WHERE file_source = ?`, fileSource); err != nil {
			return fmt.Errorf("failed to clear highlights for %s: %w", fileSource, err)
		}
		for i := range hs {
			if _, err := tx.NamedExecContext(ctx, insertQ, &hs[i]); err != nil {
				return fmt.Errorf("failed to insert highlight: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(hs), nil
}

// UpsertDailyNotesContext writes notes keyed by date. A note counts as
// inserted only when its date was not stored before.
func (db *DB) UpsertDailyNotesContext(ctx context.Context, notes []schema.DailyNote) (int, error) {
	for i := range notes {
		if err := notes[i].Validate(); err != nil {
			return 0, fmt.Errorf("invalid %s record %d: %w", schema.TableDailyNotes, i+1, err)
		}
	}
	if len(notes) == 0 {
		return 0, nil
	}

	upsertQ := `INSERT INTO daily_notes (date, content, summary, word_count, created_at, updated_at)
		VALUES (:date, :content, :summary, :word_count, ` + nowExpr + `, ` + nowExpr + `)
		ON CONFLICT(date) DO UPDATE SET
			content = excluded.content,
			summary = excluded.summary,
			word_count = excluded.word_count,
			updated_at = excluded.updated_at
		WHERE content IS NOT excluded.content
		   OR summary IS NOT excluded.summary
		   OR word_count IS NOT excluded.word_count`

	inserted := 0
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		for i := range notes {
			var n int
			if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM daily_notes WHERE date = ?`, notes[i].Date); err != nil {
				return fmt.Errorf("failed to look up note %s: %w", notes[i].Date, err)
			}
			if _, err := tx.NamedExecContext(ctx, upsertQ, &notes[i]); err != nil {
				return fmt.Errorf("failed to upsert note %s: %w", notes[i].Date, err)
			}
			if n == 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
