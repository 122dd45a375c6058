package db

import (
	"context"
	"database/sql"
	"fmt"
)

const baseSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT 'General',
	description TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'Low',
	source TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT
);

CREATE TABLE IF NOT EXISTS job_pipeline (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	company TEXT NOT NULL,
	role TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	jd_status TEXT NOT NULL DEFAULT '',
	cv_status TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'Wishlist',
	ats_score INTEGER,
	applied_date TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS content_pipeline (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	stage TEXT NOT NULL,
	title TEXT NOT NULL,
	pillar TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	word_count INTEGER,
	scheduled_date TEXT NOT NULL DEFAULT '',
	published_date TEXT NOT NULL DEFAULT '',
	performance TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS goals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL,
	objective TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'Active',
	deadline TEXT NOT NULL DEFAULT '',
	progress INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_highlights (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	section TEXT NOT NULL,
	content TEXT NOT NULL,
	file_source TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_notes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	word_count INTEGER,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cv_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_title TEXT NOT NULL,
	company TEXT NOT NULL,
	ats_score INTEGER,
	status TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file TEXT NOT NULL,
	status TEXT NOT NULL,
	rows_affected INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	timestamp TEXT NOT NULL,
	run_id TEXT,
	duration_ms INTEGER
);
`

// Indexes are created after additive columns exist.
const indexSchema = `
CREATE INDEX IF NOT EXISTS idx_tasks_title ON tasks(title);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_job_pipeline_key ON job_pipeline(company, role);
CREATE INDEX IF NOT EXISTS idx_job_pipeline_status ON job_pipeline(status);
CREATE INDEX IF NOT EXISTS idx_content_pipeline_key ON content_pipeline(stage, title);
CREATE INDEX IF NOT EXISTS idx_goals_key ON goals(category, objective);
CREATE INDEX IF NOT EXISTS idx_memory_highlights_source ON memory_highlights(file_source);
CREATE INDEX IF NOT EXISTS idx_cv_history_key ON cv_history(job_title, company);
CREATE INDEX IF NOT EXISTS idx_sync_log_file ON sync_log(file, id);
CREATE INDEX IF NOT EXISTS idx_sync_log_run ON sync_log(run_id);
`

// additiveColumn is a column older stores may lack.
type additiveColumn struct {
	table      string
	name       string
	definition string
}

var additiveColumns = []additiveColumn{
	{"sync_log", "run_id", "TEXT"},
	{"sync_log", "duration_ms", "INTEGER"},
	{"daily_notes", "word_count", "INTEGER"},
	{"tasks", "updated_at", "TEXT"},
}

// InitSchema creates missing tables, adds missing additive columns and
// creates indexes. Safe to call on every start.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, baseSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := db.ensureColumns(ctx); err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx, indexSchema); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

type columnInfo struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

func (db *DB) columns(ctx context.Context, table string) (map[string]bool, error) {
	var cols []columnInfo
	if err := db.conn.SelectContext(ctx, &cols, fmt.Sprintf("PRAGMA table_info(%s)", table)); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	names := make(map[string]bool, len(cols))
	for _, c := range cols {
		names[c.Name] = true
	}
	return names, nil
}

func (db *DB) ensureColumns(ctx context.Context) error {
	known := map[string]map[string]bool{}
	for _, col := range additiveColumns {
		cols, ok := known[col.table]
		if !ok {
			var err error
			if cols, err = db.columns(ctx, col.table); err != nil {
				return err
			}
			known[col.table] = cols
		}
		if cols[col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", col.table, col.name, col.definition)
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", col.table, col.name, err)
		}
		cols[col.name] = true
	}
	return nil
}
