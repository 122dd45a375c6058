package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mdmirror/mdmirror/internal/logging"
	"github.com/mdmirror/mdmirror/internal/mirror/parser"
	"github.com/mdmirror/mdmirror/internal/mirror/schema"
	"github.com/mdmirror/mdmirror/internal/mirror/summary"
)

// Files names the static documents under the root. Matching is by base
// name and ignores case.
type Files struct {
	Tasks     string `mapstructure:"tasks" yaml:"tasks"`
	Jobs      string `mapstructure:"jobs" yaml:"jobs"`
	Content   string `mapstructure:"content" yaml:"content"`
	Goals     string `mapstructure:"goals" yaml:"goals"`
	Memory    string `mapstructure:"memory" yaml:"memory"`
	CVHistory string `mapstructure:"cv_history" yaml:"cv_history"`
}

// DefaultFiles are the conventional document names.
var DefaultFiles = Files{
	Tasks:     "TASKS.md",
	Jobs:      "JOBS.md",
	Content:   "CONTENT.md",
	Goals:     "GOALS.md",
	Memory:    "MEMORY.md",
	CVHistory: "CV_HISTORY.md",
}

// DefaultNotesGlob is where dated notes live, relative to the root.
const DefaultNotesGlob = "memory/*.md"

// Options configures a Syncer. Zero values take the defaults.
type Options struct {
	Root      string
	Files     Files
	NotesGlob string

	// Summarizer, when set, replaces heuristic note summaries.
	Summarizer summary.Summarizer

	Logger *logging.Logger
	Now    func() time.Time
}

// kind is the document type a path maps to.
type kind int

const (
	kindUnknown kind = iota
	kindTasks
	kindJobs
	kindContent
	kindGoals
	kindMemory
	kindCVHistory
	kindNote
)

// syncer implements the Syncer interface.
type syncer struct {
	store  Store
	opts   Options
	logger *logging.Logger

	mu        gosync.Mutex
	outcomes  map[string]FileOutcome
	lastFull  time.Time
	observers []Observer

	running atomic.Int32
}

// New creates a new Syncer writing to store.
//
// The store must have its schema initialized. If opts.Logger is nil, a
// default logger writing to stderr is used.
//
// Example:
//
//	database, err := db.Open("mirror.db")
//	if err != nil {
//	    return err
//	}
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//	syncer := sync.New(database, sync.Options{Root: root})
func New(store Store, opts Options) Syncer {
	if opts.Root == "" {
		opts.Root = "."
	}
	if abs, err := filepath.Abs(opts.Root); err == nil {
		opts.Root = abs
	}
	opts.Files = opts.Files.withDefaults()
	if opts.NotesGlob == "" {
		opts.NotesGlob = DefaultNotesGlob
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &syncer{
		store:    store,
		opts:     opts,
		logger:   logger.WithComponent("sync"),
		outcomes: make(map[string]FileOutcome),
	}
}

func (f Files) withDefaults() Files {
	set := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	set(&f.Tasks, DefaultFiles.Tasks)
	set(&f.Jobs, DefaultFiles.Jobs)
	set(&f.Content, DefaultFiles.Content)
	set(&f.Goals, DefaultFiles.Goals)
	set(&f.Memory, DefaultFiles.Memory)
	set(&f.CVHistory, DefaultFiles.CVHistory)
	return f
}

// static lists the static documents in sync order.
func (f Files) static() []struct {
	name string
	kind kind
} {
	return []struct {
		name string
		kind kind
	}{
		{f.Tasks, kindTasks},
		{f.Jobs, kindJobs},
		{f.Content, kindContent},
		{f.Goals, kindGoals},
		{f.Memory, kindMemory},
		{f.CVHistory, kindCVHistory},
	}
}

// Subscribe implements Syncer.Subscribe.
func (s *syncer) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// SyncFile implements Syncer.SyncFile.
func (s *syncer) SyncFile(ctx context.Context, path string) (int, error) {
	if err := s.ping(ctx); err != nil {
		return 0, err
	}
	outcome, err := s.syncFile(ctx, s.resolve(path), "")
	return outcome.Rows, err
}

// SyncAll implements Syncer.SyncAll.
func (s *syncer) SyncAll(ctx context.Context) (*Result, error) {
	if err := s.ping(ctx); err != nil {
		return nil, err
	}

	s.running.Add(1)
	defer s.running.Add(-1)

	start := s.opts.Now()
	result := &Result{
		RunID:     uuid.NewString(),
		Errors:    []string{},
		StartedAt: start,
	}
	logger := s.logger.WithRun(result.RunID)
	logger.Info("full sync started", "root", s.opts.Root)

	paths := s.staticPaths()
	notes, err := s.notePaths()
	if err != nil {
		logger.Warn("failed to glob notes", "glob", s.opts.NotesGlob, "error", err)
	}
	paths = append(paths, notes...)

	for _, path := range paths {
		outcome, err := s.syncFile(ctx, path, result.RunID)
		if err != nil {
			return nil, err
		}
		result.FilesProcessed++
		result.TotalRows += outcome.Rows
		if outcome.Status == schema.SyncError {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", outcome.File, outcome.Error))
		}
	}

	result.Duration = s.opts.Now().Sub(start)
	result.DurationMS = result.Duration.Milliseconds()

	s.mu.Lock()
	s.lastFull = start
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	logger.Info("full sync finished",
		"files", result.FilesProcessed,
		"rows", result.TotalRows,
		"errors", len(result.Errors),
		"duration", result.Duration)

	for _, o := range observers {
		o.OnSyncComplete(result)
	}
	return result, nil
}

// Status implements Syncer.Status.
func (s *syncer) Status(ctx context.Context) (*Status, error) {
	if err := s.ping(ctx); err != nil {
		return nil, err
	}
	counts, err := s.store.TableCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	files := make(map[string]FileOutcome, len(s.outcomes))
	for k, v := range s.outcomes {
		files[k] = v
	}
	lastFull := s.lastFull
	s.mu.Unlock()

	// Outcomes from before a restart only live in sync_log.
	logged, err := s.store.LatestSyncOutcomes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for _, e := range logged {
		if _, ok := files[e.File]; ok {
			continue
		}
		files[e.File] = FileOutcome{
			File:       e.File,
			Status:     e.Status,
			Rows:       e.RowsAffected,
			Error:      e.Error,
			At:         e.Timestamp,
			DurationMS: e.DurationMS,
			RunID:      e.RunID,
		}
	}
	if lastFull.IsZero() {
		if t, err := s.store.LastRunTime(ctx); err == nil {
			lastFull = t
		}
	}

	st := &Status{
		RunState:     StateStopped,
		Syncing:      s.running.Load() > 0,
		LastFullSync: lastFull,
		RowCounts:    counts,
		Files:        make([]FileOutcome, 0, len(files)),
	}
	for _, o := range files {
		st.Files = append(st.Files, o)
	}
	sort.Slice(st.Files, func(i, j int) bool { return st.Files[i].File < st.Files[j].File })
	return st, nil
}

func (s *syncer) ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// resolve makes path absolute against the root.
func (s *syncer) resolve(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.opts.Root, path)
	}
	return filepath.Clean(path)
}

// rel is the name a file is logged under: root-relative, slash separated.
func (s *syncer) rel(path string) string {
	r, err := filepath.Rel(s.opts.Root, path)
	if err != nil || strings.HasPrefix(r, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(r)
}

// classify maps an absolute path to its document type. Static documents
// are recognized only directly under the root.
func (s *syncer) classify(path string) kind {
	base := filepath.Base(path)
	if filepath.Dir(path) == s.opts.Root {
		for _, f := range s.opts.Files.static() {
			if strings.EqualFold(base, f.name) {
				return f.kind
			}
		}
	}
	if _, ok := parser.NoteDate(base); ok {
		if matched, _ := filepath.Match(filepath.Join(s.opts.Root, s.opts.NotesGlob), path); matched {
			return kindNote
		}
	}
	return kindUnknown
}

// staticPaths returns the static documents that exist, in sync order.
// Matching ignores case, so the directory listing decides the spelling.
func (s *syncer) staticPaths() []string {
	entries, err := os.ReadDir(s.opts.Root)
	if err != nil {
		s.logger.Warn("failed to read root", "root", s.opts.Root, "error", err)
		return nil
	}
	var paths []string
	for _, f := range s.opts.Files.static() {
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(e.Name(), f.name) {
				paths = append(paths, filepath.Join(s.opts.Root, e.Name()))
				break
			}
		}
	}
	return paths
}

// notePaths re-evaluates the notes glob and keeps valid dated names.
func (s *syncer) notePaths() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.opts.Root, s.opts.NotesGlob))
	if err != nil {
		return nil, fmt.Errorf("failed to glob notes: %w", err)
	}
	var paths []string
	for _, m := range matches {
		if _, ok := parser.NoteDate(m); ok {
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// syncFile runs one attempt and records its outcome. The error is non-nil
// only when the sync_log row cannot be written.
func (s *syncer) syncFile(ctx context.Context, path, runID string) (FileOutcome, error) {
	start := s.opts.Now()
	outcome := FileOutcome{File: s.rel(path), RunID: runID}

	rows, status, err := s.attempt(ctx, path)
	outcome.Status = status
	outcome.Rows = rows
	if err != nil {
		outcome.Error = err.Error()
	}
	outcome.At = s.opts.Now()
	outcome.DurationMS = outcome.At.Sub(start).Milliseconds()

	logger := s.logger
	if runID != "" {
		logger = logger.WithRun(runID)
	}
	switch status {
	case schema.SyncOK:
		logger.Info("file synced", "file", outcome.File, "rows", rows, "duration_ms", outcome.DurationMS)
	case schema.SyncSkipped:
		logger.Debug("file skipped", "file", outcome.File, "reason", outcome.Error)
	default:
		logger.Error("file sync failed", "file", outcome.File, "error", outcome.Error)
	}

	if _, err := s.store.AppendSyncLog(ctx, schema.SyncLogEntry{
		File:         outcome.File,
		Status:       outcome.Status,
		RowsAffected: outcome.Rows,
		Error:        outcome.Error,
		Timestamp:    outcome.At,
		RunID:        runID,
		DurationMS:   outcome.DurationMS,
	}); err != nil {
		return outcome, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	s.outcomes[outcome.File] = outcome
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		o.OnFileSynced(outcome)
	}
	return outcome, nil
}

// attempt reads, parses and writes one file. Panics inside parse or write
// become error outcomes.
func (s *syncer) attempt(ctx context.Context, path string) (rows int, status schema.SyncStatus, err error) {
	k := s.classify(path)
	if k == kindUnknown {
		return 0, schema.SyncSkipped, ErrUnknownFile
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, schema.SyncSkipped, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return 0, schema.SyncSkipped, errors.New("is a directory")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, schema.SyncSkipped, fmt.Errorf("failed to read file: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			rows, status, err = 0, schema.SyncError, fmt.Errorf("panic: %v", r)
		}
	}()

	opts := parser.Options{Source: filepath.Base(path), Reference: info.ModTime()}
	rows, err = s.write(ctx, k, path, string(data), opts)
	if err != nil {
		return 0, schema.SyncError, err
	}
	return rows, schema.SyncOK, nil
}

func (s *syncer) write(ctx context.Context, k kind, path, text string, opts parser.Options) (int, error) {
	switch k {
	case kindTasks:
		return s.store.UpsertTasksContext(ctx, parser.ParseTasks(text, opts))
	case kindJobs:
		return s.store.UpsertJobsContext(ctx, parser.ParseJobs(text, opts))
	case kindContent:
		return s.store.UpsertContentContext(ctx, parser.ParseContent(text, opts))
	case kindGoals:
		return s.store.UpsertGoalsContext(ctx, parser.ParseGoals(text, opts))
	case kindMemory:
		return s.store.ReplaceHighlightsContext(ctx, opts.Source, parser.ParseMemory(text, opts))
	case kindCVHistory:
		return s.store.UpsertCVHistoryContext(ctx, parser.ParseCVHistory(text, opts))
	case kindNote:
		notes := parser.ParseDailyNote(path, text, opts)
		for i := range notes {
			s.summarize(ctx, &notes[i])
		}
		return s.store.UpsertDailyNotesContext(ctx, notes)
	}
	return 0, ErrUnknownFile
}

// summarize replaces a heuristic summary with a generated one. A stored
// generated summary is reused while the content is unchanged.
func (s *syncer) summarize(ctx context.Context, note *schema.DailyNote) {
	if s.opts.Summarizer == nil || note.SummaryFromSource || note.Content == "" {
		return
	}
	heuristic := note.Summary

	if prev, err := s.store.GetDailyNote(ctx, note.Date); err == nil &&
		prev.Content == note.Content && prev.Summary != "" && prev.Summary != heuristic {
		note.Summary = prev.Summary
		return
	}

	text, err := s.opts.Summarizer.Summarize(ctx, note.Date, note.Content)
	if err != nil {
		s.logger.Warn("summarizer failed, keeping heuristic summary", "date", note.Date, "error", err)
		return
	}
	note.Summary = text
}
