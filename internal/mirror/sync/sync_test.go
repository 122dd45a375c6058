package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mdmirror/mdmirror/internal/logging"
	"github.com/mdmirror/mdmirror/internal/mirror/db"
	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

// setupTestDB creates a temporary store and an empty notes root.
func setupTestDB(t *testing.T) (*db.DB, string) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Open(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.InitSchema(), "failed to initialize schema")

	root := filepath.Join(tmpDir, "notes")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "memory"), 0o755))
	return database, root
}

// writeFile writes a document relative to root.
func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestSyncer(store Store, root string) *syncer {
	return New(store, Options{Root: root, Logger: logging.Discard()}).(*syncer)
}

const jobsDoc = `# Jobs

| Company | Role | Status | ATS |
|---|---|---|---|
| Acme | Backend Engineer | Applied | 80 |
`

const goalsDoc = `## Career
- [ ] Ship the mirror
- [x] Write the docs
`

// batchFixture writes three static files (the task list holds one title
// that fails validation) and two dated notes.
func batchFixture(t *testing.T, root string) {
	t.Helper()
	writeFile(t, root, "TASKS.md", "## 🟡 Active\n- [ ] Fix login bug\n- [ ] "+strings.Repeat("x", 600)+"\n")
	writeFile(t, root, "JOBS.md", jobsDoc)
	writeFile(t, root, "GOALS.md", goalsDoc)
	writeFile(t, root, "memory/2026-10-16.md", "- planned the week\n")
	writeFile(t, root, "memory/2026-10-17.md", "- shipped the watcher\n")
}

func TestSyncAll_Batch(t *testing.T) {
	database, root := setupTestDB(t)
	batchFixture(t, root)
	s := newTestSyncer(database, root)
	ctx := context.Background()

	result, err := s.SyncAll(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, result.RunID)
	require.Equal(t, 5, result.FilesProcessed)
	require.Len(t, result.Errors, 1)
	require.True(t, strings.HasPrefix(result.Errors[0], "TASKS.md: "), "error = %q", result.Errors[0])
	// 1 job + 2 goals + 2 notes; the task file wrote nothing.
	require.Equal(t, 5, result.TotalRows)

	counts, err := database.TableCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, counts[schema.TableTasks])
	require.Equal(t, 1, counts[schema.TableJobPipeline])
	require.Equal(t, 2, counts[schema.TableGoals])
	require.Equal(t, 2, counts[schema.TableDailyNotes])

	log, err := database.RecentSyncLog(ctx, 0)
	require.NoError(t, err)
	require.Len(t, log, 5, "one sync_log row per attempt")
	for _, e := range log {
		require.Equal(t, result.RunID, e.RunID)
	}
}

func TestSyncAll_Idempotent(t *testing.T) {
	database, root := setupTestDB(t)
	batchFixture(t, root)
	s := newTestSyncer(database, root)
	ctx := context.Background()

	first, err := s.SyncAll(ctx)
	require.NoError(t, err)
	second, err := s.SyncAll(ctx)
	require.NoError(t, err)

	require.NotEqual(t, first.RunID, second.RunID)
	require.Equal(t, 0, second.TotalRows)
	require.Equal(t, first.FilesProcessed, second.FilesProcessed)

	counts, err := database.TableCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, counts[schema.TableGoals])
}

func TestSyncAll_OrderAndNoteGlob(t *testing.T) {
	database, root := setupTestDB(t)
	writeFile(t, root, "goals.md", goalsDoc)
	writeFile(t, root, "TASKS.md", "## 🔵 Backlog\n- [ ] Later\n")
	writeFile(t, root, "memory/2026-10-17.md", "note")
	writeFile(t, root, "memory/2026-10-02.md", "note")
	writeFile(t, root, "memory/2026-02-30.md", "not a date")
	writeFile(t, root, "memory/ideas.md", "not dated")
	writeFile(t, root, "2026-10-01.md", "outside the glob")

	rec := &recorder{}
	s := newTestSyncer(database, root)
	s.Subscribe(rec)

	result, err := s.SyncAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, result.FilesProcessed)

	require.Equal(t, []string{
		"TASKS.md",
		"goals.md",
		"memory/2026-10-02.md",
		"memory/2026-10-17.md",
	}, rec.files())
	require.Len(t, rec.results, 1)
	require.Equal(t, result.RunID, rec.results[0].RunID)
}

func TestSyncFile_UnknownFileSkipped(t *testing.T) {
	database, root := setupTestDB(t)
	writeFile(t, root, "README.md", "# hello")
	s := newTestSyncer(database, root)
	ctx := context.Background()

	n, err := s.SyncFile(ctx, "README.md")
	require.NoError(t, err)
	require.Zero(t, n)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st.Files, 1)
	require.Equal(t, "README.md", st.Files[0].File)
	require.Equal(t, schema.SyncSkipped, st.Files[0].Status)
	require.Equal(t, ErrUnknownFile.Error(), st.Files[0].Error)
}

func TestSyncFile_MissingFileSkipped(t *testing.T) {
	database, root := setupTestDB(t)
	s := newTestSyncer(database, root)

	n, err := s.SyncFile(context.Background(), filepath.Join(root, "TASKS.md"))
	require.NoError(t, err)
	require.Zero(t, n)

	log, err := database.RecentSyncLog(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, log, 1)
	require.Equal(t, schema.SyncSkipped, log[0].Status)
	require.Equal(t, "TASKS.md", log[0].File)
}

func TestSyncFile_CaseInsensitiveName(t *testing.T) {
	database, root := setupTestDB(t)
	writeFile(t, root, "tasks.md", "## 🔴 Urgent\n- [ ] Fix login bug\n")
	s := newTestSyncer(database, root)

	n, err := s.SyncFile(context.Background(), "tasks.md")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	task, err := database.GetTaskByTitle(context.Background(), "Fix login bug")
	require.NoError(t, err)
	require.Equal(t, schema.TaskUrgent, task.Status)
	require.Equal(t, "tasks.md", task.Source)
}

func TestSyncFile_MemoryReplaces(t *testing.T) {
	database, root := setupTestDB(t)
	path := writeFile(t, root, "MEMORY.md", "## People\nAda likes tea\n\n## Places\nLisbon\n")
	s := newTestSyncer(database, root)
	ctx := context.Background()

	n, err := s.SyncFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	writeFile(t, root, "MEMORY.md", "## People\nAda likes coffee\n")
	n, err = s.SyncFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	hs, err := database.ListHighlights(ctx, "MEMORY.md")
	require.NoError(t, err)
	require.Len(t, hs, 1)
	require.Equal(t, "Ada likes coffee", hs[0].Content)
}

func TestSyncFile_StaticNameOutsideRootSkipped(t *testing.T) {
	database, root := setupTestDB(t)
	path := writeFile(t, root, "MEMORY.md", "## Alpha\none\n\n## Beta\ntwo\n")
	archived := writeFile(t, root, "archive/MEMORY.md", "## Old\nstale\n")
	outside := writeFile(t, filepath.Dir(root), "TASKS.md", "## 🔴 Urgent\n### Not mine\n")
	s := newTestSyncer(database, root)
	ctx := context.Background()

	n, err := s.SyncFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, p := range []string{archived, "archive/MEMORY.md", outside} {
		n, err = s.SyncFile(ctx, p)
		require.NoError(t, err)
		require.Zero(t, n, p)
	}

	hs, err := database.ListHighlights(ctx, "MEMORY.md")
	require.NoError(t, err)
	require.Len(t, hs, 2)
	require.Equal(t, "Alpha", hs[0].Section)
	require.Equal(t, "Beta", hs[1].Section)

	tasks, err := database.ListTasks(ctx, db.ListTasksFilter{})
	require.NoError(t, err)
	require.Empty(t, tasks)

	log, err := database.RecentSyncLog(ctx, 0)
	require.NoError(t, err)
	require.Len(t, log, 4)
	for _, e := range log[:3] {
		require.Equal(t, schema.SyncSkipped, e.Status, e.File)
		require.Equal(t, ErrUnknownFile.Error(), e.Error)
	}
}

// panicStore panics while writing tasks.
type panicStore struct {
	*db.DB
}

func (panicStore) UpsertTasksContext(context.Context, []schema.Task) (int, error) {
	panic("boom")
}

func TestSyncFile_PanicRecovered(t *testing.T) {
	database, root := setupTestDB(t)
	writeFile(t, root, "TASKS.md", "## 🟡 Active\n- [ ] Fix login bug\n")
	s := newTestSyncer(panicStore{database}, root)
	ctx := context.Background()

	n, err := s.SyncFile(ctx, "TASKS.md")
	require.NoError(t, err)
	require.Zero(t, n)

	log, err := database.RecentSyncLog(ctx, 0)
	require.NoError(t, err)
	require.Len(t, log, 1)
	require.Equal(t, schema.SyncError, log[0].Status)
	require.Contains(t, log[0].Error, "boom")
}

func TestSyncFile_StoreUnavailable(t *testing.T) {
	database, root := setupTestDB(t)
	writeFile(t, root, "TASKS.md", "## 🟡 Active\n- [ ] Fix login bug\n")
	s := newTestSyncer(database, root)
	require.NoError(t, database.Close())

	_, err := s.SyncFile(context.Background(), "TASKS.md")
	require.True(t, errors.Is(err, ErrStoreUnavailable), "error = %v", err)

	_, err = s.SyncAll(context.Background())
	require.True(t, errors.Is(err, ErrStoreUnavailable), "error = %v", err)
}

func TestStatus_FallsBackToSyncLog(t *testing.T) {
	database, root := setupTestDB(t)
	batchFixture(t, root)
	ctx := context.Background()

	_, err := newTestSyncer(database, root).SyncAll(ctx)
	require.NoError(t, err)

	// A fresh syncer has no in-memory outcomes.
	st, err := newTestSyncer(database, root).Status(ctx)
	require.NoError(t, err)

	require.Equal(t, StateStopped, st.RunState)
	require.False(t, st.Syncing)
	require.False(t, st.LastFullSync.IsZero())
	require.Len(t, st.Files, 5)
	require.Equal(t, 1, st.RowCounts[schema.TableJobPipeline])

	byFile := map[string]FileOutcome{}
	for _, f := range st.Files {
		byFile[f.File] = f
	}
	require.Equal(t, schema.SyncError, byFile["TASKS.md"].Status)
	require.Equal(t, schema.SyncOK, byFile["JOBS.md"].Status)
	require.Equal(t, 1, byFile["JOBS.md"].Rows)
}

// fakeSummarizer counts calls and returns a fixed summary or error.
type fakeSummarizer struct {
	calls int
	text  string
	err   error
}

func (f *fakeSummarizer) Summarize(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestSyncFile_NoteSummarizer(t *testing.T) {
	database, root := setupTestDB(t)
	path := writeFile(t, root, "memory/2026-10-17.md", "- shipped the watcher\n- fixed the parser\n")
	sum := &fakeSummarizer{text: "Shipped the watcher and fixed the parser."}
	s := New(database, Options{Root: root, Summarizer: sum, Logger: logging.Discard()})
	ctx := context.Background()

	n, err := s.SyncFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Unchanged content reuses the stored summary.
	_, err = s.SyncFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 1, sum.calls)

	note, err := database.GetDailyNote(ctx, "2026-10-17")
	require.NoError(t, err)
	require.Equal(t, sum.text, note.Summary)
	require.Equal(t, 8, note.WordCount)
}

func TestSyncFile_NoteSummarizerFailureKeepsHeuristic(t *testing.T) {
	database, root := setupTestDB(t)
	path := writeFile(t, root, "memory/2026-10-17.md", "- shipped the watcher\n")
	sum := &fakeSummarizer{err: errors.New("rate limited")}
	s := New(database, Options{Root: root, Summarizer: sum, Logger: logging.Discard()})

	_, err := s.SyncFile(context.Background(), path)
	require.NoError(t, err)

	note, err := database.GetDailyNote(context.Background(), "2026-10-17")
	require.NoError(t, err)
	require.Equal(t, "shipped the watcher", note.Summary)
}

func TestSyncFile_FrontmatterSummaryWins(t *testing.T) {
	database, root := setupTestDB(t)
	path := writeFile(t, root, "memory/2026-10-17.md", "---\nsummary: Quiet day.\n---\n- read a book\n")
	sum := &fakeSummarizer{text: "generated"}
	s := New(database, Options{Root: root, Summarizer: sum, Logger: logging.Discard()})

	_, err := s.SyncFile(context.Background(), path)
	require.NoError(t, err)
	require.Zero(t, sum.calls)

	note, err := database.GetDailyNote(context.Background(), "2026-10-17")
	require.NoError(t, err)
	require.Equal(t, "Quiet day.", note.Summary)
}

// recorder collects observer notifications.
type recorder struct {
	outcomes []FileOutcome
	results  []*Result
}

func (r *recorder) OnFileSynced(o FileOutcome) { r.outcomes = append(r.outcomes, o) }
func (r *recorder) OnSyncComplete(res *Result) { r.results = append(r.results, res) }

func (r *recorder) files() []string {
	var out []string
	for _, o := range r.outcomes {
		out = append(out, o.File)
	}
	return out
}
