// Package loadtest exercises the sync engine against a generated notes tree.
//
// It measures full-sync latency (one cold run, then idempotent replays) and
// fires concurrent single-file syncs at the same documents to check that
// racing triggers never duplicate rows.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"github.com/mdmirror/mdmirror/internal/logging"
	"github.com/mdmirror/mdmirror/internal/mirror/db"
	"github.com/mdmirror/mdmirror/internal/mirror/schema"
	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

// Size controls how much content is generated.
type Size struct {
	Tasks int
	Jobs  int
	Notes int
}

// DefaultSize is roughly a year of heavy use.
var DefaultSize = Size{Tasks: 500, Jobs: 200, Notes: 365}

// TestTree is a generated notes root mirrored into its own database.
type TestTree struct {
	Root   string
	DB     *db.DB
	Syncer msync.Syncer
	Size   Size
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min       time.Duration
	Max       time.Duration
	Mean      time.Duration
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Runs      int
	Errors    int
	Durations []time.Duration
}

// CreateTestTree writes a notes tree of the given size under dir and opens
// a fresh database next to it. Nothing is synced yet.
func CreateTestTree(dir string, size Size, logger *logging.Logger) (*TestTree, error) {
	root := filepath.Join(dir, "notes")
	if err := os.MkdirAll(filepath.Join(root, "memory"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create notes root: %w", err)
	}

	files := map[string]string{
		msync.DefaultFiles.Tasks: generateTasks(size.Tasks),
		msync.DefaultFiles.Jobs:  generateJobs(size.Jobs),
	}
	for name, content := range generateNotes(size.Notes) {
		files[name] = content
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	database, err := db.Open(filepath.Join(dir, "loadtest.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.InitSchema(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if logger == nil {
		logger = logging.Discard()
	}
	return &TestTree{
		Root:   root,
		DB:     database,
		Syncer: msync.New(database, msync.Options{Root: root, Logger: logger}),
		Size:   size,
	}, nil
}

// Close closes the test database connection.
func (tt *TestTree) Close() error {
	if tt.DB != nil {
		return tt.DB.Close()
	}
	return nil
}

// ExpectedRows is the row count per table once everything is synced.
func (tt *TestTree) ExpectedRows() map[string]int {
	return map[string]int{
		schema.TableTasks:       tt.Size.Tasks,
		schema.TableJobPipeline: tt.Size.Jobs,
		schema.TableDailyNotes:  tt.Size.Notes,
	}
}

// RunFullSyncs runs SyncAll rounds times in sequence. The first round
// inserts everything; later rounds replay unchanged content and must insert
// nothing.
func (tt *TestTree) RunFullSyncs(ctx context.Context, rounds int) (*LatencyStats, error) {
	durations := make([]time.Duration, 0, rounds)
	errCount := 0

	for i := 0; i < rounds; i++ {
		start := time.Now()
		result, err := tt.Syncer.SyncAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("round %d failed: %w", i, err)
		}
		durations = append(durations, time.Since(start))
		errCount += len(result.Errors)

		if i > 0 && result.TotalRows != 0 {
			return nil, fmt.Errorf("round %d inserted %d rows from unchanged files", i, result.TotalRows)
		}
	}

	stats := computeLatencyStats(durations)
	stats.Errors = errCount
	return stats, nil
}

// RunConcurrentTriggers simulates the watcher, the refresh ticker and API
// callers all syncing the same documents at once. Each worker syncs every
// static document perWorker times.
func (tt *TestTree) RunConcurrentTriggers(ctx context.Context, workers, perWorker int) (*LatencyStats, error) {
	paths := []string{msync.DefaultFiles.Tasks, msync.DefaultFiles.Jobs}

	var wg gosync.WaitGroup
	resultsChan := make(chan []time.Duration, workers)
	errorsChan := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			durations := make([]time.Duration, 0, perWorker*len(paths))
			for j := 0; j < perWorker; j++ {
				for _, p := range paths {
					start := time.Now()
					_, err := tt.Syncer.SyncFile(ctx, p)
					durations = append(durations, time.Since(start))
					if err != nil {
						errorsChan <- fmt.Errorf("worker %d sync %s failed: %w", worker, p, err)
						return
					}
				}
			}
			resultsChan <- durations
		}(i)
	}

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	for err := range errorsChan {
		if err != nil {
			return nil, err
		}
	}

	var all []time.Duration
	for durations := range resultsChan {
		all = append(all, durations...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no syncs completed")
	}
	return computeLatencyStats(all), nil
}

// VerifyRowCounts checks that every generated table holds exactly the
// generated number of rows.
func (tt *TestTree) VerifyRowCounts(ctx context.Context) error {
	counts, err := tt.DB.TableCounts(ctx)
	if err != nil {
		return err
	}
	for table, want := range tt.ExpectedRows() {
		if got := counts[table]; got != want {
			return fmt.Errorf("%s has %d rows, want %d", table, got, want)
		}
	}
	return nil
}

func generateTasks(count int) string {
	// One section per status so every priority is exercised.
	sections := []string{"## 🔴 Urgent", "## 🟡 Active", "## ⛔ Blocked", "## 🔵 Backlog", "## ✅ Done"}
	keywords := []string{"interview prep", "blog post", "deploy server", "groceries"}

	var b strings.Builder
	b.WriteString("# Tasks\n")
	for s, heading := range sections {
		b.WriteString("\n" + heading + "\n")
		for i := s; i < count; i += len(sections) {
			fmt.Fprintf(&b, "- [ ] Task %05d: %s\n", i, keywords[i%len(keywords)])
			if i%3 == 0 {
				fmt.Fprintf(&b, "  - note for task %d\n", i)
			}
		}
	}
	return b.String()
}

func generateJobs(count int) string {
	statuses := []string{"📨 Applied", "🗣️ Interviewing", "⭐ Wishlist", "❌ Rejected"}

	var b strings.Builder
	b.WriteString("# Job Pipeline\n\n| Company | Role | Location | Status | ATS Score | Applied |\n|---|---|---|---|---|---|\n")
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "| Company %04d | Engineer %d | Remote | %s | %d%% | 2026-01-%02d |\n",
			i, i%7, statuses[i%len(statuses)], 50+i%50, 1+i%28)
	}
	return b.String()
}

func generateNotes(count int) map[string]string {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	notes := make(map[string]string, count)
	for i := 0; i < count; i++ {
		date := base.AddDate(0, 0, i).Format("2006-01-02")
		notes[filepath.Join("memory", date+".md")] = fmt.Sprintf(
			"# %s\n\n- worked on item %d\n- reviewed pipeline\n- wrote %d words\n", date, i, 100+i)
	}
	return notes
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:       sorted[0],
		Max:       sorted[len(sorted)-1],
		Mean:      sum / time.Duration(len(durations)),
		P50:       sorted[len(sorted)*50/100],
		P95:       sorted[len(sorted)*95/100],
		P99:       sorted[len(sorted)*99/100],
		Runs:      len(durations),
		Durations: sorted,
	}
}

// PrintStats writes latency statistics under a title.
func (s *LatencyStats) PrintStats(w io.Writer, title string) {
	fmt.Fprintf(w, "%s:\n", title)
	fmt.Fprintf(w, "  Runs:          %d\n", s.Runs)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
