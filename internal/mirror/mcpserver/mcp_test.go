package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

// --- mocks ---

type mockSyncer struct {
	rows     int
	err      error
	lastPath string
}

func (m *mockSyncer) SyncFile(_ context.Context, path string) (int, error) {
	m.lastPath = path
	return m.rows, m.err
}

func (m *mockSyncer) SyncAll(context.Context) (*msync.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &msync.Result{RunID: "run-1", FilesProcessed: 3, TotalRows: m.rows, Errors: []string{}}, nil
}

func (m *mockSyncer) Status(context.Context) (*msync.Status, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &msync.Status{
		RunState:  msync.StateRunning,
		RowCounts: map[string]int{schema.TableTasks: 4},
		Files:     []msync.FileOutcome{{File: "TASKS.md", Status: schema.SyncOK, Rows: 4}},
	}, nil
}

func (m *mockSyncer) Subscribe(msync.Observer) {}

var _ msync.Syncer = (*mockSyncer)(nil)

type mockLog struct {
	entries []schema.SyncLogEntry
}

func (m *mockLog) RecentSyncLog(context.Context, int) ([]schema.SyncLogEntry, error) {
	return m.entries, nil
}

// --- helpers ---

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestNew(t *testing.T) {
	if s := New(Deps{Syncer: &mockSyncer{}, Log: &mockLog{}}); s == nil {
		t.Fatal("New() returned nil")
	}
}

func TestSyncStatus(t *testing.T) {
	deps := Deps{Syncer: &mockSyncer{}}

	result, err := syncStatus(deps)(context.Background(), makeCallToolRequest("sync_status", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var st msync.Status
	if err := json.Unmarshal([]byte(toolText(t, result)), &st); err != nil {
		t.Fatalf("result is not a status: %v", err)
	}
	if st.RunState != msync.StateRunning || st.RowCounts[schema.TableTasks] != 4 || len(st.Files) != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestSyncAll(t *testing.T) {
	deps := Deps{Syncer: &mockSyncer{rows: 7}}

	result, err := syncAll(deps)(context.Background(), makeCallToolRequest("sync_all", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res msync.Result
	if err := json.Unmarshal([]byte(toolText(t, result)), &res); err != nil {
		t.Fatalf("result is not a sync result: %v", err)
	}
	if res.RunID != "run-1" || res.TotalRows != 7 || res.FilesProcessed != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestSyncFile(t *testing.T) {
	m := &mockSyncer{rows: 2}
	deps := Deps{Syncer: m}

	result, err := syncFile(deps)(context.Background(), makeCallToolRequest("sync_file", map[string]interface{}{
		"path": "TASKS.md",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != `{"rows_inserted":2}` {
		t.Errorf("text = %s", got)
	}
	if m.lastPath != "TASKS.md" {
		t.Errorf("synced %q, want TASKS.md", m.lastPath)
	}
}

func TestSyncFile_MissingPath(t *testing.T) {
	deps := Deps{Syncer: &mockSyncer{}}

	result, err := syncFile(deps)(context.Background(), makeCallToolRequest("sync_file", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing path")
	}
}

func TestStoreUnavailableIsToolError(t *testing.T) {
	deps := Deps{Syncer: &mockSyncer{err: msync.ErrStoreUnavailable}}

	for name, h := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"sync_status": syncStatus(deps),
		"sync_all":    syncAll(deps),
		"sync_file":   syncFile(deps),
	} {
		result, err := h(context.Background(), makeCallToolRequest(name, map[string]interface{}{"path": "TASKS.md"}))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !result.IsError {
			t.Errorf("%s: expected tool error", name)
		}
	}
}

func TestSyncLogResource(t *testing.T) {
	deps := Deps{
		Syncer: &mockSyncer{},
		Log: &mockLog{entries: []schema.SyncLogEntry{
			{ID: 2, File: "JOBS.md", Status: schema.SyncError, Error: "bad row"},
			{ID: 1, File: "TASKS.md", Status: schema.SyncOK, RowsAffected: 3},
		}},
	}

	contents, err := syncLogResource(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "mirror://sync-log"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var entries []schema.SyncLogEntry
	if err := json.Unmarshal([]byte(tc.Text), &entries); err != nil {
		t.Fatalf("resource is not a sync log: %v", err)
	}
	if len(entries) != 2 || entries[0].File != "JOBS.md" {
		t.Errorf("entries = %+v", entries)
	}
}
