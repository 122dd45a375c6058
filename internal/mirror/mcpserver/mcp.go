// Package mcpserver exposes the mirror to MCP clients: status, full sync
// and single-file sync as tools, and the sync log as a resource.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

// SyncLogReader reads the audit trail. *db.DB implements it.
type SyncLogReader interface {
	RecentSyncLog(ctx context.Context, limit int) ([]schema.SyncLogEntry, error)
}

// Deps holds dependencies for the MCP server.
type Deps struct {
	Syncer  msync.Syncer
	Log     SyncLogReader
	Version string
}

// New creates an MCP server with the mirror tools and resources registered.
func New(deps Deps) *server.MCPServer {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := server.NewMCPServer(
		"mdmirror",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("mdmirror keeps a SQLite mirror of a markdown notes directory. Use sync_status to see what is mirrored and sync_all or sync_file to refresh it."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("sync_status",
			mcp.WithDescription("Report row counts per table and the latest sync outcome per file."),
		),
		syncStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("sync_all",
			mcp.WithDescription("Resync every known document and dated note. Returns the run summary."),
		),
		syncAll(deps),
	)

	s.AddTool(
		mcp.NewTool("sync_file",
			mcp.WithDescription("Resync one file and return the number of new rows."),
			mcp.WithString("path", mcp.Description("File path, absolute or relative to the notes root (e.g. TASKS.md)"), mcp.Required()),
		),
		syncFile(deps),
	)

	if deps.Log != nil {
		s.AddResource(
			mcp.NewResource(
				"mirror://sync-log",
				"Sync Log",
				mcp.WithResourceDescription("The 50 most recent sync attempts, newest first"),
				mcp.WithMIMEType("application/json"),
			),
			syncLogResource(deps),
		)
	}

	return s
}

func syncStatus(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := deps.Syncer.Status(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("status failed: %v", err)), nil
		}
		return mcpJSON(st)
	}
}

func syncAll(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := deps.Syncer.SyncAll(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("sync failed: %v", err)), nil
		}
		return mcpJSON(result)
	}
}

func syncFile(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil || path == "" {
			return mcpError("path is required"), nil
		}
		n, err := deps.Syncer.SyncFile(ctx, path)
		if err != nil {
			return mcpError(fmt.Sprintf("sync failed: %v", err)), nil
		}
		return mcpJSON(map[string]int{"rows_inserted": n})
	}
}

func syncLogResource(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := deps.Log.RecentSyncLog(ctx, 50)
		if err != nil {
			return nil, fmt.Errorf("failed to read sync log: %w", err)
		}
		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sync log: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
