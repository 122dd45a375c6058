package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mdmirror/mdmirror/internal/mirror/daemon"
	"github.com/mdmirror/mdmirror/internal/mirror/mcpserver"
	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mcp",
		GroupID: "server",
		Short:   "Serve sync tools over MCP (stdio)",
		Long: `Run an MCP server on stdin/stdout.

Tools:
  sync_status   row counts and latest outcome per file
  sync_all      resync everything
  sync_file     resync one file (path)

Resource:
  mirror://sync-log   the most recent sync attempts

With --watch the daemon runs alongside the server, so the mirror stays
current between tool calls. Logs go to stderr.`,
		RunE: runMCP,
	}
	cmd.Flags().Bool("watch", false, "also watch documents like 'mirror daemon'")
	return cmd
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var syncer msync.Syncer = a.syncer
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		d, err := daemon.New(a.syncer, daemon.Config{
			Root:             a.cfg.Root,
			Globs:            daemon.Globs(a.cfg.Files, a.cfg.Notes.Glob),
			Debounce:         a.cfg.Debounce,
			FullSyncInterval: a.cfg.FullSyncInterval,
			Logger:           a.logger,
		})
		if err != nil {
			return err
		}
		syncer = d
		g.Go(func() error { return d.Run(gctx) })
	}

	s := mcpserver.New(mcpserver.Deps{Syncer: syncer, Log: a.db, Version: version})
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(a.logger.WithComponent("mcp").Handler(), slog.LevelError))

	g.Go(func() error {
		err := stdio.Listen(gctx, os.Stdin, os.Stdout)
		if gctx.Err() != nil || errors.Is(err, io.EOF) {
			err = nil
		}
		// The client hung up; stop the watcher too.
		stop()
		return err
	})

	return g.Wait()
}
