package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mdmirror/mdmirror/internal/mirror/daemon"
	"github.com/mdmirror/mdmirror/internal/mirror/dashboard"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		GroupID: "server",
		Short:   "Watch documents and keep the database in sync (foreground)",
		Long: `Run the sync daemon in the foreground.

The daemon will:
  1. Run a full sync, and fail if the store is unreachable
  2. Watch the documents and dated notes for changes
  3. Resync a file once its edits settle (see --debounce)
  4. Resync everything periodically (see --interval)

With --dashboard, an HTTP server exposes status, the sync log, sync
triggers and a WebSocket event stream on 127.0.0.1.

Stop with Ctrl+C.`,
		Example: `  mirror daemon
  mirror daemon --dashboard --port 9000
  mirror daemon --debounce 1s --interval 10m`,
		RunE: runDaemon,
	}

	cmd.Flags().Bool("dashboard", false, "serve the HTTP/WebSocket dashboard")
	cmd.Flags().IntP("port", "p", dashboard.DefaultPort, "dashboard port")
	cmd.Flags().Duration("debounce", daemon.DefaultDebounce, "quiet period before a changed file is synced")
	cmd.Flags().Duration("interval", daemon.DefaultFullSyncInterval, "full resync interval")
	return cmd
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	p := newPrinter(cmd)
	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Dashboard.Enabled {
		server := dashboard.NewServer(d, a.db, &dashboard.Config{
			Port:   a.cfg.Dashboard.Port,
			Logger: a.logger,
		})
		d.Subscribe(dashboard.NewHandler(server))

		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		p.Success("Dashboard on http://%s", server.Addr())
		p.Printf("  WebSocket: ws://%s/ws\n", server.Addr())

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		})
	}

	p.Step("Watching %s (Ctrl+C to stop)", a.cfg.Root)
	g.Go(func() error {
		return d.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	p.Success("Daemon stopped")
	return nil
}
