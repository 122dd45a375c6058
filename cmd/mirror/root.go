package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdmirror/mdmirror/internal/config"
	"github.com/mdmirror/mdmirror/internal/logging"
	"github.com/mdmirror/mdmirror/internal/mirror/db"
	"github.com/mdmirror/mdmirror/internal/mirror/summary"
	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mirror",
		Short: "Mirror markdown systems of record into SQLite",
		Long: `mirror parses a directory of hand-edited markdown documents (tasks, job
pipeline, content calendar, goals, memory, CV history and dated daily notes)
into typed rows and keeps a SQLite database consistent with them.

Writes only flow from markdown to the database. Re-running a sync over
unchanged files inserts nothing.

Configuration is read from mirror.yaml (or .toml, .json, .jsonc) in the
current directory or the user config directory, then MIRROR_* environment
variables (a .env file is loaded first), then flags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "server", Title: "Server Commands:"},
	)

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default: search for mirror.yaml)")
	pf.String("root", "", `notes directory (default ".")`)
	pf.String("db", "", `database path (default "mirror.db")`)
	pf.String("driver", "", "database driver: "+fmt.Sprint(db.Drivers()))
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "log as JSON")
	pf.String("log-file", "", "also write logs to this file, with rotation")
	pf.Bool("no-color", false, "disable colored output")

	root.AddCommand(
		newSyncCmd(),
		newStatusCmd(),
		newBenchCmd(),
		newDaemonCmd(),
		newInitCmd(),
		newMCPCmd(),
	)
	return root
}

// loadConfig resolves configuration for cmd, with its flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.Options{File: file, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// app is everything a sync-capable command needs.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	db     *db.DB
	syncer msync.Syncer
}

// openApp loads and validates configuration, opens the store and builds
// the syncer. Callers must Close the result.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Output:     cmd.ErrOrStderr(),
	})

	database, err := db.OpenDriver(cfg.DB.Driver, cfg.DB.Path)
	if err != nil {
		logger.Close()
		return nil, err
	}
	if err := database.InitSchemaContext(cmd.Context()); err != nil {
		database.Close()
		logger.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	summarizer, err := newSummarizer(cfg)
	if err != nil {
		database.Close()
		logger.Close()
		return nil, err
	}

	syncer := msync.New(database, msync.Options{
		Root:       cfg.Root,
		Files:      cfg.Files,
		NotesGlob:  cfg.Notes.Glob,
		Summarizer: summarizer,
		Logger:     logger,
	})

	return &app{cfg: cfg, logger: logger, db: database, syncer: syncer}, nil
}

// newSummarizer returns nil when summaries are heuristic only.
func newSummarizer(cfg *config.Config) (summary.Summarizer, error) {
	if cfg.Summary.Provider != config.ProviderAnthropic {
		return nil, nil
	}
	s, err := summary.NewAnthropic(summary.Config{
		APIKey:    cfg.Summary.APIKey,
		Model:     cfg.Summary.Model,
		MaxTokens: cfg.Summary.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create summarizer: %w", err)
	}
	return s, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
	a.logger.Close()
}
