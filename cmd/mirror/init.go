package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mdmirror/mdmirror/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a mirror.yaml config file",
		Long: `Create a config file interactively.

Values given by flags or MIRROR_* environment variables are offered as
defaults. With --yes, or when stdin is not a terminal, the
defaults are written without prompting.

The file is written atomically. An existing file is only replaced with
--force.`,
		RunE: runInit,
	}
	cmd.Flags().BoolP("yes", "y", false, "accept defaults without prompting")
	cmd.Flags().BoolP("force", "f", false, "overwrite an existing config file")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultFile
	}
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	// Defaults come from everything except the file being replaced.
	cfg, err := config.Load(config.Options{Flags: cmd.Flags(), SearchDirs: []string{}})
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && term.IsTerminal(int(os.Stdin.Fd())) {
		if err := promptConfig(cfg); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return errors.New("aborted")
			}
			return err
		}
	}

	if err := config.Write(path, cfg); err != nil {
		return err
	}

	abs, _ := filepath.Abs(path)
	newPrinter(cmd).Success("Wrote %s", abs)
	return nil
}

// promptConfig asks for the settings most people change.
func promptConfig(cfg *config.Config) error {
	port := strconv.Itoa(cfg.Dashboard.Port)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Notes directory").
				Description("Where TASKS.md, JOBS.md and the memory/ notes live").
				Value(&cfg.Root).
				Validate(func(s string) error {
					info, err := os.Stat(s)
					if err != nil || !info.IsDir() {
						return fmt.Errorf("%s is not a directory", s)
					}
					return nil
				}),
			huh.NewInput().
				Title("Database path").
				Value(&cfg.DB.Path).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Daily notes glob").
				Description("Relative to the notes directory").
				Value(&cfg.Notes.Glob).
				Validate(func(s string) error {
					if _, err := filepath.Match(s, ""); err != nil || s == "" {
						return errors.New("not a valid glob")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Daily note summaries").
				Options(
					huh.NewOption("First lines of the note", config.ProviderNone),
					huh.NewOption("Anthropic (needs "+config.APIKeyEnv+")", config.ProviderAnthropic),
				).
				Value(&cfg.Summary.Provider),
			huh.NewConfirm().
				Title("Serve the dashboard from the daemon?").
				Value(&cfg.Dashboard.Enabled),
			huh.NewInput().
				Title("Dashboard port").
				Value(&port).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 0 || n > 65535 {
						return errors.New("must be a port number")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", port, err)
	}
	cfg.Dashboard.Port = n
	return nil
}
