package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		GroupID: "sync",
		Short:   "Show row counts and the latest outcome per file",
		Long: `Display the current state of the mirror.

Shows:
  - Rows per table
  - The latest sync outcome per file, from the sync log
  - When the last full sync ran

Nothing is synced. Use --json for machine-readable output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.syncer.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read status: %w", err)
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			newPrinter(cmd).renderStatus(st, time.Now())
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print status as JSON")
	return cmd
}
