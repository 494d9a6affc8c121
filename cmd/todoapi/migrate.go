package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/todo-crud/internal/persistence/sqlite"
	"github.com/example/todo-crud/internal/persistence/sqlite/migration"
)

func newMigrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := a.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer a.closeStore(pool)

			applied, err := sqlite.Migrate(ctx, pool, a.cfg.MigrationDir, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))

			status, err := sqlite.MigrationStatus(ctx, pool, a.cfg.MigrationDir, a.logger)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), status)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := a.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer a.closeStore(pool)

			status, err := sqlite.MigrationStatus(ctx, pool, a.cfg.MigrationDir, a.logger)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), status)
		},
	})
	return cmd
}

func printStatus(w io.Writer, status migration.Status) error {
	current := status.CurrentVersion
	if current == "" {
		current = "none"
	}
	fmt.Fprintf(w, "current version: %s\n", current)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tDETAIL")
	for _, m := range status.Applied {
		fmt.Fprintf(tw, "%s\tapplied\t%s\t%s\n", m.Version, m.AppliedAt.Format(time.RFC3339), m.ExecutionTime)
	}
	for _, m := range status.Pending {
		fmt.Fprintf(tw, "%s\tpending\t-\t%s\n", m.Version, m.Description)
	}
	return tw.Flush()
}
