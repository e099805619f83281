package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/internal/infrastructure/persistence/postgres"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
					n, err := m.Migrate(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
					version, err := m.Rollback(ctx)
					if err != nil {
						return err
					}
					if version == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
					migrations, err := m.Status(ctx)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
					for _, mig := range migrations {
						applied := "pending"
						if mig.IsApplied {
							applied = mig.AppliedAt.Format(time.RFC3339)
						}
						fmt.Fprintf(w, "%d\t%s\t%s\n", mig.Version, mig.Name, applied)
					}
					return w.Flush()
				})
			},
		},
	)
	return cmd
}

func (c *cli) withMigrator(ctx context.Context, fn func(context.Context, *postgres.Migrator) error) error {
	if c.cfg.Database.URL == "" {
		return shared.NewConfigurationError("navigatorctl", "migrate", "DATABASE_URL is required")
	}

	pgCfg := postgres.DefaultConfig(c.cfg.Database.URL)
	pgCfg.MaxConns = 2
	pgCfg.MinConns = 0

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, postgres.NewMigrator(conn))
}
