package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the clinic scheduling database schema",
		SilenceUsage:  true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline for the command")

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), timeout, func(ctx context.Context, m *db.Migrator) error {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				log.Info().Int("applied", n).Msg("migrations complete")
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and when they were applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), timeout, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
				for _, s := range statuses {
					applied := "pending"
					if s.AppliedAt != nil {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%03d\t%s\t%s\n", s.Version, s.Name, applied)
				}
				return w.Flush()
			})
		},
	})

	return root
}

func withMigrator(parent context.Context, timeout time.Duration, fn func(ctx context.Context, m *db.Migrator) error) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrations need STORE_BACKEND=%s, got %q", config.BackendPostgres, cfg.StoreBackend)
	}
	logging.Init("migrate", cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, db.Migrations()))
}
