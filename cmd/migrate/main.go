package main

// Run database migrations:
//   go run ./cmd/migrate up
//   go run ./cmd/migrate down
//   go run ./cmd/migrate status

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"photoshoot-backend/internal/shared/config"
	"photoshoot-backend/internal/shared/storage/db"
	"photoshoot-backend/internal/shared/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the photoshoot database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrationCmd("up", "Apply all pending migrations", db.RunMigrations),
		migrationCmd("down", "Roll back the most recent migration", db.RollbackMigration),
		migrationCmd("status", "Print migration status", db.MigrationStatus),
	)
	return root
}

func migrationCmd(use, short string, run func(ctx context.Context, database *sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			telemetry.Configure(cfg.LogLevel, cfg.Env)
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			ctx := cmd.Context()
			sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer sqlDB.Close()
			if err := run(ctx, sqlDB); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}
			telemetry.Info("migrate.done", map[string]any{"command": use})
			return nil
		},
	}
}
