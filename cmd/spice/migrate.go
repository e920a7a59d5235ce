package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-sms/internal/cli"
	"github.com/Veraticus/spice-sms/internal/config"
	"github.com/Veraticus/spice-sms/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

This command ensures your local database has the tables and indexes
that scans and reports rely on.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	dbPath := config.ExpandPath(viper.GetString(config.KeyDatabasePath))
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	slog.Info("Starting database migration", "database", dbPath, "status_only", status)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if status {
		fmt.Fprintln(out, cli.RenderBox("Database Migration Status", cli.KeyValues(
			[2]string{"Database", dbPath},
			[2]string{"Current version", fmt.Sprint(current)},
			[2]string{"Latest version", fmt.Sprint(storage.ExpectedSchemaVersion)},
		)))
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if current == storage.ExpectedSchemaVersion {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Database already at version %d", current)))
		return nil
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Migrated %s from version %d to %d", dbPath, current, storage.ExpectedSchemaVersion)))
	return nil
}
