package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"newsradar/internal/config"
	"newsradar/internal/logger"
	"newsradar/internal/persistence"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or update the database schema",
	Long: `Apply all pending schema migrations to the configured database,
creating the sources and articles tables if they don't yet exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInitDB(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

func runInitDB(ctx context.Context) error {
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := persistence.NewPostgresDB(cfg.Database.ConnectionString, cfg.Database.MaxConnections, cfg.Database.IdleConnections)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator := persistence.NewMigrationManager(db)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	log.Info("schema is up to date")
	fmt.Println("database schema is up to date")
	return nil
}
