package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokentransfer/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or revert database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Level())
	if err != nil {
		return err
	}
	defer logger.Sync()

	switch args[0] {
	case "up":
		return migrateUp(cfg, logger)
	case "down":
		return migrateDown(cfg, logger)
	}
	return fmt.Errorf("unknown migrate direction %q", args[0])
}

func migrateUp(cfg *config.Config, logger *zap.Logger) error {
	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	logger.Info("Running database migrations", zap.String("source", cfg.DB.MigrationsPath))
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("Database migrations completed (or no new migrations)")
	return nil
}

func migrateDown(cfg *config.Config, logger *zap.Logger) error {
	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	logger.Warn("Reverting all database migrations", zap.String("source", cfg.DB.MigrationsPath))
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("revert migrations: %w", err)
	}
	logger.Info("Database migrations reverted")
	return nil
}

func newMigrate(cfg *config.Config) (*migrate.Migrate, error) {
	m, err := migrate.New(cfg.DB.MigrationsPath, dbConfig(cfg).MigrationURL())
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}
