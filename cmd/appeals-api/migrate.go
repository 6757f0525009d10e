package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/pkg/config"
	"github.com/noah-isme/sma-appeals-api/pkg/database"
	"github.com/noah-isme/sma-appeals-api/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the bundled appeals schema to the configured SQL store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Appeals.Store == config.StoreMemory {
			return errors.New("the memory store has no schema to migrate")
		}
		logr, err := logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logr.Sync() //nolint:errcheck

		return runMigrate(cmd.Context(), cfg, logr)
	},
}

func runMigrate(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect %s store: %w", cfg.Appeals.Store, err)
	}
	defer db.Close() //nolint:errcheck

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		return err
	}
	logr.Info("appeals schema applied", zap.String("store", cfg.Appeals.Store), zap.Strings("files", applied))
	return nil
}
