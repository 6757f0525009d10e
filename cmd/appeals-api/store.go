package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/internal/models"
	"github.com/noah-isme/sma-appeals-api/internal/repository"
	"github.com/noah-isme/sma-appeals-api/pkg/config"
	"github.com/noah-isme/sma-appeals-api/pkg/database"
)

type appealStore interface {
	Create(ctx context.Context, appeal *models.Appeal) error
	GetByKey(ctx context.Context, key string) (*models.Appeal, error)
	ExistsByCaseID(ctx context.Context, caseID string) (bool, error)
	CompareAndSwap(ctx context.Context, appeal *models.Appeal, expectedVersion int64) error
	ListOutstandingWithDeadline(ctx context.Context) ([]models.Appeal, error)
}

// openDB connects to the configured SQL backend. The memory store has no database.
func openDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.Appeals.Store {
	case config.StoreMemory:
		return nil, nil
	case config.StoreSQLite:
		return database.NewSQLite(ctx, cfg.SQLite)
	default:
		return database.NewPostgres(ctx, cfg.Database)
	}
}

// openStore returns the appeal store and, for SQL backends, its connection. Callers close db.
func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger, migrate bool) (appealStore, *sqlx.DB, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s store: %w", cfg.Appeals.Store, err)
	}
	if db == nil {
		logr.Warn("using in-memory appeal store; data is lost on restart")
		return repository.NewMemoryAppealRepository(), nil, nil
	}
	if migrate {
		applied, err := database.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("apply appeals schema: %w", err)
		}
		logr.Info("appeals schema applied", zap.String("store", cfg.Appeals.Store), zap.Strings("files", applied))
	}
	return repository.NewAppealRepository(db), db, nil
}
