package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/rekcurd/dashboard/internal/config"
	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/service/evaluation"
	"github.com/rekcurd/dashboard/internal/storage"
	"github.com/rekcurd/dashboard/internal/storage/sqlite"
	"github.com/rekcurd/dashboard/migrations"
)

// backend is the method set shared by the Postgres and SQLite stores.
type backend interface {
	evaluation.Store

	CreateProject(ctx context.Context, p model.Project) (model.Project, error)
	CreateApplication(ctx context.Context, a model.Application) (model.Application, error)
	CreateModel(ctx context.Context, m model.Model) (model.Model, error)
	CreateService(ctx context.Context, s model.Service) (model.Service, error)
	GetApplication(ctx context.Context, projectID, applicationID int64) (model.Application, error)

	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, migrationsFS fs.FS) error
	Close(ctx context.Context)
}

// openStore connects to the database named by cfg.DatabaseURL and returns the
// migrations matching its dialect.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, fs.FS, error) {
	driver, dsn, err := config.ParseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	switch driver {
	case config.DriverPostgres:
		db, err := storage.New(ctx, dsn, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, migrations.Postgres(), nil
	case config.DriverSQLite:
		db, err := sqlite.New(ctx, dsn, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, migrations.SQLite(), nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
}

// openMigrated opens the store and applies pending migrations.
func openMigrated(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	db, migrationsFS, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := db.RunMigrations(ctx, migrationsFS); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
