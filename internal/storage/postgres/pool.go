// Package postgres implements the Postgres-backed NotificationRepository,
// UserRepository, and DatabaseJobQueue.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/durablenotify/notifysvc/internal/config"
)

// NewPool creates a pgxpool connection pool configured from
// cfg.Postgres and verifies connectivity before returning.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.MasterDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.Postgres.Pool.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.Postgres.Pool.MaxOpenConns)
	}
	if cfg.Postgres.Pool.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.Postgres.Pool.MaxIdleConns)
	}
	if cfg.Postgres.Pool.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Postgres.Pool.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return pool, nil
}

// Migrate runs every pending up-migration under migrations/. Safe to
// call on every process start; already-applied migrations are
// skipped.
func Migrate(databaseURL string) error {
	var rest string
	switch {
	case strings.HasPrefix(databaseURL, "postgresql://"):
		rest = databaseURL[len("postgresql://"):]
	case strings.HasPrefix(databaseURL, "postgres://"):
		rest = databaseURL[len("postgres://"):]
	default:
		rest = databaseURL
	}
	migrationURL := "pgx5://" + rest

	m, err := migrate.New("file://migrations", migrationURL)
	if err != nil {
		return fmt.Errorf("postgres: create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("postgres: run migrations: %w", err)
	}

	return nil
}
