package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/realtime-notify/internal/config"
)

const connectTimeout = 10 * time.Second

// Connect builds a pgxpool connection pool sized from config and verifies
// connectivity before returning it. The snapshot store is the pool's only
// consumer, so the pool stays small.
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate applies pending up-migrations from sourceDir. Idempotent:
// migrate.ErrNoChange is not an error.
func Migrate(databaseURL, sourceDir string) error {
	// golang-migrate's pgx/v5 driver wants the "pgx5://" scheme in place of
	// whatever postgres scheme the connection string uses.
	rest := strings.TrimPrefix(databaseURL, "postgresql://")
	rest = strings.TrimPrefix(rest, "postgres://")
	migrationURL := "pgx5://" + rest

	m, err := migrate.New("file://"+sourceDir, migrationURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
