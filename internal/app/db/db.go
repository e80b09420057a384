/*
Package db owns the PostgreSQL connection pool and the embedded schema
migrations. The store package runs its queries over the pool built here;
nothing else in the server talks to the database.
*/
package db

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"talkroom/internal/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool sizing. Connections above MinConns are recycled once idle or old
// enough, keeping the pool small between traffic bursts.
const (
	maxConns        = 25
	minConns        = 5
	connMaxLifetime = 30 * time.Minute
	connMaxIdleTime = 5 * time.Minute
	healthCheck     = time.Minute

	startupTimeout = 15 * time.Second
)

// NewPool connects to Postgres, verifies the connection, and brings the
// schema up to date. The returned pool is ready for queries.
func NewPool(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}

	config.MaxConns = maxConns
	config.MinConns = minConns
	config.MaxConnLifetime = connMaxLifetime
	config.MaxConnIdleTime = connMaxIdleTime
	config.HealthCheckPeriod = healthCheck

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateUp(pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// migrateUp applies any pending embedded migrations. goose needs a
// database/sql handle, so one is opened over the pool's config just for
// the migration run.
func migrateUp(pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	logx.Info("Database schema is up to date")

	return nil
}
