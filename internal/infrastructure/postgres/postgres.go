package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool, pings it and creates the schema
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	if err := InitSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS weight_captures (
		id TEXT PRIMARY KEY,
		farmer_id TEXT NOT NULL,
		produce_name TEXT NOT NULL DEFAULT '',
		produce_type TEXT NOT NULL DEFAULT '',
		weight DOUBLE PRECISION NOT NULL,
		unit VARCHAR(8) NOT NULL,
		weight_kg DOUBLE PRECISION NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		raw_text TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		backend VARCHAR(32) NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_weight_captures_farmer
		ON weight_captures (farmer_id, captured_at DESC)`,
	`CREATE TABLE IF NOT EXISTS farmer_data (
		farmer_id TEXT PRIMARY KEY,
		farmer_name TEXT NOT NULL,
		records JSONB NOT NULL,
		metadata JSONB,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// InitSchema creates the tables if they do not exist
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
