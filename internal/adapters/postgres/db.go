// Package postgres implements every storage port on one pgx pool: scan,
// finding, report and usage repositories plus the job queue.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool

	// RetryBackoff is the base delay for requeued jobs; each further
	// attempt doubles it. Zero selects the default.
	RetryBackoff time.Duration

	// MaxAttempts is the delivery ceiling stamped onto new jobs. Zero
	// selects the default.
	MaxAttempts int

	// VisibilityTimeout is how long a claimed job may stay running before
	// ClaimNext hands it to another worker. Must comfortably exceed the
	// longest scan. Zero selects the default.
	VisibilityTimeout time.Duration
}

func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() { db.Pool.Close() }
