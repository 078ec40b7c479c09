package limiter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is a PostgreSQL-backed fixed-window limiter shared by all instances.
type PG struct {
	pool   pgxQuerier
	window time.Duration
	limit  int
	now    func() time.Time
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(pool *pgxpool.Pool, window time.Duration, limit int) *PG {
	return NewPGWithQuerier(pool, window, limit)
}

// NewPGWithQuerier constructs a PostgreSQL-backed limiter.
func NewPGWithQuerier(q pgxQuerier, window time.Duration, limit int) *PG {
	return &PG{pool: q, window: window, limit: limit, now: time.Now}
}

// Allow records a hit for key in a single atomic upsert.
func (l *PG) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()

	const q = `
INSERT INTO rate_limits (key_hash, window_start, hits)
VALUES ($1, $2, 1)
ON CONFLICT (key_hash) DO UPDATE
SET
  window_start = CASE WHEN rate_limits.window_start <= $3 THEN EXCLUDED.window_start ELSE rate_limits.window_start END,
  hits         = CASE WHEN rate_limits.window_start <= $3 THEN 1 ELSE rate_limits.hits + 1 END
RETURNING window_start, hits`

	var start time.Time
	var hits int
	if err := l.pool.QueryRow(ctx, q, HashIP(key), now, now.Add(-l.window)).Scan(&start, &hits); err != nil {
		return Decision{}, err
	}
	return decide(l.limit, hits, start, l.window, now), nil
}

// Purge deletes rows whose window has rolled over.
func (l *PG) Purge(ctx context.Context) (int64, error) {
	const q = `DELETE FROM rate_limits WHERE window_start <= $1`
	tag, err := l.pool.Exec(ctx, q, l.now().Add(-l.window))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
