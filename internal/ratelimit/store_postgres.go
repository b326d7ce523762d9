package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (wishd.rate_trackers).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed tracker store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Mint creates a tracker with request_count = 1.
func (s *PostgresStore) Mint(ctx context.Context, now time.Time, tok string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wishd.rate_trackers (token, request_count, window_started_at)
		VALUES ($1, 1, $2)
	`, tok, now)
	return err
}

// Increment bumps the counter in a single update, which makes concurrent
// increments lost-update-safe without a transaction.
func (s *PostgresStore) Increment(ctx context.Context, tok string) (int64, bool, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		UPDATE wishd.rate_trackers
		SET request_count = request_count + 1
		WHERE token = $1
		RETURNING request_count
	`, tok).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// Replenish halves positive counters whose window is older than cutoff.
// Integer division floors toward zero, so counts never go negative.
func (s *PostgresStore) Replenish(ctx context.Context, now, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE wishd.rate_trackers
		SET request_count = request_count / 2,
		    window_started_at = $1
		WHERE request_count > 0
		  AND window_started_at <= $2
	`, now, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteIdle removes zeroed trackers whose window is older than cutoff.
func (s *PostgresStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM wishd.rate_trackers
		WHERE request_count = 0
		  AND window_started_at <= $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
