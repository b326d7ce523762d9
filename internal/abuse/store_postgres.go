package abuse

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store using PostgreSQL (wishd.abuse_records).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed abuse ledger.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Upsert records one qualifying rejection for origin.
func (s *PostgresStore) Upsert(ctx context.Context, origin string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wishd.abuse_records (id, origin_address, first_abuse_at, latest_abuse_at, abuse_count)
		VALUES ($1, $2, $3, $3, 1)
		ON CONFLICT (origin_address) DO UPDATE
		SET abuse_count = wishd.abuse_records.abuse_count + 1,
		    latest_abuse_at = EXCLUDED.latest_abuse_at
	`, ulid.Make().String(), origin, at)
	return err
}

// DecayBelow deletes aged light-abuser records.
func (s *PostgresStore) DecayBelow(ctx context.Context, lightThreshold int64, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM wishd.abuse_records
		WHERE abuse_count < $1
		  AND latest_abuse_at <= $2
	`, lightThreshold, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
