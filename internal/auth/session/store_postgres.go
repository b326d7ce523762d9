package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL (wishd.sessions).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create enforces the session cap inside a serializable transaction.
//
// Under cap: insert a fresh row. At cap: lock the oldest live row and
// overwrite its token and timestamps in place, so the cap is never
// exceeded and no delete+insert gap exists.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, principalID, tokenHash string, expiresAt time.Time, maxPerPrincipal int) (Created, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return Created{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var live int
	err = tx.QueryRow(ctx, `
		SELECT count(*)
		FROM wishd.sessions
		WHERE principal_id = $1
		  AND expires_at > $2
	`, principalID, now).Scan(&live)
	if err != nil {
		return Created{}, err
	}

	var created Created

	if live < maxPerPrincipal {
		id := ulid.Make().String()
		_, err = tx.Exec(ctx, `
			INSERT INTO wishd.sessions (id, principal_id, token_hash, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)
		`, id, principalID, tokenHash, now, expiresAt)
		if err != nil {
			return Created{}, translateUnique(err)
		}
		created = Created{SessionID: id}
	} else {
		var oldest string
		err = tx.QueryRow(ctx, `
			SELECT id
			FROM wishd.sessions
			WHERE principal_id = $1
			  AND expires_at > $2
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE
		`, principalID, now).Scan(&oldest)
		if errors.Is(err, pgx.ErrNoRows) {
			return Created{}, ErrEvictRace
		}
		if err != nil {
			return Created{}, err
		}

		_, err = tx.Exec(ctx, `
			UPDATE wishd.sessions
			SET token_hash = $2, created_at = $3, expires_at = $4
			WHERE id = $1
		`, oldest, tokenHash, now, expiresAt)
		if err != nil {
			return Created{}, translateUnique(err)
		}
		created = Created{SessionID: oldest, Evicted: true}
	}

	if err := tx.Commit(ctx); err != nil {
		return Created{}, err
	}
	return created, nil
}

// GetByTokenHash loads a session row by token digest.
func (s *PostgresStore) GetByTokenHash(ctx context.Context, tokenHash string) (Row, error) {
	var row Row

	err := s.pool.QueryRow(ctx, `
		SELECT id, principal_id, token_hash, created_at, expires_at
		FROM wishd.sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(&row.ID, &row.PrincipalID, &row.TokenHash, &row.CreatedAt, &row.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return row, nil
}

// DeleteByTokenHash removes a session (idempotent).
func (s *PostgresStore) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM wishd.sessions
		WHERE token_hash = $1
	`, tokenHash)
	return err
}

// DeleteByPrincipal removes up to limit live sessions for a principal.
// Expired leftovers are left for DeleteExpired so they never consume the
// delete budget while live sessions survive.
func (s *PostgresStore) DeleteByPrincipal(ctx context.Context, now time.Time, principalID string, limit int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM wishd.sessions
		WHERE id IN (
			SELECT id FROM wishd.sessions
			WHERE principal_id = $1
			  AND expires_at > $2
			LIMIT $3
		)
	`, principalID, now, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired physically removes rows past their expiry.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM wishd.sessions
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListLive returns the principal's live sessions ordered oldest first.
func (s *PostgresStore) ListLive(ctx context.Context, now time.Time, principalID string) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, principal_id, token_hash, created_at, expires_at
		FROM wishd.sessions
		WHERE principal_id = $1
		  AND expires_at > $2
		ORDER BY created_at ASC
	`, principalID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.PrincipalID, &r.TokenHash, &r.CreatedAt, &r.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// translateUnique maps a token-digest uniqueness violation onto the domain
// sentinel the retry loop in Manager.Create discriminates on.
func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrTokenTaken
	}
	return err
}
