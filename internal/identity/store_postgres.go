package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL (wishd.users).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed principal store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, p Principal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wishd.users (id, email, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Email, p.DisplayName, p.PasswordHash, p.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrEmailTaken
	}
	return err
}

func (s *PostgresStore) GetByEmail(ctx context.Context, emailNorm string) (Principal, error) {
	return s.get(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM wishd.users
		WHERE email = $1
	`, emailNorm)
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (Principal, error) {
	return s.get(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM wishd.users
		WHERE id = $1
	`, id)
}

func (s *PostgresStore) get(ctx context.Context, query, arg string) (Principal, error) {
	var p Principal
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&p.ID, &p.Email, &p.DisplayName, &p.PasswordHash, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Principal{}, ErrNotFound
	}
	if err != nil {
		return Principal{}, err
	}
	return p, nil
}
