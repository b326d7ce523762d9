package session

import (
	"context"
	"time"
)

// Row mirrors the wishd.sessions row used by the session subsystem.
type Row struct {
	ID          string
	PrincipalID string
	TokenHash   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Created is the result of a capped session insert.
type Created struct {
	SessionID string
	// Evicted is true when the insert replaced the principal's oldest
	// live session instead of adding a row.
	Evicted bool
}

// Store abstracts persistence for session state.
//
// Create must enforce the per-principal cap atomically: two concurrent
// calls for one principal must never both observe "under cap" and both
// insert. The Postgres implementation uses a serializable transaction.
type Store interface {
	// Create inserts a session for principalID, evicting the oldest live
	// session by in-place overwrite when the principal already holds
	// maxPerPrincipal live sessions.
	// Returns ErrTokenTaken if tokenHash collides with an existing row and
	// ErrEvictRace if the eviction target vanished mid-transaction.
	Create(ctx context.Context, now time.Time, principalID, tokenHash string, expiresAt time.Time, maxPerPrincipal int) (Created, error)

	// GetByTokenHash loads a session row by token digest.
	// Returns ErrSessionNotFound when absent. Expiry is the caller's check.
	GetByTokenHash(ctx context.Context, tokenHash string) (Row, error)

	// DeleteByTokenHash removes a session (idempotent).
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByPrincipal removes up to limit live sessions for a principal
	// (idempotent) and reports how many were removed. Expired leftovers are
	// skipped so they cannot eat the delete budget; DeleteExpired collects
	// them.
	DeleteByPrincipal(ctx context.Context, now time.Time, principalID string, limit int) (int64, error)

	// DeleteExpired physically removes rows past their expiry.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// ListLive returns the principal's live sessions ordered oldest first.
	ListLive(ctx context.Context, now time.Time, principalID string) ([]Row, error)
}
