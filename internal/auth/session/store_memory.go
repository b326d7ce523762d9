package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-process Store used when no database is configured
// and by unit tests. It mirrors the Postgres cap semantics under a mutex,
// which serializes creations the way the serializable transaction does.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*Row // id -> row
}

// NewMemoryStore constructs an in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Row)}
}

// Create inserts a session, overwriting the oldest live row at capacity.
func (s *MemoryStore) Create(ctx context.Context, now time.Time, principalID, tokenHash string, expiresAt time.Time, maxPerPrincipal int) (Created, error) {
	if err := ctx.Err(); err != nil {
		return Created{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.TokenHash == tokenHash {
			return Created{}, ErrTokenTaken
		}
	}

	live := s.liveLocked(now, principalID)
	if len(live) < maxPerPrincipal {
		id := ulid.Make().String()
		s.rows[id] = &Row{
			ID:          id,
			PrincipalID: principalID,
			TokenHash:   tokenHash,
			CreatedAt:   now,
			ExpiresAt:   expiresAt,
		}
		return Created{SessionID: id}, nil
	}

	oldest := live[0]
	oldest.TokenHash = tokenHash
	oldest.CreatedAt = now
	oldest.ExpiresAt = expiresAt
	return Created{SessionID: oldest.ID, Evicted: true}, nil
}

// GetByTokenHash loads a session row by token digest.
func (s *MemoryStore) GetByTokenHash(ctx context.Context, tokenHash string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.TokenHash == tokenHash {
			return *r, nil
		}
	}
	return Row{}, ErrSessionNotFound
}

// DeleteByTokenHash removes a session (idempotent).
func (s *MemoryStore) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.rows {
		if r.TokenHash == tokenHash {
			delete(s.rows, id)
			return nil
		}
	}
	return nil
}

// DeleteByPrincipal removes up to limit live sessions for a principal.
// Expired leftovers stay behind for DeleteExpired.
func (s *MemoryStore) DeleteByPrincipal(ctx context.Context, now time.Time, principalID string, limit int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.rows {
		if n >= int64(limit) {
			break
		}
		if r.PrincipalID == principalID && r.ExpiresAt.After(now) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

// DeleteExpired physically removes rows past their expiry.
func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.rows {
		if !r.ExpiresAt.After(now) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

// ListLive returns the principal's live sessions ordered oldest first.
func (s *MemoryStore) ListLive(ctx context.Context, now time.Time, principalID string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.liveLocked(now, principalID)
	out := make([]Row, 0, len(live))
	for _, r := range live {
		out = append(out, *r)
	}
	return out, nil
}

func (s *MemoryStore) liveLocked(now time.Time, principalID string) []*Row {
	var live []*Row
	for _, r := range s.rows {
		if r.PrincipalID == principalID && r.ExpiresAt.After(now) {
			live = append(live, r)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.Before(live[j].CreatedAt) })
	return live
}
