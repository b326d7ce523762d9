package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured
// and by unit tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemoryStore constructs an in-memory tracker store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Mint creates a tracker with request_count = 1.
func (s *MemoryStore) Mint(ctx context.Context, now time.Time, tok string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[tok]; ok {
		return errors.New("tracker token taken")
	}
	s.entries[tok] = &Entry{Token: tok, RequestCount: 1, WindowStartedAt: now}
	return nil
}

// Increment bumps the counter and returns the new count.
func (s *MemoryStore) Increment(ctx context.Context, tok string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[tok]
	if !ok {
		return 0, false, nil
	}
	e.RequestCount++
	return e.RequestCount, true, nil
}

// Replenish halves positive counters whose window is older than cutoff.
func (s *MemoryStore) Replenish(ctx context.Context, now, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, e := range s.entries {
		if e.RequestCount > 0 && !e.WindowStartedAt.After(cutoff) {
			e.RequestCount /= 2
			e.WindowStartedAt = now
			n++
		}
	}
	return n, nil
}

// DeleteIdle removes zeroed trackers whose window is older than cutoff.
func (s *MemoryStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for tok, e := range s.entries {
		if e.RequestCount == 0 && !e.WindowStartedAt.After(cutoff) {
			delete(s.entries, tok)
			n++
		}
	}
	return n, nil
}

// Snapshot returns a copy of a tracker entry, for tests.
func (s *MemoryStore) Snapshot(tok string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[tok]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}
