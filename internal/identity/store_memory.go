package identity

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node
// development deployments.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]Principal
	byEmail map[string]string
}

// NewMemoryStore creates an empty in-memory principal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Principal),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Insert(_ context.Context, p Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[p.Email]; ok {
		return ErrEmailTaken
	}
	s.byID[p.ID] = p
	s.byEmail[p.Email] = p.ID
	return nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, emailNorm string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[emailNorm]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return p, nil
}
