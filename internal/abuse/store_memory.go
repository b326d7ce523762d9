package abuse

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured
// and by unit tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryStore constructs an in-memory abuse ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Upsert records one qualifying rejection for origin.
func (s *MemoryStore) Upsert(ctx context.Context, origin string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.records[origin]; ok {
		r.AbuseCount++
		r.LatestAbuseAt = at
		return nil
	}
	s.records[origin] = &Record{
		Origin:        origin,
		FirstAbuseAt:  at,
		LatestAbuseAt: at,
		AbuseCount:    1,
	}
	return nil
}

// DecayBelow deletes aged light-abuser records.
func (s *MemoryStore) DecayBelow(ctx context.Context, lightThreshold int64, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for origin, r := range s.records {
		if r.AbuseCount < lightThreshold && !r.LatestAbuseAt.After(cutoff) {
			delete(s.records, origin)
			n++
		}
	}
	return n, nil
}

// Snapshot returns a copy of an abuse record, for tests.
func (s *MemoryStore) Snapshot(origin string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[origin]
	if !ok {
		return Record{}, false
	}
	return *r, true
}
