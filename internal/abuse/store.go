package abuse

import (
	"context"
	"time"
)

// Record mirrors the wishd.abuse_records row.
type Record struct {
	Origin        string
	FirstAbuseAt  time.Time
	LatestAbuseAt time.Time
	AbuseCount    int64
}

// Store abstracts persistence for abuse records.
type Store interface {
	// Upsert creates a record with abuse_count = 1 for a first offense, or
	// increments the count and refreshes latest_abuse_at.
	Upsert(ctx context.Context, origin string, at time.Time) error

	// DecayBelow deletes records whose count is below lightThreshold and
	// whose latest abuse is at or before cutoff.
	DecayBelow(ctx context.Context, lightThreshold int64, cutoff time.Time) (int64, error)
}
