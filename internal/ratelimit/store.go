package ratelimit

import (
	"context"
	"time"
)

// Entry mirrors the wishd.rate_trackers row.
type Entry struct {
	Token           string
	RequestCount    int64
	WindowStartedAt time.Time
}

// Store abstracts persistence for rate trackers.
//
// Increment must be atomic on the store side (a single update, never a
// read-modify-write in the caller): request volume makes transactional
// sessions too costly here, and a lost update would undercount.
type Store interface {
	// Mint creates a tracker with request_count = 1.
	Mint(ctx context.Context, now time.Time, tok string) error

	// Increment bumps the tracker's counter and returns the new count.
	// found is false when no such tracker exists (stale or evicted token).
	Increment(ctx context.Context, tok string) (count int64, found bool, err error)

	// Replenish halves (integer floor) every positive counter whose window
	// started at or before cutoff, restarting its window at now.
	// Zeroed trackers are left alone so they can age out.
	Replenish(ctx context.Context, now, cutoff time.Time) (int64, error)

	// DeleteIdle removes trackers with a zero counter whose window started
	// at or before cutoff.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)
}
