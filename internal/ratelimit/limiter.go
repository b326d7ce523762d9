package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"wishd/internal/metrics"
	"wishd/security/token"
)

// AbuseSink receives origins whose rejections crossed the abuse excess.
// Implementations must not block: the limiter calls it on the admission
// path and moves on regardless of what happens to the event.
type AbuseSink interface {
	Record(origin string, now time.Time)
}

// Decision is the outcome of one admission check.
type Decision struct {
	Admitted bool
	// NewToken is non-empty when a fresh tracker was minted; the transport
	// layer attaches it to the client for subsequent requests.
	NewToken string
}

// Limiter classifies inbound requests as tracked or anonymous and decides
// admit/reject against the tracker's counter.
type Limiter struct {
	cfg   Config
	store Store
	abuse AbuseSink
	log   *slog.Logger
}

// NewLimiter constructs a Limiter. abuse may be nil.
func NewLimiter(cfg Config, store Store, abuse AbuseSink, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{cfg: cfg, store: store, abuse: abuse, log: log}
}

// Admit decides whether a request may proceed.
//
// Missing or malformed tracker tokens mint a fresh tracker and admit.
// A stale token (tracker already swept) is treated the same way. Store
// failures admit too: enforcement is never allowed to become an outage.
func (l *Limiter) Admit(ctx context.Context, now time.Time, tok, origin string) Decision {
	if !token.Valid(tok) {
		return l.mint(ctx, now)
	}

	count, found, err := l.store.Increment(ctx, tok)
	if err != nil {
		l.log.Error("ratelimit.increment.fail_open", "err", err)
		metrics.RateAdmitted.WithLabelValues("failopen").Inc()
		return Decision{Admitted: true}
	}
	if !found {
		return l.mint(ctx, now)
	}

	if count > l.cfg.Limit {
		metrics.RateRejected.Inc()
		if l.abuse != nil && count > l.cfg.Limit+l.cfg.AbuseExcess {
			l.abuse.Record(origin, now)
		}
		return Decision{Admitted: false}
	}

	metrics.RateAdmitted.WithLabelValues("tracked").Inc()
	return Decision{Admitted: true}
}

func (l *Limiter) mint(ctx context.Context, now time.Time) Decision {
	tok, err := token.New()
	if err != nil {
		l.log.Error("ratelimit.mint.fail_open", "err", err)
		metrics.RateAdmitted.WithLabelValues("failopen").Inc()
		return Decision{Admitted: true}
	}

	if err := l.store.Mint(ctx, now, tok); err != nil {
		l.log.Error("ratelimit.mint.fail_open", "err", err)
		metrics.RateAdmitted.WithLabelValues("failopen").Inc()
		return Decision{Admitted: true}
	}

	metrics.RateAdmitted.WithLabelValues("fresh").Inc()
	return Decision{Admitted: true, NewToken: tok}
}

// Replenish halves counters whose window is older than the configured
// window. Invoked every ~30s by the maintenance schedule.
func (l *Limiter) Replenish(ctx context.Context, now time.Time) (int64, error) {
	n, err := l.store.Replenish(ctx, now, now.Add(-l.cfg.Window))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.log.Debug("ratelimit.replenish", "trackers", n)
	}
	return n, nil
}

// Sweep deletes zeroed trackers idle past the staleness bound.
// Invoked every ~1m by the maintenance schedule.
func (l *Limiter) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := l.store.DeleteIdle(ctx, now.Add(-l.cfg.IdleStale))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.log.Debug("ratelimit.sweep", "removed", n)
	}
	return n, nil
}
