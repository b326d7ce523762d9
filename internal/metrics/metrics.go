// Package metrics holds wishd's Prometheus collectors.
//
// Collectors are registered on the default registry at init time and
// exposed by internal/app on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts successful session creations.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wishd_sessions_created_total",
		Help: "Sessions created, including those that evicted an older session.",
	})

	// SessionsEvicted counts oldest-first evictions at the session cap.
	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wishd_sessions_evicted_total",
		Help: "Sessions evicted by overwrite because the principal was at capacity.",
	})

	// SessionTokenCollisions counts token-digest uniqueness collisions.
	SessionTokenCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wishd_session_token_collisions_total",
		Help: "Token collisions observed during session creation (each is retried).",
	})

	// RateAdmitted counts requests admitted by the rate limiter, labeled by
	// how the tracker was resolved (fresh, tracked, failopen).
	RateAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishd_ratelimit_admitted_total",
		Help: "Requests admitted by the rate limiter.",
	}, []string{"mode"})

	// RateRejected counts requests rejected by the rate limiter.
	RateRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wishd_ratelimit_rejected_total",
		Help: "Requests rejected because the tracker exceeded its limit.",
	})

	// AbuseRecorded counts abuse events accepted by the escalator worker.
	AbuseRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wishd_abuse_recorded_total",
		Help: "Abuse events recorded against an origin.",
	})

	// AbuseDropped counts abuse events dropped because the queue was full.
	AbuseDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wishd_abuse_dropped_total",
		Help: "Abuse events dropped at the dispatch boundary.",
	})

	// PresenceConnections tracks the live presence population.
	PresenceConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wishd_presence_connections",
		Help: "Live duplex connections currently registered for push delivery.",
	})

	// PresenceReplaced counts connections closed because a newer connection
	// attached for the same session.
	PresenceReplaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wishd_presence_replaced_total",
		Help: "Connections closed with a replaced reason.",
	})

	// PresenceSweptInactive counts connections closed by the liveness sweep.
	PresenceSweptInactive = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wishd_presence_swept_inactive_total",
		Help: "Connections closed with an inactivity reason.",
	})

	// UpgradeRejected counts refused connection upgrades by reason.
	UpgradeRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishd_upgrade_rejected_total",
		Help: "WebSocket upgrade attempts refused before accept.",
	}, []string{"reason"})

	// MaintenanceDuration observes maintenance job runtimes.
	MaintenanceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wishd_maintenance_duration_seconds",
		Help:    "Duration of periodic maintenance jobs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)
