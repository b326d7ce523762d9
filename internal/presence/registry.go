package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"wishd/internal/metrics"
)

// Registry maps live sessions to their duplex connections.
//
// State machine per session: absent -> connected -> (stale | closed) ->
// absent. All methods are safe for concurrent use; none of them block on
// the network while holding the lock (closes and probes happen outside
// the critical section).
type Registry struct {
	log *slog.Logger

	livenessTimeout time.Duration
	probeTimeout    time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	conn    Conn
	lastAck time.Time
}

// NewRegistry constructs a Registry with the given liveness timeout.
func NewRegistry(log *slog.Logger, livenessTimeout, probeTimeout time.Duration) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if livenessTimeout <= 0 {
		livenessTimeout = 70 * time.Second
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Registry{
		log:             log,
		livenessTimeout: livenessTimeout,
		probeTimeout:    probeTimeout,
		entries:         make(map[string]*entry),
	}
}

// Attach installs conn as the session's live connection. A previously
// attached connection is closed with a "replaced" reason first, so the
// registry never holds two connections for one session.
func (r *Registry) Attach(sessionID string, conn Conn, now time.Time) {
	if sessionID == "" || conn == nil {
		return
	}

	r.mu.Lock()
	prev := r.entries[sessionID]
	r.entries[sessionID] = &entry{conn: conn, lastAck: now}
	n := len(r.entries)
	r.mu.Unlock()

	if prev != nil {
		_ = prev.conn.Close(ReasonReplaced)
		metrics.PresenceReplaced.Inc()
		r.log.Info("presence.replaced", "session_id", sessionID)
	}

	metrics.PresenceConnections.Set(float64(n))
	r.log.Info("presence.attach", "session_id", sessionID, "connections", n)
}

// Touch records a liveness acknowledgment for the session.
func (r *Registry) Touch(sessionID string, now time.Time) {
	r.mu.Lock()
	if e, ok := r.entries[sessionID]; ok {
		e.lastAck = now
	}
	r.mu.Unlock()
}

// Detach removes the session's entry, but only if it still maps to conn:
// a replaced connection's late teardown must not evict its replacement.
func (r *Registry) Detach(sessionID string, conn Conn) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok && e.conn == conn {
		delete(r.entries, sessionID)
	} else {
		ok = false
	}
	n := len(r.entries)
	r.mu.Unlock()

	if ok {
		metrics.PresenceConnections.Set(float64(n))
		r.log.Info("presence.detach", "session_id", sessionID, "connections", n)
	}
}

// Send delivers payload to the session's connection, best effort. Absent
// sessions are a no-op. A transport error is logged and the dead
// connection is closed and removed; it is never surfaced to the caller.
func (r *Registry) Send(ctx context.Context, sessionID string, payload []byte) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}

	if err := e.conn.Write(ctx, payload); err != nil {
		r.log.Warn("presence.send.fail", "session_id", sessionID, "err", err)
		_ = e.conn.Close(ReasonError)
		r.Detach(sessionID, e.conn)
	}
}

// SendEnvelope marshals env and delivers it via Send.
func (r *Registry) SendEnvelope(ctx context.Context, sessionID string, env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		r.log.Error("presence.envelope.marshal.fail", "err", err)
		return
	}
	r.Send(ctx, sessionID, b)
}

// Sweep closes and removes entries with no acknowledgment for the
// liveness timeout, and probes the rest with a ping so idle-but-alive
// clients keep their entry fresh. Invoked every ~1m.
func (r *Registry) Sweep(now time.Time) int {
	type probe struct {
		sessionID string
		conn      Conn
	}

	var expired []probe
	var alive []probe

	r.mu.Lock()
	for id, e := range r.entries {
		if now.Sub(e.lastAck) >= r.livenessTimeout {
			expired = append(expired, probe{id, e.conn})
			delete(r.entries, id)
		} else {
			alive = append(alive, probe{id, e.conn})
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	for _, p := range expired {
		_ = p.conn.Close(ReasonInactivity)
		metrics.PresenceSweptInactive.Inc()
		r.log.Info("presence.sweep.inactive", "session_id", p.sessionID)
	}

	// Probe survivors off the sweep goroutine; a completed ping is an ack.
	for _, p := range alive {
		go func(p probe) {
			ctx, cancel := context.WithTimeout(context.Background(), r.probeTimeout)
			defer cancel()
			if err := p.conn.Ping(ctx); err == nil {
				r.Touch(p.sessionID, time.Now().UTC())
			}
		}(p)
	}

	metrics.PresenceConnections.Set(float64(n))
	return len(expired)
}

// Len reports the live connection count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll closes every connection with the given reason and empties the
// registry. Used at process shutdown.
func (r *Registry) CloseAll(reason CloseReason) {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.entries))
	for _, e := range r.entries {
		conns = append(conns, e.conn)
	}
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(reason)
	}
	metrics.PresenceConnections.Set(0)
}
