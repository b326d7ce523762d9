package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wishd/internal/metrics"
	"wishd/security/token"
)

// createAttempts bounds the token-collision retry loop in Create:
// one initial attempt plus three retries. The fourth collision is a
// hard failure.
const createAttempts = 4

// PostCreateHook runs after a session creation has committed. It must be
// non-blocking and swallow its own failures; Create's result is already
// decided when the hook fires.
type PostCreateHook func(principalID, sessionID string, at time.Time)

// Issued is the result of creating a session.
// Token is the plaintext returned to the client exactly once; the store
// only ever sees its digest.
type Issued struct {
	SessionID string
	Token     string
	ExpiresAt time.Time
	Evicted   bool
}

// Manager implements the high-level session operations for wishd.
type Manager struct {
	cfg        Config
	store      Store
	log        *slog.Logger
	postCreate PostCreateHook
}

// NewManager constructs a Manager. postCreate may be nil.
func NewManager(cfg Config, store Store, log *slog.Logger, postCreate PostCreateHook) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{cfg: cfg, store: store, log: log, postCreate: postCreate}
}

func (m *Manager) ttl(extended bool) time.Duration {
	if extended {
		return m.cfg.ExtendedTTL
	}
	return m.cfg.TTL
}

// Create issues a new session for principalID.
//
// A token-digest collision is retried with a fresh token up to three
// times; any other store failure is surfaced immediately and the caller
// must treat it as "not authenticated". The cap/eviction semantics live
// in Store.Create.
func (m *Manager) Create(ctx context.Context, now time.Time, principalID string, extended bool) (Issued, error) {
	expiresAt := now.Add(m.ttl(extended))

	for attempt := 1; attempt <= createAttempts; attempt++ {
		tok, err := token.New()
		if err != nil {
			return Issued{}, err
		}

		created, err := m.store.Create(ctx, now, principalID, token.HashForStorage(tok), expiresAt, m.cfg.MaxPerPrincipal)
		if errors.Is(err, ErrTokenTaken) {
			m.log.Warn("session.create.token_collision", "principal_id", principalID, "attempt", attempt)
			metrics.SessionTokenCollisions.Inc()
			continue
		}
		if err != nil {
			return Issued{}, err
		}

		metrics.SessionsCreated.Inc()
		if created.Evicted {
			metrics.SessionsEvicted.Inc()
			m.log.Info("session.create.evicted_oldest", "principal_id", principalID, "session_id", created.SessionID)
		}

		if m.postCreate != nil {
			m.postCreate(principalID, created.SessionID, now)
		}

		return Issued{
			SessionID: created.SessionID,
			Token:     tok,
			ExpiresAt: expiresAt,
			Evicted:   created.Evicted,
		}, nil
	}

	return Issued{}, ErrTokenCollision
}

// Resolve maps a presented token to its principal.
//
// Malformed and absent tokens are indistinguishable to the caller
// (ErrSessionNotFound); an expired row yields ErrSessionExpired so the
// HTTP layer can tell the client to discard the cookie. Expiry is checked
// lazily here, not by a timer per session.
func (m *Manager) Resolve(ctx context.Context, now time.Time, tok string) (string, error) {
	if !token.Valid(tok) {
		return "", ErrSessionNotFound
	}

	row, err := m.store.GetByTokenHash(ctx, token.HashForStorage(tok))
	if err != nil {
		return "", err
	}

	if !row.ExpiresAt.After(now) {
		return "", ErrSessionExpired
	}
	return row.PrincipalID, nil
}

// ResolveSession is Resolve for callers that need the session identity
// itself, such as the presence gateway (presence is keyed by session, not
// principal, so re-authenticating invalidates stale presence naturally).
func (m *Manager) ResolveSession(ctx context.Context, now time.Time, tok string) (Row, error) {
	if !token.Valid(tok) {
		return Row{}, ErrSessionNotFound
	}

	row, err := m.store.GetByTokenHash(ctx, token.HashForStorage(tok))
	if err != nil {
		return Row{}, err
	}

	if !row.ExpiresAt.After(now) {
		return Row{}, ErrSessionExpired
	}
	return row, nil
}

// Revoke removes the session for tok (idempotent). Malformed tokens are a no-op.
func (m *Manager) Revoke(ctx context.Context, tok string) error {
	if !token.Valid(tok) {
		return nil
	}
	return m.store.DeleteByTokenHash(ctx, token.HashForStorage(tok))
}

// RevokeAll removes all of the principal's live sessions (idempotent).
// The delete is capped at the session limit, which is safe because the cap
// invariant bounds live rows per principal; expired leftovers are excluded
// from the budget and collected by Sweep.
func (m *Manager) RevokeAll(ctx context.Context, now time.Time, principalID string) error {
	_, err := m.store.DeleteByPrincipal(ctx, now, principalID, m.cfg.MaxPerPrincipal)
	return err
}

// Sweep physically removes expired rows. Invoked on the slow maintenance
// cadence; correctness never depends on it (expiry is lazy in Resolve).
func (m *Manager) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Info("session.sweep", "removed", n)
	}
	return n, nil
}

// ListLive returns the principal's live sessions, oldest first.
func (m *Manager) ListLive(ctx context.Context, now time.Time, principalID string) ([]Row, error) {
	return m.store.ListLive(ctx, now, principalID)
}
