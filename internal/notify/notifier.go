// Package notify delivers best-effort account notices, such as the
// email sent after a new session is established. Delivery happens
// after the triggering transaction commits and never blocks or fails
// the request that caused it.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Notice is a single account notification to deliver.
type Notice struct {
	Kind        string
	PrincipalID string
	SessionID   string
	At          time.Time
}

// Notice kinds.
const (
	KindSignIn = "sign_in"
)

// Notifier delivers a notice to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// LogNotifier writes notices to the structured log. It stands in for a
// mail provider in development and test deployments.
type LogNotifier struct {
	Log *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notice) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notify.deliver",
		"kind", n.Kind,
		"principal_id", n.PrincipalID,
		"session_id", n.SessionID,
		"at", n.At,
	)
	return nil
}
