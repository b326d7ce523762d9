package session

import "errors"

var (
	// ErrSessionNotFound is returned when a token is malformed or matches no row.
	// Callers must treat it as "not authenticated", nothing more specific.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when the backing row exists but is past
	// its expiry. Callers should instruct the client to discard the token.
	ErrSessionExpired = errors.New("session expired")

	// ErrTokenTaken is returned by stores when a token digest collides with
	// an existing row. Manager.Create retries it with a fresh token.
	ErrTokenTaken = errors.New("session token taken")

	// ErrEvictRace is returned by stores when the principal is at capacity
	// but the eviction target vanished mid-transaction.
	ErrEvictRace = errors.New("session eviction target lost")

	// ErrTokenCollision is the hard failure after the bounded collision
	// retries are exhausted.
	ErrTokenCollision = errors.New("could not establish session: token collisions")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
