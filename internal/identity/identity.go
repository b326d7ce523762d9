// Package identity holds the principals that sessions are issued for
// and verifies their credentials at sign-in.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"wishd/security/password"
)

var (
	// ErrNotFound is returned when no principal matches the lookup.
	ErrNotFound = errors.New("identity: principal not found")
	// ErrBadCredentials is returned when the password does not match.
	// Callers must present it identically to ErrNotFound.
	ErrBadCredentials = errors.New("identity: bad credentials")
	// ErrEmailTaken is returned when registering a duplicate email.
	ErrEmailTaken = errors.New("identity: email already registered")
)

// Principal is an account that can sign in and own sessions.
type Principal struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// Store persists principals.
type Store interface {
	Insert(ctx context.Context, p Principal) error
	GetByEmail(ctx context.Context, emailNorm string) (Principal, error)
	GetByID(ctx context.Context, id string) (Principal, error)
}

// NormalizeEmail lowercases and trims an email address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Service verifies credentials against the principal store.
type Service struct {
	store   Store
	hasher  password.Config
	log     *slog.Logger
	nowFunc func() time.Time
	idNew   func(time.Time) string
}

// NewService wires a credential service over the given store.
func NewService(store Store, hasher password.Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:   store,
		hasher:  hasher,
		log:     log,
		nowFunc: func() time.Time { return time.Now().UTC() },
		idNew:   newPrincipalID,
	}
}

// Register creates a principal with a freshly hashed password.
func (s *Service) Register(ctx context.Context, email, displayName, pw string) (Principal, error) {
	emailNorm := NormalizeEmail(email)
	if emailNorm == "" {
		return Principal{}, ErrBadCredentials
	}
	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return Principal{}, err
	}
	now := s.nowFunc()
	p := Principal{
		ID:           s.idNew(now),
		Email:        emailNorm,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return Principal{}, err
	}
	s.log.Info("identity.register", "principal_id", p.ID)
	return p, nil
}

// VerifyCredentials looks up the principal by email and checks the
// password. Unknown email and wrong password both come back as
// ErrBadCredentials so sign-in responses cannot probe for accounts.
func (s *Service) VerifyCredentials(ctx context.Context, email, pw string) (Principal, error) {
	p, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrBadCredentials
		}
		return Principal{}, err
	}
	ok, err := s.hasher.Verify(p.PasswordHash, pw)
	if err != nil || !ok {
		return Principal{}, ErrBadCredentials
	}
	return p, nil
}

// Lookup returns a principal by ID.
func (s *Service) Lookup(ctx context.Context, id string) (Principal, error) {
	return s.store.GetByID(ctx, id)
}
