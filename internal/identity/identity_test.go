package identity

import (
	"context"
	"errors"
	"testing"

	"wishd/security/password"
)

// fastHasher keeps Argon2id cheap enough for unit tests.
func fastHasher() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	return cfg
}

func TestRegisterAndVerify(t *testing.T) {
	svc := NewService(NewMemoryStore(), fastHasher(), nil)
	ctx := context.Background()

	p, err := svc.Register(ctx, "  Ada@Example.COM ", "Ada", "correct horse battery")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", p.Email)
	}
	if p.ID == "" || p.PasswordHash == "" {
		t.Fatalf("incomplete principal %+v", p)
	}

	got, err := svc.VerifyCredentials(ctx, "ADA@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("VerifyCredentials: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("resolved principal %q, want %q", got.ID, p.ID)
	}
}

func TestVerify_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	svc := NewService(NewMemoryStore(), fastHasher(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ada@example.com", "Ada", "correct horse battery"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, wrongPW := svc.VerifyCredentials(ctx, "ada@example.com", "not the password")
	_, unknown := svc.VerifyCredentials(ctx, "nobody@example.com", "whatever at all")

	if !errors.Is(wrongPW, ErrBadCredentials) {
		t.Fatalf("wrong password: %v, want ErrBadCredentials", wrongPW)
	}
	if !errors.Is(unknown, ErrBadCredentials) {
		t.Fatalf("unknown email: %v, want ErrBadCredentials", unknown)
	}
	if wrongPW.Error() != unknown.Error() {
		t.Fatalf("distinguishable failures: %q vs %q", wrongPW, unknown)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := NewService(NewMemoryStore(), fastHasher(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ada@example.com", "Ada", "correct horse battery"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(ctx, "Ada@Example.com", "Imposter", "another password!")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate register: %v, want ErrEmailTaken", err)
	}
}

func TestRegister_ShortPasswordRejected(t *testing.T) {
	svc := NewService(NewMemoryStore(), fastHasher(), nil)

	_, err := svc.Register(context.Background(), "ada@example.com", "Ada", "short")
	if !errors.Is(err, password.ErrPasswordTooShort) {
		t.Fatalf("short password: %v, want ErrPasswordTooShort", err)
	}
}

func TestLookup(t *testing.T) {
	svc := NewService(NewMemoryStore(), fastHasher(), nil)
	ctx := context.Background()

	p, err := svc.Register(ctx, "ada@example.com", "Ada", "correct horse battery")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := svc.Lookup(ctx, p.ID)
	if err != nil || got.Email != p.Email {
		t.Fatalf("Lookup = %+v, %v", got, err)
	}
	if _, err := svc.Lookup(ctx, "01J0000000000000000000MISS"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing lookup: %v, want ErrNotFound", err)
	}
}
