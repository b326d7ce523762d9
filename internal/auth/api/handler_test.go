package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wishd/internal/auth/session"
	"wishd/internal/identity"
	"wishd/security/password"
)

func testHandler(t *testing.T) (*Handler, *http.ServeMux) {
	t.Helper()

	hasher := password.DefaultConfig()
	hasher.Params.MemoryKiB = 8 * 1024
	hasher.Params.Iterations = 1

	principals := identity.NewService(identity.NewMemoryStore(), hasher, nil)
	sessions := session.NewManager(session.DefaultConfig(), session.NewMemoryStore(), nil, nil)

	cfg := DefaultConfig()
	cfg.CookieSecure = false

	h := NewHandler(nil, cfg, principals, sessions)
	mux := http.NewServeMux()
	h.Register(mux)
	return h, mux
}

func do(mux *http.ServeMux, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func signUpAndIn(t *testing.T, mux *http.ServeMux) *http.Cookie {
	t.Helper()

	rec := do(mux, http.MethodPost, "/api/auth/sign-up",
		`{"email":"ada@example.com","display_name":"Ada","password":"correct horse battery"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign-up status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(mux, http.MethodPost, "/api/auth/sign-in",
		`{"email":"ada@example.com","password":"correct horse battery"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("sign-in status = %d, body %s", rec.Code, rec.Body)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultSessionCookie && c.Value != "" {
			if !c.HttpOnly {
				t.Fatalf("session cookie is not HttpOnly")
			}
			return c
		}
	}
	t.Fatalf("sign-in did not set a session cookie")
	return nil
}

func TestSignInFlow(t *testing.T) {
	_, mux := testHandler(t)
	cookie := signUpAndIn(t, mux)

	rec := do(mux, http.MethodGet, "/api/auth/me", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", rec.Code, rec.Body)
	}
	var resp meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if resp.Principal.Email != "ada@example.com" || resp.SessionID == "" {
		t.Fatalf("unexpected me response %+v", resp)
	}
}

func TestSignIn_BadCredentials(t *testing.T) {
	_, mux := testHandler(t)
	signUpAndIn(t, mux)

	wrongPW := do(mux, http.MethodPost, "/api/auth/sign-in",
		`{"email":"ada@example.com","password":"not the password"}`)
	unknown := do(mux, http.MethodPost, "/api/auth/sign-in",
		`{"email":"nobody@example.com","password":"whatever at all"}`)

	if wrongPW.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d / %d, want 401 / 401", wrongPW.Code, unknown.Code)
	}
	// Failure modes must be indistinguishable.
	if wrongPW.Body.String() != unknown.Body.String() {
		t.Fatalf("distinguishable sign-in failures: %s vs %s", wrongPW.Body, unknown.Body)
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	_, mux := testHandler(t)
	signUpAndIn(t, mux)

	rec := do(mux, http.MethodPost, "/api/auth/sign-up",
		`{"email":"Ada@Example.com","display_name":"Again","password":"another password!"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate sign-up status = %d, want 409", rec.Code)
	}
}

func TestSignOut(t *testing.T) {
	_, mux := testHandler(t)
	cookie := signUpAndIn(t, mux)

	rec := do(mux, http.MethodPost, "/api/auth/sign-out", "", cookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("sign-out status = %d, want 204", rec.Code)
	}

	// The revoked token no longer resolves.
	rec = do(mux, http.MethodGet, "/api/auth/me", "", cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after sign-out = %d, want 401", rec.Code)
	}

	// Signing out again is harmless.
	rec = do(mux, http.MethodPost, "/api/auth/sign-out", "", cookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("repeat sign-out status = %d, want 204", rec.Code)
	}
}

func TestSignOutAll(t *testing.T) {
	_, mux := testHandler(t)
	first := signUpAndIn(t, mux)

	// Second session for the same principal.
	rec := do(mux, http.MethodPost, "/api/auth/sign-in",
		`{"email":"ada@example.com","password":"correct horse battery"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("second sign-in status = %d", rec.Code)
	}
	var second *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultSessionCookie {
			second = c
		}
	}

	rec = do(mux, http.MethodPost, "/api/auth/sign-out-all", "", second)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("sign-out-all status = %d, want 204", rec.Code)
	}

	for _, c := range []*http.Cookie{first, second} {
		if got := do(mux, http.MethodGet, "/api/auth/me", "", c).Code; got != http.StatusUnauthorized {
			t.Fatalf("me after sign-out-all = %d, want 401", got)
		}
	}
}

func TestMe_UnauthenticatedVariantsLookAlike(t *testing.T) {
	_, mux := testHandler(t)

	missing := do(mux, http.MethodGet, "/api/auth/me", "")
	bogus := do(mux, http.MethodGet, "/api/auth/me", "",
		&http.Cookie{Name: DefaultSessionCookie, Value: "AAAAAAAAAAAAAAAAAAAAAA"})
	malformed := do(mux, http.MethodGet, "/api/auth/me", "",
		&http.Cookie{Name: DefaultSessionCookie, Value: "not-a-token"})

	for _, rec := range []*httptest.ResponseRecorder{missing, bogus, malformed} {
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	}
	if missing.Body.String() != bogus.Body.String() || bogus.Body.String() != malformed.Body.String() {
		t.Fatalf("distinguishable 401 bodies")
	}
}

func TestMe_ExpiredSessionClearsCookie(t *testing.T) {
	h, mux := testHandler(t)

	// A session issued two days ago is past its default lifetime but may
	// still hold a row until the sweep runs.
	past := time.Now().UTC().Add(-48 * time.Hour)
	iss, err := h.sessions.Create(context.Background(), past, "p1", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	expired := do(mux, http.MethodGet, "/api/auth/me", "",
		&http.Cookie{Name: DefaultSessionCookie, Value: iss.Token})
	missing := do(mux, http.MethodGet, "/api/auth/me", "")

	if expired.Code != http.StatusUnauthorized {
		t.Fatalf("expired me status = %d, want 401", expired.Code)
	}
	// The body stays indistinguishable from the other 401 variants.
	if expired.Body.String() != missing.Body.String() {
		t.Fatalf("distinguishable 401 bodies: %s vs %s", expired.Body, missing.Body)
	}

	// The stale cookie must be cleared so the client stops resending it.
	var cleared bool
	for _, c := range expired.Result().Cookies() {
		if c.Name == DefaultSessionCookie && c.Value == "" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expired session did not clear the cookie, headers %v", expired.Header())
	}
	if len(missing.Result().Cookies()) != 0 {
		t.Fatalf("missing-token 401 unexpectedly set cookies %v", missing.Result().Cookies())
	}
}

func TestBearerTokenFallback(t *testing.T) {
	_, mux := testHandler(t)
	cookie := signUpAndIn(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("bearer me status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, mux := testHandler(t)

	if got := do(mux, http.MethodGet, "/api/auth/sign-in", "").Code; got != http.StatusMethodNotAllowed {
		t.Fatalf("GET sign-in = %d, want 405", got)
	}
	if got := do(mux, http.MethodPost, "/api/auth/me", "").Code; got != http.StatusMethodNotAllowed {
		t.Fatalf("POST me = %d, want 405", got)
	}
}
