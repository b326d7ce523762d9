// Package authapi exposes sign-up, sign-in, and session management
// over HTTP. Session tokens travel in an HttpOnly cookie; API clients
// may instead present them as a bearer token.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wishd/internal/auth/session"
	"wishd/internal/identity"
	"wishd/security/password"
)

// Handler wires the HTTP auth endpoints to the identity and session
// services.
type Handler struct {
	log        *slog.Logger
	cfg        Config
	principals *identity.Service
	sessions   *session.Manager
}

// NewHandler constructs the auth API handler.
func NewHandler(log *slog.Logger, cfg Config, principals *identity.Service, sessions *session.Manager) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, cfg: cfg, principals: principals, sessions: sessions}
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/sign-up", h.handleSignUp)
	mux.HandleFunc("/api/auth/sign-in", h.handleSignIn)
	mux.HandleFunc("/api/auth/sign-out", h.handleSignOut)
	mux.HandleFunc("/api/auth/sign-out-all", h.handleSignOutAll)
	mux.HandleFunc("/api/auth/me", h.handleMe)
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signUpRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	p, err := h.principals.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email_taken", "email already registered")
		case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "invalid_password", err.Error())
		default:
			h.log.Error("auth.sign_up.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, principalResponse{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
	})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signInRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	p, err := h.principals.VerifyCredentials(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("auth.sign_in.verify.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	issued, err := h.sessions.Create(ctx, now, p.ID, req.Remember)
	if err != nil {
		h.log.Error("auth.sign_in.session.fail", "err", err, "principal_id", p.ID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.setSessionCookie(w, issued.Token, issued.ExpiresAt)
	writeJSON(w, http.StatusOK, signInResponse{
		Principal: principalResponse{ID: p.ID, Email: p.Email, DisplayName: p.DisplayName},
		Session: sessionResponse{
			SessionID: issued.SessionID,
			ExpiresAt: issued.ExpiresAt,
			Evicted:   issued.Evicted,
		},
	})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Sign-out never fails visibly: revoking an unknown or malformed
	// token is a no-op and still clears the cookie.
	if tok := h.sessionTokenFromRequest(r); tok != "" {
		if err := h.sessions.Revoke(r.Context(), tok); err != nil {
			h.log.Error("auth.sign_out.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSignOutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	row, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	if err := h.sessions.RevokeAll(r.Context(), time.Now().UTC(), row.PrincipalID); err != nil {
		h.log.Error("auth.sign_out_all.fail", "err", err, "principal_id", row.PrincipalID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	row, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	p, err := h.principals.Lookup(r.Context(), row.PrincipalID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "session not active")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Principal: principalResponse{ID: p.ID, Email: p.Email, DisplayName: p.DisplayName},
		SessionID: row.ID,
		ExpiresAt: row.ExpiresAt,
	})
}

// requireSession resolves the request's session token. Missing, bogus,
// and expired tokens all produce the same 401 body; an expired token
// additionally clears the cookie so the client stops presenting it.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (session.Row, bool) {
	tok := h.sessionTokenFromRequest(r)
	row, err := h.sessions.ResolveSession(r.Context(), time.Now().UTC(), tok)
	if err != nil {
		if errors.Is(err, session.ErrSessionExpired) {
			h.clearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "unauthorized", "session not active")
			return session.Row{}, false
		}
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "session not active")
			return session.Row{}, false
		}
		h.log.Error("auth.resolve.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return session.Row{}, false
	}
	return row, true
}
