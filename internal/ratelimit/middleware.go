package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultTrackerCookie is the cookie carrying the rate-tracker token.
// Distinct from the session cookie; same token grammar.
const DefaultTrackerCookie = "wishd_visitor"

// TransportConfig controls how the middleware binds trackers to clients.
type TransportConfig struct {
	CookieName   string
	CookieSecure bool
	CookieMaxAge time.Duration

	// TrustProxy enables X-Forwarded-For / X-Real-IP when the server sits
	// behind a trusted reverse proxy.
	TrustProxy bool
}

// DefaultTransportConfig returns secure defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		CookieName:   DefaultTrackerCookie,
		CookieSecure: true,
		CookieMaxAge: 30 * 24 * time.Hour,
	}
}

// Middleware wraps next with the admission check.
//
// A rejection is a bare 429 with no Retry-After hint; consumers implement
// their own backoff. A freshly minted tracker is attached as an HttpOnly
// cookie scoped to the whole origin.
func Middleware(l *Limiter, tc TransportConfig, log *slog.Logger, next http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	if tc.CookieName == "" {
		tc.CookieName = DefaultTrackerCookie
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tok string
		if c, err := r.Cookie(tc.CookieName); err == nil {
			tok = strings.TrimSpace(c.Value)
		}

		now := time.Now().UTC()
		d := l.Admit(r.Context(), now, tok, clientIP(r, tc.TrustProxy))

		if d.NewToken != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     tc.CookieName,
				Value:    d.NewToken,
				Path:     "/",
				MaxAge:   int(tc.CookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   tc.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		if !d.Admitted {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the request origin address. Forwarding headers are
// honored only when the deployment explicitly trusts its proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if raw := r.Header.Get("X-Forwarded-For"); raw != "" {
			for _, p := range strings.Split(raw, ",") {
				if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
					return ip.String()
				}
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return ""
}
