package authapi

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// DefaultSessionCookie is the cookie carrying the opaque session token.
const DefaultSessionCookie = "wishd_session"

// Config controls the HTTP surface of the auth API.
type Config struct {
	SessionCookieName string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	MaxBodyBytes int64
	TrustProxy   bool
}

// DefaultConfig returns production-safe auth API settings.
func DefaultConfig() Config {
	return Config{
		SessionCookieName: DefaultSessionCookie,
		CookiePath:        "/",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
		MaxBodyBytes:      1 << 16,
	}
}

// LoadConfigFromEnv reads WISHD_AUTH_* variables over the defaults.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("WISHD_AUTH_COOKIE_NAME")); v != "" {
		cfg.SessionCookieName = v
	}
	if v := strings.TrimSpace(os.Getenv("WISHD_AUTH_COOKIE_DOMAIN")); v != "" {
		cfg.CookieDomain = v
	}
	if v := strings.TrimSpace(os.Getenv("WISHD_AUTH_COOKIE_SECURE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("WISHD_AUTH_COOKIE_SECURE: %w", err)
		}
		cfg.CookieSecure = b
	}
	if v := strings.TrimSpace(os.Getenv("WISHD_AUTH_TRUST_PROXY")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("WISHD_AUTH_TRUST_PROXY: %w", err)
		}
		cfg.TrustProxy = b
	}
	if v := strings.TrimSpace(os.Getenv("WISHD_AUTH_MAX_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("WISHD_AUTH_MAX_BODY_BYTES: invalid value %q", v)
		}
		cfg.MaxBodyBytes = n
	}

	return cfg, nil
}
