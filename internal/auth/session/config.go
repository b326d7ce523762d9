package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// MaxPerPrincipal caps live sessions per principal. Creating one past
	// the cap evicts the oldest.
	MaxPerPrincipal int

	// TTL is the default session lifetime.
	TTL time.Duration

	// ExtendedTTL is the lifetime used when the client asked to stay
	// signed in ("remember me").
	ExtendedTTL time.Duration
}

// DefaultConfig returns production-reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxPerPrincipal: 3,
		TTL:             24 * time.Hour,
		ExtendedTTL:     30 * 24 * time.Hour,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - WISHD_SESSION_MAX_PER_PRINCIPAL
//   - WISHD_SESSION_TTL
//   - WISHD_SESSION_TTL_EXTENDED
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("WISHD_SESSION_MAX_PER_PRINCIPAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return Config{}, ErrConfig
		}
		cfg.MaxPerPrincipal = n
	}

	if v := os.Getenv("WISHD_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := os.Getenv("WISHD_SESSION_TTL_EXTENDED"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.ExtendedTTL = d
	}

	if cfg.ExtendedTTL < cfg.TTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
