package ratelimit

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid ratelimit config")

// Config defines runtime configuration for the rate limiter.
//
// Window and the replenishment cadence are deliberately separate tunables:
// the cadence lives in the maintenance schedule, while Window is the age a
// tracker must reach before a replenish pass halves it.
type Config struct {
	// Limit is the number of free requests per window. The comparison is
	// strict: a count exactly at Limit is still admitted.
	Limit int64

	// AbuseExcess is how far past Limit a counter must climb before a
	// rejection is reported to the abuse escalator.
	AbuseExcess int64

	// Window is the tracker age after which a replenish pass halves its
	// counter and restarts the window.
	Window time.Duration

	// IdleStale is how long a zeroed tracker may linger before the sweep
	// deletes it.
	IdleStale time.Duration
}

// DefaultConfig returns production-reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Limit:       60,
		AbuseExcess: 10,
		Window:      30 * time.Second,
		IdleStale:   time.Hour,
	}
}

// LoadConfigFromEnv loads limiter configuration from environment variables.
//
// Optional:
//   - WISHD_RATE_LIMIT
//   - WISHD_RATE_ABUSE_EXCESS
//   - WISHD_RATE_WINDOW
//   - WISHD_RATE_IDLE_STALE
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("WISHD_RATE_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return Config{}, ErrConfig
		}
		cfg.Limit = n
	}

	if v := os.Getenv("WISHD_RATE_ABUSE_EXCESS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return Config{}, ErrConfig
		}
		cfg.AbuseExcess = n
	}

	if v := os.Getenv("WISHD_RATE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.Window = d
	}

	if v := os.Getenv("WISHD_RATE_IDLE_STALE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.IdleStale = d
	}

	if cfg.IdleStale < cfg.Window {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
