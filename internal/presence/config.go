package presence

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GatewayConfig controls the upgrade handshake and transport behavior.
type GatewayConfig struct {
	// SessionCookie is the cookie the handshake resolves identity from.
	SessionCookie string

	// MaxHeapBytes is the memory admission threshold checked once per
	// upgrade attempt. Zero disables the check.
	MaxHeapBytes uint64

	// ReadLimit bounds bytes per inbound frame.
	ReadLimit int64

	// WriteTimeout bounds each outbound write.
	WriteTimeout time.Duration

	// OriginPatterns authorizes cross-origin upgrade hosts.
	OriginPatterns []string

	// LivenessTimeout is how long an entry may go without an ack before
	// the sweep closes it.
	LivenessTimeout time.Duration

	// ProbeTimeout bounds each sweep ping.
	ProbeTimeout time.Duration
}

// DefaultGatewayConfig returns secure defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		SessionCookie:   "wishd_session",
		MaxHeapBytes:    1 << 30, // 1 GiB
		ReadLimit:       16 << 10,
		WriteTimeout:    5 * time.Second,
		LivenessTimeout: 70 * time.Second,
		ProbeTimeout:    5 * time.Second,
	}
}

// LoadGatewayConfigFromEnv loads gateway configuration from environment
// variables with defaults.
//
// Optional:
//   - WISHD_WS_SESSION_COOKIE
//   - WISHD_WS_MAX_HEAP_BYTES
//   - WISHD_WS_READ_LIMIT
//   - WISHD_WS_WRITE_TIMEOUT
//   - WISHD_WS_ORIGIN_PATTERNS (comma-separated host patterns)
//   - WISHD_WS_LIVENESS_TIMEOUT
//   - WISHD_WS_PROBE_TIMEOUT
func LoadGatewayConfigFromEnv() GatewayConfig {
	cfg := DefaultGatewayConfig()

	if v := strings.TrimSpace(os.Getenv("WISHD_WS_SESSION_COOKIE")); v != "" {
		cfg.SessionCookie = v
	}
	if v := strings.TrimSpace(os.Getenv("WISHD_WS_MAX_HEAP_BYTES")); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MaxHeapBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WISHD_WS_READ_LIMIT")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.ReadLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WISHD_WS_WRITE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.WriteTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("WISHD_WS_ORIGIN_PATTERNS")); v != "" {
		var out []string
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		cfg.OriginPatterns = out
	}
	if v := strings.TrimSpace(os.Getenv("WISHD_WS_LIVENESS_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LivenessTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("WISHD_WS_PROBE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ProbeTimeout = d
		}
	}

	return cfg
}
