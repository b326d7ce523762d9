package presence

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"wishd/internal/auth/session"
	"wishd/internal/metrics"

	"github.com/coder/websocket"
)

const wsSubprotocol = "wishd.push.v1"

// Gateway is the HTTP-to-duplex upgrade entrypoint.
//
// The handshake is a precondition, not registry logic: it must resolve a
// session before Attach is ever called, and it refuses the upgrade
// outright (transport-level status, no JSON body) when resolution fails
// or the process is over its memory admission threshold.
type Gateway struct {
	log      *slog.Logger
	sessions *session.Manager
	registry *Registry
	cfg      GatewayConfig
}

// NewGateway constructs a Gateway.
func NewGateway(log *slog.Logger, cfg GatewayConfig, sessions *session.Manager, registry *Registry) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{log: log, cfg: cfg, sessions: sessions, registry: registry}
}

// Registry exposes the gateway's registry handle for push callers.
func (g *Gateway) Registry() *Registry { return g.registry }

// ServeHTTP adapter so the gateway can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and keeps the connection registered until
// it closes.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	tok := sessionTokenFromRequest(r, g.cfg.SessionCookie)
	row, err := g.sessions.ResolveSession(r.Context(), now, tok)
	if err != nil {
		// Uniform rejection: expired, absent, and malformed all look the
		// same to the peer.
		metrics.UpgradeRejected.WithLabelValues("unauthenticated").Inc()
		g.log.Info("ws.reject.session", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if overMemoryPressure(g.cfg.MaxHeapBytes) {
		metrics.UpgradeRejected.WithLabelValues("memory_pressure").Inc()
		g.log.Warn("ws.reject.memory_pressure", "session_id", row.ID)
		http.Error(w, "over capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocol},
		OriginPatterns: g.cfg.OriginPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	conn.SetReadLimit(g.cfg.ReadLimit)

	wsc := newWSConn(conn, g.cfg.WriteTimeout)
	g.registry.Attach(row.ID, wsc, now)

	g.readLoop(r.Context(), row.ID, conn, wsc)
}

// readLoop services the connection until it drops. Its continuous Read
// also lets the sweep's pings complete (pongs are processed by Read).
// Clients do not speak application frames on this channel; anything they
// do send simply counts as a liveness acknowledgment.
func (g *Gateway) readLoop(parent context.Context, sessionID string, conn *websocket.Conn, wsc Conn) {
	defer g.registry.Detach(sessionID, wsc)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	for {
		_, _, err := conn.Read(parent)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				g.log.Info("ws.peer.closed", "session_id", sessionID, "status", status)
			} else if !errors.Is(err, context.Canceled) {
				g.log.Info("ws.read.end", "session_id", sessionID, "err", err)
			}
			return
		}
		g.registry.Touch(sessionID, time.Now().UTC())
	}
}

func sessionTokenFromRequest(r *http.Request, cookieName string) string {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// overMemoryPressure is the once-per-upgrade backpressure admission check.
func overMemoryPressure(maxHeapBytes uint64) bool {
	if maxHeapBytes == 0 {
		return false
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc > maxHeapBytes
}
