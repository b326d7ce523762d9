package presence

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

// CloseReason is sent to the peer when the registry closes a connection.
type CloseReason string

const (
	// ReasonReplaced closes a connection displaced by a newer one for the
	// same session.
	ReasonReplaced CloseReason = "replaced"
	// ReasonInactivity closes a connection the liveness sweep gave up on.
	ReasonInactivity CloseReason = "inactivity"
	// ReasonShutdown closes connections during process shutdown.
	ReasonShutdown CloseReason = "shutdown"
	// ReasonError closes a connection after a failed write.
	ReasonError CloseReason = "transport error"
)

// Conn is the registry's view of a duplex connection. The websocket
// transport satisfies it via wsConn; tests use fakes.
type Conn interface {
	// Write delivers one payload, best effort.
	Write(ctx context.Context, payload []byte) error
	// Ping probes the peer and returns once it acknowledges (or fails).
	Ping(ctx context.Context) error
	// Close terminates the connection with a reason. Idempotent.
	Close(reason CloseReason) error
}

// wsConn adapts coder/websocket to Conn.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

func (c *wsConn) Write(parent context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(parent, c.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *wsConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *wsConn) Close(reason CloseReason) error {
	return c.conn.Close(websocket.StatusGoingAway, string(reason))
}
