// Package main provides a CI-friendly smoke test for the wishd push
// gateway.
//
// It validates:
//   - sign-up + sign-in over the HTTP API (session cookie issued)
//   - handshake + subprotocol selection on /ws
//   - single-connection policy: a second attach for the same session
//     closes the first connection with a "replaced" reason
//   - the surviving connection stays open past a sweep interval
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	pushSubprotocol = "wishd.push.v1"
	sessionCookie   = "wishd_session"
	maxReadBytes    = 1 << 20
)

func main() {
	var (
		baseURL  = flag.String("base", "http://127.0.0.1:8080", "HTTP base URL")
		wsURL    = flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL")
		email    = flag.String("email", "smoke@example.com", "Account email")
		password = flag.String("password", "smoke-test-password", "Account password")
		hold     = flag.Duration("hold", 3*time.Second, "How long the surviving connection must stay open")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	root := context.Background()

	token := mustSignIn(root, *baseURL, *email, *password, *timeout)
	if *verbose {
		fmt.Printf("signed in: email=%s token_len=%d\n", *email, len(token))
	}

	first := mustConnect(root, *wsURL, token, *timeout)
	second := mustConnect(root, *wsURL, token, *timeout)
	defer closeWS(second)

	// The gateway keeps one connection per session: attaching the second
	// must close the first with a going-away status.
	status, reason := mustReadClose(root, first, *timeout)
	if status != websocket.StatusGoingAway {
		fatalf("first connection close status: got=%v want=%v", status, websocket.StatusGoingAway)
	}
	if reason != "replaced" {
		fatalf("first connection close reason: got=%q want=%q", reason, "replaced")
	}

	// The replacement must survive a sweep interval. Its read loop also
	// services the gateway's liveness pings.
	if err := mustStayOpen(root, second, *hold); err != nil {
		fatalf("second connection dropped during hold: %v", err)
	}

	fmt.Printf("OK: replaced=%q survivor_held=%s\n", reason, *hold)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

// mustSignIn creates the smoke account if needed and signs in, returning
// the opaque session token from the issued cookie.
func mustSignIn(parent context.Context, baseURL, email, password string, stepTimeout time.Duration) string {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	signUp, _ := json.Marshal(map[string]string{
		"email":        email,
		"display_name": "Smoke",
		"password":     password,
	})
	// 201 on first run, 409 afterwards; both are fine.
	resp, err := postJSON(ctx, baseURL+"/api/auth/sign-up", signUp)
	if err != nil {
		fatalf("sign-up: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		fatalf("sign-up: unexpected status %d", resp.StatusCode)
	}

	signIn, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	resp, err = postJSON(ctx, baseURL+"/api/auth/sign-in", signIn)
	if err != nil {
		fatalf("sign-in: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		fatalf("sign-in: unexpected status %d", resp.StatusCode)
	}

	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c.Value
		}
	}
	fatalf("sign-in: no %s cookie in response", sessionCookie)
	return ""
}

func postJSON(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return http.DefaultClient.Do(req)
}

func mustConnect(parent context.Context, wsURL, token string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	h.Set("Cookie", sessionCookie+"="+token)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{pushSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}

	if resp != nil {
		got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
		if got != "" && got != pushSubprotocol {
			fatalf("subprotocol mismatch: got=%q want=%q", got, pushSubprotocol)
		}
	}

	conn.SetReadLimit(maxReadBytes)
	return conn
}

// mustReadClose reads until the peer closes the connection and returns
// the close status and reason.
func mustReadClose(parent context.Context, conn *websocket.Conn, stepTimeout time.Duration) (websocket.StatusCode, string) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		_, _, err := conn.Read(ctx)
		if err == nil {
			continue
		}
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return ce.Code, ce.Reason
		}
		fatalf("waiting for close: %v", err)
	}
}

// mustStayOpen keeps reading (servicing pings) for the hold duration and
// fails if the connection drops.
func mustStayOpen(parent context.Context, conn *websocket.Conn, hold time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, hold)
	defer cancel()

	for {
		_, _, err := conn.Read(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
