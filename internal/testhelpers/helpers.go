// Package testhelpers provides common utilities for testing the relay's
// HTTP and WebSocket surface.
//
// It starts hubs behind httptest servers, dials them with the allowed test
// origin, and reads event envelopes with deadlines so tests never hang on a
// silent socket.
package testhelpers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomrelay/internal/metrics"
	"github.com/Tyrowin/roomrelay/internal/server"
)

// TestOrigin is the Origin header sent by ConnectWebSocket. TestConfig allows it.
const TestOrigin = "http://localhost:8080"

// DefaultTimeout bounds every read in this package.
const DefaultTimeout = 2 * time.Second

// TestConfig returns a server configuration suitable for tests: the test
// origin is allowed and the frame flood guard is generous.
func TestConfig() server.Config {
	cfg := *server.NewConfig()
	cfg.AllowedOrigins = []string{TestOrigin}
	cfg.RateLimit.Burst = 1000
	return cfg
}

// RelayServer is a running hub behind an httptest server.
type RelayServer struct {
	HTTP    *httptest.Server
	Hub     *server.Hub
	Metrics *metrics.Metrics
}

// WSURL returns the ws:// URL of the WebSocket endpoint.
func (s *RelayServer) WSURL() string {
	return "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + "/ws"
}

// StartRelayServer starts a hub and serves its routes. The server and hub are
// shut down when the test ends.
func StartRelayServer(t *testing.T, cfg server.Config, opts ...server.HubOption) *RelayServer {
	t.Helper()

	m := metrics.New()
	hub := server.NewHub(cfg, nil, append([]server.HubOption{server.WithMetrics(m)}, opts...)...)
	go hub.Run()

	ts := httptest.NewServer(server.SetupRoutes(hub, m))
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return &RelayServer{HTTP: ts, Hub: hub, Metrics: m}
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err, "failed to create request")

	resp, err := client.Do(req)
	require.NoError(t, err, "failed to make request")
	return resp
}

// ConnectWebSocket dials url with the test origin.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, TestOrigin)
}

// ConnectWebSocketWithOrigin dials url with the given Origin header. An empty
// origin sends none.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Peer is a connected test client that already consumed its connected event.
type Peer struct {
	Conn *websocket.Conn
	ID   string
}

// ConnectPeer dials the server, waits for the connected event, and closes the
// socket when the test ends.
func ConnectPeer(t *testing.T, url string) *Peer {
	t.Helper()

	conn, err := ConnectWebSocket(url)
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = conn.Close() })

	env := ExpectEvent(t, conn, "connected")
	var payload struct {
		SocketID string `json:"socketId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.NotEmpty(t, payload.SocketID)
	return &Peer{Conn: conn, ID: payload.SocketID}
}

// Emit sends one {"event","data"} frame.
func Emit(conn *websocket.Conn, event string, data any) error {
	return conn.WriteJSON(map[string]any{"event": event, "data": data})
}

// MustEmit is Emit that fails the test on error.
func MustEmit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, Emit(conn, event, data), "failed to emit %s", event)
}

// ReadEvent reads the next envelope, waiting at most timeout.
func ReadEvent(conn *websocket.Conn, timeout time.Duration) (server.Envelope, error) {
	var env server.Envelope
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return env, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return env, err
	}
	err = json.Unmarshal(raw, &env)
	return env, err
}

// ExpectEvent reads until an envelope named event arrives, skipping others,
// and fails the test after DefaultTimeout.
func ExpectEvent(t *testing.T, conn *websocket.Conn, event string) server.Envelope {
	t.Helper()

	deadline := time.Now().Add(DefaultTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for %q", event)
		}
		env, err := ReadEvent(conn, remaining)
		require.NoError(t, err, "waiting for %q", event)
		if env.Event == event {
			return env
		}
	}
}

// ExpectNoEvent asserts that nothing arrives within timeout. A timed-out
// gorilla connection cannot be read again, so call it last on conn.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	env, err := ReadEvent(conn, timeout)
	if err == nil {
		t.Fatalf("expected no event, got %q %s", env.Event, string(env.Data))
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

// DecodeData unmarshals an envelope's data into v.
func DecodeData(t *testing.T, env server.Envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v), "decoding %q data", env.Event)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
