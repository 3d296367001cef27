// Package integration exercises the full engine end to end: real HTTP
// server, real websocket connections, real Badger-backed history.
package integration

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"talkroom/internal/server"
	"talkroom/internal/store"
)

type testEnv struct {
	ts    *httptest.Server
	store *store.Store
	hub   *server.Hub
}

func newTestEnv(t *testing.T, customize func(cfg *server.Config)) *testEnv {
	t.Helper()

	cfg := server.NewConfig()
	cfg.DBPath = t.TempDir()
	if customize != nil {
		customize(&cfg)
	}

	log := slog.New(slog.DiscardHandler)
	st, err := store.Open(cfg.DBPath, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	hub := server.NewHub(cfg, log, st)
	ts := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = hub.Shutdown(2 * time.Second) })

	return &testEnv{ts: ts, store: st, hub: hub}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	u, err := url.Parse(e.ts.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
		_ = conn.Close()
	})
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func sendRaw(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

// readFrame returns the next raw text frame within the deadline.
func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	return raw
}

// readUntilType skips frames (including non-JSON heartbeat replies) until one
// decodes to the wanted type.
func readUntilType(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		raw := readFrame(t, conn, time.Until(deadline))
		var frame map[string]any
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame["type"] == want {
			return frame
		}
	}
	t.Fatalf("no %q frame received before deadline", want)
	return nil
}

func expectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected no frame, but received one")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return
	}
	t.Fatalf("unexpected error while waiting for silence: %v", err)
}

// expectClosed asserts that the server has ended the connection: the next
// read yields an error rather than a data frame.
func expectClosed(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func identify(t *testing.T, conn *websocket.Conn, name string) {
	t.Helper()
	sendJSON(t, conn, map[string]any{"type": "username", "username": name})
	readUntilType(t, conn, "messages")
	readUntilType(t, conn, "userlist")
}
