// Package server exposes the HTTP handlers: the websocket upgrade endpoint
// and a plain health check.
package server

import (
	"fmt"
	"net/http"
)

// HandleWebSocket upgrades the request and starts the session pumps. The hub
// tracks the session for shutdown; the registry only learns about it once the
// client identifies.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	s := h.attach(conn, r.RemoteAddr)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		s.writePump()
	}()
	go func() {
		defer h.wg.Done()
		s.readPump()
	}()
}

// HealthHandler responds with a plain text liveness message.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "talkroom server is running")
}
