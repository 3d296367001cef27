// Package server coordinates session lifecycle and message fan-out for the
// talkroom engine via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"talkroom/internal/store"
)

// Hub wires the shared pieces of the engine together: the message store, the
// connection registry, the display-name policy, and the set of live sessions.
// Each websocket upgrade attaches a new session; the session goroutines and
// the liveness monitor all reach shared state through the Hub.
type Hub struct {
	cfg      Config
	log      *slog.Logger
	store    *store.Store
	registry *Registry
	names    *namePolicy
	upgrader websocket.Upgrader
	now      func() time.Time

	mu       sync.Mutex
	sessions map[*Session]struct{}
	wg       sync.WaitGroup
}

// NewHub builds a Hub around an opened message store. The config is
// normalized first so zero values fall back to usable defaults.
func NewHub(cfg Config, log *slog.Logger, st *store.Store) *Hub {
	cfg.normalize()
	origins := newOriginChecker(cfg.AllowedOrigins, log)
	return &Hub{
		cfg:      cfg,
		log:      log,
		store:    st,
		registry: NewRegistry(),
		names:    newNamePolicy(cfg),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		now:      time.Now,
		sessions: make(map[*Session]struct{}),
	}
}

// attach registers a freshly upgraded connection as a session. The session is
// not yet in the registry; that happens once the client identifies.
//
// The read limit is a memory backstop well above MaxFrameSize: frames between
// the two still get the flood notice, while anything larger fails the read
// before it is buffered.
func (h *Hub) attach(conn *websocket.Conn, addr string) *Session {
	conn.SetReadLimit(int64(h.cfg.MaxFrameSize) * readLimitFactor)
	s := &Session{
		id:    uuid.New(),
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		hub:   h,
		addr:  addr,
		flood: newFloodGuard(h.cfg.FloodWindow, h.cfg.FloodInterval),
	}
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	h.log.Info("connection opened", "conn_id", s.id, "addr", addr)
	return s
}

// detach tears a session down: drop it from the session set, evict it from
// the registry, and close its send channel. Runs exactly once, from the
// session's own read pump.
func (h *Hub) detach(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()

	wasRegistered := h.registry.Unregister(s)
	s.closed.Store(true)
	close(s.send)

	h.log.Info("connection closed", "conn_id", s.id, "addr", s.addr, "identified", wasRegistered)
	if wasRegistered {
		h.BroadcastUserList()
	}
}

// Shutdown closes every live connection and waits for the session goroutines
// to finish, up to timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	h.log.Info("closing client connections", "count", len(sessions))
	for _, s := range sessions {
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("closing connection", "conn_id", s.id, "err", err)
		}
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timed out")
		return context.DeadlineExceeded
	}
}
