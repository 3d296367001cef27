// Package server runs one protocol session per websocket connection: a read
// pump driving the frame state machine and a write pump draining the send
// queue.
package server

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBufferSize  = 256
	writeWait       = 10 * time.Second
	pingPeriod      = 54 * time.Second
	readLimitFactor = 4
)

// truncationMarker is appended to chat messages cut at the length limit.
const truncationMarker = "..."

// Session owns one client connection. The transport handle belongs
// exclusively to the session; the registry only holds a reference. A session
// moves from connected (no username) to identified (registered) to closed.
type Session struct {
	id     uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	addr   string
	flood  *floodGuard
	closed atomic.Bool
}

// reply queues a payload for this session only. Called exclusively from the
// session's own read pump, so it can never race the channel close in detach.
// When the buffer is full it waits for the write pump to drain rather than
// dropping the payload; protocol notices like the flood marker must reach the
// client. A client whose writes are stuck past the deadline loses the reply.
func (s *Session) reply(payload []byte) {
	select {
	case s.send <- payload:
		return
	default:
	}

	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case s.send <- payload:
	case <-timer.C:
		s.hub.log.Warn("dropping reply to unresponsive client", "conn_id", s.id, "addr", s.addr)
	}
}

// readPump consumes inbound frames until the transport fails, the client
// misbehaves, or the frame handler decides to end the session.
func (s *Session) readPump() {
	defer func() {
		s.hub.detach(s)
		_ = s.conn.Close()
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				s.hub.log.Warn("frame exceeded read limit", "conn_id", s.id, "addr", s.addr)
				return
			}
			if !isExpectedCloseError(err) && !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.hub.log.Warn("websocket read failed", "conn_id", s.id, "err", err)
			}
			return
		}
		if !s.handleFrame(raw) {
			return
		}
	}
}

// handleFrame runs one step of the protocol state machine and reports whether
// the session may continue. Ordering matters: the oversize and flood checks
// come before any processing, so an abusive frame is dropped entirely.
func (s *Session) handleFrame(raw []byte) bool {
	h := s.hub
	now := h.now()

	if len(raw) > h.cfg.MaxFrameSize {
		h.log.Warn("oversized frame", "conn_id", s.id, "bytes", len(raw))
		s.reply(floodNotice)
		return false
	}

	if s.flood.Record(now) {
		h.log.Warn("flooding connection", "conn_id", s.id, "addr", s.addr)
		s.reply(floodNotice)
		return false
	}

	registered := h.registry.Touch(s, now)

	if string(raw) == heartbeatFrame {
		s.reply([]byte("id" + strconv.FormatInt(int64(h.store.Count())-1, 10)))
		if !registered {
			// Evicted by the sweep; the client must re-identify.
			s.reply(requestUsernameNotice)
		}
		return true
	}

	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.log.Debug("undecodable frame", "conn_id", s.id, "err", err)
		return false
	}

	switch frame.Type {
	case "message":
		return s.handleChat(frame, now)
	case "messages_before":
		s.sendHistory(1, frame.ID-int64(h.cfg.HistoryPage), frame.ID)
		return true
	case "messages_after":
		s.sendHistory(0, frame.ID, int64(h.store.Count()))
		return true
	case "username":
		return s.handleIdentify(frame, now)
	default:
		h.log.Debug("unknown frame type", "conn_id", s.id, "frame_type", frame.Type)
		return false
	}
}

// handleChat accepts a chat post: sanitize, identify the sender if needed
// (membership broadcast first, chat broadcast second), persist, fan out.
func (s *Session) handleChat(frame inboundFrame, now time.Time) bool {
	h := s.hub

	text := strings.TrimSpace(h.names.sanitizeText(frame.Message))

	username, identified := h.registry.Username(s)
	if !identified {
		name, notice := h.names.derive(frame.Username)
		if notice != nil {
			s.reply(notice)
		}
		h.registry.Register(s, name, now)
		h.BroadcastUserList()
		username = name
	}

	if text == "" {
		return true
	}
	if utf8.RuneCountInString(text) > h.cfg.MaxMessageRunes {
		text = string([]rune(text)[:h.cfg.MaxMessageRunes]) + truncationMarker
	}

	id, payload, err := h.store.Append(username, text, now)
	if err != nil {
		h.log.Error("appending message", "conn_id", s.id, "err", err)
		return true
	}
	h.log.Debug("message accepted", "id", id, "username", username, "conn_id", s.id)
	h.Broadcast(payload)
	return true
}

// handleIdentify sets or updates the display name. A connection identifying
// for the first time receives the most recent history page before the
// membership broadcast announces it.
func (s *Session) handleIdentify(frame inboundFrame, now time.Time) bool {
	h := s.hub

	name, notice := h.names.derive(frame.Username)
	if notice != nil {
		s.reply(notice)
	}

	if _, identified := h.registry.Username(s); !identified {
		count := int64(h.store.Count())
		s.sendHistory(0, count-int64(h.cfg.HistoryPage), count)
	}

	h.registry.Register(s, name, now)
	h.BroadcastUserList()
	return true
}

// sendHistory replies with the persisted records in [from, to). A corrupt
// record suppresses the reply for this request only; the session stays open.
func (s *Session) sendHistory(before int, from, to int64) {
	h := s.hub
	msgs, err := h.store.Range(from, to)
	if err != nil {
		h.log.Warn("serving history", "conn_id", s.id, "err", err)
		return
	}
	if msgs == nil {
		msgs = []string{}
	}
	s.reply(mustMarshal(historyPayload{Type: "messages", Before: before, Messages: msgs}))
}

// writePump drains the send queue onto the wire and keeps the transport alive
// with protocol-level pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					s.hub.log.Warn("websocket write failed", "conn_id", s.id, "err", err)
				}
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// isExpectedCloseError reports errors that routinely occur while a connection
// is being torn down.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
