// Package server fans messages out to every registered connection.
package server

import "github.com/samber/lo"

// Broadcast delivers payload to every connection in the current registry
// snapshot. A failed delivery never aborts the others; the failed connections
// are unregistered afterwards, which in turn announces the new membership.
func (h *Hub) Broadcast(payload []byte) {
	entries := h.registry.Snapshot()

	var failed []Entry
	for _, e := range entries {
		if !h.safeSend(e.Session, payload) {
			failed = append(failed, e)
		}
	}
	h.removeFailed(failed)
}

// BroadcastUserList pushes the current membership to everyone registered.
// Connections that fail delivery are unregistered and the survivors get one
// refreshed list; failures of that second push are left for the sweep, so
// removal never recurses.
func (h *Hub) BroadcastUserList() {
	failed := h.pushUserList()
	if len(failed) == 0 {
		return
	}

	removed := false
	for _, e := range failed {
		if h.registry.Unregister(e.Session) {
			removed = true
			h.log.Warn("dropped unresponsive connection from registry",
				"conn_id", e.Session.id, "username", e.Username)
		}
	}
	if removed {
		h.pushUserList()
	}
}

// pushUserList sends the current membership to every registered connection
// and returns the entries that did not accept the payload.
func (h *Hub) pushUserList() []Entry {
	entries := h.registry.Snapshot()
	names := lo.Map(entries, func(e Entry, _ int) string { return e.Username })
	payload := mustMarshal(userListPayload{Type: "userlist", Connected: names})

	var failed []Entry
	for _, e := range entries {
		if !h.safeSend(e.Session, payload) {
			failed = append(failed, e)
		}
	}
	return failed
}

// safeSend queues payload on the session's send channel without blocking.
// The channel may be closed concurrently by detach, hence the recover.
func (h *Hub) safeSend(s *Session, payload []byte) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			delivered = false
		}
	}()

	if s.closed.Load() {
		return false
	}

	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (h *Hub) removeFailed(failed []Entry) {
	if len(failed) == 0 {
		return
	}
	removed := false
	for _, e := range failed {
		if h.registry.Unregister(e.Session) {
			removed = true
			h.log.Warn("dropped unresponsive connection from registry",
				"conn_id", e.Session.id, "username", e.Username)
		}
	}
	if removed {
		h.BroadcastUserList()
	}
}
