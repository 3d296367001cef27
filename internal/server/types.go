// Package server defines the wire payload types exchanged with chat clients.
package server

import "encoding/json"

// heartbeatFrame is the bare (non-JSON) liveness probe sent by clients.
const heartbeatFrame = "ping"

// inboundFrame is the union of all JSON frames a client may send. The Type
// field selects which of the remaining fields are meaningful.
type inboundFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Message  string `json:"message"`
	ID       int64  `json:"id"`
}

type noticePayload struct {
	Type string `json:"type"`
}

type namePayload struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type userListPayload struct {
	Type      string   `json:"type"`
	Connected []string `json:"connected"`
}

// historyPayload carries a page of persisted messages. Each entry is the raw
// serialized record exactly as stored, so the array element type is string.
type historyPayload struct {
	Type     string   `json:"type"`
	Before   int      `json:"before"`
	Messages []string `json:"messages"`
}

var (
	floodNotice           = mustMarshal(noticePayload{Type: "flood"})
	requestUsernameNotice = mustMarshal(noticePayload{Type: "username"})
)

func mustMarshal(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return payload
}
