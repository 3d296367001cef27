// Package server wires the HTTP handlers into a ServeMux.
package server

import "net/http"

// SetupRoutes returns a mux with the health check and the websocket endpoint.
func SetupRoutes(h *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", h.HandleWebSocket)
	return mux
}
