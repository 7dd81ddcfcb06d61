// Package server wires HTTP handlers into a ServeMux for the relay via
// routing helpers.
package server

import (
	"net/http"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the WebSocket endpoint, health, metrics when m is non-nil, and
// either the configured static directory or the built-in test page at "/".
func SetupRoutes(hub *Hub, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.HandleFunc("/health", HealthHandler(hub))
	mux.HandleFunc("/test", TestPageHandler)
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	if dir := hub.cfg.StaticDir; dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
	} else {
		mux.HandleFunc("/", TestPageHandler)
	}
	return mux
}
