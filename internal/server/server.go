// Package server implements the HTTP and WebSocket server for the relay.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// Server bundles the hub, metrics and HTTP server of one relay instance.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	hub     *Hub
	http    *http.Server
}

// New builds a server from cfg. Nothing is started until Start.
func New(cfg Config, logger *slog.Logger, opts ...HubOption) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg = cfg.Sanitize()
	m := metrics.New()
	hub := NewHub(cfg, logger, append([]HubOption{WithMetrics(m)}, opts...)...)
	return &Server{
		cfg:     cfg,
		logger:  logger.With("component", "server"),
		metrics: m,
		hub:     hub,
		http:    CreateServer(cfg.Port, SetupRoutes(hub, m)),
	}
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start runs the hub and serves HTTP until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Start() error {
	go s.hub.Run()
	s.logger.Info("hub started and ready to manage websocket connections")

	if err := StartServer(s.http, s.logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then closes every WebSocket and waits
// for the client goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := ShutdownServer(ctx, s.http, s.logger)
	hubErr := s.hub.Shutdown(ctx)
	return errors.Join(httpErr, hubErr)
}
