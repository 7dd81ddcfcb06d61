// Package server coordinates client registration, event delivery, and
// connection cleanup for the relay's WebSocket transport via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/internal/metrics"
	"github.com/Tyrowin/roomrelay/internal/relay"
)

// Hub manages all WebSocket client connections and delivers relay events to
// them. Each client is keyed by the connection id the relay knows it by.
// Hub implements relay.Sender.
type Hub struct {
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	relay      *relay.Relay
	relayOpts  []relay.Option
	upgrader   websocket.Upgrader
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithMetrics reports relay and transport activity to m.
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithRelayOptions passes extra options to the relay the hub creates.
func WithRelayOptions(opts ...relay.Option) HubOption {
	return func(h *Hub) {
		h.relayOpts = append(h.relayOpts, opts...)
	}
}

// NewHub creates a hub and the relay behind it. The returned Hub is ready to
// manage WebSocket connections once Run is started.
func NewHub(cfg Config, logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg = cfg.Sanitize()
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:        cfg,
		logger:     logger.With("component", "hub"),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	origins := newOriginPolicy(cfg.AllowedOrigins, h.logger)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origins.checkOrigin,
	}

	relayOpts := []relay.Option{relay.WithLogger(logger), relay.WithLimits(cfg.Activity)}
	if h.metrics != nil {
		relayOpts = append(relayOpts, relay.WithObserver(h.metrics))
	}
	h.relay = relay.New(h, append(relayOpts, h.relayOpts...)...)
	return h
}

// Relay returns the relay the hub feeds.
func (h *Hub) Relay() *relay.Relay {
	return h.relay
}

// Config returns the sanitized configuration.
func (h *Hub) Config() Config {
	return h.cfg
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// newConnID assigns a fresh connection id.
func newConnID() string {
	return uuid.NewString()
}

// Send encodes ev and queues it for connID without blocking. A client whose
// send buffer is full is disconnected; events for unknown ids are dropped.
func (h *Hub) Send(connID string, ev relay.Event) {
	payload, err := encodeEvent(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "event", ev.Name, "conn", connID, "error", err)
		return
	}

	h.mutex.RLock()
	client, exists := h.clients[connID]
	if !exists || client.closed {
		h.mutex.RUnlock()
		return
	}
	full := false
	select {
	case client.send <- payload:
	default:
		full = true
	}
	h.mutex.RUnlock()

	if full {
		h.logger.Warn("send buffer full, dropping client", "conn", connID, "remote", client.addr)
		if h.metrics != nil {
			h.metrics.SlowConsumer()
		}
		client.closeConnection()
	}
}

// Register queues an upgraded client for registration. It returns false when
// the hub is shutting down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. This method should be called in a separate goroutine as it
// runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("client registered", "conn", client.id, "remote", client.addr, "clients", clientCount)

			h.relay.Connect(client.id)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.release(client)
		}
	}
}

// release removes client from the hub, closes its send channel and purges it
// from the relay. Releasing a client twice is a no-op.
func (h *Hub) release(client *Client) {
	h.mutex.Lock()
	current, ok := h.clients[client.id]
	if !ok || current != client {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	h.relay.Disconnect(client.id)
	h.logger.Info("client unregistered", "conn", client.id, "remote", client.addr, "clients", clientCount)
}

// shutdownClients closes every active client connection. The read pumps then
// fail and release their clients.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		client.closeConnection()
	}

	h.logger.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the hub and waits for all client goroutines to finish, or
// for ctx to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-ctx.Done():
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return ctx.Err()
	}
}
