package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"jobboard/internal/middleware"
	"jobboard/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const maxTotalConns = 10000

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shut down")

// Hub is the registry of connected live-feed clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
	max     int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		max:     maxTotalConns,
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "board hub" }

// Register adds a connection. It fails when the hub is full or shut down.
func (h *Hub) Register(conn *websocket.Conn, remote string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= h.max {
		return nil, errors.New("server connection limit reached")
	}

	client := newClient(h, conn, remote)
	h.clients[client] = struct{}{}
	observability.WebSocketClients.Inc()
	return client, nil
}

// UnregisterClient removes client and closes its send channel. Safe to call twice.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	observability.WebSocketClients.Dec()
}

// Broadcast queues message on every client. Slow clients miss it.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.TrySend(message) {
			middleware.Logger.Warn("live feed client buffer full, dropped event",
				slog.String("remote", c.Remote),
				slog.String("hub", h.Name()),
			)
		}
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client's send channel. Each WritePump then sends a
// close frame and drops its connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for client := range h.clients {
		close(client.Send)
		observability.WebSocketClients.Dec()
	}
	middleware.Logger.Info("live feed hub shut down", slog.Int("clients", len(h.clients)))
	h.clients = make(map[*Client]struct{})
	return nil
}
