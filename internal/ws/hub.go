package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"buggy/internal/domain"
	"buggy/internal/service"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// frame is the wire envelope for everything the hub pushes.
type frame struct {
	Kind         string                `json:"kind"`
	Event        *domain.RideEvent     `json:"event,omitempty"`
	Notification *service.Notification `json:"notification,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	// recipient scopes notification delivery; empty means the client
	// (a dispatcher console) sees every notification.
	recipient string
}

// Hub fans ride events and notifications out to connected websocket
// clients. Slow clients are dropped rather than allowed to stall the
// broadcast path.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

var _ service.EventPublisher = (*Hub)(nil)
var _ service.NotificationSender = (*Hub)(nil)

// Publish broadcasts a ride state change to every subscriber.
func (h *Hub) Publish(event domain.RideEvent) {
	h.broadcast(frame{Kind: "ride_event", Event: &event})
}

// Send broadcasts a notification. Delivery is best effort; the hub
// never returns an error for dropped clients.
func (h *Hub) Send(_ context.Context, n service.Notification) error {
	h.broadcast(frame{Kind: "notification", Notification: &n})
	return nil
}

func (h *Hub) broadcast(f frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("marshal broadcast frame", "error", err)
		return
	}

	// Ride events go to everyone; notifications only to the addressed
	// recipient and to unscoped subscribers.
	target := ""
	if f.Notification != nil {
		target = f.Notification.Recipient
	}

	h.mu.RLock()
	var stalled []*client
	for c := range h.clients {
		if target != "" && c.recipient != "" && c.recipient != target {
			continue
		}
		select {
		case c.send <- payload:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.drop(c)
	}
}

// Serve upgrades an HTTP request to a websocket subscription and blocks
// until the client disconnects. A ?recipient= query parameter limits
// notification frames to that guest room or driver.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	recipient := r.URL.Query().Get("recipient")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize), recipient: recipient}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop drains inbound frames so pings and close handshakes are
// processed; subscribers are not expected to send anything.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()

	close(c.send)
	_ = c.conn.Close()
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
