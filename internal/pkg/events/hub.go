package events

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Vodeneev/betrunner/internal/engine"
	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub broadcasts engine events and outcomes to connected websocket clients.
// It is an engine.Observer and a worker publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	broadcast chan Envelope
}

// Ensure Hub implements engine.Observer
var _ engine.Observer = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan Envelope, 256),
	}
}

// Run delivers broadcasts until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	slog.Info("Event hub started")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Handler upgrades requests to websocket connections. Pumps live until ctx is done
// or the client disconnects.
func (h *Hub) Handler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("Websocket upgrade failed", "error", err)
			return
		}

		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan Envelope, sendBufferSize),
			hub:  h,
		}
		if !h.register(c) {
			conn.Close()
			return
		}

		go c.writePump(ctx)
		go c.readPump()
	}
}

// Observe forwards an engine event to clients.
func (h *Hub) Observe(ev engine.Event) {
	kind := TypeProgress
	if ev.Kind == engine.EventError {
		kind = TypeError
	}
	h.Broadcast(Envelope{Type: kind, Payload: newStepEvent(ev), Timestamp: time.Now()})
}

// Publish forwards a bet outcome to clients.
func (h *Hub) Publish(_ context.Context, correlationID string, outcome models.BetOutcome) error {
	h.Broadcast(Envelope{Type: TypeOutcome, Payload: newOutcomeEvent(correlationID, outcome), Timestamp: time.Now()})
	return nil
}

// Broadcast queues msg without blocking; it is dropped if the buffer is full
// or the hub has shut down.
func (h *Hub) Broadcast(msg Envelope) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("Event hub buffer full, dropping message", "type", msg.Type)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	slog.Info("Websocket client connected", "client_id", c.id, "total", len(h.clients))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Info("Websocket client disconnected", "client_id", c.id, "total", len(h.clients))
	}
}

// deliver sends under the read lock so no client channel is closed mid-send.
func (h *Hub) deliver(msg Envelope) {
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.trySend(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("Websocket client buffer full, disconnecting", "client_id", c.id)
		h.unregister(c)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	slog.Info("Event hub stopped")
}
