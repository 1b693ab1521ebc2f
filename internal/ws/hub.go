// Package ws implements the notification channel: a WebSocket hub that fans
// domain event frames out to all currently connected observers. Delivery is
// best effort with no backlog; late joiners see only events emitted after
// they connect.
package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub owns the set of connected observers and serializes membership changes
// and broadcasts through its run loop.
type Hub struct {
	lg *zap.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	upgrader websocket.Upgrader
}

// NewHub creates a Hub. Call Run before serving connections.
func NewHub(lg *zap.Logger) *Hub {
	return &Hub{
		lg:         lg,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin browsing contexts are allowed: observers carry no
			// credentials and the stream is broadcast-only.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})
	defer func() {
		close(h.done)
		for c := range clients {
			close(c.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			h.lg.Debug("observer connected", zap.Int("observers", len(clients)))
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				h.lg.Debug("observer disconnected", zap.Int("observers", len(clients)))
			}
		case frame := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- frame:
				default:
					// Slow observer: drop it rather than stall the loop.
					delete(clients, c)
					close(c.send)
					h.lg.Warn("observer too slow, dropping connection")
				}
			}
		}
	}
}

// Broadcast queues a frame for delivery to all connected observers. It never
// blocks; if the hub cannot keep up the frame is dropped.
func (h *Hub) Broadcast(frame []byte) {
	select {
	case h.broadcast <- frame:
	default:
		h.lg.Warn("broadcast queue full, dropping frame")
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and registers the
// observer with the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 32)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
