// Package realtime pushes order lifecycle events to connected clients.
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

// Event is a single order lifecycle update pushed over the wire.
type Event struct {
	Table     string                 `json:"table,omitempty"`
	Type      string                 `json:"type"`
	OrderID   uuid.UUID              `json:"order_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

const clientBuffer = 16

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans order events out to websocket clients. A slow client that fills
// its buffer is dropped rather than blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  log,
	}
}

// Publish delivers the event to every connected client without blocking.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			// buffer full, writer will be reaped on next write failure
		}
	}
}

// Serve owns the connection until the client disconnects.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan Event, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("WebSocket client connected", map[string]interface{}{"clients": count})

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.Close()
	}()

	// Reader goroutine just drains control frames and detects disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case e := <-c.send:
			if err := conn.WriteJSON(e); err != nil {
				h.logger.Debug("WebSocket write failed", map[string]interface{}{"error": err.Error()})
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// ClientCount reports how many clients are currently attached.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
