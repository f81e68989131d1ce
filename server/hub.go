// WebSocket broadcast hub. Connections that fail a send are dropped; core
// state is never affected by broadcast failures.

package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Envelope is the wire frame for every server-push message.
type Envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Hub tracks active WebSocket clients keyed by client id.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*websocket.Conn)}
}

// Register adds a client connection, replacing any previous connection with
// the same id.
func (h *Hub) Register(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.conns[clientID]; ok {
		_ = prev.Close()
	}
	h.conns[clientID] = conn
	logrus.Infof("client %q connected (%d active)", clientID, len(h.conns))
}

// Unregister removes and closes a client connection.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.conns[clientID]; ok {
		_ = conn.Close()
		delete(h.conns, clientID)
		logrus.Infof("client %q disconnected (%d active)", clientID, len(h.conns))
	}
}

// Broadcast sends an envelope to every client. A failed send drops that
// client only.
func (h *Hub) Broadcast(eventType string, data any) {
	env := Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.conns {
		if err := conn.WriteJSON(env); err != nil {
			logrus.Warnf("dropping client %q: %v", id, err)
			_ = conn.Close()
			delete(h.conns, id)
		}
	}
}

// ClientCount returns the number of active connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
