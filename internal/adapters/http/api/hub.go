package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/pkg/logger"
	"github.com/okian/vitalcam/pkg/metrics"
)

// Event types pushed to WebSocket clients.
const (
	EventProgress = "progress"
	EventOutcome  = "outcome"
	EventStopped  = "stopped"
	EventError    = "error"
)

const (
	writeWait  = 200 * time.Millisecond
	sendBuffer = 64
)

// Event is the JSON envelope sent over /session/events.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans session events out to connected WebSocket clients. Each
// client has a single writer goroutine; slow clients are dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{clients: make(map[*client]struct{}), logger: log}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishProgress broadcasts a progress event.
func (h *Hub) PublishProgress(p model.Progress) {
	h.Broadcast(Event{Type: EventProgress, Timestamp: time.Now(), Data: p})
}

// PublishOutcome broadcasts a terminal session event.
func (h *Hub) PublishOutcome(o model.Outcome) {
	h.Broadcast(Event{Type: EventOutcome, Timestamp: time.Now(), Data: o})
}

// Broadcast sends ev to every client.
func (h *Hub) Broadcast(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error(context.Background(), "failed to encode event", logger.String("type", ev.Type), logger.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn(context.Background(), "dropping slow websocket client")
		h.remove(c)
	}
}

// send delivers ev to a single client.
func (h *Hub) send(c *client, ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateWebsocketClients(n)
	go h.writeLoop(c)
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateWebsocketClients(n)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.remove(c)
	}
}

func (h *Hub) writeLoop(c *client) {
	for b := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.logger.Debug(context.Background(), "websocket write failed", logger.Error(err))
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}
