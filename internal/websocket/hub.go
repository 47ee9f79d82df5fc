// Package websocket pushes committed domain events to connected clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

// Message is the JSON frame sent to clients for one domain event.
type Message struct {
	EventID    string         `json:"event_id"`
	Type       string         `json:"type"`
	Entity     string         `json:"entity"`
	Action     string         `json:"action"`
	ID         int64          `json:"id,omitempty"`
	ChildID    int64          `json:"child_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Extra      map[string]any `json:"extra,omitempty"`
}

func FromEvent(e model.Event) Message {
	return Message{
		EventID:    e.ID,
		Type:       e.Type,
		Entity:     e.Entity,
		Action:     e.Action,
		ID:         e.EntityID,
		ChildID:    e.ChildID,
		OccurredAt: e.OccurredAt,
		Extra:      e.Extra,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Notify broadcasts e. It never blocks on slow clients.
func (h *Hub) Notify(_ context.Context, e model.Event) {
	h.Broadcast(FromEvent(e))
}

// Broadcast sends msg to every client watching its child. Messages not tied
// to a child go to everyone.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.wants(msg) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping message", "type", msg.Type, "event_id", msg.EventID)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
