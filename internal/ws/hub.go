// Package ws pushes realtime gateway events to connected clients over
// WebSocket. Each user may hold several connections (multiple tabs); events
// fan out to all of them.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"omnigate/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// sendBuffer is per-connection; a client that falls this far behind is
	// dropped rather than allowed to stall the hub.
	sendBuffer = 64
)

// Event is the envelope every pushed message uses.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks connected clients per user and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[uuid.UUID]map[*client]struct{})}
}

// Serve attaches a freshly upgraded connection to the hub and blocks until
// the peer disconnects.
func (h *Hub) Serve(userID uuid.UUID, conn *websocket.Conn) {
	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	h.add(c)
	defer h.remove(c)

	go c.writePump()
	c.readPump()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	log.Debug().Str("user_id", c.userID.String()).Msg("WebSocket client connected")
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.userID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	log.Debug().Str("user_id", c.userID.String()).Msg("WebSocket client disconnected")
}

// PublishMessage pushes a message event to all of the user's connections.
func (h *Hub) PublishMessage(userID uuid.UUID, message *models.Message) {
	h.publish(userID, Event{Type: "message", Payload: message})
}

// PublishConversation pushes a conversation update event.
func (h *Hub) PublishConversation(userID uuid.UUID, conv *models.Conversation) {
	h.publish(userID, Event{Type: "conversation", Payload: conv})
}

func (h *Hub) publish(userID uuid.UUID, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("Failed to marshal websocket event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- payload:
		default:
			// Slow consumer: drop it so the rest keep receiving.
			delete(h.clients[userID], c)
			close(c.send)
			c.conn.Close()
			log.Warn().Str("user_id", userID.String()).Msg("Dropped slow websocket client")
		}
	}
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// ConnectionCount reports how many connections a user currently holds.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (c *client) readPump() {
	c.conn.SetReadLimit(4 << 10)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Clients only receive; inbound frames are drained for pong handling.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
