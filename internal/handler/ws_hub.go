package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub-level event types. Match events use the match event kinds as their type.
const (
	EventConnected  = "connected"
	EventSubscribed = "subscribed"
	EventError      = "error"
)

// MaxSubscriptions caps how many matches one socket may follow.
const MaxSubscriptions = 32

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
	Data    any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action  string `json:"action"` // "subscribe" or "unsubscribe"
	MatchID string `json:"match_id"`
}

// WSConn wraps a WebSocket connection with its user and outgoing queue.
type WSConn struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
	subs   int // guarded by Hub.mu
}

// Hub manages WebSocket connections and match subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	matches     map[string]map[*WSConn]bool // matchID -> subscribers
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		matches:     make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	for matchID, conns := range h.matches {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.matches, matchID)
		}
	}
	close(c.send)
}

// Subscribe adds a connection to a match channel. It reports false when the
// connection is gone or already follows MaxSubscriptions matches.
func (h *Hub) Subscribe(c *WSConn, matchID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return false
	}
	conns := h.matches[matchID]
	if conns[c] {
		return true
	}
	if c.subs >= MaxSubscriptions {
		return false
	}
	if conns == nil {
		conns = make(map[*WSConn]bool)
		h.matches[matchID] = conns
	}
	conns[c] = true
	c.subs++
	return true
}

// Unsubscribe removes a connection from a match channel.
func (h *Hub) Unsubscribe(c *WSConn, matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns := h.matches[matchID]; conns[c] {
		delete(conns, c)
		c.subs--
		if len(conns) == 0 {
			delete(h.matches, matchID)
		}
	}
}

// Send queues an event for one connection. It reports false if the
// connection is gone or its queue is full.
func (h *Hub) Send(c *WSConn, event WSEvent) bool {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal WebSocket event")
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.connections[c] {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// BroadcastToMatch sends an event to all connections subscribed to a match.
// A subscriber whose queue is full is disconnected rather than left with a
// gap in the event stream; on reconnect it gets a fresh snapshot.
func (h *Hub) BroadcastToMatch(matchID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Failed to marshal WebSocket event")
		return
	}

	var slow []*WSConn
	h.mu.RLock()
	for c := range h.matches[matchID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("userId", c.userID).Str("matchId", matchID).Msg("Disconnecting slow WebSocket subscriber")
		h.Unregister(c)
	}
}

// BroadcastMatchEvent implements service.Broadcaster.
func (h *Hub) BroadcastMatchEvent(matchID string, eventType string, data any) {
	h.BroadcastToMatch(matchID, WSEvent{
		Type:    eventType,
		MatchID: matchID,
		Data:    data,
	})
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// MatchSubscriberCount returns the number of connections subscribed to a match.
func (h *Hub) MatchSubscriberCount(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches[matchID])
}
