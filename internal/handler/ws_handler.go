package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/auth"
	"github.com/freeeve/dicewars/internal/match"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 54 * time.Second // Must be less than pongWait
	maxMsgSize    = 4096
	sendBufSize   = 256
	snapshotWait  = 5 * time.Second
	actionSub     = "subscribe"
	actionUnsub   = "unsubscribe"
	errTooManySub = "too many subscriptions"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    1024,
	WriteBufferSize:   4096,
	EnableCompression: true,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware
	},
}

// MatchStates is the read side of the match service. A subscriber is sent
// the current state so it can render the board before the next event.
type MatchStates interface {
	GetMatch(ctx context.Context, matchID string) (match.State, error)
}

// WSHandler streams match events to players and spectators.
type WSHandler struct {
	hub    *Hub
	jwtMgr *auth.JWTManager
	states MatchStates
}

// NewWSHandler creates a WSHandler. states may be nil, in which case
// subscriptions are acknowledged without a snapshot.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, states MatchStates) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, states: states}
}

// ServeWS handles GET /api/v1/ws and upgrades to WebSocket. The access token
// comes in ?token= and each ?match= is subscribed before the "connected"
// event is delivered.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		writeError(w, http.StatusUnauthorized, "missing token parameter")
		return
	}

	claims, err := h.jwtMgr.ValidateAccessToken(tokenStr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:   conn,
		userID: claims.UserID,
		send:   make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)

	var subscribed []string
	for _, id := range r.URL.Query()["match"] {
		if h.hub.Subscribe(client, id) {
			subscribed = append(subscribed, id)
		}
	}
	h.hub.Send(client, WSEvent{Type: EventConnected, Data: map[string]any{
		"user_id": claims.UserID,
		"matches": subscribed,
	}})
	for _, id := range subscribed {
		go h.sendSnapshot(client, id)
	}

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("userId", claims.UserID).Int("matches", len(subscribed)).
		Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// sendSnapshot delivers the "subscribed" event. It runs off the read loop
// since loading a match waits for any turn in progress.
func (h *WSHandler) sendSnapshot(c *WSConn, matchID string) {
	ev := WSEvent{Type: EventSubscribed, MatchID: matchID}
	if h.states != nil {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotWait)
		defer cancel()
		st, err := h.states.GetMatch(ctx, matchID)
		if err != nil {
			h.hub.Unsubscribe(c, matchID)
			h.hub.Send(c, WSEvent{Type: EventError, MatchID: matchID, Data: map[string]string{"error": err.Error()}})
			return
		}
		ev.Data = st
	}
	h.hub.Send(c, ev)
}

// readPump reads subscription messages from the connection.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("userId", c.userID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("userId", c.userID).Msg("WebSocket unexpected close")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.MatchID == "" {
			continue
		}

		switch msg.Action {
		case actionSub:
			if !h.hub.Subscribe(c, msg.MatchID) {
				h.hub.Send(c, WSEvent{Type: EventError, MatchID: msg.MatchID, Data: map[string]string{"error": errTooManySub}})
				continue
			}
			go h.sendSnapshot(c, msg.MatchID)
		case actionUnsub:
			h.hub.Unsubscribe(c, msg.MatchID)
		}
	}
}

// writePump writes queued messages and pings to the connection. It owns all
// writes; the connection is closed when the hub closes the send queue.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One event per frame.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
