// Package client is an HTTP and WebSocket client for the match API, used by
// remote bots and end-to-end tests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/logger"
	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// WSEvent mirrors handler.WSEvent for client-side deserialization.
type WSEvent struct {
	Type    string          `json:"type"`
	MatchID string          `json:"match_id"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Msg    string `json:"error"`
	Reason string `json:"reason"`
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s: status %d: %s (%s)", e.Method, e.Path, e.Status, e.Msg, e.Reason)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Msg)
}

// Client talks to one server as one user.
type Client struct {
	name     string
	baseURL  string
	token    string
	user     model.User
	wsConn   *websocket.Conn
	events   chan WSEvent
	httpC    *http.Client
	mu       sync.Mutex
	closedWS bool
}

// New creates a client targeting the given server URL.
func New(name, baseURL string) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		events:  make(chan WSEvent, 64),
		httpC:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the login name.
func (c *Client) Name() string { return c.name }

// UserID returns the user ID after login.
func (c *Client) UserID() string { return c.user.ID }

// Login authenticates via the dev login endpoint.
func (c *Client) Login(ctx context.Context) error {
	var resp struct {
		User   model.User `json:"user"`
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/dev", map[string]string{"name": c.name}, &resp); err != nil {
		return fmt.Errorf("dev login: %w", err)
	}
	c.token = resp.Tokens.AccessToken
	c.user = resp.User
	log.Debug().Str("client", c.name).Str("userId", c.user.ID).Msg("Client logged in")
	return nil
}

// CreateMatch creates a match from a level document (YAML or JSON).
func (c *Client) CreateMatch(ctx context.Context, level []byte, seed int64) (match.State, error) {
	var st match.State
	body := map[string]any{"level": string(level), "seed": seed}
	err := c.do(ctx, http.MethodPost, "/api/v1/matches", body, &st)
	return st, err
}

// GetMatch fetches the current state of a match.
func (c *Client) GetMatch(ctx context.Context, matchID string) (match.State, error) {
	var st match.State
	err := c.do(ctx, http.MethodGet, "/api/v1/matches/"+matchID, nil, &st)
	return st, err
}

// Attack attacks on behalf of a seat.
func (c *Client) Attack(ctx context.Context, matchID string, playerID int, from, to dicewars.Coord) (dicewars.BattleResult, match.State, error) {
	var resp struct {
		Battle dicewars.BattleResult `json:"battle"`
		State  match.State           `json:"state"`
	}
	body := map[string]any{"player_id": playerID, "from": from, "to": to}
	err := c.do(ctx, http.MethodPost, "/api/v1/matches/"+matchID+"/attack", body, &resp)
	return resp.Battle, resp.State, err
}

// EndTurn ends a seat's turn. The returned state is after any bot turns
// that followed.
func (c *Client) EndTurn(ctx context.Context, matchID string, playerID int) (dicewars.ReinforcementResult, match.State, error) {
	var resp struct {
		Reinforcements dicewars.ReinforcementResult `json:"reinforcements"`
		State          match.State                  `json:"state"`
	}
	body := map[string]any{"player_id": playerID}
	err := c.do(ctx, http.MethodPost, "/api/v1/matches/"+matchID+"/end-turn", body, &resp)
	return resp.Reinforcements, resp.State, err
}

// Battles fetches the battle history of a match.
func (c *Client) Battles(ctx context.Context, matchID string) ([]dicewars.BattleResult, error) {
	var battles []dicewars.BattleResult
	err := c.do(ctx, http.MethodGet, "/api/v1/matches/"+matchID+"/battles", nil, &battles)
	return battles, err
}

// ConnectWS opens a WebSocket connection subscribed to the given matches and
// starts listening for events. It returns once the server has acknowledged
// the connection, so events for those matches are not missed.
func (c *Client) ConnectWS(ctx context.Context, matchIDs ...string) error {
	q := url.Values{"token": {c.token}}
	for _, id := range matchIDs {
		q.Add("match", id)
	}
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/v1/ws?" + q.Encode()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	c.wsConn = conn

	var hello WSEvent
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return fmt.Errorf("ws handshake: %w", err)
	}
	go c.readWSLoop()
	return nil
}

// SubscribeMatch sends a subscribe message for the given match.
func (c *Client) SubscribeMatch(matchID string) error {
	msg := map[string]string{"action": "subscribe", "match_id": matchID}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsConn == nil {
		return errors.New("websocket not connected")
	}
	return c.wsConn.WriteJSON(msg)
}

// Events returns the channel of incoming WebSocket events. It is closed when
// the connection ends.
func (c *Client) Events() <-chan WSEvent { return c.events }

// CloseWS closes the WebSocket connection.
func (c *Client) CloseWS() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsConn != nil && !c.closedWS {
		c.closedWS = true
		c.wsConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.wsConn.Close()
	}
}

func (c *Client) readWSLoop() {
	defer close(c.events)
	for {
		_, msg, err := c.wsConn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closedWS
			c.mu.Unlock()
			if !closed {
				log.Debug().Err(err).Str("client", c.name).Msg("WS read error")
			}
			return
		}
		var event WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			continue
		}
		c.events <- event
	}
}

// do sends a JSON request and decodes a JSON response into out, if non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Tag requests so server logs can be matched to this bot.
	req.Header.Set("X-Request-ID", c.name+"-"+logger.NewRequestID())

	resp, err := c.httpC.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(string(body))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
