package model

import (
	"encoding/json"
	"time"
)

// User is an account allowed to create matches and agents.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Agent is a user-authored strategy program run inside the sandbox.
type Agent struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	Source        string    `json:"source"`
	TurnTimeoutMs int       `json:"turn_timeout_ms"`
	MaxMoves      int       `json:"max_moves"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Match statuses.
const (
	MatchActive   = "active"
	MatchFinished = "finished"
)

// MatchRecord is the persisted summary of a match.
type MatchRecord struct {
	ID         string          `json:"id"`
	CreatorID  string          `json:"creator_id"`
	Status     string          `json:"status"`
	Winner     int             `json:"winner"`
	Turns      int             `json:"turns"`
	Players    []MatchPlayer   `json:"players"`
	Level      json.RawMessage `json:"level,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// MatchPlayer records who sat in each seat of a match.
type MatchPlayer struct {
	PlayerID int    `json:"player_id"`
	UserID   string `json:"user_id,omitempty"`
	IsBot    bool   `json:"is_bot"`
	AgentID  string `json:"agent_id,omitempty"`
}
