package repository

import (
	"context"
	"encoding/json"

	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByName(ctx context.Context, displayName string) (*model.User, error)
	Create(ctx context.Context, displayName string) (*model.User, error)
}

// AgentRepository defines agent definition data operations. Lookups return
// nil, nil when the agent does not exist.
type AgentRepository interface {
	Create(ctx context.Context, a *model.Agent) (*model.Agent, error)
	FindByID(ctx context.Context, id string) (*model.Agent, error)
	List(ctx context.Context, ownerID string) ([]model.Agent, error)
	Update(ctx context.Context, a *model.Agent) error
	Delete(ctx context.Context, id string) error
}

// AgentStorage is the persistent key-value store of an agent, shared across
// all matches the agent plays.
type AgentStorage interface {
	Load(ctx context.Context, agentID string) (map[string]any, error)
	Save(ctx context.Context, agentID string, data map[string]any) error
}

// MatchRepository defines match record and battle history operations.
type MatchRepository interface {
	Create(ctx context.Context, rec *model.MatchRecord) error
	FindByID(ctx context.Context, id string) (*model.MatchRecord, error)
	ListRecent(ctx context.Context, limit int) ([]model.MatchRecord, error)
	SetFinished(ctx context.Context, id string, winner, turns int) error
	SaveBattles(ctx context.Context, matchID string, battles []dicewars.BattleResult) error
	ListBattles(ctx context.Context, matchID string) ([]dicewars.BattleResult, error)
}

// MatchCache defines live match state operations (Redis).
type MatchCache interface {
	SetMatchState(ctx context.Context, matchID string, state json.RawMessage) error
	GetMatchState(ctx context.Context, matchID string) (json.RawMessage, error)
	DeleteMatchState(ctx context.Context, matchID string) error
}
