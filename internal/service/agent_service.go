package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/internal/repository"
	"github.com/freeeve/dicewars/internal/sandbox"
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrNotAgentOwner = errors.New("only the owner can change this agent")
	ErrInvalidAgent  = errors.New("invalid agent")
)

const (
	maxAgentNameLen   = 64
	maxAgentSourceLen = 256 << 10
	maxTurnTimeoutMs  = 30_000
	maxAgentMoves     = 10_000
)

// AgentInput is the user-editable part of an agent.
type AgentInput struct {
	Name          string `json:"name"`
	Source        string `json:"source"`
	TurnTimeoutMs int    `json:"turn_timeout_ms"`
	MaxMoves      int    `json:"max_moves"`
}

// AgentService manages user-authored agents.
type AgentService struct {
	agentRepo repository.AgentRepository
}

// NewAgentService creates an AgentService.
func NewAgentService(agentRepo repository.AgentRepository) *AgentService {
	return &AgentService{agentRepo: agentRepo}
}

func (in *AgentInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || len(in.Name) > maxAgentNameLen {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidAgent, maxAgentNameLen)
	}
	if strings.TrimSpace(in.Source) == "" || len(in.Source) > maxAgentSourceLen {
		return fmt.Errorf("%w: source must be 1-%d bytes", ErrInvalidAgent, maxAgentSourceLen)
	}
	if in.TurnTimeoutMs < 0 || in.TurnTimeoutMs > maxTurnTimeoutMs {
		return fmt.Errorf("%w: turn_timeout_ms must be 0-%d", ErrInvalidAgent, maxTurnTimeoutMs)
	}
	if in.MaxMoves < 0 || in.MaxMoves > maxAgentMoves {
		return fmt.Errorf("%w: max_moves must be 0-%d", ErrInvalidAgent, maxAgentMoves)
	}
	if err := sandbox.Compile(in.Source); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAgent, err)
	}
	return nil
}

// CreateAgent validates and stores a new agent.
func (s *AgentService) CreateAgent(ctx context.Context, ownerID string, in AgentInput) (*model.Agent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.agentRepo.Create(ctx, &model.Agent{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Name:          in.Name,
		Source:        in.Source,
		TurnTimeoutMs: in.TurnTimeoutMs,
		MaxMoves:      in.MaxMoves,
	})
}

// GetAgent returns an agent by ID.
func (s *AgentService) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	a, err := s.agentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAgentNotFound
	}
	return a, nil
}

// ListAgents returns the agents owned by a user.
func (s *AgentService) ListAgents(ctx context.Context, ownerID string) ([]model.Agent, error) {
	return s.agentRepo.List(ctx, ownerID)
}

// UpdateAgent replaces an agent's program and limits.
func (s *AgentService) UpdateAgent(ctx context.Context, id, userID string, in AgentInput) (*model.Agent, error) {
	a, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	a.Name, a.Source, a.TurnTimeoutMs, a.MaxMoves = in.Name, in.Source, in.TurnTimeoutMs, in.MaxMoves
	if err := s.agentRepo.Update(ctx, a); err != nil {
		return nil, err
	}
	return s.agentRepo.FindByID(ctx, id)
}

// DeleteAgent removes an agent. Matches already using it fall back to the
// default built-in agent.
func (s *AgentService) DeleteAgent(ctx context.Context, id, userID string) error {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	return s.agentRepo.Delete(ctx, id)
}

func (s *AgentService) owned(ctx context.Context, id, userID string) (*model.Agent, error) {
	a, err := s.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != userID {
		return nil, ErrNotAgentOwner
	}
	return a, nil
}
