package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/dicewars/internal/model"
)

// AgentRepo handles agent definition database operations.
type AgentRepo struct {
	db *sql.DB
}

// NewAgentRepo creates an AgentRepo.
func NewAgentRepo(db *sql.DB) *AgentRepo {
	return &AgentRepo{db: db}
}

const agentColumns = `id, owner_id, name, source, turn_timeout_ms, max_moves, created_at, updated_at`

func scanAgent(row interface{ Scan(...any) error }) (*model.Agent, error) {
	var a model.Agent
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Source, &a.TurnTimeoutMs, &a.MaxMoves, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts an agent. The caller assigns the ID.
func (r *AgentRepo) Create(ctx context.Context, a *model.Agent) (*model.Agent, error) {
	created, err := scanAgent(r.db.QueryRowContext(ctx,
		`INSERT INTO agents (id, owner_id, name, source, turn_timeout_ms, max_moves)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+agentColumns,
		a.ID, a.OwnerID, a.Name, a.Source, a.TurnTimeoutMs, a.MaxMoves,
	))
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return created, nil
}

// FindByID returns an agent, or nil if it does not exist.
func (r *AgentRepo) FindByID(ctx context.Context, id string) (*model.Agent, error) {
	a, err := scanAgent(r.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find agent: %w", err)
	}
	return a, nil
}

// List returns the agents owned by a user, newest first.
func (r *AgentRepo) List(ctx context.Context, ownerID string) ([]model.Agent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// Update replaces an agent's name, source and limits.
func (r *AgentRepo) Update(ctx context.Context, a *model.Agent) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE agents SET name = $1, source = $2, turn_timeout_ms = $3, max_moves = $4, updated_at = now()
		 WHERE id = $5`,
		a.Name, a.Source, a.TurnTimeoutMs, a.MaxMoves, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return nil
}

// Delete removes an agent.
func (r *AgentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return nil
}
