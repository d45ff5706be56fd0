package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/freeeve/dicewars/internal/model"
)

// AgentRepo handles agent definitions.
type AgentRepo struct {
	db *sql.DB
}

const agentColumns = `id, owner_id, name, source, turn_timeout_ms, max_moves, created_at, updated_at`

func scanAgent(row interface{ Scan(...any) error }) (*model.Agent, error) {
	var a model.Agent
	var created, updated int64
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Source, &a.TurnTimeoutMs, &a.MaxMoves, &created, &updated); err != nil {
		return nil, err
	}
	a.CreatedAt, a.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &a, nil
}

// Create inserts an agent. The caller assigns the ID.
func (r *AgentRepo) Create(ctx context.Context, a *model.Agent) (*model.Agent, error) {
	ts := now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO agents (`+agentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, a.Source, a.TurnTimeoutMs, a.MaxMoves, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return r.FindByID(ctx, a.ID)
}

// FindByID returns an agent, or nil if it does not exist.
func (r *AgentRepo) FindByID(ctx context.Context, id string) (*model.Agent, error) {
	a, err := scanAgent(r.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id))
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
		`SELECT `+agentColumns+` FROM agents WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Update replaces an agent's name, source and limits.
func (r *AgentRepo) Update(ctx context.Context, a *model.Agent) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE agents SET name = ?, source = ?, turn_timeout_ms = ?, max_moves = ?, updated_at = ? WHERE id = ?`,
		a.Name, a.Source, a.TurnTimeoutMs, a.MaxMoves, now(), a.ID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return nil
}

// Delete removes an agent and its storage.
func (r *AgentRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_storage WHERE agent_id = ?`, id); err != nil {
		return fmt.Errorf("delete agent storage: %w", err)
	}
	return tx.Commit()
}

// AgentStorage is the per-agent key-value store, one row per key.
type AgentStorage struct {
	db *sql.DB
}

// Load returns an agent's persistent storage.
func (s *AgentStorage) Load(ctx context.Context, agentID string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM agent_storage WHERE agent_id = ?`, agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent storage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var k, raw string
		if err := rows.Scan(&k, &raw); err != nil {
			return nil, fmt.Errorf("scan agent storage: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode agent storage key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Save replaces an agent's persistent storage.
func (s *AgentStorage) Save(ctx context.Context, agentID string, data map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_storage WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("clear agent storage: %w", err)
	}
	for k, v := range data {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode agent storage key %q: %w", k, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agent_storage (agent_id, key, value) VALUES (?, ?, ?)`, agentID, k, string(raw)); err != nil {
			return fmt.Errorf("save agent storage key %q: %w", k, err)
		}
	}
	return tx.Commit()
}
