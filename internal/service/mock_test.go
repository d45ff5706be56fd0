package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

type mockMatchRepo struct {
	mu       sync.Mutex
	matches  map[string]*model.MatchRecord
	battles  map[string][]dicewars.BattleResult
	finished int
}

func newMockMatchRepo() *mockMatchRepo {
	return &mockMatchRepo{
		matches: make(map[string]*model.MatchRecord),
		battles: make(map[string][]dicewars.BattleResult),
	}
}

func (m *mockMatchRepo) Create(_ context.Context, rec *model.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.CreatedAt = time.Now()
	m.matches[rec.ID] = &cp
	return nil
}

func (m *mockMatchRepo) FindByID(_ context.Context, id string) (*model.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *mockMatchRepo) ListRecent(_ context.Context, limit int) ([]model.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MatchRecord
	for _, rec := range m.matches {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockMatchRepo) SetFinished(_ context.Context, id string, winner, turns int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.matches[id]; ok {
		rec.Status = model.MatchFinished
		rec.Winner = winner
		rec.Turns = turns
		now := time.Now()
		rec.FinishedAt = &now
	}
	m.finished++
	return nil
}

func (m *mockMatchRepo) SaveBattles(_ context.Context, matchID string, battles []dicewars.BattleResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.battles[matchID] = battles
	return nil
}

func (m *mockMatchRepo) ListBattles(_ context.Context, matchID string) ([]dicewars.BattleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.battles[matchID], nil
}

type mockCache struct {
	mu     sync.Mutex
	states map[string]json.RawMessage
}

func newMockCache() *mockCache {
	return &mockCache{states: make(map[string]json.RawMessage)}
}

func (c *mockCache) SetMatchState(_ context.Context, matchID string, state json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[matchID] = state
	return nil
}

func (c *mockCache) GetMatchState(_ context.Context, matchID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[matchID], nil
}

func (c *mockCache) DeleteMatchState(_ context.Context, matchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, matchID)
	return nil
}

type mockAgentRepo struct {
	agents map[string]*model.Agent
}

func newMockAgentRepo() *mockAgentRepo {
	return &mockAgentRepo{agents: make(map[string]*model.Agent)}
}

func (m *mockAgentRepo) Create(_ context.Context, a *model.Agent) (*model.Agent, error) {
	cp := *a
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.agents[a.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockAgentRepo) FindByID(_ context.Context, id string) (*model.Agent, error) {
	a, ok := m.agents[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *mockAgentRepo) List(_ context.Context, ownerID string) ([]model.Agent, error) {
	var out []model.Agent
	for _, a := range m.agents {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockAgentRepo) Update(_ context.Context, a *model.Agent) error {
	cp := *a
	cp.UpdatedAt = time.Now()
	m.agents[a.ID] = &cp
	return nil
}

func (m *mockAgentRepo) Delete(_ context.Context, id string) error {
	delete(m.agents, id)
	return nil
}

// recordingBroadcaster keeps every event type it is asked to broadcast.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) BroadcastMatchEvent(_ string, eventType string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

// passDriver ends every bot turn without attacking.
type passDriver struct{}

func (passDriver) Intents(context.Context, match.State, int) []match.Intent {
	return []match.Intent{{Kind: match.IntentEndTurn}}
}
