package sandbox

import (
	"context"
	"sync"

	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// lineState is a 2-player match on a 3x1 board: a 5-die stack for player 0
// next to two single dice of player 1.
func lineState() match.State {
	b := dicewars.NewBoard(3, 1, 8)
	b.Tiles[0] = dicewars.Tile{Owner: 0, Dice: 5}
	b.Tiles[1] = dicewars.Tile{Owner: 1, Dice: 1}
	b.Tiles[2] = dicewars.Tile{Owner: 1, Dice: 1}
	return match.State{
		ID:      "m1",
		Turn:    1,
		Sides:   6,
		Started: true,
		Winner:  dicewars.NoOwner,
		Board:   b,
		Players: dicewars.NewPlayers(2, 0),
	}
}

func lineSnapshot() Snapshot { return NewSnapshot(lineState(), 0) }

func request(source string) Request {
	return Request{
		APIVersion: APIVersion,
		AgentID:    "test",
		Source:     source,
		Snapshot:   lineSnapshot(),
		MaxMoves:   DefaultMaxMoves,
	}
}

type memStorage struct {
	mu    sync.Mutex
	data  map[string]map[string]any
	saves int
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string]map[string]any)}
}

func (m *memStorage) Load(_ context.Context, agentID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any)
	for k, v := range m.data[agentID] {
		out[k] = v
	}
	return out, nil
}

func (m *memStorage) Save(_ context.Context, agentID string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.data[agentID] = data
	return nil
}

type agentMap map[string]*model.Agent

func (a agentMap) FindByID(_ context.Context, id string) (*model.Agent, error) {
	return a[id], nil
}

// scriptRunner emits a fixed list of intents without running any program.
type scriptRunner struct {
	intents []match.Intent
	err     error
}

func (s scriptRunner) Run(_ context.Context, _ Request, emit func(match.Intent)) (Response, error) {
	for _, in := range s.intents {
		emit(in)
	}
	if s.err != nil {
		return Response{}, s.err
	}
	return Response{Storage: map[string]any{}}, nil
}

func attackIntent(fx, fy, tx, ty int) match.Intent {
	return match.Intent{Kind: match.IntentAttack, From: dicewars.Coord{X: fx, Y: fy}, To: dicewars.Coord{X: tx, Y: ty}}
}
