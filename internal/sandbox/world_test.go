package sandbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

func c(x, y int) dicewars.Coord { return dicewars.Coord{X: x, Y: y} }

func TestWorldAttackQueuesAndPredicts(t *testing.T) {
	snap := lineSnapshot()
	var emitted []match.Intent
	w := NewWorld(snap, nil, 10, func(in match.Intent) { emitted = append(emitted, in) })

	reply := w.Attack(c(0, 0), c(1, 0))
	require.True(t, reply.Success)
	require.True(t, reply.ExpectedWin)
	require.Greater(t, reply.Probability, 0.9)

	b := w.Board()
	require.Equal(t, 1, b.At(0, 0).Dice)
	require.Equal(t, 0, b.At(1, 0).Owner)
	require.Equal(t, 4, b.At(1, 0).Dice)

	require.Equal(t, []match.Intent{attackIntent(0, 0, 1, 0)}, w.Intents())
	require.Equal(t, w.Intents(), emitted)
	require.Equal(t, 1, w.Moves())

	// The snapshot handed in is untouched.
	require.Equal(t, 5, snap.Board.At(0, 0).Dice)
	require.Equal(t, 1, snap.Board.At(1, 0).Owner)
}

func TestWorldAttackRejections(t *testing.T) {
	w := NewWorld(lineSnapshot(), nil, 10, nil)

	reply := w.Attack(c(1, 0), c(0, 0))
	require.False(t, reply.Success)
	require.Equal(t, string(dicewars.ReasonNotOwner), reply.Reason)

	reply = w.Attack(c(0, 0), c(2, 0))
	require.False(t, reply.Success)
	require.Equal(t, string(dicewars.ReasonNotAdjacent), reply.Reason)

	reply = w.Attack(c(0, 0), c(9, 0))
	require.False(t, reply.Success)
	require.Equal(t, string(dicewars.ReasonOutOfBounds), reply.Reason)

	require.Empty(t, w.Intents())
	require.Zero(t, w.Moves())
}

func TestWorldMoveLimit(t *testing.T) {
	w := NewWorld(lineSnapshot(), nil, 1, nil)
	require.True(t, w.Attack(c(0, 0), c(1, 0)).Success)

	reply := w.Attack(c(1, 0), c(2, 0))
	require.False(t, reply.Success)
	require.Equal(t, ReasonMoveLimit, reply.Reason)
	require.Len(t, w.Intents(), 1)
}

func TestWorldEndTurn(t *testing.T) {
	w := NewWorld(lineSnapshot(), nil, 10, nil)
	w.EndTurn()
	w.EndTurn()

	reply := w.Attack(c(0, 0), c(1, 0))
	require.False(t, reply.Success)
	require.Equal(t, ReasonTurnEnded, reply.Reason)
	require.Equal(t, []match.Intent{{Kind: match.IntentEndTurn}}, w.Intents())
}

func TestWorldQueries(t *testing.T) {
	w := NewWorld(lineSnapshot(), nil, 10, nil)

	require.Equal(t, []TileInfo{{X: 0, Y: 0, Owner: 0, Dice: 5}}, w.MyTiles())
	require.Len(t, w.EnemyTiles(), 2)
	require.Len(t, w.AllTiles(), 3)
	require.ElementsMatch(t, []TileInfo{{X: 0, Y: 0, Owner: 0, Dice: 5}, {X: 2, Y: 0, Owner: 1, Dice: 1}}, w.AdjacentTiles(1, 0))
	require.Empty(t, w.AdjacentTiles(-1, 0))

	tile, ok := w.TileAt(2, 0)
	require.True(t, ok)
	require.Equal(t, TileInfo{X: 2, Y: 0, Owner: 1, Dice: 1}, tile)
	_, ok = w.TileAt(3, 0)
	require.False(t, ok)

	require.Equal(t, 2, w.Region(1))
	require.Equal(t, 1, w.Reinforcements(0))
}

func TestWorldSimulateLeavesBoard(t *testing.T) {
	w := NewWorld(lineSnapshot(), nil, 10, nil)
	before := w.Board().Clone()

	sim := w.Simulate(c(0, 0), c(1, 0))
	require.True(t, sim.Valid)
	require.True(t, sim.ExpectedWin)
	require.Equal(t, 2, sim.RegionIfWin)
	require.Equal(t, 1, sim.RegionIfLoss)
	require.Equal(t, 1, sim.DefenderRegionIfWin)
	require.Equal(t, 2, sim.DefenderRegionIfLoss)
	require.InDelta(t, dicewars.WinProbability(5, 1, 6), sim.WinProbability, 1e-12)

	require.Equal(t, before, w.Board())
	require.Empty(t, w.Intents())

	bad := w.Simulate(c(1, 0), c(2, 0))
	require.False(t, bad.Valid)
	require.Equal(t, string(dicewars.ReasonNotOwner), bad.Reason)
}

func TestDoValidatesArguments(t *testing.T) {
	w := NewWorld(lineSnapshot(), nil, 10, nil)

	tests := []struct {
		name string
		op   Op
	}{
		{"region unknown player", OpRegion{PlayerID: 9}},
		{"reinforcements negative player", OpReinforcements{PlayerID: -1}},
		{"probability zero dice", OpWinProbability{AttackerDice: 0, DefenderDice: 1}},
		{"probability huge dice", OpWinProbability{AttackerDice: 2, DefenderDice: 1000}},
		{"save empty key", OpSave{Key: "", Value: 1}},
		{"save function", OpSave{Key: "f", Value: func() {}}},
		{"save oversized", OpSave{Key: "big", Value: make([]byte, maxStorageBytes)}},
		{"load empty key", OpLoad{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Do(tt.op)
			require.True(t, errors.Is(err, ErrInvalidArgument), "err = %v", err)
		})
	}
	require.Empty(t, w.Storage())
}

func TestDoSaveLoad(t *testing.T) {
	w := NewWorld(lineSnapshot(), map[string]any{"old": "value"}, 10, nil)

	got, err := w.Do(OpLoad{Key: "old"})
	require.NoError(t, err)
	require.Equal(t, "value", got)

	_, err = w.Do(OpSave{Key: "n", Value: map[string]int{"wins": 3}})
	require.NoError(t, err)
	got, err = w.Do(OpLoad{Key: "n"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"wins": float64(3)}, got)

	got, err = w.Do(OpLoad{Key: "missing"})
	require.NoError(t, err)
	require.Nil(t, got)
}
