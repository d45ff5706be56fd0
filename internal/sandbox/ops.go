package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/freeeve/dicewars/pkg/dicewars"
)

// ErrInvalidArgument is returned when an operation's arguments are rejected
// before it runs.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	maxKeyLength       = 256
	maxStorageBytes    = 64 << 10
	maxProbabilityDice = 64
)

// Op is one operation of the agent API. The set of operations is closed:
// only the types in this file implement it.
type Op interface {
	Name() string
	validate(w *World) error
	apply(w *World) any
}

type (
	// OpMyTiles lists the calling player's tiles.
	OpMyTiles struct{}
	// OpEnemyTiles lists playable tiles owned by anyone else, including unowned ones.
	OpEnemyTiles struct{}
	// OpAllTiles lists every playable tile.
	OpAllTiles struct{}
	// OpAdjacent lists the playable neighbours of a tile.
	OpAdjacent struct{ X, Y int }
	// OpTileAt looks up a single tile.
	OpTileAt struct{ X, Y int }
	// OpRegion reports a player's largest connected region.
	OpRegion struct{ PlayerID int }
	// OpReinforcements predicts a player's end-of-turn reinforcement.
	OpReinforcements struct{ PlayerID int }
	// OpSimulate predicts an attack without changing anything.
	OpSimulate struct{ From, To dicewars.Coord }
	// OpWinProbability computes the chance that an attack succeeds.
	OpWinProbability struct{ AttackerDice, DefenderDice int }
	// OpAttack queues an attack intent.
	OpAttack struct{ From, To dicewars.Coord }
	// OpEndTurn queues the end of the turn.
	OpEndTurn struct{}
	// OpSave stores a value in the agent's persistent storage.
	OpSave struct {
		Key   string
		Value any
	}
	// OpLoad reads a value from the agent's persistent storage.
	OpLoad struct{ Key string }
)

func (OpMyTiles) Name() string        { return "myTiles" }
func (OpEnemyTiles) Name() string     { return "enemyTiles" }
func (OpAllTiles) Name() string       { return "allTiles" }
func (OpAdjacent) Name() string       { return "adjacentTiles" }
func (OpTileAt) Name() string         { return "tileAt" }
func (OpRegion) Name() string         { return "largestConnectedRegion" }
func (OpReinforcements) Name() string { return "reinforcementsFor" }
func (OpSimulate) Name() string       { return "simulateAttack" }
func (OpWinProbability) Name() string { return "winProbability" }
func (OpAttack) Name() string         { return "attack" }
func (OpEndTurn) Name() string        { return "endTurn" }
func (OpSave) Name() string           { return "save" }
func (OpLoad) Name() string           { return "load" }

func invalid(op Op, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", op.Name(), ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func (OpMyTiles) validate(*World) error    { return nil }
func (OpEnemyTiles) validate(*World) error { return nil }
func (OpAllTiles) validate(*World) error   { return nil }
func (OpAdjacent) validate(*World) error   { return nil }
func (OpTileAt) validate(*World) error     { return nil }
func (OpSimulate) validate(*World) error   { return nil }
func (OpAttack) validate(*World) error     { return nil }
func (OpEndTurn) validate(*World) error    { return nil }

func (o OpRegion) validate(w *World) error {
	if o.PlayerID < 0 || o.PlayerID >= len(w.snap.Players) {
		return invalid(o, "unknown player %d", o.PlayerID)
	}
	return nil
}

func (o OpReinforcements) validate(w *World) error {
	if o.PlayerID < 0 || o.PlayerID >= len(w.snap.Players) {
		return invalid(o, "unknown player %d", o.PlayerID)
	}
	return nil
}

func (o OpWinProbability) validate(*World) error {
	if o.AttackerDice < 1 || o.AttackerDice > maxProbabilityDice {
		return invalid(o, "attacker dice %d out of range", o.AttackerDice)
	}
	if o.DefenderDice < 1 || o.DefenderDice > maxProbabilityDice {
		return invalid(o, "defender dice %d out of range", o.DefenderDice)
	}
	return nil
}

func validKey(op Op, key string) error {
	if key == "" || len(key) > maxKeyLength {
		return invalid(op, "key must be 1-%d bytes", maxKeyLength)
	}
	return nil
}

func (o OpSave) validate(w *World) error {
	if err := validKey(o, o.Key); err != nil {
		return err
	}
	data, err := json.Marshal(o.Value)
	if err != nil {
		return invalid(o, "value for %q is not serialisable", o.Key)
	}
	if w.storageSize(o.Key)+len(o.Key)+len(data) > maxStorageBytes {
		return invalid(o, "storage limit of %d bytes exceeded", maxStorageBytes)
	}
	return nil
}

func (o OpLoad) validate(*World) error { return validKey(o, o.Key) }

func (OpMyTiles) apply(w *World) any    { return w.MyTiles() }
func (OpEnemyTiles) apply(w *World) any { return w.EnemyTiles() }
func (OpAllTiles) apply(w *World) any   { return w.AllTiles() }
func (o OpAdjacent) apply(w *World) any { return w.AdjacentTiles(o.X, o.Y) }

func (o OpTileAt) apply(w *World) any {
	t, ok := w.TileAt(o.X, o.Y)
	if !ok {
		return nil
	}
	return t
}

func (o OpRegion) apply(w *World) any         { return w.Region(o.PlayerID) }
func (o OpReinforcements) apply(w *World) any { return w.Reinforcements(o.PlayerID) }
func (o OpSimulate) apply(w *World) any       { return w.Simulate(o.From, o.To) }
func (o OpWinProbability) apply(w *World) any {
	return dicewars.WinProbability(o.AttackerDice, o.DefenderDice, w.snap.DiceSides)
}
func (o OpAttack) apply(w *World) any { return w.Attack(o.From, o.To) }
func (OpEndTurn) apply(w *World) any  { w.EndTurn(); return nil }
func (o OpSave) apply(w *World) any   { w.save(o.Key, o.Value); return nil }
func (o OpLoad) apply(w *World) any   { return w.load(o.Key) }
