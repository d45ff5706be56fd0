package sandbox

import (
	"encoding/json"
	"errors"

	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// Attack rejections that come from the sandbox rather than the combat rules.
const (
	ReasonMoveLimit = "move_limit"
	ReasonTurnEnded = "turn_ended"
)

// TileInfo is the agent-facing view of a playable tile.
type TileInfo struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Owner int `json:"owner"`
	Dice  int `json:"dice"`
}

// AttackReply answers an attack call. Success means the intent was queued,
// not that the battle was won.
type AttackReply struct {
	Success     bool    `json:"success"`
	ExpectedWin bool    `json:"expectedWin"`
	Probability float64 `json:"probability"`
	Reason      string  `json:"reason,omitempty"`
}

// SimulateReply describes a what-if attack.
type SimulateReply struct {
	Valid                bool    `json:"valid"`
	Reason               string  `json:"reason,omitempty"`
	WinProbability       float64 `json:"winProbability"`
	ExpectedWin          bool    `json:"expectedWin"`
	RegionIfWin          int     `json:"regionIfWin"`
	RegionIfLoss         int     `json:"regionIfLoss"`
	DefenderRegionIfWin  int     `json:"defenderRegionIfWin"`
	DefenderRegionIfLoss int     `json:"defenderRegionIfLoss"`
}

// World is the agent's private copy of the match. Attacks are queued as
// intents and applied to the copy optimistically: a battle the attacker is
// more likely than not to win is shown as won.
type World struct {
	snap     Snapshot
	board    *dicewars.Board
	storage  map[string]any
	maxMoves int
	moves    int
	ended    bool
	intents  []match.Intent
	onIntent func(match.Intent)
}

// NewWorld builds a world from a snapshot. onIntent, if set, is called for
// every queued intent as soon as it is accepted.
func NewWorld(snap Snapshot, storage map[string]any, maxMoves int, onIntent func(match.Intent)) *World {
	if storage == nil {
		storage = make(map[string]any)
	}
	if snap.DiceSides <= 0 {
		snap.DiceSides = dicewars.DefaultDiceSides
	}
	b := snap.Board
	return &World{
		snap:     snap,
		board:    b.Clone(),
		storage:  storage,
		maxMoves: maxMoves,
		onIntent: onIntent,
	}
}

// Do validates and runs one operation.
func (w *World) Do(op Op) (any, error) {
	if err := op.validate(w); err != nil {
		return nil, err
	}
	return op.apply(w), nil
}

// Snapshot returns the snapshot the world was built from.
func (w *World) Snapshot() Snapshot { return w.snap }

// Board returns the world's local board.
func (w *World) Board() *dicewars.Board { return w.board }

// Intents returns the intents queued so far.
func (w *World) Intents() []match.Intent { return w.intents }

// Moves returns how many attacks have been queued.
func (w *World) Moves() int { return w.moves }

// Storage returns the agent's persistent storage.
func (w *World) Storage() map[string]any { return w.storage }

func (w *World) info(idx int) TileInfo {
	x, y := w.board.XY(idx)
	t := w.board.Tiles[idx]
	return TileInfo{X: x, Y: y, Owner: t.Owner, Dice: t.Dice}
}

func (w *World) collect(keep func(dicewars.Tile) bool) []TileInfo {
	out := []TileInfo{}
	for i, t := range w.board.Tiles {
		if !t.Blocked && keep(t) {
			out = append(out, w.info(i))
		}
	}
	return out
}

func (w *World) MyTiles() []TileInfo {
	me := w.snap.PlayerID
	return w.collect(func(t dicewars.Tile) bool { return t.Owner == me })
}

func (w *World) EnemyTiles() []TileInfo {
	me := w.snap.PlayerID
	return w.collect(func(t dicewars.Tile) bool { return t.Owner != me })
}

func (w *World) AllTiles() []TileInfo {
	return w.collect(func(dicewars.Tile) bool { return true })
}

// AdjacentTiles returns the playable 4-neighbours of (x, y).
func (w *World) AdjacentTiles(x, y int) []TileInfo {
	out := []TileInfo{}
	if !w.board.InBounds(x, y) {
		return out
	}
	for _, n := range w.board.Neighbors(w.board.Index(x, y)) {
		if !w.board.Tiles[n].Blocked {
			out = append(out, w.info(n))
		}
	}
	return out
}

// TileAt returns the playable tile at (x, y).
func (w *World) TileAt(x, y int) (TileInfo, bool) {
	if !w.board.InBounds(x, y) || w.board.At(x, y).Blocked {
		return TileInfo{}, false
	}
	return w.info(w.board.Index(x, y)), true
}

func (w *World) Region(playerID int) int {
	return dicewars.LargestConnectedRegion(w.board, playerID)
}

func (w *World) Reinforcements(playerID int) int {
	p := w.snap.Players[playerID]
	return dicewars.PredictReinforcement(w.board, &p)
}

// Simulate predicts both outcomes of an attack on the local board.
func (w *World) Simulate(from, to dicewars.Coord) SimulateReply {
	me := w.snap.PlayerID
	if err := dicewars.ValidateAttack(w.board, me, from, to); err != nil {
		return SimulateReply{Reason: reasonOf(err)}
	}
	src, dst := w.board.At(from.X, from.Y), w.board.At(to.X, to.Y)
	p := dicewars.WinProbability(src.Dice, dst.Dice, w.snap.DiceSides)
	reply := SimulateReply{Valid: true, WinProbability: p, ExpectedWin: p > 0.5}

	win := w.board.Clone()
	win.At(to.X, to.Y).Owner = me
	win.At(to.X, to.Y).Dice = src.Dice - 1
	win.At(from.X, from.Y).Dice = 1
	reply.RegionIfWin = dicewars.LargestConnectedRegion(win, me)

	reply.RegionIfLoss = dicewars.LargestConnectedRegion(w.board, me)
	if dst.Owner != dicewars.NoOwner {
		reply.DefenderRegionIfWin = dicewars.LargestConnectedRegion(win, dst.Owner)
		reply.DefenderRegionIfLoss = dicewars.LargestConnectedRegion(w.board, dst.Owner)
	}
	return reply
}

// Attack queues an attack and applies its expected outcome locally.
func (w *World) Attack(from, to dicewars.Coord) AttackReply {
	if w.ended {
		return AttackReply{Reason: ReasonTurnEnded}
	}
	if w.maxMoves > 0 && w.moves >= w.maxMoves {
		return AttackReply{Reason: ReasonMoveLimit}
	}
	me := w.snap.PlayerID
	if err := dicewars.ValidateAttack(w.board, me, from, to); err != nil {
		return AttackReply{Reason: reasonOf(err)}
	}
	src, dst := w.board.At(from.X, from.Y), w.board.At(to.X, to.Y)
	p := dicewars.WinProbability(src.Dice, dst.Dice, w.snap.DiceSides)
	expectWin := p > 0.5
	if expectWin {
		dst.Owner = me
		dst.Dice = src.Dice - 1
	}
	src.Dice = 1

	w.moves++
	w.queue(match.Intent{Kind: match.IntentAttack, From: from, To: to})
	return AttackReply{Success: true, ExpectedWin: expectWin, Probability: p}
}

// EndTurn queues the end of the turn. Later attacks are rejected.
func (w *World) EndTurn() {
	if w.ended {
		return
	}
	w.ended = true
	w.queue(match.Intent{Kind: match.IntentEndTurn})
}

func (w *World) queue(in match.Intent) {
	w.intents = append(w.intents, in)
	if w.onIntent != nil {
		w.onIntent(in)
	}
}

func (w *World) save(key string, value any) {
	// Store the JSON form so values read back are plain data.
	data, _ := json.Marshal(value)
	var v any
	json.Unmarshal(data, &v)
	w.storage[key] = v
}

func (w *World) load(key string) any { return w.storage[key] }

// storageSize is the encoded size of the storage without key.
func (w *World) storageSize(without string) int {
	n := 0
	for k, v := range w.storage {
		if k == without {
			continue
		}
		data, _ := json.Marshal(v)
		n += len(k) + len(data)
	}
	return n
}

func reasonOf(err error) string {
	var ae *dicewars.AttackError
	if errors.As(err, &ae) {
		return string(ae.Reason)
	}
	return err.Error()
}
