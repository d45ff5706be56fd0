package dicewars

import (
	"math/rand"
	"strings"
	"testing"
)

func TestParseLevelConfigYAML(t *testing.T) {
	lvl, err := ParseLevel([]byte(`
type: config
size: small
style: swiss-cheese
mode: fair
bots: 3
difficulty: hard
`))
	if err != nil {
		t.Fatal(err)
	}
	if lvl.Width != 10 || lvl.Height != 8 {
		t.Fatalf("size = %dx%d, want 10x8", lvl.Width, lvl.Height)
	}
	if lvl.MaxDice != DefaultMaxDice || lvl.DiceSides != DefaultDiceSides {
		t.Fatalf("defaults not applied: %+v", lvl)
	}

	setup, err := BuildLevel(lvl, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if len(setup.Players) != 4 {
		t.Fatalf("got %d players, want 4", len(setup.Players))
	}
	if setup.Players[0].IsBot || !setup.Players[1].IsBot {
		t.Fatal("seat 0 should be human, the rest bots")
	}
	if setup.Players[1].AgentID != "builtin:hard" {
		t.Fatalf("bot agent = %q", setup.Players[1].AgentID)
	}
	if setup.Mode != ModeFair {
		t.Fatalf("mode = %q", setup.Mode)
	}
	if !IsConnected(setup.Board) {
		t.Fatal("generated board is not connected")
	}
}

func TestParseLevelScenarioJSON(t *testing.T) {
	lvl, err := ParseLevel([]byte(`{
		"type": "scenario",
		"width": 3, "height": 2,
		"maxDice": 6,
		"players": [{"id": 0}, {"id": 1, "isBot": true, "agent": "a-1", "storedDice": 2}],
		"tiles": [
			{"x": 0, "y": 0, "owner": 0, "dice": 5},
			{"x": 1, "y": 0, "owner": 1, "dice": 99},
			{"x": 2, "y": 0, "owner": 1}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	setup, err := BuildLevel(lvl, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	b := setup.Board
	if got := *b.At(0, 0); got != (Tile{Owner: 0, Dice: 5}) {
		t.Fatalf("tile (0,0) = %+v", got)
	}
	if got := b.At(1, 0).Dice; got != 6 {
		t.Fatalf("dice not clamped: %d", got)
	}
	if got := b.At(2, 0).Dice; got != 1 {
		t.Fatalf("missing dice should default to 1, got %d", got)
	}
	if !b.At(0, 1).Blocked {
		t.Fatal("unlisted tile should be blocked")
	}
	p := setup.Players[1]
	if !p.IsBot || p.AgentID != "a-1" || p.StoredDice != 2 {
		t.Fatalf("player 1 = %+v", *p)
	}
	if err := b.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestParseLevelMapAssignsOwners(t *testing.T) {
	lvl, err := ParseLevel([]byte(`
type: map
width: 4
height: 2
players: [{id: 0}, {id: 1}]
tiles:
  - {x: 0, y: 0}
  - {x: 1, y: 0}
  - {x: 2, y: 0}
  - {x: 3, y: 0}
`))
	if err != nil {
		t.Fatal(err)
	}
	setup, err := BuildLevel(lvl, rand.New(rand.NewSource(4)))
	if err != nil {
		t.Fatal(err)
	}
	if setup.Board.TileCount(0) != 2 || setup.Board.TileCount(1) != 2 {
		t.Fatalf("tiles not dealt evenly: %d / %d", setup.Board.TileCount(0), setup.Board.TileCount(1))
	}
}

func TestParseLevelRejects(t *testing.T) {
	tests := map[string]string{
		"bad type":         `{"type": "campaign"}`,
		"scenario no size": `{"type": "scenario", "tiles": []}`,
		"unknown style":    `{"type": "config", "style": "spiral"}`,
		"bad mode":         `{"type": "config", "mode": "chaos"}`,
		"too many bots":    `{"type": "config", "bots": 12}`,
		"not yaml":         "type: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseLevel([]byte(doc)); err == nil {
				t.Fatalf("expected error for %s", strings.TrimSpace(doc))
			}
		})
	}
}

func TestBuildLevelTileOutOfBounds(t *testing.T) {
	lvl := &Level{Type: LevelScenario, Width: 2, Height: 2, MaxDice: 8, DiceSides: 6,
		Tiles: []LevelTile{{X: 5, Y: 0}}}
	if _, err := BuildLevel(lvl, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected error for out-of-bounds tile")
	}
}

func TestBuildLevelSingleTileTunnels(t *testing.T) {
	lvl, err := ParseLevel([]byte(`{"type":"config","width":1,"height":1,"style":"tunnels","bots":1}`))
	if err != nil {
		t.Fatal(err)
	}
	for seed := int64(1); seed <= 32; seed++ {
		setup, err := BuildLevel(lvl, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if setup.Board.PlayableCount() != 1 {
			t.Fatalf("seed %d: %d playable tiles, want 1", seed, setup.Board.PlayableCount())
		}
		alive := 0
		for _, p := range setup.Players {
			if p.Alive {
				alive++
			}
		}
		if alive != 1 {
			t.Fatalf("seed %d: %d players alive, want 1", seed, alive)
		}
	}
}
