package dicewars

import (
	"math/rand"
	"testing"
)

func TestGenerateStylesConnected(t *testing.T) {
	sizes := [][2]int{{10, 8}, {14, 10}, {24, 18}, {5, 4}}
	for _, style := range []Style{StyleContinents, StyleCaves, StyleIslands, StyleMaze, StyleTunnels, StyleSwiss} {
		for _, size := range sizes {
			for seed := int64(1); seed <= 8; seed++ {
				rng := rand.New(rand.NewSource(seed))
				b, err := NewGenerator(rng).Generate(GenerateOptions{
					Width: size[0], Height: size[1], Players: 4, MaxDice: 8, Style: style,
				})
				if err != nil {
					t.Fatalf("%s %v seed %d: %v", style, size, seed, err)
				}
				if !IsConnected(b) {
					t.Fatalf("%s %v seed %d: %d components", style, size, seed, len(ConnectedComponents(b)))
				}
				if err := b.CheckInvariants(); err != nil {
					t.Fatalf("%s %v seed %d: %v", style, size, seed, err)
				}
			}
		}
	}
}

func TestGenerateTinyBoards(t *testing.T) {
	for _, style := range AllStyles() {
		for w := 1; w <= 4; w++ {
			for h := 1; h <= 4; h++ {
				for seed := int64(1); seed <= 16; seed++ {
					b, err := NewGenerator(rand.New(rand.NewSource(seed))).Generate(GenerateOptions{
						Width: w, Height: h, Players: 4, MaxDice: 8, Style: style,
					})
					if err != nil {
						t.Fatalf("%s %dx%d seed %d: %v", style, w, h, seed, err)
					}
					if b.PlayableCount() == 0 {
						t.Fatalf("%s %dx%d seed %d: no playable tiles", style, w, h, seed)
					}
					if !IsConnected(b) {
						t.Fatalf("%s %dx%d seed %d: %d components", style, w, h, seed, len(ConnectedComponents(b)))
					}
					if err := b.CheckInvariants(); err != nil {
						t.Fatalf("%s %dx%d seed %d: %v", style, w, h, seed, err)
					}
				}
			}
		}
	}
}

func TestGenerateFullBoard(t *testing.T) {
	b, err := NewGenerator(rand.New(rand.NewSource(1))).Generate(GenerateOptions{
		Width: 6, Height: 5, Players: 3, MaxDice: 8, Style: StyleFull,
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.PlayableCount() != 30 {
		t.Fatalf("full board has %d playable tiles, want 30", b.PlayableCount())
	}
	for p := 0; p < 3; p++ {
		if n := b.TileCount(p); n != 10 {
			t.Fatalf("player %d owns %d tiles, want 10", p, n)
		}
	}
}

func TestGenerateStartingDice(t *testing.T) {
	// 24 tiles over 3 players: 8 tiles each, pool floor(8*2.5)+seat.
	b, err := NewGenerator(rand.New(rand.NewSource(5))).Generate(GenerateOptions{
		Width: 6, Height: 4, Players: 3, MaxDice: 8, Style: StyleFull,
	})
	if err != nil {
		t.Fatal(err)
	}
	for p := 0; p < 3; p++ {
		want := 8 + 20 + p
		if got := b.DiceTotal(p); got != want {
			t.Fatalf("player %d has %d dice, want %d", p, got, want)
		}
	}
}

func TestGenerateStartingDiceCapped(t *testing.T) {
	b, err := NewGenerator(rand.New(rand.NewSource(5))).Generate(GenerateOptions{
		Width: 4, Height: 2, Players: 2, MaxDice: 2, Style: StyleFull,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, tile := range b.Tiles {
		if tile.Dice != 2 {
			t.Fatalf("tile has %d dice, want capped at 2", tile.Dice)
		}
	}
}

func TestGenerateFallbackTinyBoard(t *testing.T) {
	// 3x3 cannot host 8 players with 4 tiles each; generation degrades.
	b, err := NewGenerator(rand.New(rand.NewSource(2))).Generate(GenerateOptions{
		Width: 3, Height: 3, Players: 8, MaxDice: 8, Style: StyleCaves,
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.PlayableCount() == 0 {
		t.Fatal("fallback produced an empty board")
	}
	if !IsConnected(b) {
		t.Fatal("fallback board is not connected")
	}
	if err := b.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateMinimumTiles(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		b, err := NewGenerator(rand.New(rand.NewSource(seed))).Generate(GenerateOptions{
			Width: 8, Height: 6, Players: 6, MaxDice: 8, Style: StyleMaze,
		})
		if err != nil {
			t.Fatal(err)
		}
		if b.PlayableCount() < MinTilesPerPlayer*6 {
			t.Fatalf("seed %d: %d playable tiles", seed, b.PlayableCount())
		}
	}
}

func TestGeneratePresets(t *testing.T) {
	for _, name := range PresetNames() {
		b, err := NewGenerator(rand.New(rand.NewSource(1))).Generate(GenerateOptions{
			Width: 20, Height: 12, Players: 4, MaxDice: 8, Style: StylePreset, Preset: name,
		})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !IsConnected(b) {
			t.Fatalf("preset %s is not connected", name)
		}
		if err := b.CheckInvariants(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	_, err := NewGenerator(rand.New(rand.NewSource(1))).Generate(GenerateOptions{
		Width: 10, Height: 6, Players: 2, Style: StylePreset, Preset: "nope",
	})
	if err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestGenerateInvalidOptions(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(1)))
	if _, err := g.Generate(GenerateOptions{Width: 0, Height: 5, Players: 2}); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := g.Generate(GenerateOptions{Width: 5, Height: 5, Players: 0}); err == nil {
		t.Fatal("expected error for zero players")
	}
	if _, err := g.Generate(GenerateOptions{Width: 5, Height: 5, Players: 2, Style: "spiral"}); err == nil {
		t.Fatal("expected error for unknown style")
	}
}

func TestRepairConnectivity(t *testing.T) {
	b := boardFromRows(t, 8,
		"-.....",
		"......",
		"...--.",
		"......",
		"-----.",
	)
	carved := RepairConnectivity(b, rand.New(rand.NewSource(1)))
	if carved != 2 {
		t.Fatalf("carved %d corridors, want 2", carved)
	}
	if !IsConnected(b) {
		t.Fatal("board still disconnected")
	}
}

func TestParseStyle(t *testing.T) {
	for in, want := range map[string]Style{"": StyleFull, "swiss-cheese": StyleSwiss, "maze": StyleMaze, "Caves": StyleCaves} {
		got, err := ParseStyle(in)
		if err != nil || got != want {
			t.Fatalf("ParseStyle(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseStyle("spiral"); err == nil {
		t.Fatal("expected error")
	}
}
