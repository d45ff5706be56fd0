package dicewars

import (
	"fmt"
	"math/rand"
)

// MinTilesPerPlayer is the smallest number of playable tiles per player a
// generated board must offer before the fallback generator takes over.
const MinTilesPerPlayer = 4

const (
	fallbackAttempts  = 5
	startingDiceRatio = 2.5
)

// GenerateOptions configures board generation.
type GenerateOptions struct {
	Width   int
	Height  int
	Players int
	MaxDice int
	Style   Style
	Preset  string // preset layout name, used with StylePreset
}

// Generator builds starting boards.
type Generator struct {
	Rand *rand.Rand
}

// NewGenerator returns a generator drawing from rng.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{Rand: rng}
}

// Generate builds a board of the requested style, repairs its connectivity,
// and hands out starting tiles and dice. Generation never fails for valid
// dimensions: if the style yields too few playable tiles, a simple random
// holes layout is used instead.
func (g *Generator) Generate(opts GenerateOptions) (*Board, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid board size %dx%d", opts.Width, opts.Height)
	}
	if opts.Players <= 0 {
		return nil, fmt.Errorf("need at least one player, got %d", opts.Players)
	}
	if opts.MaxDice <= 0 {
		opts.MaxDice = 8
	}
	if opts.Style == "" {
		opts.Style = StyleFull
	}

	b, err := g.Shape(opts)
	if err != nil {
		return nil, err
	}
	g.Assign(b, opts.Players)
	return b, nil
}

// Shape builds the playable layout without assigning any owners.
func (g *Generator) Shape(opts GenerateOptions) (*Board, error) {
	b := NewBoard(opts.Width, opts.Height, opts.MaxDice)
	switch opts.Style {
	case StyleFull:
		shapeFull(b, g.Rand)
		return b, nil
	case StylePreset:
		name := opts.Preset
		if name == "" {
			name = PresetNames()[g.Rand.Intn(len(PresetNames()))]
		}
		if err := shapePreset(b, name); err != nil {
			return nil, err
		}
		// downscaled masks can split apart
		RepairConnectivity(b, g.Rand)
	default:
		shape, ok := shapers[opts.Style]
		if !ok {
			return nil, fmt.Errorf("unknown board style %q", opts.Style)
		}
		shape(b, g.Rand)
		RepairConnectivity(b, g.Rand)
	}

	minTiles := MinTilesPerPlayer * opts.Players
	if b.PlayableCount() >= minTiles {
		return b, nil
	}
	for attempt := 0; attempt < fallbackAttempts; attempt++ {
		b = g.simpleHoles(opts.Width, opts.Height, opts.MaxDice)
		if b.PlayableCount() >= minTiles {
			break
		}
	}
	// Too small even for the fallback: play on whatever we have.
	return b, nil
}

// simpleHoles opens the whole grid and punches a modest number of holes while
// keeping it connected.
func (g *Generator) simpleHoles(w, h, maxDice int) *Board {
	b := NewBoard(w, h, maxDice)
	shapeFull(b, g.Rand)
	target := len(b.Tiles) * (10 + g.Rand.Intn(16)) / 100
	punchHoles(b, g.Rand, target, len(b.Tiles)*2)
	return b
}

// Assign deals playable tiles round-robin in random order, one die each, then
// spreads each player's starting pool over their tiles. Later seats get one
// extra die per seat index.
func (g *Generator) Assign(b *Board, players int) {
	playable := b.Playable()
	g.Rand.Shuffle(len(playable), func(i, j int) {
		playable[i], playable[j] = playable[j], playable[i]
	})
	for k, idx := range playable {
		b.Tiles[idx].Owner = k % players
		b.Tiles[idx].Dice = 1
	}

	tilesPerPlayer := float64(len(playable)) / float64(players)
	for p := 0; p < players; p++ {
		pool := int(tilesPerPlayer*startingDiceRatio) + p
		g.spreadDice(b, p, pool)
	}
}

// spreadDice adds pool dice one at a time to random tiles of owner that are
// below the cap.
func (g *Generator) spreadDice(b *Board, owner, pool int) {
	var eligible []int
	for _, idx := range b.TilesOf(owner) {
		if b.Tiles[idx].Dice < b.MaxDice {
			eligible = append(eligible, idx)
		}
	}
	for pool > 0 && len(eligible) > 0 {
		k := g.Rand.Intn(len(eligible))
		idx := eligible[k]
		b.Tiles[idx].Dice++
		pool--
		if b.Tiles[idx].Dice >= b.MaxDice {
			eligible[k] = eligible[len(eligible)-1]
			eligible = eligible[:len(eligible)-1]
		}
	}
}
