package dicewars

import (
	"fmt"
	"math/rand"
)

// Mode is a post-generation rule variant applied to the starting dice.
type Mode string

const (
	ModeClassic  Mode = "classic"
	ModeMadness  Mode = "madness"
	ModeTwoOfTwo Mode = "2of2"
	ModeFair     Mode = "fair"
)

// ParseMode converts a mode name into a Mode; empty means classic.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeClassic:
		return ModeClassic, nil
	case ModeMadness, ModeTwoOfTwo, ModeFair:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown game mode %q", s)
}

// ApplyMode rewrites the starting dice of b for the given mode.
func ApplyMode(b *Board, mode Mode, players int, rng *rand.Rand) error {
	switch mode {
	case "", ModeClassic:
	case ModeMadness:
		setAllDice(b, b.MaxDice)
	case ModeTwoOfTwo:
		setAllDice(b, min(2, b.MaxDice))
	case ModeFair:
		equalizeDice(b, players, rng)
	default:
		return fmt.Errorf("unknown game mode %q", mode)
	}
	return nil
}

func setAllDice(b *Board, n int) {
	for i := range b.Tiles {
		if !b.Tiles[i].Blocked {
			b.Tiles[i].Dice = n
		}
	}
}

// equalizeDice removes dice from random multi-dice tiles of every player above
// the minimum total until all players hold the same number of dice. Players
// without tiles are ignored.
func equalizeDice(b *Board, players int, rng *rand.Rand) {
	target := -1
	for p := 0; p < players; p++ {
		if b.TileCount(p) == 0 {
			continue
		}
		if t := b.DiceTotal(p); target < 0 || t < target {
			target = t
		}
	}
	if target < 0 {
		return
	}
	for p := 0; p < players; p++ {
		excess := b.DiceTotal(p) - target
		var stacks []int
		for _, idx := range b.TilesOf(p) {
			if b.Tiles[idx].Dice > 1 {
				stacks = append(stacks, idx)
			}
		}
		for excess > 0 && len(stacks) > 0 {
			k := rng.Intn(len(stacks))
			idx := stacks[k]
			b.Tiles[idx].Dice--
			excess--
			if b.Tiles[idx].Dice <= 1 {
				stacks[k] = stacks[len(stacks)-1]
				stacks = stacks[:len(stacks)-1]
			}
		}
	}
}
