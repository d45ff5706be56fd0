package dicewars

import (
	"math/rand"
	"testing"
)

func TestDistributeConservesDice(t *testing.T) {
	for seed := int64(1); seed <= 30; seed++ {
		rng := rand.New(rand.NewSource(seed))
		b, err := NewGenerator(rng).Generate(GenerateOptions{Width: 10, Height: 8, Players: 4, MaxDice: 8, Style: StyleContinents})
		if err != nil {
			t.Fatal(err)
		}
		p := &Player{ID: int(seed % 4), Alive: true, StoredDice: int(seed % 7)}
		before := b.DiceTotal(p.ID)
		res := Distribute(b, p, rng)

		if res.Placed+res.Stored != res.Earned+res.FromStore {
			t.Fatalf("seed %d: placed %d + stored %d != earned %d + fromStore %d",
				seed, res.Placed, res.Stored, res.Earned, res.FromStore)
		}
		if got := b.DiceTotal(p.ID) - before; got != res.Placed {
			t.Fatalf("seed %d: board gained %d dice, result says %d", seed, got, res.Placed)
		}
		if p.StoredDice != res.Stored {
			t.Fatalf("seed %d: player stored %d, result %d", seed, p.StoredDice, res.Stored)
		}
		if err := b.CheckInvariants(); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
	}
}

func TestDistributeStoresOverflow(t *testing.T) {
	b := boardFromRows(t, 3, "000", "111")
	for _, idx := range b.TilesOf(0) {
		b.Tiles[idx].Dice = 2
	}
	p := &Player{ID: 0, Alive: true, StoredDice: 4}
	res := Distribute(b, p, rand.New(rand.NewSource(1)))

	// 3 earned + 4 stored = 7; only 3 fit under the cap of 3.
	if res.Earned != 3 || res.FromStore != 4 || res.Placed != 3 || res.Stored != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, idx := range b.TilesOf(0) {
		if b.Tiles[idx].Dice != 3 {
			t.Fatalf("tile %d has %d dice, want 3", idx, b.Tiles[idx].Dice)
		}
	}
	if len(res.Tiles) != 3 {
		t.Fatalf("touched %d tiles, want 3", len(res.Tiles))
	}
	if p.StoredDice != 4 {
		t.Fatalf("player stored %d, want 4", p.StoredDice)
	}
}

func TestDistributeAllCapped(t *testing.T) {
	b := boardFromRows(t, 2, "01")
	b.At(0, 0).Dice = 2
	p := &Player{ID: 0, Alive: true}
	res := Distribute(b, p, rand.New(rand.NewSource(1)))
	if res.Placed != 0 || res.Stored != 1 || len(res.Tiles) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestPredictReinforcement(t *testing.T) {
	b := boardFromRows(t, 8, "00.0", "....")
	p := &Player{ID: 0, StoredDice: 2}
	if got := PredictReinforcement(b, p); got != 4 {
		t.Fatalf("PredictReinforcement = %d, want 4", got)
	}
}
