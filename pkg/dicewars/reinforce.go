package dicewars

import "math/rand"

// ReinforcementResult describes the dice handed out to a player at the end of
// their turn.
type ReinforcementResult struct {
	PlayerID  int     `json:"player_id"`
	Earned    int     `json:"earned"`
	Placed    int     `json:"placed"`
	Stored    int     `json:"stored"`
	FromStore int     `json:"from_store"`
	Tiles     []Coord `json:"tiles"`
}

// Distribute awards the player dice equal to their largest connected region
// plus any previously stored overflow, spreading them one at a time over
// random owned tiles below the board's dice cap. Dice that do not fit are
// stored on the player for the next turn.
func Distribute(b *Board, p *Player, rng *rand.Rand) ReinforcementResult {
	res := ReinforcementResult{
		PlayerID:  p.ID,
		Earned:    LargestConnectedRegion(b, p.ID),
		FromStore: p.StoredDice,
	}
	pool := res.Earned + p.StoredDice

	var eligible []int
	for _, idx := range b.TilesOf(p.ID) {
		if b.Tiles[idx].Dice < b.MaxDice {
			eligible = append(eligible, idx)
		}
	}

	touched := make(map[int]bool)
	for pool > 0 && len(eligible) > 0 {
		k := rng.Intn(len(eligible))
		idx := eligible[k]
		b.Tiles[idx].Dice++
		pool--
		res.Placed++
		if !touched[idx] {
			touched[idx] = true
			res.Tiles = append(res.Tiles, b.CoordOf(idx))
		}
		if b.Tiles[idx].Dice >= b.MaxDice {
			eligible[k] = eligible[len(eligible)-1]
			eligible = eligible[:len(eligible)-1]
		}
	}

	res.Stored = pool
	p.StoredDice = pool
	return res
}

// PredictReinforcement returns the dice the player would receive at the end
// of the current turn, before capping.
func PredictReinforcement(b *Board, p *Player) int {
	return LargestConnectedRegion(b, p.ID) + p.StoredDice
}
