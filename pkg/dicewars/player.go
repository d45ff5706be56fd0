package dicewars

// Player is one seat in a match. Players are never removed from the roster;
// elimination only clears Alive.
type Player struct {
	ID         int    `json:"id"`
	IsBot      bool   `json:"is_bot"`
	Color      string `json:"color"`
	Alive      bool   `json:"alive"`
	StoredDice int    `json:"stored_dice"`
	AgentID    string `json:"agent_id,omitempty"`
}

// DefaultColors is the seat colour palette, indexed by player ID.
var DefaultColors = []string{
	"#b37ffe", "#b3ff01", "#009302", "#ff7ffe",
	"#ff7f01", "#b3fffe", "#ffff01", "#ff5858",
}

// NewPlayers creates a roster of n players. The first humans seats are human,
// the rest are bots.
func NewPlayers(n, humans int) []*Player {
	players := make([]*Player, n)
	for i := range players {
		players[i] = &Player{
			ID:    i,
			IsBot: i >= humans,
			Color: DefaultColors[i%len(DefaultColors)],
			Alive: true,
		}
	}
	return players
}

// AliveCount returns how many players are still in the match.
func AliveCount(players []*Player) int {
	n := 0
	for _, p := range players {
		if p.Alive {
			n++
		}
	}
	return n
}
