// Package dicewars implements the rules of a turn-based territory conquest
// game played on a rectangular grid: board generation, territory analysis,
// dice combat, and end-of-turn reinforcement.
package dicewars

import "fmt"

// NoOwner marks a tile that belongs to no player.
const NoOwner = -1

// Tile is one grid cell. A blocked tile is a hole in the map and never has an
// owner or dice.
type Tile struct {
	Owner   int  `json:"owner"`
	Dice    int  `json:"dice"`
	Blocked bool `json:"blocked,omitempty"`
}

// Coord is a board position. (0,0) is the top-left tile.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Board is the grid of tiles for one match. Tiles are stored row-major.
type Board struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	MaxDice int    `json:"max_dice"`
	Tiles   []Tile `json:"tiles"`
}

// NewBoard returns a board with every tile blocked.
func NewBoard(width, height, maxDice int) *Board {
	b := &Board{
		Width:   width,
		Height:  height,
		MaxDice: maxDice,
		Tiles:   make([]Tile, width*height),
	}
	for i := range b.Tiles {
		b.Tiles[i] = Tile{Owner: NoOwner, Blocked: true}
	}
	return b
}

func (b *Board) Index(x, y int) int { return y*b.Width + x }

func (b *Board) XY(idx int) (int, int) { return idx % b.Width, idx / b.Width }

func (b *Board) CoordOf(idx int) Coord {
	x, y := b.XY(idx)
	return Coord{X: x, Y: y}
}

// InBounds reports whether (x, y) lies on the board.
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.Width && y >= 0 && y < b.Height
}

// At returns a pointer to the tile at (x, y), or nil when out of bounds.
func (b *Board) At(x, y int) *Tile {
	if !b.InBounds(x, y) {
		return nil
	}
	return &b.Tiles[b.Index(x, y)]
}

var dirs = [4][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// Neighbors returns the indices of the up to four orthogonal neighbours of idx.
func (b *Board) Neighbors(idx int) []int {
	x, y := b.XY(idx)
	out := make([]int, 0, 4)
	for _, d := range dirs {
		nx, ny := x+d[0], y+d[1]
		if b.InBounds(nx, ny) {
			out = append(out, b.Index(nx, ny))
		}
	}
	return out
}

// Adjacent reports whether two coordinates are 4-adjacent.
func Adjacent(a, c Coord) bool {
	dx, dy := a.X-c.X, a.Y-c.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx+dy == 1
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	cp := *b
	cp.Tiles = make([]Tile, len(b.Tiles))
	copy(cp.Tiles, b.Tiles)
	return &cp
}

// Block turns the tile at idx into a hole.
func (b *Board) Block(idx int) {
	b.Tiles[idx] = Tile{Owner: NoOwner, Blocked: true}
}

// Unblock makes the tile at idx playable and unowned.
func (b *Board) Unblock(idx int) {
	if b.Tiles[idx].Blocked {
		b.Tiles[idx] = Tile{Owner: NoOwner}
	}
}

// Playable returns the indices of all unblocked tiles.
func (b *Board) Playable() []int {
	var out []int
	for i, t := range b.Tiles {
		if !t.Blocked {
			out = append(out, i)
		}
	}
	return out
}

// PlayableCount returns the number of unblocked tiles.
func (b *Board) PlayableCount() int {
	n := 0
	for _, t := range b.Tiles {
		if !t.Blocked {
			n++
		}
	}
	return n
}

// TilesOf returns the indices of tiles owned by the given player.
func (b *Board) TilesOf(owner int) []int {
	var out []int
	for i, t := range b.Tiles {
		if !t.Blocked && t.Owner == owner {
			out = append(out, i)
		}
	}
	return out
}

// TileCount returns how many tiles the given player owns.
func (b *Board) TileCount(owner int) int {
	n := 0
	for _, t := range b.Tiles {
		if !t.Blocked && t.Owner == owner {
			n++
		}
	}
	return n
}

// DiceTotal returns the total dice on all tiles owned by the given player.
func (b *Board) DiceTotal(owner int) int {
	n := 0
	for _, t := range b.Tiles {
		if !t.Blocked && t.Owner == owner {
			n += t.Dice
		}
	}
	return n
}

// CheckInvariants verifies the tile invariants that must hold for any board
// in play: blocked tiles are empty, playable tiles carry between 1 and
// MaxDice dice.
func (b *Board) CheckInvariants() error {
	if len(b.Tiles) != b.Width*b.Height {
		return fmt.Errorf("board has %d tiles, want %d", len(b.Tiles), b.Width*b.Height)
	}
	for i, t := range b.Tiles {
		c := b.CoordOf(i)
		if t.Blocked {
			if t.Owner != NoOwner || t.Dice != 0 {
				return fmt.Errorf("blocked tile %s has owner %d and %d dice", c, t.Owner, t.Dice)
			}
			continue
		}
		if t.Dice < 1 {
			return fmt.Errorf("playable tile %s has %d dice", c, t.Dice)
		}
		if b.MaxDice > 0 && t.Dice > b.MaxDice {
			return fmt.Errorf("tile %s has %d dice, cap is %d", c, t.Dice, b.MaxDice)
		}
	}
	return nil
}
