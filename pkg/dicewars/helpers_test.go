package dicewars

import "testing"

// boardFromRows builds a board from rows of owner digits; '.' is a blocked
// tile and '-' an unowned playable tile. Every playable tile gets one die.
func boardFromRows(t *testing.T, maxDice int, rows ...string) *Board {
	t.Helper()
	b := NewBoard(len(rows[0]), len(rows), maxDice)
	for y, row := range rows {
		if len(row) != b.Width {
			t.Fatalf("row %d has width %d, want %d", y, len(row), b.Width)
		}
		for x, ch := range row {
			idx := b.Index(x, y)
			switch {
			case ch == '.':
			case ch == '-':
				b.Tiles[idx] = Tile{Owner: NoOwner, Dice: 1}
			case ch >= '0' && ch <= '9':
				b.Tiles[idx] = Tile{Owner: int(ch - '0'), Dice: 1}
			default:
				t.Fatalf("bad tile %q at (%d,%d)", ch, x, y)
			}
		}
	}
	return b
}
