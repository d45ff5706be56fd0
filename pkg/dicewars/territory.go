package dicewars

// LargestConnectedRegion returns the size of the largest 4-connected group of
// tiles owned by playerID. It returns 0 when the player owns nothing.
func LargestConnectedRegion(b *Board, playerID int) int {
	visited := make([]bool, len(b.Tiles))
	best := 0
	var stack []int
	for start, t := range b.Tiles {
		if visited[start] || t.Blocked || t.Owner != playerID {
			continue
		}
		size := 0
		visited[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			for _, n := range b.Neighbors(cur) {
				nt := b.Tiles[n]
				if visited[n] || nt.Blocked || nt.Owner != playerID {
					continue
				}
				visited[n] = true
				stack = append(stack, n)
			}
		}
		if size > best {
			best = size
		}
	}
	return best
}

// RegionSizes returns the largest connected region for every player in
// [0, players).
func RegionSizes(b *Board, players int) []int {
	out := make([]int, players)
	for p := range out {
		out[p] = LargestConnectedRegion(b, p)
	}
	return out
}

// ConnectedComponents groups the playable tiles of b into 4-connected
// components, ignoring ownership. Components are returned in scan order.
func ConnectedComponents(b *Board) [][]int {
	visited := make([]bool, len(b.Tiles))
	var comps [][]int
	for start, t := range b.Tiles {
		if visited[start] || t.Blocked {
			continue
		}
		visited[start] = true
		comp := []int{start}
		for q := 0; q < len(comp); q++ {
			for _, n := range b.Neighbors(comp[q]) {
				if visited[n] || b.Tiles[n].Blocked {
					continue
				}
				visited[n] = true
				comp = append(comp, n)
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// IsConnected reports whether all playable tiles form a single component.
// A board with no playable tiles is not connected.
func IsConnected(b *Board) bool {
	return len(ConnectedComponents(b)) == 1
}
