package dicewars

import "math/rand"

// RepairConnectivity joins every playable component into the largest one by
// carving L-shaped corridors between the closest tile pairs. It returns the
// number of corridors carved.
func RepairConnectivity(b *Board, rng *rand.Rand) int {
	carved := 0
	for {
		comps := ConnectedComponents(b)
		if len(comps) <= 1 {
			return carved
		}
		largest, smallest := 0, -1
		for i, c := range comps {
			if len(c) > len(comps[largest]) {
				largest = i
			}
		}
		for i, c := range comps {
			if i == largest {
				continue
			}
			if smallest < 0 || len(c) < len(comps[smallest]) {
				smallest = i
			}
		}
		a, c := closestPair(b, comps[smallest], comps[largest])
		ax, ay := b.XY(a)
		cx, cy := b.XY(c)
		carveL(b, ax, ay, cx, cy, rng.Intn(2) == 0)
		carved++
	}
}

// closestPair returns the pair of tiles, one from each set, with the smallest
// Manhattan distance.
func closestPair(b *Board, from, to []int) (int, int) {
	bestA, bestB, bestD := from[0], to[0], -1
	for _, i := range from {
		ix, iy := b.XY(i)
		for _, j := range to {
			jx, jy := b.XY(j)
			d := abs(ix-jx) + abs(iy-jy)
			if bestD < 0 || d < bestD {
				bestA, bestB, bestD = i, j, d
				if d <= 1 {
					return bestA, bestB
				}
			}
		}
	}
	return bestA, bestB
}

// carveL unblocks a Manhattan corridor from (x1,y1) to (x2,y2), walking the
// horizontal leg first when horizontalFirst is set.
func carveL(b *Board, x1, y1, x2, y2 int, horizontalFirst bool) {
	x, y := x1, y1
	b.Unblock(b.Index(x, y))
	stepX := func() {
		for x != x2 {
			x += sign(x2 - x)
			b.Unblock(b.Index(x, y))
		}
	}
	stepY := func() {
		for y != y2 {
			y += sign(y2 - y)
			b.Unblock(b.Index(x, y))
		}
	}
	if horizontalFirst {
		stepX()
		stepY()
	} else {
		stepY()
		stepX()
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
