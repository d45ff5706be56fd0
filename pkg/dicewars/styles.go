package dicewars

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// Style selects the procedural algorithm used to shape the board.
type Style string

const (
	StyleFull       Style = "full"
	StyleContinents Style = "continents"
	StyleCaves      Style = "caves"
	StyleIslands    Style = "islands"
	StyleMaze       Style = "maze"
	StyleTunnels    Style = "tunnels"
	StyleSwiss      Style = "swiss"
	StylePreset     Style = "preset"
)

// AllStyles lists every supported style.
func AllStyles() []Style {
	return []Style{StyleFull, StyleContinents, StyleCaves, StyleIslands, StyleMaze, StyleTunnels, StyleSwiss, StylePreset}
}

// ParseStyle converts a style name into a Style. "swiss-cheese" is accepted as
// an alias of "swiss"; an empty name means full.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return StyleFull, nil
	case "swiss", "swiss-cheese", "swisscheese":
		return StyleSwiss, nil
	}
	for _, st := range AllStyles() {
		if string(st) == strings.ToLower(s) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown board style %q", s)
}

// shapeFunc marks tiles of an all-blocked board as playable.
type shapeFunc func(b *Board, rng *rand.Rand)

var shapers = map[Style]shapeFunc{
	StyleFull:       shapeFull,
	StyleContinents: shapeContinents,
	StyleCaves:      shapeCaves,
	StyleIslands:    shapeIslands,
	StyleMaze:       shapeMaze,
	StyleTunnels:    shapeTunnels,
	StyleSwiss:      shapeSwiss,
}

func shapeFull(b *Board, _ *rand.Rand) {
	for i := range b.Tiles {
		b.Unblock(i)
	}
}

// carveCircle unblocks every tile within radius r of (cx, cy). noise scales
// the radius per tile by a random factor in [1-noise, 1+noise].
func carveCircle(b *Board, cx, cy, r, noise float64, rng *rand.Rand) {
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			limit := r
			if noise > 0 {
				limit *= 1 - noise + 2*noise*rng.Float64()
			}
			if dx*dx+dy*dy <= limit*limit {
				b.Unblock(b.Index(x, y))
			}
		}
	}
}

func blockCircle(b *Board, cx, cy, r float64) {
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= r*r {
				b.Block(b.Index(x, y))
			}
		}
	}
}

func shapeContinents(b *Board, rng *rand.Rand) {
	n := 2 + rng.Intn(3)
	short := math.Min(float64(b.Width), float64(b.Height))
	radius := math.Max(1.5, short/float64(n)*0.9)
	minSep := radius * 1.5

	type center struct{ x, y int }
	var centers []center
	for attempt := 0; attempt < 200 && len(centers) < n; attempt++ {
		c := center{rng.Intn(b.Width), rng.Intn(b.Height)}
		ok := true
		for _, o := range centers {
			if math.Hypot(float64(c.x-o.x), float64(c.y-o.y)) < minSep {
				ok = false
				break
			}
		}
		if ok {
			centers = append(centers, c)
		}
	}
	if len(centers) == 0 {
		centers = append(centers, center{b.Width / 2, b.Height / 2})
	}

	for _, c := range centers {
		carveCircle(b, float64(c.x), float64(c.y), radius, 0.3, rng)
	}
	for i := 1; i < len(centers); i++ {
		a, c := centers[i-1], centers[i]
		carveL(b, a.x, a.y, c.x, c.y, rng.Intn(2) == 0)
	}
}

const (
	caveFill   = 0.45
	caveRounds = 4
)

func shapeCaves(b *Board, rng *rand.Rand) {
	blocked := make([]bool, len(b.Tiles))
	for i := range blocked {
		blocked[i] = rng.Float64() < caveFill
	}
	next := make([]bool, len(blocked))
	for round := 0; round < caveRounds; round++ {
		for y := 0; y < b.Height; y++ {
			for x := 0; x < b.Width; x++ {
				walls := 0
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := x+dx, y+dy
						if !b.InBounds(nx, ny) || blocked[b.Index(nx, ny)] {
							walls++
						}
					}
				}
				i := b.Index(x, y)
				switch {
				case walls >= 5:
					next[i] = true
				case walls <= 3:
					next[i] = false
				default:
					next[i] = blocked[i]
				}
			}
		}
		blocked, next = next, blocked
	}
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if x == 0 || y == 0 || x == b.Width-1 || y == b.Height-1 {
				blocked[b.Index(x, y)] = true
			}
		}
	}
	for i, wall := range blocked {
		if !wall {
			b.Unblock(i)
		}
	}
}

func shapeIslands(b *Board, rng *rand.Rand) {
	cx, cy := float64(b.Width-1)/2, float64(b.Height-1)/2
	short := math.Min(float64(b.Width), float64(b.Height))
	mainR := math.Max(1.5, short*0.28)
	carveCircle(b, cx, cy, mainR, 0, rng)
	if lake := mainR * 0.35; lake >= 1 {
		blockCircle(b, cx, cy, lake)
	}

	n := 3 + rng.Intn(5)
	satR := math.Max(1, mainR*0.4)
	dist := mainR + satR + 1.5
	offset := rng.Float64() * 2 * math.Pi
	for k := 0; k < n; k++ {
		angle := offset + 2*math.Pi*float64(k)/float64(n)
		sx := cx + math.Cos(angle)*dist*float64(b.Width)/short
		sy := cy + math.Sin(angle)*dist*float64(b.Height)/short
		sx = math.Max(0, math.Min(float64(b.Width-1), sx))
		sy = math.Max(0, math.Min(float64(b.Height-1), sy))
		carveCircle(b, sx, sy, satR, 0, rng)

		// bridge to the ring of the main island, not its lake
		rx := cx + math.Cos(angle)*mainR*0.75
		ry := cy + math.Sin(angle)*mainR*0.75
		carveL(b, int(math.Round(sx)), int(math.Round(sy)),
			clamp(int(math.Round(rx)), 0, b.Width-1), clamp(int(math.Round(ry)), 0, b.Height-1),
			rng.Intn(2) == 0)
	}
}

const mazeWiden = 0.15

func shapeMaze(b *Board, rng *rand.Rand) {
	cols, rows := (b.Width+1)/2, (b.Height+1)/2
	visited := make([]bool, cols*rows)
	start := rng.Intn(cols * rows)
	stack := []int{start}
	visited[start] = true
	b.Unblock(b.Index((start%cols)*2, (start/cols)*2))

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		cx, cy := cur%cols, cur/cols
		var options []int
		for _, d := range dirs {
			nx, ny := cx+d[0], cy+d[1]
			if nx >= 0 && nx < cols && ny >= 0 && ny < rows && !visited[ny*cols+nx] {
				options = append(options, ny*cols+nx)
			}
		}
		if len(options) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		nxt := options[rng.Intn(len(options))]
		nx, ny := nxt%cols, nxt/cols
		visited[nxt] = true
		b.Unblock(b.Index(cx+nx, cy+ny)) // midpoint of (2cx,2cy) and (2nx,2ny)
		b.Unblock(b.Index(nx*2, ny*2))
		stack = append(stack, nxt)
	}

	var widen []int
	for i, t := range b.Tiles {
		if t.Blocked && rng.Float64() < mazeWiden {
			widen = append(widen, i)
		}
	}
	for _, i := range widen {
		b.Unblock(i)
	}
}

func shapeTunnels(b *Board, rng *rand.Rand) {
	walkers := 3 + rng.Intn(3)
	steps := b.Width * b.Height / 3
	for w := 0; w < walkers; w++ {
		x, y := rng.Intn(b.Width), rng.Intn(b.Height)
		dir := rng.Intn(4)
		turnEvery := 3 + rng.Intn(4)
		for s := 0; s < steps/walkers+1; s++ {
			b.Unblock(b.Index(x, y))
			if s%turnEvery == 0 || rng.Float64() < 0.2 {
				dir = rng.Intn(4)
			}
			nx, ny := x+dirs[dir][0], y+dirs[dir][1]
			if !b.InBounds(nx, ny) {
				dir = (dir + 2) % 4
				nx, ny = x+dirs[dir][0], y+dirs[dir][1]
			}
			if b.InBounds(nx, ny) {
				x, y = nx, ny
			}
		}
	}

	var widen []int
	for i, t := range b.Tiles {
		if t.Blocked {
			continue
		}
		if rng.Float64() < 0.3 {
			nbrs := b.Neighbors(i)
			if len(nbrs) == 0 {
				continue
			}
			widen = append(widen, nbrs[rng.Intn(len(nbrs))])
		}
	}
	for _, i := range widen {
		b.Unblock(i)
	}
}

func shapeSwiss(b *Board, rng *rand.Rand) {
	shapeFull(b, rng)
	target := len(b.Tiles) * (30 + rng.Intn(11)) / 100
	punchHoles(b, rng, target, len(b.Tiles)*4)
}

// punchHoles blocks random playable tiles one at a time, keeping each change
// only if the playable tiles stay connected, until target holes exist or
// attempts run out.
func punchHoles(b *Board, rng *rand.Rand, target, attempts int) {
	holes := len(b.Tiles) - b.PlayableCount()
	for a := 0; a < attempts && holes < target; a++ {
		i := rng.Intn(len(b.Tiles))
		if b.Tiles[i].Blocked {
			continue
		}
		b.Block(i)
		if !IsConnected(b) {
			b.Unblock(i)
			continue
		}
		holes++
	}
}

// presets are hand-drawn layouts; '#' is playable. They are scaled to the
// requested board size with nearest-neighbour sampling.
var presets = map[string][]string{
	"ring": {
		"..######..",
		".########.",
		"###....###",
		"###....###",
		".########.",
		"..######..",
	},
	"cross": {
		"...####...",
		"...####...",
		"##########",
		"##########",
		"...####...",
		"...####...",
	},
	"hourglass": {
		"##########",
		".########.",
		"...####...",
		"...####...",
		".########.",
		"##########",
	},
}

// PresetNames lists the built-in preset layouts.
func PresetNames() []string {
	return []string{"ring", "cross", "hourglass"}
}

func shapePreset(b *Board, name string) error {
	mask, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown preset %q", name)
	}
	mh, mw := len(mask), len(mask[0])
	for y := 0; y < b.Height; y++ {
		my := y * mh / b.Height
		for x := 0; x < b.Width; x++ {
			mx := x * mw / b.Width
			if mask[my][mx] == '#' {
				b.Unblock(b.Index(x, y))
			}
		}
	}
	return nil
}
