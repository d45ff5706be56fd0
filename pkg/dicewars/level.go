package dicewars

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// LevelType distinguishes procedurally generated levels from fixed layouts.
type LevelType string

const (
	LevelConfig   LevelType = "config"   // generate the board from settings
	LevelScenario LevelType = "scenario" // explicit tiles, owners, and dice
	LevelMap      LevelType = "map"      // explicit tiles, random owners and dice
)

// Level is a level or scenario description, as produced by the editor.
type Level struct {
	Type       LevelType     `json:"type" yaml:"type"`
	Name       string        `json:"name,omitempty" yaml:"name,omitempty"`
	Size       string        `json:"size,omitempty" yaml:"size,omitempty"`
	Width      int           `json:"width,omitempty" yaml:"width,omitempty"`
	Height     int           `json:"height,omitempty" yaml:"height,omitempty"`
	Style      string        `json:"style,omitempty" yaml:"style,omitempty"`
	Preset     string        `json:"preset,omitempty" yaml:"preset,omitempty"`
	Mode       string        `json:"mode,omitempty" yaml:"mode,omitempty"`
	Bots       int           `json:"bots,omitempty" yaml:"bots,omitempty"`
	Humans     *int          `json:"humans,omitempty" yaml:"humans,omitempty"`
	Difficulty string        `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	MaxDice    int           `json:"maxDice,omitempty" yaml:"maxDice,omitempty"`
	DiceSides  int           `json:"diceSides,omitempty" yaml:"diceSides,omitempty"`
	Players    []LevelPlayer `json:"players,omitempty" yaml:"players,omitempty"`
	Tiles      []LevelTile   `json:"tiles,omitempty" yaml:"tiles,omitempty"`
}

// LevelPlayer is the starting metadata for one seat in a scenario.
type LevelPlayer struct {
	ID         int    `json:"id" yaml:"id"`
	IsBot      bool   `json:"isBot,omitempty" yaml:"isBot,omitempty"`
	Color      string `json:"color,omitempty" yaml:"color,omitempty"`
	StoredDice int    `json:"storedDice,omitempty" yaml:"storedDice,omitempty"`
	Agent      string `json:"agent,omitempty" yaml:"agent,omitempty"`
}

// LevelTile is one playable tile of a scenario or map.
type LevelTile struct {
	X     int  `json:"x" yaml:"x"`
	Y     int  `json:"y" yaml:"y"`
	Owner *int `json:"owner,omitempty" yaml:"owner,omitempty"`
	Dice  *int `json:"dice,omitempty" yaml:"dice,omitempty"`
}

const (
	DefaultMaxDice   = 8
	DefaultDiceSides = 6
	defaultBots      = 3
	defaultHumans    = 1
)

var boardSizes = map[string][2]int{
	"small":  {10, 8},
	"medium": {14, 10},
	"large":  {18, 14},
	"huge":   {24, 18},
}

//go:embed level.schema.json
var levelSchemaJSON string

var (
	levelSchemaOnce sync.Once
	levelSchema     *jsonschema.Schema
	levelSchemaErr  error
)

func compiledLevelSchema() (*jsonschema.Schema, error) {
	levelSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("level.schema.json", strings.NewReader(levelSchemaJSON)); err != nil {
			levelSchemaErr = err
			return
		}
		levelSchema, levelSchemaErr = c.Compile("level.schema.json")
	})
	return levelSchema, levelSchemaErr
}

// ParseLevel decodes a level from YAML or JSON, validates it against the level
// schema, and fills in defaults.
func ParseLevel(data []byte) (*Level, error) {
	normalized := data
	if !json.Valid(data) {
		// Round-trip YAML through JSON so both validate identically.
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode level: %w", err)
		}
		var err error
		if normalized, err = json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("normalize level: %w", err)
		}
	}
	var doc any
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("normalize level: %w", err)
	}

	schema, err := compiledLevelSchema()
	if err != nil {
		return nil, fmt.Errorf("compile level schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid level: %w", err)
	}

	var lvl Level
	dec := json.NewDecoder(bytes.NewReader(normalized))
	if err := dec.Decode(&lvl); err != nil {
		return nil, fmt.Errorf("decode level: %w", err)
	}
	if err := lvl.applyDefaults(); err != nil {
		return nil, err
	}
	return &lvl, nil
}

func (l *Level) applyDefaults() error {
	if l.MaxDice == 0 {
		l.MaxDice = DefaultMaxDice
	}
	if l.DiceSides == 0 {
		l.DiceSides = DefaultDiceSides
	}
	if _, err := ParseMode(l.Mode); err != nil {
		return err
	}
	if l.Type != LevelConfig {
		return nil
	}
	if _, err := ParseStyle(l.Style); err != nil {
		return err
	}
	if l.Width == 0 || l.Height == 0 {
		size := l.Size
		if size == "" {
			size = "medium"
		}
		dims := boardSizes[size]
		l.Width, l.Height = dims[0], dims[1]
	}
	if l.Humans == nil {
		h := defaultHumans
		l.Humans = &h
	}
	if l.Bots == 0 && *l.Humans < 2 {
		l.Bots = defaultBots
	}
	if *l.Humans+l.Bots < 2 {
		return fmt.Errorf("level needs at least two players, has %d", *l.Humans+l.Bots)
	}
	if *l.Humans+l.Bots > len(DefaultColors) {
		return fmt.Errorf("level has %d players, maximum is %d", *l.Humans+l.Bots, len(DefaultColors))
	}
	return nil
}

// Setup is the starting position of a match built from a level.
type Setup struct {
	Board     *Board
	Players   []*Player
	DiceSides int
	Mode      Mode
}

// BuildLevel creates the starting board and roster described by the level.
func BuildLevel(l *Level, rng *rand.Rand) (*Setup, error) {
	mode, err := ParseMode(l.Mode)
	if err != nil {
		return nil, err
	}
	var s *Setup
	switch l.Type {
	case LevelConfig:
		s, err = buildConfigLevel(l, rng)
	case LevelScenario, LevelMap:
		s, err = buildScenarioLevel(l, rng)
	default:
		return nil, fmt.Errorf("unknown level type %q", l.Type)
	}
	if err != nil {
		return nil, err
	}
	s.Mode = mode
	s.DiceSides = l.DiceSides
	if err := ApplyMode(s.Board, mode, len(s.Players), rng); err != nil {
		return nil, err
	}
	markEliminated(s.Board, s.Players)
	return s, nil
}

func buildConfigLevel(l *Level, rng *rand.Rand) (*Setup, error) {
	style, err := ParseStyle(l.Style)
	if err != nil {
		return nil, err
	}
	humans := defaultHumans
	if l.Humans != nil {
		humans = *l.Humans
	}
	players := NewPlayers(humans+l.Bots, humans)
	if l.Difficulty != "" {
		for _, p := range players {
			if p.IsBot {
				p.AgentID = BuiltinAgentPrefix + l.Difficulty
			}
		}
	}
	b, err := NewGenerator(rng).Generate(GenerateOptions{
		Width:   l.Width,
		Height:  l.Height,
		Players: len(players),
		MaxDice: l.MaxDice,
		Style:   style,
		Preset:  l.Preset,
	})
	if err != nil {
		return nil, err
	}
	return &Setup{Board: b, Players: players}, nil
}

// BuiltinAgentPrefix marks agent IDs that refer to strategies shipped with the
// engine rather than user-authored ones.
const BuiltinAgentPrefix = "builtin:"

func buildScenarioLevel(l *Level, rng *rand.Rand) (*Setup, error) {
	b := NewBoard(l.Width, l.Height, l.MaxDice)

	nPlayers := len(l.Players)
	for _, t := range l.Tiles {
		if t.Owner != nil && *t.Owner+1 > nPlayers {
			nPlayers = *t.Owner + 1
		}
	}
	if nPlayers < 2 {
		nPlayers = 2
	}
	players := NewPlayers(nPlayers, 0)
	for _, lp := range l.Players {
		if lp.ID >= nPlayers {
			return nil, fmt.Errorf("player id %d out of range", lp.ID)
		}
		p := players[lp.ID]
		p.IsBot = lp.IsBot
		p.StoredDice = lp.StoredDice
		p.AgentID = lp.Agent
		if lp.Color != "" {
			p.Color = lp.Color
		}
	}
	if len(l.Players) == 0 {
		players[0].IsBot = false
		for _, p := range players[1:] {
			p.IsBot = true
		}
	}

	var unowned []int
	for _, t := range l.Tiles {
		if !b.InBounds(t.X, t.Y) {
			return nil, fmt.Errorf("tile (%d,%d) outside %dx%d board", t.X, t.Y, l.Width, l.Height)
		}
		idx := b.Index(t.X, t.Y)
		b.Unblock(idx)
		tile := &b.Tiles[idx]
		tile.Dice = 1
		if t.Dice != nil {
			tile.Dice = clamp(*t.Dice, 1, b.MaxDice)
		}
		if l.Type == LevelScenario && t.Owner != nil && *t.Owner >= 0 {
			tile.Owner = *t.Owner
		} else {
			unowned = append(unowned, idx)
		}
	}

	if l.Type == LevelMap {
		NewGenerator(rng).Assign(b, nPlayers)
	} else {
		rng.Shuffle(len(unowned), func(i, j int) { unowned[i], unowned[j] = unowned[j], unowned[i] })
		for k, idx := range unowned {
			b.Tiles[idx].Owner = k % nPlayers
		}
	}
	return &Setup{Board: b, Players: players}, nil
}

// markEliminated clears Alive for players that start without tiles.
func markEliminated(b *Board, players []*Player) {
	for _, p := range players {
		if b.TileCount(p.ID) == 0 {
			p.Alive = false
		}
	}
}
