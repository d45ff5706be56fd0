// Package match runs one authoritative dicewars match: it owns the board and
// roster, applies attacks and reinforcements in turn order, detects
// eliminations and the winner, and publishes lifecycle events.
package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/pkg/dicewars"
)

var (
	ErrMatchOver     = errors.New("match is over")
	ErrNotStarted    = errors.New("match has not started")
	ErrNotYourTurn   = errors.New("not this player's turn")
	ErrNotBotTurn    = errors.New("current player is not a bot")
	ErrUnknownPlayer = errors.New("unknown player")
)

// IntentKind is the type of action an automated player asks for.
type IntentKind string

const (
	IntentAttack  IntentKind = "attack"
	IntentEndTurn IntentKind = "end_turn"
)

// Intent is a queued action from an automated player. It is re-validated
// against the live board before being applied.
type Intent struct {
	Kind IntentKind     `json:"kind"`
	From dicewars.Coord `json:"from"`
	To   dicewars.Coord `json:"to"`
}

// BotDriver produces the intents for an automated player's turn. It is given
// a copy of the match state and must never see the live board.
type BotDriver interface {
	Intents(ctx context.Context, st State, playerID int) []Intent
}

// State is an inert, serialisable copy of a match.
type State struct {
	ID      string             `json:"id"`
	Turn    int                `json:"turn"`
	Current int                `json:"current"`
	Sides   int                `json:"dice_sides"`
	Started bool               `json:"started"`
	Over    bool               `json:"over"`
	Winner  int                `json:"winner"`
	Board   *dicewars.Board    `json:"board"`
	Players []*dicewars.Player `json:"players"`
	Regions []int              `json:"regions"` // largest connected region per player
}

// Player returns the player with the given ID, or nil.
func (s State) Player(id int) *dicewars.Player {
	if id < 0 || id >= len(s.Players) {
		return nil
	}
	return s.Players[id]
}

// Match is the authoritative state of one game. It is not safe for
// concurrent use; callers serialise access.
type Match struct {
	ID      string
	Board   *dicewars.Board
	Players []*dicewars.Player
	Sides   int
	Turn    int
	Current int
	Winner  int
	Over    bool
	Started bool
	Battles *dicewars.BattleLog

	rng      *rand.Rand
	resolver *dicewars.Resolver
	observer Observer
	driver   BotDriver
}

// Option configures a Match.
type Option func(*Match)

// WithRand sets the random source used for dice and reinforcements.
func WithRand(rng *rand.Rand) Option {
	return func(m *Match) { m.rng = rng }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(m *Match) { m.observer = o }
}

// WithBotDriver sets the driver used for automated players.
func WithBotDriver(d BotDriver) Option {
	return func(m *Match) { m.driver = d }
}

// New creates a match over an already generated board.
func New(id string, board *dicewars.Board, players []*dicewars.Player, sides int, opts ...Option) *Match {
	if sides <= 0 {
		sides = dicewars.DefaultDiceSides
	}
	m := &Match{
		ID:      id,
		Board:   board,
		Players: players,
		Sides:   sides,
		Winner:  dicewars.NoOwner,
		Battles: &dicewars.BattleLog{},
	}
	for _, o := range opts {
		o(m)
	}
	if m.rng == nil {
		m.rng = dicewars.NewRand(0)
	}
	if m.observer == nil {
		m.observer = MultiObserver(nil)
	}
	m.resolver = &dicewars.Resolver{Rand: m.rng, Sides: sides, History: m.Battles}
	precomputeOdds(board.MaxDice, sides)
	return m
}

// precomputeOdds warms the attack odds table bots and the sandbox read from.
var precomputeOdds = dicewars.Precompute

// Restore rebuilds a match from a saved State. Battle history is not part of
// the state and starts empty.
func Restore(st State, opts ...Option) *Match {
	m := New(st.ID, st.Board.Clone(), copyPlayers(st.Players), st.Sides, opts...)
	m.Turn = st.Turn
	m.Current = st.Current
	m.Started = st.Started
	m.Over = st.Over
	m.Winner = st.Winner
	return m
}

// SetObserver replaces the event observer.
func (m *Match) SetObserver(o Observer) { m.observer = o }

// SetBotDriver replaces the bot driver.
func (m *Match) SetBotDriver(d BotDriver) { m.driver = d }

// Start begins the first turn with the first player still alive.
func (m *Match) Start() error {
	if m.Started {
		return nil
	}
	m.Started = true
	m.Turn = 1
	m.Current = -1
	m.checkEliminations(dicewars.NoOwner)
	if m.checkWinner() {
		return nil
	}
	next, ok := m.nextAlive(-1)
	if !ok {
		return fmt.Errorf("match %s: no players alive", m.ID)
	}
	m.Current = next
	m.emitTurnStarted()
	return nil
}

// CurrentPlayer returns the player whose turn it is.
func (m *Match) CurrentPlayer() *dicewars.Player {
	if m.Current < 0 || m.Current >= len(m.Players) {
		return nil
	}
	return m.Players[m.Current]
}

func (m *Match) checkTurn(playerID int) error {
	if !m.Started {
		return ErrNotStarted
	}
	if m.Over {
		return ErrMatchOver
	}
	if playerID < 0 || playerID >= len(m.Players) {
		return ErrUnknownPlayer
	}
	if playerID != m.Current {
		return ErrNotYourTurn
	}
	return nil
}

// Attack resolves an attack by the current player. Invalid attacks return a
// *dicewars.AttackError and leave the board unchanged.
func (m *Match) Attack(playerID int, from, to dicewars.Coord) (dicewars.BattleResult, error) {
	if err := m.checkTurn(playerID); err != nil {
		return dicewars.BattleResult{}, err
	}
	res, err := m.resolver.Attack(m.Board, playerID, from, to)
	if err != nil {
		return res, err
	}
	m.observer.OnEvent(AttackResolved{Match: m.ID, Turn: m.Turn, Battle: res})

	if res.Won {
		m.checkEliminations(playerID)
		m.checkWinner()
	}
	return res, nil
}

// EndTurn reinforces the current player and passes the turn to the next
// player still alive.
func (m *Match) EndTurn(playerID int) (dicewars.ReinforcementResult, error) {
	if err := m.checkTurn(playerID); err != nil {
		return dicewars.ReinforcementResult{}, err
	}
	p := m.Players[playerID]
	res := dicewars.Distribute(m.Board, p, m.rng)
	m.observer.OnEvent(ReinforcementsApplied{Match: m.ID, Turn: m.Turn, Result: res})

	m.checkEliminations(dicewars.NoOwner)
	if m.checkWinner() {
		return res, nil
	}
	next, ok := m.nextAlive(m.Current)
	if !ok {
		return res, nil
	}
	if next <= m.Current {
		m.Turn++
	}
	m.Current = next
	m.emitTurnStarted()
	return res, nil
}

// PlayBotTurn asks the bot driver for the current player's intents, applies
// the ones that are still valid against the live board, and ends the turn.
// It returns the number of attacks applied.
func (m *Match) PlayBotTurn(ctx context.Context) (int, error) {
	if err := m.checkTurn(m.Current); err != nil {
		return 0, err
	}
	p := m.Players[m.Current]
	if !p.IsBot {
		return 0, ErrNotBotTurn
	}

	var intents []Intent
	if m.driver != nil {
		intents = m.driver.Intents(ctx, m.Snapshot(), p.ID)
	}

	applied := 0
	for _, in := range intents {
		if in.Kind == IntentEndTurn {
			break
		}
		if in.Kind != IntentAttack {
			continue
		}
		if err := dicewars.ValidateAttack(m.Board, p.ID, in.From, in.To); err != nil {
			log.Debug().Err(err).Str("matchId", m.ID).Int("playerId", p.ID).Msg("Skipping stale intent")
			continue
		}
		if _, err := m.Attack(p.ID, in.From, in.To); err != nil {
			return applied, err
		}
		applied++
		if m.Over {
			return applied, nil
		}
	}

	if _, err := m.EndTurn(p.ID); err != nil {
		return applied, err
	}
	return applied, nil
}

// Run plays automated turns until the match ends, a human is to move, the
// turn counter passes maxTurns (0 means no cap), or ctx is done.
func (m *Match) Run(ctx context.Context, maxTurns int) error {
	if !m.Started {
		if err := m.Start(); err != nil {
			return err
		}
	}
	for !m.Over {
		if err := ctx.Err(); err != nil {
			return err
		}
		if maxTurns > 0 && m.Turn > maxTurns {
			return nil
		}
		p := m.CurrentPlayer()
		if p == nil || !p.IsBot {
			return nil
		}
		if _, err := m.PlayBotTurn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a deep copy of the match state.
func (m *Match) Snapshot() State {
	return State{
		ID:      m.ID,
		Turn:    m.Turn,
		Current: m.Current,
		Sides:   m.Sides,
		Started: m.Started,
		Over:    m.Over,
		Winner:  m.Winner,
		Board:   m.Board.Clone(),
		Players: copyPlayers(m.Players),
		Regions: dicewars.RegionSizes(m.Board, len(m.Players)),
	}
}

func copyPlayers(players []*dicewars.Player) []*dicewars.Player {
	out := make([]*dicewars.Player, len(players))
	for i, p := range players {
		cp := *p
		out[i] = &cp
	}
	return out
}

// checkEliminations marks every alive player without tiles as eliminated.
func (m *Match) checkEliminations(by int) {
	for _, p := range m.Players {
		if !p.Alive || m.Board.TileCount(p.ID) > 0 {
			continue
		}
		p.Alive = false
		p.StoredDice = 0
		log.Info().Str("matchId", m.ID).Int("playerId", p.ID).Int("by", by).Int("turn", m.Turn).Msg("Player eliminated")
		m.observer.OnEvent(PlayerEliminated{Match: m.ID, Turn: m.Turn, PlayerID: p.ID, By: by})
	}
}

// checkWinner ends the match when at most one player remains.
func (m *Match) checkWinner() bool {
	if m.Over {
		return true
	}
	alive := dicewars.AliveCount(m.Players)
	if alive > 1 {
		return false
	}
	m.Over = true
	for _, p := range m.Players {
		if p.Alive {
			m.Winner = p.ID
		}
	}
	log.Info().Str("matchId", m.ID).Int("winner", m.Winner).Int("turn", m.Turn).Msg("Match over")
	m.observer.OnEvent(GameOver{Match: m.ID, Turn: m.Turn, Winner: m.Winner})
	return true
}

// nextAlive returns the first alive player after seat from, wrapping around.
func (m *Match) nextAlive(from int) (int, bool) {
	n := len(m.Players)
	for k := 1; k <= n; k++ {
		i := ((from+k)%n + n) % n
		if m.Players[i].Alive {
			return i, true
		}
	}
	return 0, false
}

func (m *Match) emitTurnStarted() {
	p := m.Players[m.Current]
	m.observer.OnEvent(TurnStarted{Match: m.ID, Turn: m.Turn, PlayerID: p.ID, IsBot: p.IsBot})
}
