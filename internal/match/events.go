package match

import (
	"sync"

	"github.com/freeeve/dicewars/pkg/dicewars"
)

// EventKind names a match lifecycle event.
type EventKind string

const (
	KindTurnStarted           EventKind = "turn_started"
	KindAttackResolved        EventKind = "attack_resolved"
	KindPlayerEliminated      EventKind = "player_eliminated"
	KindReinforcementsApplied EventKind = "reinforcements_applied"
	KindGameOver              EventKind = "game_over"
)

// Event is a domain event published by a Match.
type Event interface {
	Kind() EventKind
	MatchID() string
}

type TurnStarted struct {
	Match    string `json:"match_id"`
	Turn     int    `json:"turn"`
	PlayerID int    `json:"player_id"`
	IsBot    bool   `json:"is_bot"`
}

type AttackResolved struct {
	Match  string                `json:"match_id"`
	Turn   int                   `json:"turn"`
	Battle dicewars.BattleResult `json:"battle"`
}

type PlayerEliminated struct {
	Match    string `json:"match_id"`
	Turn     int    `json:"turn"`
	PlayerID int    `json:"player_id"`
	By       int    `json:"by"`
}

type ReinforcementsApplied struct {
	Match  string                       `json:"match_id"`
	Turn   int                          `json:"turn"`
	Result dicewars.ReinforcementResult `json:"result"`
}

type GameOver struct {
	Match  string `json:"match_id"`
	Turn   int    `json:"turn"`
	Winner int    `json:"winner"`
}

func (TurnStarted) Kind() EventKind           { return KindTurnStarted }
func (AttackResolved) Kind() EventKind        { return KindAttackResolved }
func (PlayerEliminated) Kind() EventKind      { return KindPlayerEliminated }
func (ReinforcementsApplied) Kind() EventKind { return KindReinforcementsApplied }
func (GameOver) Kind() EventKind              { return KindGameOver }

func (e TurnStarted) MatchID() string           { return e.Match }
func (e AttackResolved) MatchID() string        { return e.Match }
func (e PlayerEliminated) MatchID() string      { return e.Match }
func (e ReinforcementsApplied) MatchID() string { return e.Match }
func (e GameOver) MatchID() string              { return e.Match }

// Observer receives match events. Implementations must not call back into the
// match that published the event.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnEvent(e Event) {
	for _, o := range m {
		o.OnEvent(e)
	}
}

// ChannelObserver buffers events on a channel. When the buffer is full new
// events are dropped and counted.
type ChannelObserver struct {
	C chan Event

	mu      sync.Mutex
	dropped int
}

// NewChannelObserver returns an observer with a buffer of size n.
func NewChannelObserver(n int) *ChannelObserver {
	return &ChannelObserver{C: make(chan Event, n)}
}

func (c *ChannelObserver) OnEvent(e Event) {
	select {
	case c.C <- e:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
	}
}

// Dropped returns how many events did not fit in the buffer.
func (c *ChannelObserver) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close closes C. The match feeding the observer must not publish again.
func (c *ChannelObserver) Close() { close(c.C) }
