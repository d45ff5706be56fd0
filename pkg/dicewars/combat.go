package dicewars

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// Reason is the code returned when an attack is rejected.
type Reason string

const (
	ReasonOutOfBounds      Reason = "out_of_bounds"
	ReasonBlocked          Reason = "blocked"
	ReasonNotOwner         Reason = "not_owner"
	ReasonSameOwner        Reason = "same_owner"
	ReasonInsufficientDice Reason = "insufficient_dice"
	ReasonNotAdjacent      Reason = "not_adjacent"
)

// Sentinels for errors.Is against an *AttackError.
var (
	ErrOutOfBounds      = errors.New("tile out of bounds")
	ErrBlocked          = errors.New("tile is blocked")
	ErrNotOwner         = errors.New("attacking tile not owned by attacker")
	ErrSameOwner        = errors.New("cannot attack own tile")
	ErrInsufficientDice = errors.New("attacking tile needs more than one die")
	ErrNotAdjacent      = errors.New("tiles are not adjacent")
)

var reasonErrors = map[Reason]error{
	ReasonOutOfBounds:      ErrOutOfBounds,
	ReasonBlocked:          ErrBlocked,
	ReasonNotOwner:         ErrNotOwner,
	ReasonSameOwner:        ErrSameOwner,
	ReasonInsufficientDice: ErrInsufficientDice,
	ReasonNotAdjacent:      ErrNotAdjacent,
}

// AttackError describes why an attack was rejected. The board is never
// modified when an AttackError is returned.
type AttackError struct {
	Reason Reason
	From   Coord
	To     Coord
}

func (e *AttackError) Error() string {
	return fmt.Sprintf("invalid attack %s -> %s: %s", e.From, e.To, reasonErrors[e.Reason])
}

func (e *AttackError) Unwrap() error { return reasonErrors[e.Reason] }

// BattleResult records one resolved attack.
type BattleResult struct {
	Attacker      int   `json:"attacker"`
	Defender      int   `json:"defender"`
	From          Coord `json:"from"`
	To            Coord `json:"to"`
	AttackerRolls []int `json:"attacker_rolls"`
	DefenderRolls []int `json:"defender_rolls"`
	Won           bool  `json:"won"`
}

// AttackerSum returns the total of the attacker's dice.
func (r BattleResult) AttackerSum() int { return sum(r.AttackerRolls) }

// DefenderSum returns the total of the defender's dice.
func (r BattleResult) DefenderSum() int { return sum(r.DefenderRolls) }

func sum(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}

// BattleLog is an append-only, in-memory history of resolved battles.
type BattleLog struct {
	mu      sync.RWMutex
	battles []BattleResult
}

func (l *BattleLog) Append(r BattleResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.battles = append(l.battles, r)
}

func (l *BattleLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.battles)
}

// All returns a copy of every battle in the log.
func (l *BattleLog) All() []BattleResult {
	return l.Since(0)
}

// Since returns a copy of the battles appended at or after position n.
func (l *BattleLog) Since(n int) []BattleResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(l.battles) {
		return nil
	}
	out := make([]BattleResult, len(l.battles)-n)
	copy(out, l.battles[n:])
	return out
}

// Resolver resolves attacks on a board.
type Resolver struct {
	Rand    *rand.Rand
	Sides   int
	History *BattleLog
}

// NewResolver returns a resolver rolling dice with the given number of sides.
func NewResolver(rng *rand.Rand, sides int) *Resolver {
	if sides <= 0 {
		sides = 6
	}
	return &Resolver{Rand: rng, Sides: sides, History: &BattleLog{}}
}

// ValidateAttack checks an attack without rolling or modifying the board.
func ValidateAttack(b *Board, attackerID int, from, to Coord) error {
	reject := func(r Reason) error { return &AttackError{Reason: r, From: from, To: to} }
	if !b.InBounds(from.X, from.Y) || !b.InBounds(to.X, to.Y) {
		return reject(ReasonOutOfBounds)
	}
	src, dst := b.At(from.X, from.Y), b.At(to.X, to.Y)
	if src.Blocked || dst.Blocked {
		return reject(ReasonBlocked)
	}
	if src.Owner != attackerID {
		return reject(ReasonNotOwner)
	}
	if dst.Owner == src.Owner {
		return reject(ReasonSameOwner)
	}
	if src.Dice <= 1 {
		return reject(ReasonInsufficientDice)
	}
	if !Adjacent(from, to) {
		return reject(ReasonNotAdjacent)
	}
	return nil
}

// Attack resolves one attack from one tile into an adjacent enemy tile. The
// attacker wins only if its dice sum is strictly greater than the defender's.
// Win or lose, the attacking tile is left with a single die.
func (r *Resolver) Attack(b *Board, attackerID int, from, to Coord) (BattleResult, error) {
	if err := ValidateAttack(b, attackerID, from, to); err != nil {
		return BattleResult{}, err
	}
	src, dst := b.At(from.X, from.Y), b.At(to.X, to.Y)

	res := BattleResult{
		Attacker:      attackerID,
		Defender:      dst.Owner,
		From:          from,
		To:            to,
		AttackerRolls: r.roll(src.Dice),
		DefenderRolls: r.roll(dst.Dice),
	}
	res.Won = res.AttackerSum() > res.DefenderSum()

	if res.Won {
		dst.Owner = attackerID
		dst.Dice = src.Dice - 1
	}
	src.Dice = 1

	if r.History != nil {
		r.History.Append(res)
	}
	return res, nil
}

func (r *Resolver) roll(n int) []int {
	rolls := make([]int, n)
	for i := range rolls {
		rolls[i] = r.Rand.Intn(r.Sides) + 1
	}
	return rolls
}
