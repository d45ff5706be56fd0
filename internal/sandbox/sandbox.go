package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/internal/repository"
)

const (
	DefaultTurnTimeout = 5 * time.Second
	DefaultMaxMoves    = 200
)

// AgentDefinition is an agent program plus its per-turn limits. Zero limits
// fall back to the sandbox defaults.
type AgentDefinition struct {
	ID          string
	Name        string
	Source      string
	TurnTimeout time.Duration
	MaxMoves    int
}

// DefinitionFromModel converts a stored agent into a definition.
func DefinitionFromModel(a *model.Agent) AgentDefinition {
	return AgentDefinition{
		ID:          a.ID,
		Name:        a.Name,
		Source:      a.Source,
		TurnTimeout: time.Duration(a.TurnTimeoutMs) * time.Millisecond,
		MaxMoves:    a.MaxMoves,
	}
}

// Outcome is how a dispatched turn ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeErrored   Outcome = "errored"
)

// TurnResult is the product of one sandboxed turn. Intents holds whatever
// was queued, even when the turn timed out or errored.
type TurnResult struct {
	AgentID string
	Intents []match.Intent
	Storage map[string]any
	Moves   int
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// Sandbox dispatches agent turns to a Runner and enforces the limits the
// agent cannot be trusted to keep.
type Sandbox struct {
	runner   Runner
	storage  repository.AgentStorage
	timeout  time.Duration
	maxMoves int
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithStorage sets the persistent store for agent key-value data.
func WithStorage(s repository.AgentStorage) Option {
	return func(sb *Sandbox) { sb.storage = s }
}

// WithTurnTimeout sets the default wall-clock limit per turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(sb *Sandbox) { sb.timeout = d }
}

// WithMaxMoves sets the default attack cap per turn.
func WithMaxMoves(n int) Option {
	return func(sb *Sandbox) { sb.maxMoves = n }
}

// New creates a Sandbox around runner.
func New(runner Runner, opts ...Option) *Sandbox {
	sb := &Sandbox{
		runner:   runner,
		timeout:  DefaultTurnTimeout,
		maxMoves: DefaultMaxMoves,
	}
	for _, o := range opts {
		o(sb)
	}
	return sb
}

// TakeTurn runs def for playerID against a copy of st. Faults in the agent
// never surface as an error: they end the turn early and are reported in
// the result. Storage is saved only for completed turns.
func (s *Sandbox) TakeTurn(ctx context.Context, def AgentDefinition, st match.State, playerID int) TurnResult {
	timeout := def.TurnTimeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	maxMoves := def.MaxMoves
	if maxMoves <= 0 {
		maxMoves = s.maxMoves
	}

	req := Request{
		APIVersion: APIVersion,
		AgentID:    def.ID,
		Source:     def.Source,
		Snapshot:   NewSnapshot(st, playerID),
		Storage:    s.loadStorage(ctx, def.ID),
		MaxMoves:   maxMoves,
	}

	res := TurnResult{AgentID: def.ID}
	attacks, ended := 0, false
	emit := func(in match.Intent) {
		if ended {
			return
		}
		switch in.Kind {
		case match.IntentAttack:
			if attacks >= maxMoves {
				return
			}
			attacks++
		case match.IntentEndTurn:
			ended = true
		default:
			return
		}
		res.Intents = append(res.Intents, in)
	}

	turnCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := log.With().Str("agentId", def.ID).Str("matchId", st.ID).Int("playerId", playerID).Int("turn", st.Turn).Logger()
	logger.Debug().Dur("timeout", timeout).Int("maxMoves", maxMoves).Msg("Agent turn dispatched")

	start := time.Now()
	resp, err := s.runner.Run(turnCtx, req, emit)
	res.Elapsed = time.Since(start)
	res.Moves = attacks
	res.Err = err

	switch {
	case err == nil:
		res.Outcome = OutcomeCompleted
		res.Storage = resp.Storage
		s.saveStorage(ctx, def.ID, resp.Storage)
		logger.Debug().Int("intents", len(res.Intents)).Dur("elapsed", res.Elapsed).Msg("Agent turn completed")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || turnCtx.Err() != nil:
		res.Outcome = OutcomeTimedOut
		logger.Warn().Int("intents", len(res.Intents)).Dur("elapsed", res.Elapsed).Msg("Agent turn timed out")
	default:
		res.Outcome = OutcomeErrored
		logger.Warn().Err(err).Int("intents", len(res.Intents)).Msg("Agent turn errored")
	}
	return res
}

func (s *Sandbox) loadStorage(ctx context.Context, agentID string) map[string]any {
	if s.storage == nil || agentID == "" {
		return map[string]any{}
	}
	data, err := s.storage.Load(ctx, agentID)
	if err != nil {
		log.Warn().Err(err).Str("agentId", agentID).Msg("Failed to load agent storage")
		return map[string]any{}
	}
	if data == nil {
		data = map[string]any{}
	}
	return data
}

func (s *Sandbox) saveStorage(ctx context.Context, agentID string, data map[string]any) {
	if s.storage == nil || agentID == "" || data == nil {
		return
	}
	if err := s.storage.Save(ctx, agentID, data); err != nil {
		log.Warn().Err(err).Str("agentId", agentID).Msg("Failed to save agent storage")
	}
}
