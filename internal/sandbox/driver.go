package sandbox

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

// AgentFinder looks up stored agents. It returns nil, nil for unknown IDs.
type AgentFinder interface {
	FindByID(ctx context.Context, id string) (*model.Agent, error)
}

// Driver plays automated seats of a match through the sandbox. It implements
// match.BotDriver.
type Driver struct {
	sandbox *Sandbox
	agents  AgentFinder

	// OnResult, if set, is called after every sandboxed turn.
	OnResult func(playerID int, res TurnResult)
}

// NewDriver returns a driver resolving agents through agents, which may be
// nil when only built-in agents are used.
func NewDriver(sb *Sandbox, agents AgentFinder) *Driver {
	return &Driver{sandbox: sb, agents: agents}
}

func (d *Driver) Intents(ctx context.Context, st match.State, playerID int) []match.Intent {
	p := st.Player(playerID)
	if p == nil {
		return nil
	}
	def := d.Resolve(ctx, p.AgentID)
	res := d.sandbox.TakeTurn(ctx, def, st, playerID)
	if d.OnResult != nil {
		d.OnResult(playerID, res)
	}
	return res.Intents
}

// Resolve maps an agent ID to a runnable definition, falling back to the
// default built-in agent.
func (d *Driver) Resolve(ctx context.Context, agentID string) AgentDefinition {
	fallback, _ := Builtin(DefaultBuiltin)
	switch {
	case agentID == "":
		return fallback
	case strings.HasPrefix(agentID, dicewars.BuiltinAgentPrefix):
		if def, ok := Builtin(agentID); ok {
			return def
		}
		log.Warn().Str("agentId", agentID).Msg("Unknown built-in agent, using default")
		return fallback
	case d.agents == nil:
		return fallback
	}

	a, err := d.agents.FindByID(ctx, agentID)
	if err != nil {
		log.Warn().Err(err).Str("agentId", agentID).Msg("Agent lookup failed, using default")
		return fallback
	}
	if a == nil {
		log.Warn().Str("agentId", agentID).Msg("Agent not found, using default")
		return fallback
	}
	return DefinitionFromModel(a)
}
