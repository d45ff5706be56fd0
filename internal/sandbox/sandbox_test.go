package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/freeeve/dicewars/internal/match"
	"github.com/freeeve/dicewars/internal/model"
	"github.com/freeeve/dicewars/pkg/dicewars"
)

func TestTakeTurnCompleted(t *testing.T) {
	store := newMemStorage()
	store.data["a1"] = map[string]any{"turns": float64(2)}
	sb := New(InProcessRunner{}, WithStorage(store))

	def := AgentDefinition{ID: "a1", Source: `
		api.save("turns", api.load("turns") + 1);
		api.attack({x: 0, y: 0}, {x: 1, y: 0});
		api.endTurn();
	`}
	res := sb.TakeTurn(context.Background(), def, lineState(), 0)

	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.NoError(t, res.Err)
	require.Equal(t, []match.Intent{attackIntent(0, 0, 1, 0), {Kind: match.IntentEndTurn}}, res.Intents)
	require.Equal(t, 1, res.Moves)
	require.Equal(t, float64(3), store.data["a1"]["turns"])
	require.Equal(t, 1, store.saves)
}

func TestTakeTurnThrowingAgent(t *testing.T) {
	store := newMemStorage()
	sb := New(InProcessRunner{}, WithStorage(store))

	def := AgentDefinition{ID: "a1", Source: `api.save("x", 1); throw new Error("nope");`}
	res := sb.TakeTurn(context.Background(), def, lineState(), 0)

	require.Equal(t, OutcomeErrored, res.Outcome)
	require.Empty(t, res.Intents)
	var ae *AgentError
	require.True(t, errors.As(res.Err, &ae))
	require.Zero(t, store.saves)
}

func TestTakeTurnTimeoutKeepsPartialQueue(t *testing.T) {
	sb := New(InProcessRunner{})
	def := AgentDefinition{
		ID:          "looper",
		Source:      `api.attack({x: 0, y: 0}, {x: 1, y: 0}); while (true) {}`,
		TurnTimeout: 100 * time.Millisecond,
	}

	start := time.Now()
	res := sb.TakeTurn(context.Background(), def, lineState(), 0)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, OutcomeTimedOut, res.Outcome)
	require.Equal(t, []match.Intent{attackIntent(0, 0, 1, 0)}, res.Intents)
	require.Nil(t, res.Storage)
}

func TestTakeTurnMoveCapOnHost(t *testing.T) {
	var script []match.Intent
	for i := 0; i < 10; i++ {
		script = append(script, attackIntent(0, 0, 1, 0))
	}
	script = append(script, match.Intent{Kind: match.IntentEndTurn}, attackIntent(0, 0, 1, 0))

	sb := New(scriptRunner{intents: script}, WithMaxMoves(3))
	res := sb.TakeTurn(context.Background(), AgentDefinition{ID: "x"}, lineState(), 0)

	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Len(t, res.Intents, 4)
	require.Equal(t, 3, res.Moves)
	require.Equal(t, match.IntentEndTurn, res.Intents[3].Kind)
}

func TestTakeTurnMoveCapInAgent(t *testing.T) {
	sb := New(InProcessRunner{})
	def := AgentDefinition{ID: "spam", MaxMoves: 1, Source: `
		var a = api.attack({x: 0, y: 0}, {x: 1, y: 0});
		var b = api.attack({x: 1, y: 0}, {x: 2, y: 0});
		api.save("second", b.reason);
	`}
	res := sb.TakeTurn(context.Background(), def, lineState(), 0)
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Len(t, res.Intents, 1)
	require.Equal(t, ReasonMoveLimit, res.Storage["second"])
}

func TestDriverResolve(t *testing.T) {
	agents := agentMap{"u1": {ID: "u1", Name: "mine", Source: "api.endTurn();", TurnTimeoutMs: 250, MaxMoves: 7}}
	d := NewDriver(New(InProcessRunner{}), agents)
	ctx := context.Background()

	require.Equal(t, "builtin:greedy", d.Resolve(ctx, "").ID)
	require.Equal(t, "builtin:hard", d.Resolve(ctx, "builtin:hard").ID)
	require.Equal(t, "builtin:greedy", d.Resolve(ctx, "builtin:grandmaster").ID)
	require.Equal(t, "builtin:greedy", d.Resolve(ctx, "missing").ID)

	def := d.Resolve(ctx, "u1")
	require.Equal(t, AgentDefinition{ID: "u1", Name: "mine", Source: "api.endTurn();", TurnTimeout: 250 * time.Millisecond, MaxMoves: 7}, def)

	require.Equal(t, "builtin:greedy", NewDriver(New(InProcessRunner{}), nil).Resolve(ctx, "u1").ID)
}

func TestDriverThrowingAgentDoesNotAbortMatch(t *testing.T) {
	agents := agentMap{"bad": {ID: "bad", Source: `throw "broken";`}}
	var results []TurnResult
	d := NewDriver(New(InProcessRunner{}), agents)
	d.OnResult = func(_ int, res TurnResult) { results = append(results, res) }

	st := lineState()
	st.Players[0].AgentID = "bad"
	m := match.New("m1", st.Board, st.Players, 6, match.WithBotDriver(d))
	require.NoError(t, m.Start())

	applied, err := m.PlayBotTurn(context.Background())
	require.NoError(t, err)
	require.Zero(t, applied)
	require.False(t, m.Over)
	require.Equal(t, 1, m.Current)
	require.Len(t, results, 1)
	require.Equal(t, OutcomeErrored, results[0].Outcome)
}

func TestDriverLoopingAgentTimesOut(t *testing.T) {
	agents := agentMap{"loop": {ID: "loop", Source: `for (;;) {}`, TurnTimeoutMs: 100}}
	d := NewDriver(New(InProcessRunner{}), agents)

	st := lineState()
	st.Players[0].AgentID = "loop"
	m := match.New("m1", st.Board, st.Players, 6, match.WithBotDriver(d))
	require.NoError(t, m.Start())

	_, err := m.PlayBotTurn(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, m.Current)
	require.False(t, m.Over)
}

func TestBuiltinAgentsPlayFullMatch(t *testing.T) {
	rng := dicewars.NewRand(7)
	board, err := dicewars.NewGenerator(rng).Generate(dicewars.GenerateOptions{Width: 10, Height: 8, Players: 4})
	require.NoError(t, err)

	players := dicewars.NewPlayers(4, 0)
	for i, name := range BuiltinNames() {
		players[i].AgentID = dicewars.BuiltinAgentPrefix + name
	}

	var outcomes []Outcome
	d := NewDriver(New(InProcessRunner{}, WithStorage(newMemStorage())), nil)
	d.OnResult = func(_ int, res TurnResult) { outcomes = append(outcomes, res.Outcome) }

	var violations []error
	obs := match.ObserverFunc(func(e match.Event) {
		if err := board.CheckInvariants(); err != nil {
			violations = append(violations, err)
		}
	})
	m := match.New("full", board, players, 6, match.WithRand(rng), match.WithBotDriver(d), match.WithObserver(obs))
	require.NoError(t, m.Run(context.Background(), 25))

	require.Empty(t, violations)
	require.NotEmpty(t, outcomes)
	for _, o := range outcomes {
		require.Equal(t, OutcomeCompleted, o)
	}
	require.Positive(t, m.Battles.Len())
}

func TestDefinitionFromModel(t *testing.T) {
	def := DefinitionFromModel(&model.Agent{ID: "a", Name: "n", Source: "s", TurnTimeoutMs: 1500, MaxMoves: 9})
	require.Equal(t, 1500*time.Millisecond, def.TurnTimeout)
	require.Equal(t, 9, def.MaxMoves)
}
