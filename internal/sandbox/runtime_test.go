package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/freeeve/dicewars/internal/match"
)

func execute(t *testing.T, source string) (Response, []match.Intent, error) {
	t.Helper()
	var intents []match.Intent
	resp, err := Execute(context.Background(), request(source), func(in match.Intent) {
		intents = append(intents, in)
	})
	return resp, intents, err
}

func TestExecuteTopLevel(t *testing.T) {
	resp, intents, err := execute(t, `
		var r = api.attack({x: 0, y: 0}, {x: 1, y: 0});
		api.save("reply", r);
		api.endTurn();
	`)
	require.NoError(t, err)
	require.Equal(t, []match.Intent{attackIntent(0, 0, 1, 0), {Kind: match.IntentEndTurn}}, intents)
	require.Equal(t, 1, resp.Moves)
	reply := resp.Storage["reply"].(map[string]any)
	require.Equal(t, true, reply["success"])
	require.Equal(t, true, reply["expectedWin"])
}

func TestExecuteTakeTurnFunction(t *testing.T) {
	resp, intents, err := execute(t, `
		function takeTurn(api) {
			var mine = api.myTiles();
			api.save("count", mine.length);
			api.save("first", mine[0]);
			api.save("meta", [api.apiVersion, api.playerId, api.width, api.height, api.maxDice, api.diceSides, api.players.length]);
			api.save("region", api.largestConnectedRegion(1));
			api.save("reinforcements", api.reinforcementsFor(0));
			api.save("tile", api.tileAt(2, 0));
			api.save("hole", api.tileAt(5, 5));
			api.save("adjacent", api.adjacentTiles({x: 1, y: 0}).length);
			api.save("p", api.winProbability(1, 1));
			api.save("sim", api.simulateAttack({x: 0, y: 0}, {x: 1, y: 0}).regionIfWin);
		}
	`)
	require.NoError(t, err)
	require.Empty(t, intents)

	s := resp.Storage
	require.Equal(t, float64(1), s["count"])
	require.Equal(t, map[string]any{"x": float64(0), "y": float64(0), "owner": float64(0), "dice": float64(5)}, s["first"])
	require.Equal(t, []any{float64(1), float64(0), float64(3), float64(1), float64(8), float64(6), float64(2)}, s["meta"])
	require.Equal(t, float64(2), s["region"])
	require.Equal(t, float64(1), s["reinforcements"])
	require.Equal(t, float64(1), s["tile"].(map[string]any)["owner"])
	require.Nil(t, s["hole"])
	require.Equal(t, float64(2), s["adjacent"])
	require.InDelta(t, 15.0/36.0, s["p"], 1e-9)
	require.Equal(t, float64(2), s["sim"])
}

func TestExecuteNoHostGlobals(t *testing.T) {
	resp, _, err := execute(t, `
		api.save("globals", [typeof require, typeof process, typeof setTimeout, typeof fetch, typeof XMLHttpRequest, typeof module]);
	`)
	require.NoError(t, err)
	require.Equal(t, []any{"undefined", "undefined", "undefined", "undefined", "undefined", "undefined"}, resp.Storage["globals"])
}

func TestExecuteRejectsBadArguments(t *testing.T) {
	resp, intents, err := execute(t, `
		var caught = [];
		try { api.attack(1, 2); } catch (e) { caught.push(String(e)); }
		try { api.tileAt("a", 1); } catch (e) { caught.push(String(e)); }
		try { api.largestConnectedRegion(7); } catch (e) { caught.push(String(e)); }
		try { api.save("fn", function () {}); } catch (e) { caught.push(String(e)); }
		api.save("caught", caught);
	`)
	require.NoError(t, err)
	require.Empty(t, intents)
	caught := resp.Storage["caught"].([]any)
	require.Len(t, caught, 4)
	require.Contains(t, caught[0], "must be an {x, y} object")
	require.Contains(t, caught[1], "must be an integer")
	require.Contains(t, caught[2], "unknown player")
	require.Contains(t, caught[3], "not serialisable")
	require.NotContains(t, resp.Storage, "fn")
}

func TestExecuteThrowingAgent(t *testing.T) {
	_, intents, err := execute(t, `throw new Error("boom");`)
	var ae *AgentError
	require.True(t, errors.As(err, &ae), "err = %v", err)
	require.Equal(t, "run", ae.Stage)
	require.Contains(t, ae.Error(), "boom")
	require.Empty(t, intents)
}

func TestExecuteSyntaxError(t *testing.T) {
	_, _, err := execute(t, `function takeTurn(api) {`)
	var ae *AgentError
	require.True(t, errors.As(err, &ae), "err = %v", err)
	require.Equal(t, "compile", ae.Stage)
	require.Error(t, Compile(`function takeTurn(api) {`))
	require.NoError(t, Compile(`function takeTurn(api) { api.endTurn(); }`))
}

func TestExecuteInterrupted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var intents []match.Intent
	start := time.Now()
	_, err := Execute(ctx, request(`api.attack({x: 0, y: 0}, {x: 1, y: 0}); for (;;) {}`), func(in match.Intent) {
		intents = append(intents, in)
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, intents, 1)
}

func TestExecuteWrongAPIVersion(t *testing.T) {
	req := request(`api.endTurn();`)
	req.APIVersion = APIVersion + 1
	_, err := Execute(context.Background(), req, func(match.Intent) {})
	require.ErrorIs(t, err, ErrAPIVersion)
}

func TestExecuteStorageRoundTrip(t *testing.T) {
	req := request(`api.save("games", (api.load("games") || 0) + 1);`)
	req.Storage = map[string]any{"games": float64(4)}
	resp, err := Execute(context.Background(), req, func(match.Intent) {})
	require.NoError(t, err)
	require.Equal(t, float64(5), resp.Storage["games"])
}

func TestBuiltinsCompile(t *testing.T) {
	require.Equal(t, []string{"easy", "greedy", "hard", "normal"}, BuiltinNames())
	for _, name := range BuiltinNames() {
		def, ok := Builtin(name)
		require.True(t, ok, name)
		require.Equal(t, "builtin:"+name, def.ID)
		require.NoError(t, Compile(def.Source), name)
	}
	def, ok := Builtin("builtin:medium")
	require.True(t, ok)
	require.Equal(t, "builtin:normal", def.ID)
	_, ok = Builtin("nope")
	require.False(t, ok)
}

func TestBuiltinsPlayATurn(t *testing.T) {
	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			def, _ := Builtin(name)
			_, intents, err := execute(t, def.Source)
			require.NoError(t, err)
			require.NotEmpty(t, intents)
			require.Equal(t, match.IntentEndTurn, intents[len(intents)-1].Kind)
		})
	}
}
