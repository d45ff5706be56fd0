package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/freeeve/dicewars/internal/match"
)

// crashWorkerSource exits without answering.
const crashWorkerSource = `package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "worker exploded")
	os.Exit(3)
}
`

func binPath(dir, name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(dir, name)
}

func goBuild(t *testing.T, out string, args ...string) {
	t.Helper()
	cmd := exec.Command("go", append([]string{"build", "-o", out}, args...)...)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, b)
	}
}

// buildAgentd compiles the real worker binary.
func buildAgentd(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds the agentd worker")
	}
	bin := binPath(t.TempDir(), "agentd")
	goBuild(t, bin, "github.com/freeeve/dicewars/cmd/agentd")
	return bin
}

// buildWorker compiles a Go source string into a temporary binary.
func buildWorker(t *testing.T, source string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds a mock worker")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(src, []byte(source), 0644))
	bin := binPath(dir, "worker")
	goBuild(t, bin, src)
	return bin
}

func TestServeStreamsIntents(t *testing.T) {
	var in bytes.Buffer
	req := request(`api.attack({x: 0, y: 0}, {x: 1, y: 0}); api.save("k", "v"); api.endTurn();`)
	require.NoError(t, json.NewEncoder(&in).Encode(Message{Type: MsgTurn, Request: &req}))

	var out bytes.Buffer
	require.NoError(t, Serve(context.Background(), &in, &out))

	var msgs []Message
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var m Message
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		msgs = append(msgs, m)
	}
	require.Len(t, msgs, 3)
	require.Equal(t, MsgIntent, msgs[0].Type)
	require.Equal(t, attackIntent(0, 0, 1, 0), *msgs[0].Intent)
	require.Equal(t, MsgIntent, msgs[1].Type)
	require.Equal(t, match.IntentEndTurn, msgs[1].Intent.Kind)
	require.Equal(t, MsgDone, msgs[2].Type)
	require.Equal(t, "v", msgs[2].Storage["k"])
	require.Equal(t, 1, msgs[2].Moves)
}

func TestServeReportsAgentErrors(t *testing.T) {
	var in bytes.Buffer
	req := request(`throw new Error("bad agent");`)
	require.NoError(t, json.NewEncoder(&in).Encode(Message{Type: MsgTurn, Request: &req}))

	var out bytes.Buffer
	require.NoError(t, Serve(context.Background(), &in, &out))

	var m Message
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &m))
	require.Equal(t, MsgError, m.Type)
	require.Equal(t, "run", m.Stage)
	require.Contains(t, m.Message, "bad agent")
}

func TestServeRejectsUnknownMessage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Serve(context.Background(), strings.NewReader(`{"type":"hello"}`+"\n"), &out))
	require.Contains(t, out.String(), `"type":"error"`)

	require.Error(t, Serve(context.Background(), strings.NewReader(""), &out))
}

func TestProcessRunnerCompletes(t *testing.T) {
	runner := NewProcessRunner(buildAgentd(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var intents []match.Intent
	resp, err := runner.Run(ctx, request(`
		function takeTurn(api) {
			api.attack({x: 0, y: 0}, {x: 1, y: 0});
			api.save("seen", api.myTiles().length);
			api.endTurn();
		}
	`), func(in match.Intent) { intents = append(intents, in) })

	require.NoError(t, err)
	require.Equal(t, []match.Intent{attackIntent(0, 0, 1, 0), {Kind: match.IntentEndTurn}}, intents)
	require.Equal(t, float64(2), resp.Storage["seen"])
	require.Equal(t, 1, resp.Moves)
}

func TestProcessRunnerAgentError(t *testing.T) {
	runner := NewProcessRunner(buildAgentd(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := runner.Run(ctx, request(`function takeTurn(`), func(match.Intent) {})
	var ae *AgentError
	require.True(t, errors.As(err, &ae), "err = %v", err)
	require.Equal(t, "compile", ae.Stage)
}

func TestProcessRunnerKillsOnTimeout(t *testing.T) {
	bin := buildAgentd(t)
	sb := New(NewProcessRunner(bin))
	def := AgentDefinition{
		ID:          "looper",
		Source:      `api.attack({x: 0, y: 0}, {x: 1, y: 0}); for (;;) {}`,
		TurnTimeout: 500 * time.Millisecond,
	}

	start := time.Now()
	res := sb.TakeTurn(context.Background(), def, lineState(), 0)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, OutcomeTimedOut, res.Outcome)
	require.Equal(t, []match.Intent{attackIntent(0, 0, 1, 0)}, res.Intents)
}

func TestProcessRunnerWorkerCrash(t *testing.T) {
	runner := NewProcessRunner(buildWorker(t, crashWorkerSource))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := runner.Run(ctx, request(`api.endTurn();`), func(match.Intent) {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "worker exploded")

	sb := New(runner)
	res := sb.TakeTurn(context.Background(), AgentDefinition{ID: "x"}, lineState(), 0)
	require.Equal(t, OutcomeErrored, res.Outcome)
	require.Empty(t, res.Intents)
}
