package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/freeeve/dicewars/internal/match"
)

// ErrAPIVersion is returned when a request targets an API version this build
// does not provide.
var ErrAPIVersion = errors.New("unsupported agent api version")

// Request is everything an isolated execution context needs for one turn.
type Request struct {
	APIVersion int            `json:"apiVersion"`
	AgentID    string         `json:"agentId"`
	Source     string         `json:"source"`
	Snapshot   Snapshot       `json:"snapshot"`
	Storage    map[string]any `json:"storage"`
	MaxMoves   int            `json:"maxMoves"`
}

// Response is what a turn that ran to completion hands back.
type Response struct {
	Storage map[string]any `json:"storage"`
	Moves   int            `json:"moves"`
}

// Runner executes one agent turn in an isolated context. Intents are passed
// to emit, on the caller's goroutine, as soon as the agent queues them, so a
// turn cut short still yields its partial queue. When ctx ends first, Run
// tears the context down and returns ctx.Err().
type Runner interface {
	Run(ctx context.Context, req Request, emit func(match.Intent)) (Response, error)
}

// Execute runs a request in the current goroutine. It is the body shared by
// the in-process runner and the agentd worker.
func Execute(ctx context.Context, req Request, emit func(match.Intent)) (Response, error) {
	if req.APIVersion != APIVersion {
		return Response{}, fmt.Errorf("%w: %d", ErrAPIVersion, req.APIVersion)
	}
	w := NewWorld(req.Snapshot, req.Storage, req.MaxMoves, emit)
	if err := runProgram(ctx, req.AgentID, req.Source, w); err != nil {
		return Response{Moves: w.Moves()}, err
	}
	return Response{Storage: w.Storage(), Moves: w.Moves()}, nil
}

// InProcessRunner runs agents in an embedded interpreter on a dedicated
// goroutine. The request is copied through JSON first so the interpreter
// shares no memory with the caller.
type InProcessRunner struct {
	// Grace is how long to wait for an interrupted interpreter to unwind.
	Grace time.Duration
}

func (r InProcessRunner) Run(ctx context.Context, req Request, emit func(match.Intent)) (Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	var isolated Request
	if err := json.Unmarshal(data, &isolated); err != nil {
		return Response{}, fmt.Errorf("decode request: %w", err)
	}

	type result struct {
		resp Response
		err  error
	}
	intents := make(chan match.Intent)
	done := make(chan result, 1)
	go func() {
		resp, err := Execute(ctx, isolated, func(in match.Intent) {
			select {
			case intents <- in:
			case <-ctx.Done():
			}
		})
		done <- result{resp, err}
	}()

	for {
		select {
		case in := <-intents:
			emit(in)
		case res := <-done:
			return res.resp, res.err
		case <-ctx.Done():
			grace := r.Grace
			if grace <= 0 {
				grace = time.Second
			}
			select {
			case <-done:
			case <-time.After(grace):
			}
			return Response{}, ctx.Err()
		}
	}
}
