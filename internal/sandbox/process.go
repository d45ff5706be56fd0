package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/match"
)

// Worker protocol message types. The host writes one turn line; the worker
// answers with intent lines followed by a single done or error line.
const (
	MsgTurn   = "turn"
	MsgIntent = "intent"
	MsgDone   = "done"
	MsgError  = "error"
)

// maxLineSize bounds a single protocol line.
const maxLineSize = 4 << 20

// Message is one newline-delimited JSON line of the worker protocol.
type Message struct {
	Type    string         `json:"type"`
	Request *Request       `json:"request,omitempty"`
	Intent  *match.Intent  `json:"intent,omitempty"`
	Storage map[string]any `json:"storage,omitempty"`
	Moves   int            `json:"moves,omitempty"`
	Stage   string         `json:"stage,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ProcessRunner runs each turn in a fresh worker process (cmd/agentd). The
// process is killed when the context ends.
type ProcessRunner struct {
	Path string
	Args []string
}

// NewProcessRunner returns a runner that spawns the worker binary at path.
func NewProcessRunner(path string, args ...string) *ProcessRunner {
	return &ProcessRunner{Path: path, Args: args}
}

func (r *ProcessRunner) Run(ctx context.Context, req Request, emit func(match.Intent)) (Response, error) {
	cmd := exec.CommandContext(ctx, r.Path, r.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Response{}, fmt.Errorf("stdin pipe: %w", err)
	}
	// An in-memory pipe lets Wait finish copying stdout before the reader
	// sees EOF, so the final line is never lost.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	stderr := &limitedBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return Response{}, fmt.Errorf("start worker: %w", err)
	}
	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		pw.Close()
		close(exited)
	}()
	finish := func() {
		pr.Close()
		select {
		case <-exited:
		case <-time.After(2 * time.Second):
			log.Warn().Str("worker", r.Path).Msg("Worker did not exit within 2s, killing")
			cmd.Process.Kill()
			<-exited
		}
	}

	go func() {
		defer stdin.Close()
		json.NewEncoder(stdin).Encode(Message{Type: MsgTurn, Request: &req})
	}()

	lines := make(chan Message)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64<<10), maxLineSize)
		for scanner.Scan() {
			var msg Message
			if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
				log.Warn().Err(err).Str("agentId", req.AgentID).Msg("Ignoring malformed worker line")
				continue
			}
			select {
			case lines <- msg:
			case <-exited:
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-lines:
			if !ok {
				finish()
				if ctx.Err() != nil {
					return Response{}, ctx.Err()
				}
				return Response{}, fmt.Errorf("worker exited without a result: %s", stderr.String())
			}
			switch msg.Type {
			case MsgIntent:
				if msg.Intent != nil {
					emit(*msg.Intent)
				}
			case MsgDone:
				finish()
				return Response{Storage: msg.Storage, Moves: msg.Moves}, nil
			case MsgError:
				finish()
				if msg.Stage == "" {
					return Response{}, fmt.Errorf("worker: %s", msg.Message)
				}
				return Response{Moves: msg.Moves}, &AgentError{Stage: msg.Stage, Err: errors.New(msg.Message)}
			}
		case <-ctx.Done():
			// CommandContext has killed the process.
			finish()
			return Response{}, ctx.Err()
		}
	}
}

// Serve is the worker side of the protocol: it reads one turn request from
// in, runs it, and streams the result to out.
func Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read request: %w", err)
		}
		return errors.New("read request: no input")
	}

	var msg Message
	if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
		return enc.Encode(Message{Type: MsgError, Message: "malformed request: " + err.Error()})
	}
	if msg.Type != MsgTurn || msg.Request == nil {
		return enc.Encode(Message{Type: MsgError, Message: fmt.Sprintf("unexpected message %q", msg.Type)})
	}

	var writeErr error
	resp, err := Execute(ctx, *msg.Request, func(in match.Intent) {
		if writeErr == nil {
			writeErr = enc.Encode(Message{Type: MsgIntent, Intent: &in})
		}
	})
	if writeErr != nil {
		return fmt.Errorf("write intent: %w", writeErr)
	}
	if err != nil {
		reply := Message{Type: MsgError, Moves: resp.Moves, Message: err.Error()}
		var ae *AgentError
		if errors.As(err, &ae) {
			reply.Stage = ae.Stage
			reply.Message = ae.Err.Error()
		}
		return enc.Encode(reply)
	}
	return enc.Encode(Message{Type: MsgDone, Storage: resp.Storage, Moves: resp.Moves})
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *limitedBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if room := t.max - len(t.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		t.buf = append(t.buf, p[:room]...)
	}
	return len(p), nil
}

func (t *limitedBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
