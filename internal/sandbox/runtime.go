package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/pkg/dicewars"
)

const (
	maxCallStackSize = 512
	maxConsoleLines  = 100
	entryPoint       = "takeTurn"
)

// AgentError is a fault in the agent program itself: a syntax error or an
// uncaught exception.
type AgentError struct {
	Stage string // "compile" or "run"
	Err   error
}

func (e *AgentError) Error() string { return fmt.Sprintf("agent %s error: %v", e.Stage, e.Err) }
func (e *AgentError) Unwrap() error { return e.Err }

// Compile reports whether source parses as an agent program.
func Compile(source string) error {
	if _, err := goja.Compile("agent.js", source, false); err != nil {
		return &AgentError{Stage: "compile", Err: err}
	}
	return nil
}

// runProgram executes source against w in a fresh interpreter. The program
// may act at top level or define takeTurn(api). Only the api object and
// console.log are visible to it. Cancelling ctx interrupts the interpreter.
func runProgram(ctx context.Context, agentID, source string, w *World) error {
	prog, err := goja.Compile("agent.js", source, false)
	if err != nil {
		return &AgentError{Stage: "compile", Err: err}
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)
	b, err := newBinding(vm, agentID, w)
	if err != nil {
		return err
	}
	api := b.apiObject()
	if err := vm.Set("api", api); err != nil {
		return fmt.Errorf("install api: %w", err)
	}
	if err := vm.Set("console", b.consoleObject()); err != nil {
		return fmt.Errorf("install console: %w", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	if _, err := vm.RunProgram(prog); err != nil {
		return runError(err)
	}
	if fn, ok := goja.AssertFunction(vm.Get(entryPoint)); ok {
		if _, err := fn(goja.Undefined(), api); err != nil {
			return runError(err)
		}
	}
	return nil
}

func runError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
		return context.Canceled
	}
	return &AgentError{Stage: "run", Err: err}
}

// binding exposes World operations to the interpreter. Every call decodes
// its arguments into an Op; results cross back as parsed JSON.
type binding struct {
	vm      *goja.Runtime
	agentID string
	w       *World
	parse   goja.Callable
	logged  int
}

func newBinding(vm *goja.Runtime, agentID string, w *World) (*binding, error) {
	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, errors.New("interpreter has no JSON.parse")
	}
	return &binding{vm: vm, agentID: agentID, w: w, parse: parse}, nil
}

func (b *binding) apiObject() *goja.Object {
	snap := b.w.Snapshot()
	api := b.vm.NewObject()
	set := func(name string, v any) { api.Set(name, v) }

	set("apiVersion", APIVersion)
	set("playerId", snap.PlayerID)
	set("turn", snap.Turn)
	set("width", snap.Board.Width)
	set("height", snap.Board.Height)
	set("maxDice", snap.Board.MaxDice)
	set("diceSides", snap.DiceSides)
	set("players", b.toJS(snap.Players))

	set("myTiles", b.fn(func(goja.FunctionCall) Op { return OpMyTiles{} }))
	set("enemyTiles", b.fn(func(goja.FunctionCall) Op { return OpEnemyTiles{} }))
	set("allTiles", b.fn(func(goja.FunctionCall) Op { return OpAllTiles{} }))
	set("adjacentTiles", b.fn(func(c goja.FunctionCall) Op {
		x, y := b.xyArgs(c, "adjacentTiles")
		return OpAdjacent{X: x, Y: y}
	}))
	set("tileAt", b.fn(func(c goja.FunctionCall) Op {
		x, y := b.xyArgs(c, "tileAt")
		return OpTileAt{X: x, Y: y}
	}))
	set("largestConnectedRegion", b.fn(func(c goja.FunctionCall) Op {
		return OpRegion{PlayerID: b.intArg(c, 0, "largestConnectedRegion")}
	}))
	set("reinforcementsFor", b.fn(func(c goja.FunctionCall) Op {
		return OpReinforcements{PlayerID: b.intArg(c, 0, "reinforcementsFor")}
	}))
	set("simulateAttack", b.fn(func(c goja.FunctionCall) Op {
		return OpSimulate{From: b.coordArg(c, 0, "simulateAttack"), To: b.coordArg(c, 1, "simulateAttack")}
	}))
	set("winProbability", b.fn(func(c goja.FunctionCall) Op {
		return OpWinProbability{AttackerDice: b.intArg(c, 0, "winProbability"), DefenderDice: b.intArg(c, 1, "winProbability")}
	}))
	set("attack", b.fn(func(c goja.FunctionCall) Op {
		return OpAttack{From: b.coordArg(c, 0, "attack"), To: b.coordArg(c, 1, "attack")}
	}))
	set("endTurn", b.fn(func(goja.FunctionCall) Op { return OpEndTurn{} }))
	set("save", b.fn(func(c goja.FunctionCall) Op {
		return OpSave{Key: b.stringArg(c, 0, "save"), Value: c.Argument(1).Export()}
	}))
	set("load", b.fn(func(c goja.FunctionCall) Op {
		return OpLoad{Key: b.stringArg(c, 0, "load")}
	}))
	return api
}

func (b *binding) consoleObject() *goja.Object {
	console := b.vm.NewObject()
	console.Set("log", func(c goja.FunctionCall) goja.Value {
		if b.logged >= maxConsoleLines {
			return goja.Undefined()
		}
		b.logged++
		parts := make([]string, len(c.Arguments))
		for i, a := range c.Arguments {
			parts[i] = a.String()
		}
		log.Debug().Str("agentId", b.agentID).Msg(strings.Join(parts, " "))
		return goja.Undefined()
	})
	return console
}

// fn wraps an argument decoder into a native function that runs the decoded
// operation against the world.
func (b *binding) fn(decode func(goja.FunctionCall) Op) func(goja.FunctionCall) goja.Value {
	return func(c goja.FunctionCall) goja.Value {
		op := decode(c)
		res, err := b.w.Do(op)
		if err != nil {
			panic(b.vm.NewTypeError("%s", err.Error()))
		}
		return b.toJS(res)
	}
}

func (b *binding) toJS(v any) goja.Value {
	if v == nil {
		return goja.Null()
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(b.vm.NewGoError(err))
	}
	out, err := b.parse(goja.Undefined(), b.vm.ToValue(string(data)))
	if err != nil {
		panic(b.vm.NewGoError(err))
	}
	return out
}

func (b *binding) intArg(c goja.FunctionCall, i int, name string) int {
	n, ok := toInt(c.Argument(i))
	if !ok {
		panic(b.vm.NewTypeError("%s: argument %d must be an integer", name, i+1))
	}
	return n
}

func (b *binding) stringArg(c goja.FunctionCall, i int, name string) string {
	v := c.Argument(i)
	s, ok := v.Export().(string)
	if !ok {
		panic(b.vm.NewTypeError("%s: argument %d must be a string", name, i+1))
	}
	return s
}

// xyArgs accepts either (x, y) or a single {x, y} object.
func (b *binding) xyArgs(c goja.FunctionCall, name string) (int, int) {
	if _, ok := c.Argument(0).(*goja.Object); ok {
		p := b.coordArg(c, 0, name)
		return p.X, p.Y
	}
	return b.intArg(c, 0, name), b.intArg(c, 1, name)
}

func (b *binding) coordArg(c goja.FunctionCall, i int, name string) dicewars.Coord {
	obj, ok := c.Argument(i).(*goja.Object)
	if ok {
		x, okX := toInt(obj.Get("x"))
		y, okY := toInt(obj.Get("y"))
		if okX && okY {
			return dicewars.Coord{X: x, Y: y}
		}
	}
	panic(b.vm.NewTypeError("%s: argument %d must be an {x, y} object", name, i+1))
}

func toInt(v goja.Value) (int, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}
	switch n := v.Export().(type) {
	case int64:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
