package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/mode"
)

// Engine holds the economy hooks as compiled chunks on one gopher-lua VM.
// Single-goroutine access only (game loop). The mode calls it from inside a
// step, so scripts see no clock, no randomness and no io.
//
// Every hook call re-runs the chunks in a fresh environment, so nothing a
// script stores in a global or an upvalue survives into the next call. Hook
// results depend only on their arguments, which keeps resumed and replayed
// matches identical to the original run.
type Engine struct {
	vm     *lua.LState
	chunks []*lua.FunctionProto
	hooks  map[string]bool
	log    *zap.Logger
}

var _ mode.Scripts = (*Engine)(nil)

// Hook names looked up in the script environment. A missing hook falls back
// to the built-in rule.
const (
	hookKnockoutAward = "knockout_award"
	hookScore         = "player_score"
)

// sandboxLibs are copied into each environment so a script that writes into
// a library table only changes its own copy.
var sandboxLibs = []string{lua.TabLibName, lua.StringLibName, lua.MathLibName}

const lockedMetatable = lua.LString("locked")

func newVM() *lua.LState {
	vm := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		vm.Push(vm.NewFunction(lib.fn))
		vm.Push(lua.LString(lib.name))
		vm.Call(1, 0)
	}
	// Replicas must agree, so nothing nondeterministic is reachable.
	if m, ok := vm.GetGlobal(lua.MathLibName).(*lua.LTable); ok {
		m.RawSetString("random", lua.LNil)
		m.RawSetString("randomseed", lua.LNil)
	}
	// Environments must not reach the shared globals.
	for _, g := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "getfenv", "setfenv", "_G"} {
		vm.SetGlobal(g, lua.LNil)
	}
	if mt, ok := vm.GetMetatable(lua.LString("")).(*lua.LTable); ok {
		mt.RawSetString("__metatable", lockedMetatable)
	}
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return vm
}

// NewEngine creates a Lua engine from every .lua file of the directory in
// name order. A missing directory yields an engine with no hooks.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := &Engine{vm: newVM(), log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	if err := e.index(); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// NewEngineFromSource creates an engine from a single chunk.
func NewEngineFromSource(src string, log *zap.Logger) (*Engine, error) {
	e := &Engine{vm: newVM(), log: log}
	fn, err := e.vm.LoadString(src)
	if err == nil {
		e.chunks = append(e.chunks, fn.Proto)
		err = e.index()
	}
	if err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return e, nil
}

// loadDir compiles all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fn, err := e.vm.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.chunks = append(e.chunks, fn.Proto)
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// index runs the chunks once to catch runtime errors at load time and to
// record which hooks they define.
func (e *Engine) index() error {
	env, err := e.instantiate()
	if err != nil {
		return err
	}
	e.hooks = make(map[string]bool)
	for _, name := range []string{hookKnockoutAward, hookScore} {
		if _, ok := env.RawGetString(name).(*lua.LFunction); ok {
			e.hooks[name] = true
		}
	}
	return nil
}

// instantiate runs every chunk in a new environment and returns it. Reads
// fall through to the base library; writes stay in the environment.
func (e *Engine) instantiate() (*lua.LTable, error) {
	env := e.vm.NewTable()
	for _, name := range sandboxLibs {
		lib, ok := e.vm.GetGlobal(name).(*lua.LTable)
		if !ok {
			continue
		}
		cp := e.vm.NewTable()
		lib.ForEach(func(k, v lua.LValue) { cp.RawSet(k, v) })
		env.RawSetString(name, cp)
	}
	env.RawSetString("_G", env)
	mt := e.vm.NewTable()
	mt.RawSetString("__index", e.vm.G.Global)
	mt.RawSetString("__metatable", lockedMetatable)
	e.vm.SetMetatable(env, mt)

	for _, proto := range e.chunks {
		fn := e.vm.NewFunctionFromProto(proto)
		fn.Env = env
		if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// Has reports whether a hook is defined.
func (e *Engine) Has(name string) bool {
	return e.hooks[name]
}

// KnockoutAward calls knockout_award(tool, default). The default is the
// tool flavour's own award.
func (e *Engine) KnockoutAward(tool string, fallback int32) int32 {
	v, ok := e.call(hookKnockoutAward, lua.LString(tool), lua.LNumber(fallback))
	if !ok {
		return fallback
	}
	return v
}

// Score calls player_score(stats). Without the hook the default scoreboard
// formula applies.
func (e *Engine) Score(s *mode.Stats) int32 {
	if !e.Has(hookScore) {
		return s.DefaultScore()
	}
	t := e.vm.NewTable()
	t.RawSetString("money", lua.LNumber(s.Money))
	t.RawSetString("knockouts", lua.LNumber(s.Knockouts))
	t.RawSetString("assists", lua.LNumber(s.Assists))
	t.RawSetString("deaths", lua.LNumber(s.Deaths))
	t.RawSetString("bomb_plants", lua.LNumber(s.BombPlants))
	t.RawSetString("bomb_explosions", lua.LNumber(s.BombExplosions))
	t.RawSetString("bomb_defuses", lua.LNumber(s.BombDefuses))
	v, ok := e.call(hookScore, t)
	if !ok {
		return s.DefaultScore()
	}
	return v
}

// call invokes a hook returning one number. Results are truncated toward
// zero and saturated to int32.
func (e *Engine) call(name string, args ...lua.LValue) (int32, bool) {
	if !e.Has(name) {
		return 0, false
	}
	env, err := e.instantiate()
	if err != nil {
		e.log.Error("lua instantiate error", zap.String("func", name), zap.Error(err))
		return 0, false
	}
	fn, ok := env.RawGetString(name).(*lua.LFunction)
	if !ok {
		return 0, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return 0, false
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, ok := result.(lua.LNumber)
	if !ok {
		e.log.Error("lua hook returned non-number", zap.String("func", name), zap.String("type", result.Type().String()))
		return 0, false
	}
	f := math.Trunc(float64(n))
	switch {
	case math.IsNaN(f):
		return 0, false
	case f > math.MaxInt32:
		return math.MaxInt32, true
	case f < math.MinInt32:
		return math.MinInt32, true
	}
	return int32(f), true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
