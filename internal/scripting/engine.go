package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for view policy and bot movement.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// Load core scripts first, then feature scripts
	for _, sub := range []string{"core", "world"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source in the engine's VM.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

// HasFunc reports whether a global Lua function is defined.
func (e *Engine) HasFunc(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// ClampViewDistance calls Lua clamp_view_distance(requested, max) and bounds
// the answer to [0, max]. Without the script the request itself is clamped.
func (e *Engine) ClampViewDistance(requested, maxDistance int) int {
	fallback := min(max(requested, 0), maxDistance)

	fn := e.vm.GetGlobal("clamp_view_distance")
	if fn == lua.LNil {
		e.log.Error("lua function clamp_view_distance not found")
		return fallback
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(requested), lua.LNumber(maxDistance)); err != nil {
		e.log.Error("lua clamp_view_distance error", zap.Error(err))
		return fallback
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, ok := result.(lua.LNumber)
	if !ok {
		e.log.Error("lua clamp_view_distance returned non-number")
		return fallback
	}
	return min(max(int(n), 0), maxDistance)
}

// WanderContext holds the state a bot's wander step may look at.
type WanderContext struct {
	ID    uint64
	X, Z  int32
	HomeX int32
	HomeZ int32
	Range int // how far from home the bot may stray
	Tick  uint64
}

// WanderStep calls Lua wander_step(ctx) and returns the chunk offset to
// apply. Errors and missing scripts keep the bot in place.
func (e *Engine) WanderStep(ctx WanderContext) (dx, dz int32) {
	fn := e.vm.GetGlobal("wander_step")
	if fn == lua.LNil {
		e.log.Error("lua function wander_step not found")
		return 0, 0
	}

	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(ctx.ID))
	t.RawSetString("x", lua.LNumber(ctx.X))
	t.RawSetString("z", lua.LNumber(ctx.Z))
	t.RawSetString("home_x", lua.LNumber(ctx.HomeX))
	t.RawSetString("home_z", lua.LNumber(ctx.HomeZ))
	t.RawSetString("range", lua.LNumber(ctx.Range))
	t.RawSetString("tick", lua.LNumber(ctx.Tick))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua wander_step error", zap.Error(err), zap.Uint64("id", ctx.ID))
		return 0, 0
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	if result == lua.LNil {
		return 0, 0 // stay put this tick
	}
	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua wander_step returned non-table")
		return 0, 0
	}
	return int32(lInt(rt, "dx")), int32(lInt(rt, "dz"))
}

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
