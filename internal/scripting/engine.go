package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/megameal/fireflies/internal/lighting"
)

// TwinkleFunc is the Lua global consulted by Engine.Twinkle:
//
//	function firefly_twinkle(time, speed, phase, cycle) return value end
const TwinkleFunc = "firefly_twinkle"

// Engine wraps a single gopher-lua VM for lighting curves.
// Single-goroutine access only (frame loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger

	calls    uint64
	failures uint64
}

// NewEngine creates a Lua engine and loads all scripts from the lighting
// subdirectory of scriptsDir. A missing directory is not an error.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("LIGHT_THRESHOLD", lua.LNumber(lighting.LightThreshold))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(filepath.Join(scriptsDir, "lighting")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load lighting scripts: %w", err)
	}
	return e, nil
}

// NewEngineFromSource builds an engine from a single Lua chunk.
func NewEngineFromSource(src string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("LIGHT_THRESHOLD", lua.LNumber(lighting.LightThreshold))
	if err := vm.DoString(src); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load lua source: %w", err)
	}
	return &Engine{vm: vm, log: log}, nil
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

// HasTwinkle reports whether a script defined firefly_twinkle.
func (e *Engine) HasTwinkle() bool {
	return e.vm.GetGlobal(TwinkleFunc).Type() == lua.LTFunction
}

// Twinkle calls the Lua twinkle curve for f and clamps its result into
// [0,1]. Without the function, or when it errors or returns a non-number,
// the built-in sine curve is used.
func (e *Engine) Twinkle(t, speed float64, f lighting.Firefly) float64 {
	phase := lighting.PhaseOffset(f.ID)
	fn := e.vm.GetGlobal(TwinkleFunc)
	if fn.Type() != lua.LTFunction {
		return lighting.SineValue(t, speed, phase)
	}
	e.calls++

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(t), lua.LNumber(speed), lua.LNumber(phase), lua.LNumber(f.CyclePhase)); err != nil {
		e.fail("lua firefly_twinkle error", zap.Error(err))
		return lighting.SineValue(t, speed, phase)
	}

	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok || math.IsNaN(float64(n)) {
		e.fail("lua firefly_twinkle returned non-number", zap.String("type", ret.Type().String()))
		return lighting.SineValue(t, speed, phase)
	}
	return math.Min(math.Max(float64(n), 0), 1)
}

// fail logs the first script failure at error level and the rest at debug,
// since the curve is evaluated many times per tick.
func (e *Engine) fail(msg string, fields ...zap.Field) {
	e.failures++
	fields = append(fields, zap.Uint64("failures", e.failures))
	if e.failures == 1 {
		e.log.Error(msg, fields...)
		return
	}
	e.log.Debug(msg, fields...)
}

// Calls is how many times the Lua curve was invoked.
func (e *Engine) Calls() uint64 { return e.calls }

// Failures is how many Lua calls fell back to the sine curve.
func (e *Engine) Failures() uint64 { return e.failures }

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

var _ lighting.Twinkler = (*Engine)(nil)
