//go:build !no_automation

// Package automation runs an optional Lua script that can override the
// color the schedule picks.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"ok-to-wake/internal/device"
	"ok-to-wake/internal/light"
)

// Enabled reports whether this build includes the Lua hook.
const Enabled = true

var errNoChoose = errors.New("script does not define choose(ctx)")

// Hook holds one sandboxed Lua VM. Calls are serialized.
type Hook struct {
	mu     sync.Mutex
	L      *lua.LState
	choose *lua.LFunction
	name   string
	logger *slog.Logger
}

// Load reads and starts the script at path.
func Load(path string, logger *slog.Logger) (*Hook, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hook script: %w", err)
	}
	return New(path, string(code), logger)
}

// New runs code once and keeps its global choose function.
func New(name, code string, logger *slog.Logger) (*Hook, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})

	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("debug", lua.LNil)
	L.SetGlobal("package", lua.LNil)

	h := &Hook{L: L, name: name, logger: logger.With("component", "automation", "script", name)}
	registerModule(L, h)

	ctx, cancel := context.WithTimeout(context.Background(), device.HookTimeout*10)
	defer cancel()
	L.SetContext(ctx)
	err := L.DoString(code)
	L.RemoveContext()
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("execute hook script %s: %w", name, err)
	}

	fn, ok := L.GetGlobal("choose").(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("%s: %w", name, errNoChoose)
	}
	h.choose = fn
	h.logger.Info("hook loaded")
	return h, nil
}

// Choose calls choose(ctx) and parses the returned color name.
func (h *Hook) Choose(ctx context.Context, in device.HookInput) (light.Color, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	L := h.L
	L.SetContext(ctx)
	defer L.RemoveContext()

	tbl := L.NewTable()
	tbl.RawSetString("minute", lua.LNumber(in.Minute))
	tbl.RawSetString("hour", lua.LNumber(in.Now.Hour()))
	tbl.RawSetString("weekday", lua.LNumber(in.Now.Weekday()))
	tbl.RawSetString("active", lua.LBool(in.Active))
	tbl.RawSetString("wake", lua.LString(in.Wake.String()))
	tbl.RawSetString("sleep", lua.LString(in.Sleep.String()))

	if err := L.CallByParam(lua.P{Fn: h.choose, NRet: 1, Protect: true}, tbl); err != nil {
		if strings.Contains(err.Error(), "context deadline exceeded") {
			return light.Off, fmt.Errorf("choose: timeout (%s)", device.HookTimeout)
		}
		return light.Off, fmt.Errorf("choose: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	s, ok := ret.(lua.LString)
	if !ok {
		return light.Off, fmt.Errorf("choose returned %s, want color name", ret.Type())
	}
	return light.ParseColor(string(s))
}

// Close releases the VM.
func (h *Hook) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.L.Close()
}
