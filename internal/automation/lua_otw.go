//go:build !no_automation

package automation

import (
	lua "github.com/yuin/gopher-lua"

	"ok-to-wake/internal/schedule"
)

// registerModule installs the `otw` global table.
func registerModule(L *lua.LState, h *Hook) {
	mod := L.NewTable()

	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return otwLog(L, h)
	}))
	mod.RawSetString("between", L.NewFunction(otwBetween))

	L.SetGlobal("otw", mod)
}

// otw.log(level, msg)
func otwLog(L *lua.LState, h *Hook) int {
	level := L.CheckString(1)
	msg := L.CheckString(2)

	switch level {
	case "debug":
		h.logger.Debug("script log", "msg", msg)
	case "warn":
		h.logger.Warn("script log", "msg", msg)
	case "error":
		h.logger.Error("script log", "msg", msg)
	default:
		h.logger.Info("script log", "msg", msg)
	}
	return 0
}

// otw.between("22:00", "06:00", minute) reports whether minute falls in the
// window, with the same wraparound rule as the schedule.
func otwBetween(L *lua.LState) int {
	from, err := schedule.ParseTimeOfDay(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	to, err := schedule.ParseTimeOfDay(L.CheckString(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	minute := schedule.TimeOfDay(L.CheckInt(3))

	w := schedule.Window{Start: from, End: to}
	L.Push(lua.LBool(w.Contains(minute)))
	return 1
}
