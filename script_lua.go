// script_lua.go - Lua scripting host for the monitor
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// LuaHost runs monitor scripts against a DebugX86. Scripts execute on the
// caller's goroutine and must not be used while the runner's worker owns the
// machine.
type LuaHost struct {
	L   *lua.LState
	dbg *DebugX86
	m   *XTMachine
	out func(string)
}

// NewLuaHost creates a Lua state with the machine API installed. print is
// routed to out.
func NewLuaHost(dbg *DebugX86, out func(string)) *LuaHost {
	h := &LuaHost{L: lua.NewState(), dbg: dbg, m: dbg.m, out: out}
	for name, fn := range map[string]lua.LGFunction{
		"print":          h.luaPrint,
		"cpu_step":       h.luaStep,
		"cpu_run":        h.luaRun,
		"cycles":         h.luaCycles,
		"reg":            h.luaReg,
		"set_reg":        h.luaSetReg,
		"peek":           h.luaPeek,
		"poke":           h.luaPoke,
		"port_in":        h.luaPortIn,
		"port_out":       h.luaPortOut,
		"breakpoint":     h.luaBreakpoint,
		"fdc_insert":     h.luaFDCInsert,
		"hdd_read_time":  h.luaHDDTime(false),
		"hdd_write_time": h.luaHDDTime(true),
	} {
		h.L.SetGlobal(name, h.L.NewFunction(fn))
	}
	return h
}

func (h *LuaHost) Close() { h.L.Close() }

func (h *LuaHost) RunFile(path string) error {
	if err := h.L.DoFile(path); err != nil {
		return fmt.Errorf("lua: %w", err)
	}
	return nil
}

func (h *LuaHost) RunString(src string) error {
	if err := h.L.DoString(src); err != nil {
		return fmt.Errorf("lua: %w", err)
	}
	return nil
}

func (h *LuaHost) luaPrint(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	if h.out != nil {
		h.out(strings.Join(parts, "\t"))
	}
	return 0
}

// cpu_step([n]) -> cycles
func (h *LuaHost) luaStep(L *lua.LState) int {
	n := L.OptInt(1, 1)
	total := 0
	for range n {
		c, err := h.dbg.Step()
		total += c
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
	}
	L.Push(lua.LNumber(total))
	return 1
}

// cpu_run(cycles) -> breakpoint address or nil
func (h *LuaHost) luaRun(L *lua.LState) int {
	ev, err := h.dbg.RunUntilBreak(L.CheckInt64(1))
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	if ev == nil {
		L.Push(lua.LNil)
	} else {
		L.Push(lua.LNumber(ev.Address))
	}
	return 1
}

func (h *LuaHost) luaCycles(L *lua.LState) int {
	L.Push(lua.LNumber(h.dbg.cpu.TSC()))
	return 1
}

func (h *LuaHost) luaReg(L *lua.LState) int {
	v, ok := h.dbg.GetRegister(L.CheckString(1))
	if !ok {
		L.ArgError(1, "unknown register")
		return 0
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (h *LuaHost) luaSetReg(L *lua.LState) int {
	if !h.dbg.SetRegister(L.CheckString(1), uint64(L.CheckInt(2))) {
		L.ArgError(1, "unknown register")
	}
	return 0
}

// peek(addr [, n]) returns n bytes as separate values.
func (h *LuaHost) luaPeek(L *lua.LState) int {
	addr := uint64(L.CheckInt(1))
	n := L.OptInt(2, 1)
	for _, b := range h.dbg.ReadMemory(addr, n) {
		L.Push(lua.LNumber(b))
	}
	return n
}

// poke(addr, byte, ...)
func (h *LuaHost) luaPoke(L *lua.LState) int {
	addr := uint64(L.CheckInt(1))
	data := make([]byte, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		data = append(data, byte(L.CheckInt(i)))
	}
	h.dbg.WriteMemory(addr, data)
	return 0
}

func (h *LuaHost) luaPortIn(L *lua.LState) int {
	L.Push(lua.LNumber(h.m.In(uint16(L.CheckInt(1)))))
	return 1
}

func (h *LuaHost) luaPortOut(L *lua.LState) int {
	h.m.Out(uint16(L.CheckInt(1)), byte(L.CheckInt(2)))
	return 0
}

// breakpoint(addr [, false]) sets or clears a breakpoint at a linear address.
func (h *LuaHost) luaBreakpoint(L *lua.LState) int {
	addr := uint64(L.CheckInt(1))
	if L.OptBool(2, true) {
		h.dbg.SetBreakpoint(addr)
	} else {
		h.dbg.ClearBreakpoint(addr)
	}
	return 0
}

// fdc_insert(drive, path [, wp])
func (h *LuaHost) luaFDCInsert(L *lua.LState) int {
	if err := h.m.InsertFloppy(L.CheckInt(1), L.CheckString(2), L.OptBool(3, false)); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

// hdd_read_time(lba [, n]) / hdd_write_time(lba [, n]) -> microseconds
func (h *LuaHost) luaHDDTime(write bool) lua.LGFunction {
	return func(L *lua.LState) int {
		lba := uint32(L.CheckInt(1))
		n := uint32(L.OptInt(2, 1))
		L.Push(lua.LNumber(h.m.HDDAccess(lba, n, write)))
		return 1
	}
}
