// script_lua_test.go - Lua scripting host tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"strings"
	"testing"
)

func newTestLuaHost(t *testing.T, code ...byte) (*LuaHost, *[]string) {
	t.Helper()
	m := newTestMachine(t, DefaultMachineConfig(), code...)
	var out []string
	h := NewLuaHost(NewDebugX86(NewCPUX86Runner(m)), func(s string) { out = append(out, s) })
	t.Cleanup(h.Close)
	return h, &out
}

func TestLuaHost_Scripts(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		src  string
		want string
	}{
		{"step", []byte{0xB8, 0x34, 0x12, 0x90}, "cpu_step() print(reg('AX'), reg('IP'))", "4660\t259"},
		{"set register", nil, "set_reg('cx', 0x55) print(reg('CL'))", "85"},
		{"memory", nil, "poke(0x500, 1, 2, 3) local a, b, c = peek(0x500, 3) print(a + b + c)", "6"},
		{"ports", nil, "port_out(0x21, 0xFE) print(port_in(0x21))", "254"},
		{"breakpoint", []byte{0xB8, 0x34, 0x12, 0x90, 0xEB, 0xFE}, "breakpoint(0x10103) print(cpu_run(1000))", "65795"},
		{"cycle limit", []byte{0xEB, 0xFE}, "print(cpu_run(100), cycles() >= 100)", "nil\ttrue"},
		{"no hard disk", nil, "print(hdd_read_time(0, 1))", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, out := newTestLuaHost(t, tc.code...)
			if err := h.RunString(tc.src); err != nil {
				t.Fatal(err)
			}
			if len(*out) != 1 || (*out)[0] != tc.want {
				t.Fatalf("output = %q, want %q", *out, tc.want)
			}
		})
	}
}

func TestLuaHost_Errors(t *testing.T) {
	for _, src := range []string{
		"set_reg('XX', 1)",
		"print(reg('XX'))",
		"fdc_insert(0, '/nonexistent/disk.img')",
		"this is not lua",
	} {
		h, _ := newTestLuaHost(t)
		err := h.RunString(src)
		if err == nil || !strings.HasPrefix(err.Error(), "lua: ") {
			t.Fatalf("%q: error = %v", src, err)
		}
	}
}
