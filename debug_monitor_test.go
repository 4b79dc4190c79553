package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Address parsing
// ---------------------------------------------------------------------------

func TestAddressParsing(t *testing.T) {
	tests := []struct {
		input string
		want  uint64
		ok    bool
	}{
		{"$1000", 0x1000, true},
		{"0x1000", 0x1000, true},
		{"1000", 0x1000, true},
		{"#4096", 4096, true},
		{"$DEAD", 0xDEAD, true},
		{"0XBEEF", 0xBEEF, true},
		{"FF", 0xFF, true},
		{"#0", 0, true},
		{"$0", 0, true},
		{"", 0, false},
		{"xyz", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseAddress(tt.input)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseAddress(%q) = (%X, %v), want (%X, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

// ---------------------------------------------------------------------------
// Command parsing
// ---------------------------------------------------------------------------

func TestCommandParsing(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantArgs []string
	}{
		{"r ax 1000", "r", []string{"ax", "1000"}},
		{"d", "d", nil},
		{"  m  1000:0100  8  ", "m", []string{"1000:0100", "8"}},
		{"S", "s", nil},
		{"g F000:E05B", "g", []string{"F000:E05B"}},
		{"", "", nil},
		{"insert 0 a.img wp", "insert", []string{"0", "a.img", "wp"}},
	}

	for _, tt := range tests {
		cmd := ParseCommand(tt.input)
		if cmd.Name != tt.wantName {
			t.Errorf("ParseCommand(%q).Name = %q, want %q", tt.input, cmd.Name, tt.wantName)
		}
		if strings.Join(cmd.Args, " ") != strings.Join(tt.wantArgs, " ") {
			t.Errorf("ParseCommand(%q).Args = %v, want %v", tt.input, cmd.Args, tt.wantArgs)
		}
	}
}

func TestSegOffParsing(t *testing.T) {
	s, _ := newTestMonitor(t)
	s.dbg.SetRegister("AX", 0x20)
	s.dbg.SetRegister("DS", 0x1234)

	tests := []struct {
		input    string
		seg, off uint16
		ok       bool
	}{
		{"1000:0100", 0x1000, 0x0100, true},
		{"12345", 0x1234, 0x0005, true},
		{"DS:AX+10", 0x1234, 0x0030, true},
		{"ds:$100-#16", 0x1234, 0x00F0, true},
		{"10000:0", 0, 0, false},
		{"100000", 0, 0, false},
		{"1000:zz", 0, 0, false},
	}
	for _, tt := range tests {
		seg, off, ok := ParseSegOff(tt.input, s.dbg)
		if ok != tt.ok || (ok && (seg != tt.seg || off != tt.off)) {
			t.Errorf("ParseSegOff(%q) = %04X:%04X %v, want %04X:%04X %v", tt.input, seg, off, ok, tt.seg, tt.off, tt.ok)
		}
	}
}

// ---------------------------------------------------------------------------
// Session helpers
// ---------------------------------------------------------------------------

func newTestMonitor(t *testing.T, code ...byte) (*MonitorSession, *XTMachine) {
	t.Helper()
	m := newTestMachine(t, DefaultMachineConfig(), code...)
	return NewMonitorSession(NewCPUX86Runner(m)), m
}

// runCommand executes one line and returns everything it printed.
func runCommand(s *MonitorSession, line string) []OutputLine {
	s.DrainOutput()
	s.ExecuteCommand(context.Background(), line)
	return s.DrainOutput()
}

func findLine(lines []OutputLine, substr string) (OutputLine, bool) {
	for _, l := range lines {
		if strings.Contains(l.Text, substr) {
			return l, true
		}
	}
	return OutputLine{}, false
}

func expectLine(t *testing.T, lines []OutputLine, substr string) OutputLine {
	t.Helper()
	l, ok := findLine(lines, substr)
	if !ok {
		var all []string
		for _, l := range lines {
			all = append(all, l.Text)
		}
		t.Fatalf("output has no %q:\n%s", substr, strings.Join(all, "\n"))
	}
	return l
}

// ---------------------------------------------------------------------------
// Registers, step and disassembly
// ---------------------------------------------------------------------------

func TestCommandRegisters(t *testing.T) {
	s, m := newTestMonitor(t)

	expectLine(t, runCommand(s, "r ax 1234"), "AX = 1234")
	if m.CPU().AX() != 0x1234 {
		t.Fatalf("AX = %04X", m.CPU().AX())
	}
	lines := runCommand(s, "r")
	expectLine(t, lines, "AX    1234")
	expectLine(t, lines, "CS    1000")
	if l := lines[len(lines)-1]; !strings.HasPrefix(l.Text, "flags ") || len(l.Text) != len("flags ODITSZAPC") {
		t.Fatalf("flags line = %q", l.Text)
	}
	if l := expectLine(t, runCommand(s, "r zz 1"), "Unknown register"); l.Color != colorRed {
		t.Fatal("error not shown in red")
	}
}

func TestCommandStep(t *testing.T) {
	s, m := newTestMonitor(t, 0xB8, 0x34, 0x12, 0x90)

	lines := runCommand(s, "s")
	expectLine(t, lines, "Step: 1 instruction(s)")
	if l := expectLine(t, lines, "AX: 0000 -> 1234"); l.Color != colorGreen {
		t.Fatal("changed register not highlighted")
	}
	if l := expectLine(t, lines, "1000:0103"); !strings.Contains(l.Text, "NOP") {
		t.Fatalf("next instruction line = %q", l.Text)
	}
	if m.CPU().IP != 0x0103 {
		t.Fatalf("IP = %04X", m.CPU().IP)
	}
}

func TestCommandDisassemble(t *testing.T) {
	s, _ := newTestMonitor(t, 0xB8, 0x34, 0x12, 0x90)
	lines := runCommand(s, "d 1000:0100 2")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if l := lines[0]; !strings.HasPrefix(l.Text, "> 1000:0100") || !strings.Contains(l.Text, "MOV AX, 0x1234") || l.Color != colorYellow {
		t.Fatalf("PC line = %q", l.Text)
	}

	runCommand(s, "b 1000:0103")
	if l := runCommand(s, "d 1000:0103 1")[0]; !strings.HasPrefix(l.Text, "* ") || l.Color != colorRed {
		t.Fatalf("breakpoint line = %q", l.Text)
	}
	expectLine(t, runCommand(s, "d 1000:zz"), "Invalid address")
}

func TestCommandMemoryDump(t *testing.T) {
	s, _ := newTestMonitor(t, 0xB8, 0x34, 0x12, 0x90, 'H', 'i')
	lines := runCommand(s, "m 1000:0100 1")
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0].Text, "10100: B8 34 12 90 48 69") || !strings.Contains(lines[0].Text, "Hi") {
		t.Fatalf("dump = %q", lines[0].Text)
	}
}

// ---------------------------------------------------------------------------
// Breakpoints and runs
// ---------------------------------------------------------------------------

func TestBreakpointSetClearList(t *testing.T) {
	s, m := newTestMonitor(t, 0xB8, 0x34, 0x12, 0x90, 0xEB, 0xFE)

	expectLine(t, runCommand(s, "b 1000:0103"), "Breakpoint set at 10103")
	expectLine(t, runCommand(s, "b 10104"), "Breakpoint set at 10104")
	lines := runCommand(s, "bl")
	if len(lines) != 2 || lines[0].Text != "10103" || lines[1].Text != "10104" {
		t.Fatalf("bl = %+v", lines)
	}

	expectLine(t, runCommand(s, "g"), "Breakpoint at 10103")
	if m.CPU().IP != 0x0103 {
		t.Fatalf("stopped at IP %04X", m.CPU().IP)
	}

	expectLine(t, runCommand(s, "bc 1000:0103"), "Breakpoint cleared at 10103")
	expectLine(t, runCommand(s, "bc 1000:0103"), "No breakpoint at 10103")
	expectLine(t, runCommand(s, "bc *"), "All breakpoints cleared")
	expectLine(t, runCommand(s, "bl"), "No breakpoints")
}

func TestCommandGoCycleLimit(t *testing.T) {
	s, m := newTestMonitor(t, 0xEB, 0xFE)
	expectLine(t, runCommand(s, "g 1000:0100 #2000"), "Ran 2000 cycles")
	if tsc := m.CPU().TSC(); tsc < 2000 {
		t.Fatalf("TSC = %d", tsc)
	}
	expectLine(t, runCommand(s, "g 0"), "Invalid cycle count")
}

func TestCommandRunStop(t *testing.T) {
	s, m := newTestMonitor(t, 0xEB, 0xFE)

	expectLine(t, runCommand(s, "run"), "Running")
	if !s.Running() {
		t.Fatal("session not running after run")
	}
	expectLine(t, runCommand(s, "r"), "Machine is running")
	expectLine(t, runCommand(s, "help"), "run / stop")

	lines := runCommand(s, "stop")
	expectLine(t, lines, "Stopped at 1000:0100")
	if s.Running() {
		t.Fatal("session still running after stop")
	}
	if m.CPU().TSC() == 0 {
		t.Fatal("machine did not run")
	}
	expectLine(t, runCommand(s, "stop"), "Not running")
}

func TestCommandExitWhileRunning(t *testing.T) {
	s, _ := newTestMonitor(t, 0xEB, 0xFE)
	runCommand(s, "run")
	if !s.ExecuteCommand(context.Background(), "x") {
		t.Fatal("x should exit")
	}
	if s.Running() {
		t.Fatal("exit left the worker running")
	}
}

// ---------------------------------------------------------------------------
// Memory and ports
// ---------------------------------------------------------------------------

func TestMemoryFillWrite(t *testing.T) {
	s, m := newTestMonitor(t)

	expectLine(t, runCommand(s, "f 0:500 50F AA"), "Filled 00500-0050F with AA")
	for a := uint32(0x500); a <= 0x50F; a++ {
		if m.Read(a) != 0xAA {
			t.Fatalf("%05X = %02X", a, m.Read(a))
		}
	}
	if m.Read(0x510) != 0 {
		t.Fatal("fill overran its range")
	}
	expectLine(t, runCommand(s, "f 0:500 4FF AA"), "Invalid range")

	expectLine(t, runCommand(s, "w 0:600 1 2 3"), "Wrote 3 byte(s) at 00600")
	if m.Read(0x600) != 1 || m.Read(0x602) != 3 {
		t.Fatal("write did not land")
	}
	expectLine(t, runCommand(s, "w 0:600 100"), "Invalid byte")
}

func TestPortCommands(t *testing.T) {
	s, _ := newTestMonitor(t)
	expectLine(t, runCommand(s, "o 21 FE"), "OUT 0021,FE")
	expectLine(t, runCommand(s, "i 21"), "IN 0021 = FE")
	expectLine(t, runCommand(s, "i 10000"), "Invalid port")
	expectLine(t, runCommand(s, "o 21 100"), "Invalid argument")
}

// ---------------------------------------------------------------------------
// Media
// ---------------------------------------------------------------------------

func TestFloppyCommands(t *testing.T) {
	s, m := newTestMonitor(t)
	path := filepath.Join(t.TempDir(), "boot.img")
	if err := os.WriteFile(path, make([]byte, 368640), 0o644); err != nil {
		t.Fatal(err)
	}

	expectLine(t, runCommand(s, "fdc"), "drive 0: cylinder 0, empty")
	expectLine(t, runCommand(s, "insert 0 "+path), "Drive 0: "+path)
	if !m.FDC().Drive(0).HasMedia() {
		t.Fatal("image not inserted")
	}
	expectLine(t, runCommand(s, "fdc"), "drive 0: cylinder 0, loaded")
	expectLine(t, runCommand(s, "insert 0 "+filepath.Join(t.TempDir(), "none.img")), "Error:")
	expectLine(t, runCommand(s, "eject 0"), "Drive 0 ejected")
	if m.FDC().Drive(0).HasMedia() {
		t.Fatal("eject left media in the drive")
	}
	expectLine(t, runCommand(s, "eject x"), "Invalid drive")
}

func TestHDDCommand(t *testing.T) {
	s, _ := newTestMonitor(t)
	expectLine(t, runCommand(s, "hdd 0"), "No hard disk fitted")

	cfg := DefaultMachineConfig()
	cfg.HDDPreset = &NewHDDCatalog().Presets()[0]
	s = NewMonitorSession(NewCPUX86Runner(newTestMachine(t, cfg)))
	expectLine(t, runCommand(s, "hdd 100 4 w"), "write 4 sector(s) at 256: 50.0 us")
	expectLine(t, runCommand(s, "hdd 100 0"), "Invalid sector count")
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

func TestCommandMisc(t *testing.T) {
	s, m := newTestMonitor(t)

	expectLine(t, runCommand(s, "frobnicate"), "Unknown command: frobnicate")
	if len(runCommand(s, "?")) < 10 {
		t.Fatal("help too short")
	}
	lines := runCommand(s, "h")
	expectLine(t, lines, "1  frobnicate")
	expectLine(t, lines, "3  h")

	expectLine(t, runCommand(s, "reset"), "Machine reset")
	if m.CPU().CS() != 0xFFFF {
		t.Fatalf("CS after reset = %04X", m.CPU().CS())
	}

	for _, cmd := range []string{"x", "q", "quit", "exit"} {
		if !s.ExecuteCommand(context.Background(), cmd) {
			t.Fatalf("%s should exit", cmd)
		}
	}
	if s.ExecuteCommand(context.Background(), "   ") {
		t.Fatal("blank line exited")
	}
}

func TestOutputScrollback(t *testing.T) {
	s, _ := newTestMonitor(t)
	s.DrainOutput()
	for i := range 1200 {
		s.appendOutput(fmt.Sprintf("Line %d", i), colorWhite)
	}
	lines := s.DrainOutput()
	if len(lines) != 1000 || lines[0].Text != "Line 200" {
		t.Fatalf("kept %d lines starting with %q", len(lines), lines[0].Text)
	}
	if len(s.DrainOutput()) != 0 {
		t.Fatal("drain did not clear the buffer")
	}
}

func TestScriptCommand(t *testing.T) {
	s, m := newTestMonitor(t)
	path := filepath.Join(t.TempDir(), "t.lua")
	src := "set_reg('BX', 0x4321)\nprint('bx', reg('BX'))\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	lines := runCommand(s, "script "+path)
	expectLine(t, lines, "bx\t17185")
	expectLine(t, lines, "BX: 0000 -> 4321")
	if m.CPU().BX() != 0x4321 {
		t.Fatalf("BX = %04X", m.CPU().BX())
	}
	expectLine(t, runCommand(s, "script "+filepath.Join(t.TempDir(), "none.lua")), "Script error")
}
