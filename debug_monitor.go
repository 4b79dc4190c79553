// debug_monitor.go - monitor session core (output buffer, register tracking, background runs)

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionXT
License: GPLv3 or later
*/

package main

import (
	"context"
	"fmt"
	"sync"
)

// OutputLine holds styled text for the monitor scrollback buffer.
type OutputLine struct {
	Text  string
	Color uint32 // RGBA packed
}

// defaultRunLimit bounds a "g" command: about two seconds at 4.77 MHz.
const defaultRunLimit = 10_000_000

// MonitorSession is the debugger state behind the terminal host and the
// script host. Commands run on the caller's goroutine; only "run" hands the
// machine to the runner's worker until "stop".
type MonitorSession struct {
	mu sync.Mutex

	dbg    *DebugX86
	runner *CPUX86Runner
	m      *XTMachine
	lua    *LuaHost

	outputLines []OutputLine
	maxOutput   int
	history     []string

	prevRegs map[string]uint64 // for change highlighting
	runLimit int64
}

// NewMonitorSession creates a session driving runner's machine.
func NewMonitorSession(runner *CPUX86Runner) *MonitorSession {
	s := &MonitorSession{
		dbg:       NewDebugX86(runner),
		runner:    runner,
		m:         runner.Machine(),
		maxOutput: 1000,
		runLimit:  defaultRunLimit,
	}
	s.saveCurrentRegs()
	return s
}

func (s *MonitorSession) Debugger() *DebugX86 { return s.dbg }

// appendOutput adds a line to the scrollback buffer.
func (s *MonitorSession) appendOutput(text string, color uint32) {
	s.outputLines = append(s.outputLines, OutputLine{Text: text, Color: color})
	if len(s.outputLines) > s.maxOutput {
		s.outputLines = s.outputLines[len(s.outputLines)-s.maxOutput:]
	}
}

// DrainOutput returns and clears the buffered output.
func (s *MonitorSession) DrainOutput() []OutputLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outputLines
	s.outputLines = nil
	return out
}

// saveCurrentRegs snapshots the registers for change detection.
func (s *MonitorSession) saveCurrentRegs() {
	s.prevRegs = make(map[string]uint64)
	for _, r := range s.dbg.GetRegisters() {
		s.prevRegs[r.Name] = r.Value
	}
}

// Running reports whether the runner's worker owns the machine.
func (s *MonitorSession) Running() bool { return s.runner.IsRunning() }

// startRun hands the machine to the runner until stopRun.
func (s *MonitorSession) startRun(ctx context.Context) {
	s.runner.StartExecution(ctx, 0)
	s.appendOutput("Running, type stop to break in", colorCyan)
}

func (s *MonitorSession) stopRun() {
	if err := s.runner.Stop(); err != nil {
		s.appendOutput(fmt.Sprintf("Error: %v", err), colorRed)
	}
	s.appendOutput(fmt.Sprintf("Stopped at %04X:%04X", s.dbg.cpu.CS(), s.dbg.cpu.IP), colorRed)
	s.showRegisters()
	s.showDisassembly(s.dbg.cpu.CS(), s.dbg.cpu.IP, 4)
	s.saveCurrentRegs()
}

// Color constants (RGBA packed as 0xRRGGBBAA)
const (
	colorWhite  = 0xFFFFFFFF
	colorCyan   = 0x64C8FFFF
	colorYellow = 0xFFFF55FF
	colorRed    = 0xFF5555FF
	colorGreen  = 0x55FF55FF
	colorDim    = 0x5555FFFF
)
