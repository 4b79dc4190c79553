// debug_commands.go - command parser and handlers for the monitor session

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
	"strconv"
	"strings"
)

// MonitorCommand is a parsed command with name and arguments.
type MonitorCommand struct {
	Name string
	Args []string
}

// ParseCommand splits a raw input line into a command name and arguments.
func ParseCommand(input string) MonitorCommand {
	input = strings.TrimSpace(input)
	if input == "" {
		return MonitorCommand{}
	}
	parts := strings.Fields(input)
	return MonitorCommand{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}
}

// ParseAddress parses a monitor number in various formats:
// $hex, 0xhex, bare hex, #decimal
func ParseAddress(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// #decimal
	if rest, ok := strings.CutPrefix(s, "#"); ok {
		v, err := strconv.ParseUint(rest, 10, 64)
		return v, err == nil
	}

	// $hex
	if rest, ok := strings.CutPrefix(s, "$"); ok {
		v, err := strconv.ParseUint(rest, 16, 64)
		return v, err == nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	}

	v, err := strconv.ParseUint(s, 16, 64)
	return v, err == nil
}

// EvalAddress evaluates a simple expression: <term> [+|- <term>]*
// Each term is either a register name or a number.
func EvalAddress(expr string, cpu DebuggableCPU) (uint64, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, false
	}

	type token struct {
		text string
		op   byte // 0 for first term, '+' or '-'
	}

	var tokens []token
	current := strings.Builder{}
	currentOp := byte(0)

	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		if (ch == '+' || ch == '-') && i > 0 {
			if t := strings.TrimSpace(current.String()); t != "" {
				tokens = append(tokens, token{text: t, op: currentOp})
			}
			currentOp = ch
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}
	if t := strings.TrimSpace(current.String()); t != "" {
		tokens = append(tokens, token{text: t, op: currentOp})
	}
	if len(tokens) == 0 {
		return 0, false
	}

	var result uint64
	for _, tok := range tokens {
		var val uint64
		var ok bool
		if cpu != nil {
			val, ok = cpu.GetRegister(strings.ToUpper(tok.text))
		}
		if !ok {
			val, ok = ParseAddress(tok.text)
		}
		if !ok {
			return 0, false
		}
		switch tok.op {
		case 0, '+':
			result += val
		case '-':
			result -= val
		}
	}
	return result, true
}

// ParseSegOff evaluates "seg:off" or a linear address. A linear address is
// split into a normalized seg:off pair with the offset below 16.
func ParseSegOff(expr string, cpu DebuggableCPU) (seg, off uint16, ok bool) {
	if s, o, found := strings.Cut(expr, ":"); found {
		sv, ok1 := EvalAddress(s, cpu)
		ov, ok2 := EvalAddress(o, cpu)
		if !ok1 || !ok2 || sv > 0xFFFF {
			return 0, 0, false
		}
		return uint16(sv), uint16(ov), true
	}
	v, ok := EvalAddress(expr, cpu)
	if !ok || v > x86AddressMask {
		return 0, 0, false
	}
	return uint16(v >> 4), uint16(v & 0xF), true
}

// linear converts seg:off to a 20-bit address.
func linear(seg, off uint16) uint64 {
	return (uint64(seg)<<4 + uint64(off)) & x86AddressMask
}

// ExecuteCommand runs one monitor line. It returns true if the monitor should
// exit. While the machine is running only stop, help and exit are accepted.
func (s *MonitorSession) ExecuteCommand(ctx context.Context, input string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := ParseCommand(input)
	if cmd.Name == "" {
		return false
	}
	s.history = append(s.history, strings.TrimSpace(input))
	if len(s.history) > 100 {
		s.history = s.history[len(s.history)-100:]
	}

	if s.Running() {
		switch cmd.Name {
		case "stop":
			s.stopRun()
		case "x", "q", "quit", "exit":
			s.stopRun()
			return true
		case "?", "help":
			s.cmdHelp(cmd)
		default:
			s.appendOutput("Machine is running, type stop first", colorRed)
		}
		return false
	}

	switch cmd.Name {
	case "r":
		return s.cmdRegisters(cmd)
	case "d":
		return s.cmdDisassemble(cmd)
	case "m":
		return s.cmdMemoryDump(cmd)
	case "s":
		return s.cmdStep(cmd)
	case "g":
		return s.cmdGo(cmd)
	case "run":
		s.startRun(ctx)
	case "stop":
		s.appendOutput("Not running", colorDim)
	case "b":
		return s.cmdBreakpointSet(cmd)
	case "bc":
		return s.cmdBreakpointClear(cmd)
	case "bl":
		return s.cmdBreakpointList(cmd)
	case "f":
		return s.cmdFill(cmd)
	case "w":
		return s.cmdWrite(cmd)
	case "i":
		return s.cmdPortIn(cmd)
	case "o":
		return s.cmdPortOut(cmd)
	case "fdc":
		return s.cmdFDC(cmd)
	case "insert":
		return s.cmdInsert(cmd)
	case "eject":
		return s.cmdEject(cmd)
	case "hdd":
		return s.cmdHDD(cmd)
	case "reset":
		s.runner.Reset()
		s.appendOutput("Machine reset", colorCyan)
		s.showDisassembly(s.dbg.cpu.CS(), s.dbg.cpu.IP, 1)
		s.saveCurrentRegs()
	case "script":
		return s.cmdScript(cmd)
	case "h", "history":
		for i, h := range s.history {
			s.appendOutput(fmt.Sprintf("%3d  %s", i+1, h), colorDim)
		}
	case "x", "q", "quit", "exit":
		return true
	case "?", "help":
		return s.cmdHelp(cmd)
	default:
		s.appendOutput(fmt.Sprintf("Unknown command: %s", cmd.Name), colorRed)
	}
	return false
}

func (s *MonitorSession) cmdRegisters(cmd MonitorCommand) bool {
	if len(cmd.Args) >= 2 {
		name := cmd.Args[0]
		val, ok := ParseAddress(cmd.Args[1])
		if !ok {
			s.appendOutput(fmt.Sprintf("Invalid value: %s", cmd.Args[1]), colorRed)
			return false
		}
		if s.dbg.SetRegister(name, val) {
			s.appendOutput(fmt.Sprintf("%s = %04X", strings.ToUpper(name), val), colorGreen)
		} else {
			s.appendOutput(fmt.Sprintf("Unknown register: %s", name), colorRed)
		}
		return false
	}
	s.showRegisters()
	return false
}

// showRegisters prints the register file four to a row, changed values in
// green, followed by the decoded flags.
func (s *MonitorSession) showRegisters() {
	regs := s.dbg.GetRegisters()
	var row []string
	changed := false
	flush := func() {
		color := uint32(colorWhite)
		if changed {
			color = colorGreen
		}
		s.appendOutput(strings.Join(row, "  "), color)
		row, changed = row[:0], false
	}
	for _, r := range regs {
		row = append(row, fmt.Sprintf("%-5s %04X", r.Name, r.Value))
		if prev, ok := s.prevRegs[r.Name]; ok && prev != r.Value {
			changed = true
		}
		if len(row) == 4 {
			flush()
		}
	}
	if len(row) > 0 {
		flush()
	}
	s.appendOutput(formatX86Flags(s.dbg.cpu.Flags), colorDim)
}

func formatX86Flags(f uint16) string {
	const names = "ODITSZ?A?P?C"
	var b strings.Builder
	for i := 0; i < len(names); i++ {
		bit := uint(11 - i)
		if names[i] == '?' {
			continue
		}
		if f&(1<<bit) != 0 {
			b.WriteByte(names[i])
		} else {
			b.WriteByte('-')
		}
	}
	return "flags " + b.String()
}

func (s *MonitorSession) cmdDisassemble(cmd MonitorCommand) bool {
	seg, off := s.dbg.cpu.CS(), s.dbg.cpu.IP
	count := 16
	if len(cmd.Args) >= 1 {
		v1, v2, ok := ParseSegOff(cmd.Args[0], s.dbg)
		if !ok {
			s.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
			return false
		}
		seg, off = v1, v2
	}
	if len(cmd.Args) >= 2 {
		if v, ok := ParseAddress(cmd.Args[1]); ok {
			count = int(v)
		}
	}
	s.showDisassembly(seg, off, count)
	return false
}

func (s *MonitorSession) showDisassembly(seg, off uint16, count int) {
	for _, line := range s.dbg.Disassemble(seg, off, count) {
		color := uint32(colorWhite)
		prefix := "  "
		if line.IsPC {
			color = colorYellow
			prefix = "> "
		}
		if s.dbg.HasBreakpoint(line.Address) {
			prefix = "* "
			if !line.IsPC {
				color = colorRed
			}
		}
		suffix := ""
		if line.IsBranch && line.BranchTarget < line.Offset {
			suffix = " <- LOOP"
		}
		s.appendOutput(fmt.Sprintf("%s%04X:%04X  %-14s %s%s",
			prefix, line.Segment, line.Offset, line.HexBytes, line.Mnemonic, suffix), color)
	}
}

func (s *MonitorSession) cmdMemoryDump(cmd MonitorCommand) bool {
	addr := linear(s.dbg.cpu.DS(), 0)
	lines := 8
	if len(cmd.Args) >= 1 {
		seg, off, ok := ParseSegOff(cmd.Args[0], s.dbg)
		if !ok {
			s.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
			return false
		}
		addr = linear(seg, off)
	}
	if len(cmd.Args) >= 2 {
		if v, ok := ParseAddress(cmd.Args[1]); ok {
			lines = int(v)
		}
	}

	for range lines {
		data := s.dbg.ReadMemory(addr, 16)
		hexParts := make([]string, 16)
		ascii := make([]byte, 16)
		for j, b := range data {
			hexParts[j] = fmt.Sprintf("%02X", b)
			ascii[j] = '.'
			if b >= 0x20 && b < 0x7F {
				ascii[j] = b
			}
		}
		hexStr := strings.Join(hexParts[:8], " ") + "  " + strings.Join(hexParts[8:], " ")
		s.appendOutput(fmt.Sprintf("%05X: %s  %s", addr, hexStr, ascii), colorWhite)
		addr = (addr + 16) & x86AddressMask
	}
	return false
}

func (s *MonitorSession) cmdStep(cmd MonitorCommand) bool {
	count := 1
	if len(cmd.Args) >= 1 {
		if v, ok := ParseAddress(cmd.Args[0]); ok && v > 0 {
			count = int(v)
		}
	}

	total := 0
	for range count {
		n, err := s.dbg.Step()
		total += n
		if err != nil {
			s.appendOutput(fmt.Sprintf("Error: %v", err), colorRed)
			break
		}
	}
	s.appendOutput(fmt.Sprintf("Step: %d instruction(s), %d cycle(s)", count, total), colorCyan)
	s.showChangedRegisters()
	s.showDisassembly(s.dbg.cpu.CS(), s.dbg.cpu.IP, 1)
	return false
}

func (s *MonitorSession) showChangedRegisters() {
	for _, r := range s.dbg.GetRegisters() {
		if prev, ok := s.prevRegs[r.Name]; ok && prev != r.Value {
			s.appendOutput(fmt.Sprintf("  %s: %04X -> %04X", r.Name, prev, r.Value), colorGreen)
		}
	}
	s.saveCurrentRegs()
}

// cmdGo runs until a breakpoint or the cycle limit: g [seg:off] [cycles]
func (s *MonitorSession) cmdGo(cmd MonitorCommand) bool {
	limit := s.runLimit
	args := cmd.Args
	if len(args) >= 1 && strings.Contains(args[0], ":") {
		seg, off, ok := ParseSegOff(args[0], s.dbg)
		if !ok {
			s.appendOutput(fmt.Sprintf("Invalid address: %s", args[0]), colorRed)
			return false
		}
		s.dbg.cpu.SetSeg(x86SegCS, seg)
		s.dbg.cpu.SetIP(off)
		args = args[1:]
	}
	if len(args) >= 1 {
		v, ok := ParseAddress(args[0])
		if !ok || v == 0 {
			s.appendOutput(fmt.Sprintf("Invalid cycle count: %s", args[0]), colorRed)
			return false
		}
		limit = int64(v)
	}

	ev, err := s.dbg.RunUntilBreak(limit)
	switch {
	case err != nil:
		s.appendOutput(fmt.Sprintf("Error: %v", err), colorRed)
	case ev != nil:
		s.appendOutput(fmt.Sprintf("Breakpoint at %05X after %d cycles", ev.Address, ev.Cycles), colorRed)
	default:
		s.appendOutput(fmt.Sprintf("Ran %d cycles", limit), colorCyan)
	}
	s.showChangedRegisters()
	s.showDisassembly(s.dbg.cpu.CS(), s.dbg.cpu.IP, 4)
	return false
}

func (s *MonitorSession) cmdBreakpointSet(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		s.appendOutput("Usage: b <seg:off|addr>", colorRed)
		return false
	}
	seg, off, ok := ParseSegOff(cmd.Args[0], s.dbg)
	if !ok {
		s.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
		return false
	}
	addr := linear(seg, off)
	s.dbg.SetBreakpoint(addr)
	s.appendOutput(fmt.Sprintf("Breakpoint set at %05X", addr), colorCyan)
	return false
}

func (s *MonitorSession) cmdBreakpointClear(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		s.appendOutput("Usage: bc <seg:off|addr> | bc *", colorRed)
		return false
	}
	if cmd.Args[0] == "*" {
		s.dbg.ClearAllBreakpoints()
		s.appendOutput("All breakpoints cleared", colorCyan)
		return false
	}
	seg, off, ok := ParseSegOff(cmd.Args[0], s.dbg)
	if !ok {
		s.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
		return false
	}
	addr := linear(seg, off)
	if s.dbg.ClearBreakpoint(addr) {
		s.appendOutput(fmt.Sprintf("Breakpoint cleared at %05X", addr), colorCyan)
	} else {
		s.appendOutput(fmt.Sprintf("No breakpoint at %05X", addr), colorRed)
	}
	return false
}

func (s *MonitorSession) cmdBreakpointList(_ MonitorCommand) bool {
	bps := s.dbg.ListBreakpoints()
	if len(bps) == 0 {
		s.appendOutput("No breakpoints", colorDim)
		return false
	}
	for _, addr := range bps {
		s.appendOutput(fmt.Sprintf("%05X", addr), colorCyan)
	}
	return false
}

func (s *MonitorSession) cmdFill(cmd MonitorCommand) bool {
	if len(cmd.Args) < 3 {
		s.appendOutput("Usage: f <start> <end> <byte>", colorRed)
		return false
	}
	seg, off, ok1 := ParseSegOff(cmd.Args[0], s.dbg)
	end, ok2 := ParseAddress(cmd.Args[1])
	val, ok3 := ParseAddress(cmd.Args[2])
	if !ok1 || !ok2 || !ok3 {
		s.appendOutput("Invalid argument", colorRed)
		return false
	}
	start := linear(seg, off)
	if end < start || end > x86AddressMask {
		s.appendOutput("Invalid range", colorRed)
		return false
	}
	data := make([]byte, end-start+1)
	for i := range data {
		data[i] = byte(val)
	}
	s.dbg.WriteMemory(start, data)
	s.appendOutput(fmt.Sprintf("Filled %05X-%05X with %02X", start, end, byte(val)), colorCyan)
	return false
}

func (s *MonitorSession) cmdWrite(cmd MonitorCommand) bool {
	if len(cmd.Args) < 2 {
		s.appendOutput("Usage: w <addr> <bytes..>", colorRed)
		return false
	}
	seg, off, ok := ParseSegOff(cmd.Args[0], s.dbg)
	if !ok {
		s.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
		return false
	}
	var data []byte
	for _, arg := range cmd.Args[1:] {
		v, ok := ParseAddress(arg)
		if !ok || v > 0xFF {
			s.appendOutput(fmt.Sprintf("Invalid byte: %s", arg), colorRed)
			return false
		}
		data = append(data, byte(v))
	}
	addr := linear(seg, off)
	s.dbg.WriteMemory(addr, data)
	s.appendOutput(fmt.Sprintf("Wrote %d byte(s) at %05X", len(data), addr), colorCyan)
	return false
}

func (s *MonitorSession) cmdPortIn(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		s.appendOutput("Usage: i <port>", colorRed)
		return false
	}
	port, ok := ParseAddress(cmd.Args[0])
	if !ok || port > 0xFFFF {
		s.appendOutput(fmt.Sprintf("Invalid port: %s", cmd.Args[0]), colorRed)
		return false
	}
	s.appendOutput(fmt.Sprintf("IN %04X = %02X", port, s.m.In(uint16(port))), colorWhite)
	return false
}

func (s *MonitorSession) cmdPortOut(cmd MonitorCommand) bool {
	if len(cmd.Args) < 2 {
		s.appendOutput("Usage: o <port> <byte>", colorRed)
		return false
	}
	port, ok1 := ParseAddress(cmd.Args[0])
	val, ok2 := ParseAddress(cmd.Args[1])
	if !ok1 || !ok2 || port > 0xFFFF || val > 0xFF {
		s.appendOutput("Invalid argument", colorRed)
		return false
	}
	s.m.Out(uint16(port), byte(val))
	s.appendOutput(fmt.Sprintf("OUT %04X,%02X", port, val), colorCyan)
	return false
}

func (s *MonitorSession) cmdFDC(_ MonitorCommand) bool {
	st := s.m.FDC().Status()
	busy := ""
	if st.Busy {
		busy = " busy"
	}
	s.appendOutput(fmt.Sprintf("MSR %02X  DOR %02X  ST0 %02X  cmd %02X%s", st.MSR, st.DOR, st.ST0, st.Command, busy), colorWhite)
	for i, pcn := range st.PCN {
		d := s.m.FDC().Drive(i)
		if d == nil {
			continue
		}
		media := "empty"
		if d.HasMedia() {
			media = "loaded"
		}
		s.appendOutput(fmt.Sprintf("  drive %d: cylinder %d, %s", i, pcn, media), colorDim)
	}
	return false
}

func (s *MonitorSession) cmdInsert(cmd MonitorCommand) bool {
	if len(cmd.Args) < 2 {
		s.appendOutput("Usage: insert <drive> <image> [wp]", colorRed)
		return false
	}
	n, err := strconv.Atoi(cmd.Args[0])
	if err != nil {
		s.appendOutput(fmt.Sprintf("Invalid drive: %s", cmd.Args[0]), colorRed)
		return false
	}
	wp := len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[2], "wp")
	if err := s.m.InsertFloppy(n, cmd.Args[1], wp); err != nil {
		s.appendOutput(fmt.Sprintf("Error: %v", err), colorRed)
		return false
	}
	s.appendOutput(fmt.Sprintf("Drive %d: %s", n, cmd.Args[1]), colorCyan)
	return false
}

func (s *MonitorSession) cmdEject(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		s.appendOutput("Usage: eject <drive>", colorRed)
		return false
	}
	n, err := strconv.Atoi(cmd.Args[0])
	d := s.m.FDC().Drive(n)
	if err != nil || d == nil {
		s.appendOutput(fmt.Sprintf("Invalid drive: %s", cmd.Args[0]), colorRed)
		return false
	}
	if err := d.Flush(); err != nil {
		s.appendOutput(fmt.Sprintf("Error: %v", err), colorRed)
	}
	d.Eject()
	s.appendOutput(fmt.Sprintf("Drive %d ejected", n), colorCyan)
	return false
}

// cmdHDD times a transfer: hdd <lba> [sectors] [w]
func (s *MonitorSession) cmdHDD(cmd MonitorCommand) bool {
	if s.m.HDD() == nil {
		s.appendOutput("No hard disk fitted", colorRed)
		return false
	}
	if len(cmd.Args) < 1 {
		s.appendOutput("Usage: hdd <lba> [sectors] [w]", colorRed)
		return false
	}
	lba, ok := ParseAddress(cmd.Args[0])
	if !ok {
		s.appendOutput(fmt.Sprintf("Invalid LBA: %s", cmd.Args[0]), colorRed)
		return false
	}
	n := uint64(1)
	if len(cmd.Args) >= 2 {
		if n, ok = ParseAddress(cmd.Args[1]); !ok || n == 0 {
			s.appendOutput(fmt.Sprintf("Invalid sector count: %s", cmd.Args[1]), colorRed)
			return false
		}
	}
	write := len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[2], "w")
	us := s.m.HDDAccess(uint32(lba), uint32(n), write)
	op := "read"
	if write {
		op = "write"
	}
	s.appendOutput(fmt.Sprintf("%s %d sector(s) at %d: %.1f us", op, n, lba, us), colorWhite)
	return false
}

func (s *MonitorSession) cmdScript(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		s.appendOutput("Usage: script <file.lua>", colorRed)
		return false
	}
	if s.lua == nil {
		s.lua = NewLuaHost(s.dbg, func(line string) { s.appendOutput(line, colorWhite) })
	}
	if err := s.lua.RunFile(cmd.Args[0]); err != nil {
		s.appendOutput(fmt.Sprintf("Script error: %v", err), colorRed)
	}
	s.showChangedRegisters()
	return false
}

func (s *MonitorSession) cmdHelp(_ MonitorCommand) bool {
	help := []string{
		"r [reg value]          show or set registers",
		"d [seg:off] [n]        disassemble",
		"m [seg:off] [lines]    dump memory",
		"s [n]                  step n instructions",
		"g [seg:off] [cycles]   run to breakpoint or cycle limit",
		"run / stop             free-run on the worker / break in",
		"b / bc / bl            set, clear (* for all), list breakpoints",
		"f start end byte       fill memory",
		"w addr bytes..         write memory",
		"i port / o port byte   port I/O",
		"fdc                    controller status",
		"insert n image [wp]    load a floppy image",
		"eject n                flush and eject",
		"hdd lba [n] [w]        time a hard disk transfer",
		"reset                  hard reset",
		"script file.lua        run a Lua script",
		"h                      command history",
		"x                      exit",
	}
	for _, line := range help {
		s.appendOutput(line, colorCyan)
	}
	return false
}
