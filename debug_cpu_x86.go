// debug_cpu_x86.go - 808x debug adapter for the monitor and scripting host

package main

import (
	"slices"
	"strings"
	"sync"
)

type DebugX86 struct {
	cpu    *CPU_X86
	m      *XTMachine
	runner *CPUX86Runner

	bpMu        sync.RWMutex
	breakpoints map[uint64]struct{}
}

func NewDebugX86(runner *CPUX86Runner) *DebugX86 {
	return &DebugX86{
		cpu:         runner.GetCPU(),
		m:           runner.Machine(),
		runner:      runner,
		breakpoints: make(map[uint64]struct{}),
	}
}

func (d *DebugX86) CPUName() string   { return d.cpu.Model().String() }
func (d *DebugX86) AddressWidth() int { return 20 }

var x86DebugRegs = []struct {
	name  string
	group string
}{
	{"AX", "general"}, {"BX", "general"}, {"CX", "general"}, {"DX", "general"},
	{"SI", "pointer"}, {"DI", "pointer"}, {"BP", "pointer"}, {"SP", "pointer"},
	{"IP", "pointer"}, {"FLAGS", "flags"},
	{"CS", "segment"}, {"DS", "segment"}, {"ES", "segment"}, {"SS", "segment"},
}

func (d *DebugX86) GetRegisters() []RegisterInfo {
	regs := make([]RegisterInfo, 0, len(x86DebugRegs))
	for _, r := range x86DebugRegs {
		v, _ := d.GetRegister(r.name)
		regs = append(regs, RegisterInfo{Name: r.name, BitWidth: 16, Value: v, Group: r.group})
	}
	return regs
}

func (d *DebugX86) GetRegister(name string) (uint64, bool) {
	c := d.cpu
	switch strings.ToUpper(name) {
	case "AX":
		return uint64(c.AX()), true
	case "BX":
		return uint64(c.BX()), true
	case "CX":
		return uint64(c.CX()), true
	case "DX":
		return uint64(c.DX()), true
	case "SI":
		return uint64(c.SI()), true
	case "DI":
		return uint64(c.DI()), true
	case "BP":
		return uint64(c.BP()), true
	case "SP":
		return uint64(c.SP()), true
	case "IP":
		return uint64(c.IP), true
	case "FLAGS":
		return uint64(c.Flags), true
	case "CS":
		return uint64(c.CS()), true
	case "DS":
		return uint64(c.DS()), true
	case "ES":
		return uint64(c.ES()), true
	case "SS":
		return uint64(c.SS()), true
	case "AL":
		return uint64(c.AL()), true
	case "AH":
		return uint64(c.AH()), true
	case "CL":
		return uint64(c.CL()), true
	}
	return 0, false
}

func (d *DebugX86) SetRegister(name string, value uint64) bool {
	c := d.cpu
	v := uint16(value)
	switch strings.ToUpper(name) {
	case "AX":
		c.SetAX(v)
	case "BX":
		c.SetBX(v)
	case "CX":
		c.SetCX(v)
	case "DX":
		c.SetDX(v)
	case "SI":
		c.SetSI(v)
	case "DI":
		c.SetDI(v)
	case "BP":
		c.SetBP(v)
	case "SP":
		c.SetSP(v)
	case "IP":
		c.SetIP(v)
	case "FLAGS":
		c.Flags = v | 0x0002
	case "CS":
		c.SetSeg(x86SegCS, v)
	case "DS":
		c.SetSeg(x86SegDS, v)
	case "ES":
		c.SetSeg(x86SegES, v)
	case "SS":
		c.SetSeg(x86SegSS, v)
	case "AL":
		c.SetAL(byte(value))
	case "AH":
		c.SetAH(byte(value))
	default:
		return false
	}
	return true
}

// GetPC returns the linear address of CS:IP.
func (d *DebugX86) GetPC() uint64 {
	return (uint64(d.cpu.CS())<<4 + uint64(d.cpu.IP)) & x86AddressMask
}

func (d *DebugX86) Step() (int, error) {
	return d.runner.Step()
}

// RunUntilBreak steps until a breakpoint is reached or limit cycles have
// run. The breakpoint at the starting address is ignored.
func (d *DebugX86) RunUntilBreak(limit int64) (*BreakpointEvent, error) {
	var ran int64
	for ran < limit {
		n, err := d.runner.Step()
		ran += int64(n)
		if err != nil {
			return nil, err
		}
		if pc := d.GetPC(); d.HasBreakpoint(pc) {
			return &BreakpointEvent{Address: pc, Cycles: ran}, nil
		}
	}
	return nil, nil
}

func (d *DebugX86) Disassemble(seg, off uint16, count int) []DisassembledLine {
	lines := disassembleX86(d.ReadMemory, d.cpu.Model(), seg, off, count)
	pc := d.GetPC()
	for i := range lines {
		if lines[i].Address == pc {
			lines[i].IsPC = true
		}
	}
	return lines
}

func (d *DebugX86) SetBreakpoint(addr uint64) bool {
	d.bpMu.Lock()
	defer d.bpMu.Unlock()
	d.breakpoints[addr&x86AddressMask] = struct{}{}
	return true
}

func (d *DebugX86) ClearBreakpoint(addr uint64) bool {
	d.bpMu.Lock()
	defer d.bpMu.Unlock()
	addr &= x86AddressMask
	if _, ok := d.breakpoints[addr]; ok {
		delete(d.breakpoints, addr)
		return true
	}
	return false
}

func (d *DebugX86) ClearAllBreakpoints() {
	d.bpMu.Lock()
	defer d.bpMu.Unlock()
	clear(d.breakpoints)
}

func (d *DebugX86) ListBreakpoints() []uint64 {
	d.bpMu.RLock()
	defer d.bpMu.RUnlock()
	result := make([]uint64, 0, len(d.breakpoints))
	for addr := range d.breakpoints {
		result = append(result, addr)
	}
	slices.Sort(result)
	return result
}

func (d *DebugX86) HasBreakpoint(addr uint64) bool {
	d.bpMu.RLock()
	defer d.bpMu.RUnlock()
	_, ok := d.breakpoints[addr]
	return ok
}

func (d *DebugX86) ReadMemory(addr uint64, size int) []byte {
	result := make([]byte, size)
	for i := range size {
		result[i] = d.m.Read(uint32(addr) + uint32(i))
	}
	return result
}

func (d *DebugX86) WriteMemory(addr uint64, data []byte) {
	for i, b := range data {
		d.m.Write(uint32(addr)+uint32(i), b)
	}
}
