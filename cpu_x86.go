// cpu_x86.go - Cycle-accurate 8088/8086 CPU core (plus NEC V20/V30 and 80188/80186)
//
// This implements an 808x-class CPU with:
// - BIU model with a 4/6 byte prefetch queue refilled on free bus T-states
// - Explicit per-micro-step cycle accounting feeding a free-running TSC
// - Bit-serial MUL/DIV with data-dependent timing
// - REP string operations resumable at element granularity
// - NEC V20/V30 extensions and the 8080 emulation mode
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"os"
)

// X86Bus defines the interface for 808x memory and I/O operations.
// Addresses are physical (20-bit); the core masks before calling.
type X86Bus interface {
	Read(addr uint32) byte
	Write(addr uint32, value byte)
	Read16(addr uint32) uint16
	Write16(addr uint32, value uint16)
	In(port uint16) byte
	Out(port uint16, value byte)
	In16(port uint16) uint16
	Out16(port uint16, value uint16)
}

// InterruptController is the INTR side of a PIC. Acknowledge is called once
// per INTA pulse; the 808x issues two and uses the vector from the second.
type InterruptController interface {
	IRQPending() bool
	Acknowledge() uint8
}

// Coprocessor is an ESC-opcode handler (8087). It is invoked after the ModRM
// byte has been decoded and may use the EA accessors on the CPU.
type Coprocessor interface {
	Execute(cpu *CPU_X86, opcode, modrm byte)
	Reset()
}

// X86Model selects the processor variant.
type X86Model int

const (
	X86Model8088 X86Model = iota
	X86Model8086
	X86ModelV20
	X86ModelV30
	X86Model80188
	X86Model80186
)

var x86ModelNames = map[X86Model]string{
	X86Model8088:  "8088",
	X86Model8086:  "8086",
	X86ModelV20:   "v20",
	X86ModelV30:   "v30",
	X86Model80188: "80188",
	X86Model80186: "80186",
}

func (m X86Model) String() string {
	if s, ok := x86ModelNames[m]; ok {
		return s
	}
	return fmt.Sprintf("X86Model(%d)", int(m))
}

// ParseX86Model maps a model name (as accepted by -cpu) to its X86Model.
func ParseX86Model(name string) (X86Model, error) {
	for m, s := range x86ModelNames {
		if s == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown cpu model %q", name)
}

// Wide reports whether the model has a 16-bit data bus.
func (m X86Model) Wide() bool {
	return m == X86Model8086 || m == X86ModelV30 || m == X86Model80186
}

// NEC reports whether the model is a NEC V-series part.
func (m X86Model) NEC() bool {
	return m == X86ModelV20 || m == X86ModelV30
}

// Ext186 reports whether the 80186 instruction overlay is present.
func (m X86Model) Ext186() bool {
	return m != X86Model8088 && m != X86Model8086
}

// Flag bit positions
const (
	x86FlagCF = 1 << 0  // Carry Flag
	x86FlagPF = 1 << 2  // Parity Flag
	x86FlagAF = 1 << 4  // Auxiliary Carry Flag
	x86FlagZF = 1 << 6  // Zero Flag
	x86FlagSF = 1 << 7  // Sign Flag
	x86FlagTF = 1 << 8  // Trap Flag
	x86FlagIF = 1 << 9  // Interrupt Enable Flag
	x86FlagDF = 1 << 10 // Direction Flag
	x86FlagOF = 1 << 11 // Overflow Flag
	x86FlagMD = 1 << 15 // NEC mode flag (1 = native, 0 = 8080 emulation)
)

// Register indices in ModRM encoding order
const (
	x86RegAX = iota
	x86RegCX
	x86RegDX
	x86RegBX
	x86RegSP
	x86RegBP
	x86RegSI
	x86RegDI
)

// Segment register indices (ModRM sreg encoding)
const (
	x86SegES = 0
	x86SegCS = 1
	x86SegSS = 2
	x86SegDS = 3
)

const (
	x86AddressMask = 0xFFFFF
	x86NoOverride  = -1
)

// x86Seg is a real-mode segment: the selector and its cached base.
type x86Seg struct {
	Sel  uint16
	Base uint32
}

// CPUX86Config selects the variant and timing knobs.
type CPUX86Config struct {
	Model           X86Model
	ClockMultiplier uint64 // TSC ticks per CPU clock
	Mazovia         bool   // 5-cycle I/O bus cycles
	Trace           bool
}

// CPU_X86 represents the 808x CPU state
type CPU_X86 struct {
	regs  [8]uint16
	segs  [4]x86Seg
	IP    uint16
	Flags uint16

	model   X86Model
	wide    bool
	nec     bool
	ext186  bool
	mazovia bool
	trace   bool

	// Prefetch queue / BIU
	pfq         [6]byte
	pfqPos      int
	pfqSize     int
	pfqIP       uint16
	biu         int
	prefetching bool
	refresh     int

	// Cycle accounting
	cycles     int
	cycDiff    int
	tsc        uint64
	multiplier uint64

	// Per-instruction scratch
	opcode  byte
	modrm   byte
	mod     byte
	reg     byte
	rm      byte
	eaAddr  uint16
	eaSeg   uint32
	ovr     int
	aluOp   int
	src     uint32
	dest    uint32
	data    uint32
	oldC    bool
	oldPC   uint16
	handled bool

	// Prefix / REP state machine
	completed bool
	repeating bool
	inRep     int
	repCFlag  bool
	inLock    bool
	clearLock bool

	// Interrupt state
	noint          int
	nmi            bool
	nmiEnable      bool
	nmiMask        bool
	useCustomNMI   bool
	customNMI      uint32
	mdWriteDisable bool

	lastAddr uint16

	bus    X86Bus
	pic    InterruptController
	fpu    Coprocessor
	timers *Scheduler
	i8080  *CPU_I8080

	// Instruction dispatch tables
	baseOps   [256]func(*CPU_X86)
	ext186Ops [256]func(*CPU_X86)
	necOps0F  [256]func(*CPU_X86)

	InstructionCount uint64
}

// NewCPU_X86 creates a new CPU instance for the given model and bus.
func NewCPU_X86(bus X86Bus, cfg CPUX86Config) *CPU_X86 {
	c := &CPU_X86{
		bus:        bus,
		model:      cfg.Model,
		wide:       cfg.Model.Wide(),
		nec:        cfg.Model.NEC(),
		ext186:     cfg.Model.Ext186(),
		mazovia:    cfg.Mazovia,
		trace:      cfg.Trace,
		multiplier: cfg.ClockMultiplier,
		nmiEnable:  true,
		nmiMask:    true,
	}
	if c.multiplier == 0 {
		c.multiplier = 1
	}
	c.i8080 = NewCPU_I8080(&x86EmulationBus{cpu: c})
	c.initBaseOps()
	c.initExt186Ops()
	c.initNECOps()
	c.Reset()
	return c
}

// AttachPIC connects the maskable interrupt source.
func (c *CPU_X86) AttachPIC(pic InterruptController) { c.pic = pic }

// AttachFPU connects an 8087. A nil coprocessor leaves ESC as a dummy EA read.
func (c *CPU_X86) AttachFPU(fpu Coprocessor) { c.fpu = fpu }

// AttachTimers connects the scheduler polled from the clock period close.
func (c *CPU_X86) AttachTimers(s *Scheduler) {
	c.timers = s
	s.SetClock(c.TSC)
}

func (c *CPU_X86) Model() X86Model { return c.model }

// Reset puts the CPU in its power-on state (CS=FFFF, IP=0).
func (c *CPU_X86) Reset() {
	c.biu = 0
	c.inRep = 0
	c.completed = true
	c.repeating = false
	c.clearLock = false
	c.inLock = false
	c.refresh = 0
	c.ovr = x86NoOverride
	c.noint = 0

	if c.wide {
		c.pfqSize = 6
	} else {
		c.pfqSize = 4
	}
	c.clearQueue()

	for i := range c.regs {
		c.regs[i] = 0
	}
	for i := range c.segs {
		c.loadSeg(i, 0)
	}
	c.Flags = 0x0002
	c.loadSeg(x86SegCS, 0xFFFF)
	c.IP = 0
	if c.nec {
		c.Flags |= x86FlagMD
	}

	c.prefetching = true
	c.aluOp = 0

	c.useCustomNMI = false
	c.customNMI = 0
	c.nmi = false
	c.nmiEnable = true

	c.mdWriteDisable = true
	c.i8080.Reset()
}

// SetNMI latches or clears the NMI line.
func (c *CPU_X86) SetNMI(active bool) { c.nmi = active }

// SetNMIMask sets the board-level NMI gate (port A0h on the XT).
func (c *CPU_X86) SetNMIMask(enabled bool) { c.nmiMask = enabled }

// SetNMIVector redirects NMI delivery to seg:off instead of vector 2.
func (c *CPU_X86) SetNMIVector(seg, off uint16) {
	c.useCustomNMI = true
	c.customNMI = uint32(seg)<<16 | uint32(off)
}

// ClearNMIVector restores normal vector 2 NMI delivery.
func (c *CPU_X86) ClearNMIVector() {
	c.useCustomNMI = false
	c.customNMI = 0
}

// LastBIOSWrite returns the offset of the most recent write into F000:xxxx.
func (c *CPU_X86) LastBIOSWrite() uint16 { return c.lastAddr }

// TSC returns the free-running time-stamp counter.
func (c *CPU_X86) TSC() uint64 { return c.tsc }

// Cycles returns the remaining budget of the current slice.
func (c *CPU_X86) Cycles() int { return c.cycles }

// DebitCycles removes n cycles from the budget without touching the BIU.
// Devices use it for bus wait states; the I/O path resynchronises afterwards.
func (c *CPU_X86) DebitCycles(n int) { c.cycles -= n }

func (c *CPU_X86) logf(format string, args ...any) {
	if c.trace {
		fmt.Fprintf(os.Stderr, "cpu_x86: "+format, args...)
	}
}

// -----------------------------------------------------------------------------
// Register access
// -----------------------------------------------------------------------------

func (c *CPU_X86) AX() uint16 { return c.regs[x86RegAX] }
func (c *CPU_X86) BX() uint16 { return c.regs[x86RegBX] }
func (c *CPU_X86) CX() uint16 { return c.regs[x86RegCX] }
func (c *CPU_X86) DX() uint16 { return c.regs[x86RegDX] }
func (c *CPU_X86) SP() uint16 { return c.regs[x86RegSP] }
func (c *CPU_X86) BP() uint16 { return c.regs[x86RegBP] }
func (c *CPU_X86) SI() uint16 { return c.regs[x86RegSI] }
func (c *CPU_X86) DI() uint16 { return c.regs[x86RegDI] }

func (c *CPU_X86) SetAX(v uint16) { c.regs[x86RegAX] = v }
func (c *CPU_X86) SetBX(v uint16) { c.regs[x86RegBX] = v }
func (c *CPU_X86) SetCX(v uint16) { c.regs[x86RegCX] = v }
func (c *CPU_X86) SetDX(v uint16) { c.regs[x86RegDX] = v }
func (c *CPU_X86) SetSP(v uint16) { c.regs[x86RegSP] = v }
func (c *CPU_X86) SetBP(v uint16) { c.regs[x86RegBP] = v }
func (c *CPU_X86) SetSI(v uint16) { c.regs[x86RegSI] = v }
func (c *CPU_X86) SetDI(v uint16) { c.regs[x86RegDI] = v }

func (c *CPU_X86) AL() byte { return byte(c.regs[x86RegAX]) }
func (c *CPU_X86) AH() byte { return byte(c.regs[x86RegAX] >> 8) }
func (c *CPU_X86) CL() byte { return byte(c.regs[x86RegCX]) }

func (c *CPU_X86) SetAL(v byte) { c.setReg8(0, v) }
func (c *CPU_X86) SetAH(v byte) { c.setReg8(4, v) }

// getReg8 uses ModRM byte-register encoding: AL,CL,DL,BL,AH,CH,DH,BH.
func (c *CPU_X86) getReg8(r byte) byte {
	if r&4 != 0 {
		return byte(c.regs[r&3] >> 8)
	}
	return byte(c.regs[r&3])
}

func (c *CPU_X86) setReg8(r byte, v byte) {
	if r&4 != 0 {
		c.regs[r&3] = c.regs[r&3]&0x00FF | uint16(v)<<8
	} else {
		c.regs[r&3] = c.regs[r&3]&0xFF00 | uint16(v)
	}
}

func (c *CPU_X86) getReg16(r byte) uint16 { return c.regs[r&7] }

func (c *CPU_X86) setReg16(r byte, v uint16) { c.regs[r&7] = v }

func (c *CPU_X86) CS() uint16 { return c.segs[x86SegCS].Sel }
func (c *CPU_X86) DS() uint16 { return c.segs[x86SegDS].Sel }
func (c *CPU_X86) ES() uint16 { return c.segs[x86SegES].Sel }
func (c *CPU_X86) SS() uint16 { return c.segs[x86SegSS].Sel }

// Seg returns the selector for the ModRM sreg index.
func (c *CPU_X86) Seg(i int) uint16 { return c.segs[i&3].Sel }

// SetSeg loads a segment register from outside the instruction stream.
// Loading CS also invalidates the prefetch queue.
func (c *CPU_X86) SetSeg(i int, v uint16) {
	c.loadSeg(i&3, v)
	if i&3 == x86SegCS {
		c.clearQueue()
		c.setIP(c.IP)
	}
}

// SetIP redirects execution from outside the instruction stream.
func (c *CPU_X86) SetIP(ip uint16) {
	c.clearQueue()
	c.setIP(ip)
}

func (c *CPU_X86) loadSeg(i int, sel uint16) {
	c.segs[i].Sel = sel
	c.segs[i].Base = uint32(sel) << 4
}

func (c *CPU_X86) loadCS(sel uint16) { c.loadSeg(x86SegCS, sel) }

func (c *CPU_X86) csBase() uint32 { return c.segs[x86SegCS].Base }
func (c *CPU_X86) dsBase() uint32 { return c.segs[x86SegDS].Base }
func (c *CPU_X86) esBase() uint32 { return c.segs[x86SegES].Base }
func (c *CPU_X86) ssBase() uint32 { return c.segs[x86SegSS].Base }

// dataSeg is DS unless a segment override prefix is in effect.
func (c *CPU_X86) dataSeg() uint32 {
	if c.ovr != x86NoOverride {
		return c.segs[c.ovr].Base
	}
	return c.dsBase()
}

// -----------------------------------------------------------------------------
// Flags
// -----------------------------------------------------------------------------

func (c *CPU_X86) getFlag(f uint16) bool { return c.Flags&f != 0 }

func (c *CPU_X86) setFlag(f uint16, on bool) {
	if on {
		c.Flags |= f
	} else {
		c.Flags &^= f
	}
}

func (c *CPU_X86) CF() bool { return c.getFlag(x86FlagCF) }
func (c *CPU_X86) PF() bool { return c.getFlag(x86FlagPF) }
func (c *CPU_X86) AF() bool { return c.getFlag(x86FlagAF) }
func (c *CPU_X86) ZF() bool { return c.getFlag(x86FlagZF) }
func (c *CPU_X86) SF() bool { return c.getFlag(x86FlagSF) }
func (c *CPU_X86) TF() bool { return c.getFlag(x86FlagTF) }
func (c *CPU_X86) IF() bool { return c.getFlag(x86FlagIF) }
func (c *CPU_X86) DF() bool { return c.getFlag(x86FlagDF) }
func (c *CPU_X86) OF() bool { return c.getFlag(x86FlagOF) }

// InEmulationMode reports whether a NEC part is running 8080 code.
func (c *CPU_X86) InEmulationMode() bool {
	return c.nec && c.Flags&x86FlagMD == 0
}

// Halted reports whether the CPU is parked in HLT waiting for an interrupt.
func (c *CPU_X86) Halted() bool {
	return c.repeating && c.opcode == 0xF4
}
