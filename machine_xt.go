// machine_xt.go - PC/XT class board: memory map, I/O decode and device wiring
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"errors"
	"fmt"
	"os"
)

const (
	xtMemSize      = 0x100000
	xtRAMTop       = 0xA0000 // 640K conventional memory
	xtROMLimit     = 0x40000 // option ROM space C0000-FFFFF
	xtDefaultClock = 4772727
)

// XT I/O map
const (
	xtPortDMALo  = 0x00
	xtPortDMAHi  = 0x0F
	xtPortPICLo  = 0x20
	xtPortPICHi  = 0x21
	xtPortPITLo  = 0x40
	xtPortPITHi  = 0x43
	xtPortPPIA   = 0x60
	xtPortPPIB   = 0x61
	xtPortPPIC   = 0x62
	xtPortPage   = 0x80
	xtPortPageHi = 0x8F
	xtPortNMI    = 0xA0
	xtPortFDCLo  = 0x3F0
	xtPortFDCHi  = 0x3F7
)

var ErrBIOSSize = errors.New("machine: BIOS image larger than 256K")

// MachineConfig assembles an XT: CPU variant and clock, BIOS, FPU socket,
// floppy controller and drives, and the HDD timing preset.
type MachineConfig struct {
	CPU         CPUX86Config
	ClockHz     uint64
	BIOS        []byte
	FPU         bool
	FDC         FDCConfig
	Floppies    []FloppyDriveType
	HDDPreset   *HDDPreset
	HDDGeometry HDDSurveyGeometry
	Debug       bool
}

// DefaultMachineConfig is a 4.77 MHz 8088 with two 360K drives.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		CPU:         CPUX86Config{Model: X86Model8088, ClockMultiplier: 1},
		ClockHz:     xtDefaultClock,
		FDC:         DefaultXTFDCConfig(),
		Floppies:    []FloppyDriveType{FloppyDrive525DD, FloppyDrive525DD},
		HDDGeometry: DefaultSurveyGeometry,
	}
}

// XTMachine is the board. It implements X86Bus for the CPU and dmaMemory for
// the 8237.
type XTMachine struct {
	mem     [xtMemSize]byte
	romBase uint32

	cpu   *CPU_X86
	sched *Scheduler
	pic   *PIC8259
	pit   *PIT8253
	dma   *DMA8237
	fdc   *FDC765
	fpu   *FPU_8087
	hdd   *HDDTiming

	ppiB   byte
	nmiReg byte

	cfg   MachineConfig
	debug bool
}

// NewXTMachine builds and resets a machine.
func NewXTMachine(cfg MachineConfig) (*XTMachine, error) {
	if len(cfg.BIOS) > xtROMLimit {
		return nil, ErrBIOSSize
	}
	if cfg.ClockHz == 0 {
		cfg.ClockHz = xtDefaultClock
	}
	if cfg.CPU.ClockMultiplier == 0 {
		cfg.CPU.ClockMultiplier = 1
	}

	m := &XTMachine{cfg: cfg, debug: cfg.Debug}
	m.sched = NewScheduler(cfg.ClockHz * cfg.CPU.ClockMultiplier)
	m.cpu = NewCPU_X86(m, cfg.CPU)
	m.cpu.AttachTimers(m.sched)

	m.pic = NewPIC8259()
	m.cpu.AttachPIC(m.pic)

	m.dma = NewDMA8237(m)

	m.pit = NewPIT8253(m.sched)
	m.pit.Out[0] = func() { m.pic.PulseIRQ(0) }
	m.pit.Out[1] = m.cpu.RefreshRead

	if cfg.FPU {
		m.fpu = NewFPU_8087()
		m.fpu.OnInterrupt = func() { m.cpu.SetNMI(true) }
		m.cpu.AttachFPU(m.fpu)
	}

	m.fdc = NewFDC765(cfg.FDC, m.sched, m.dma)
	m.fdc.RaiseIRQ = m.pic.PulseIRQ
	m.fdc.LowerIRQ = m.pic.LowerIRQ
	m.fdc.WaitStates = m.cpu.DebitCycles
	for i, t := range cfg.Floppies {
		if i >= 4 {
			break
		}
		m.fdc.AttachDrive(i, NewFloppyDrive(t))
	}

	if cfg.HDDPreset != nil {
		g := cfg.HDDGeometry
		if g.Tracks == 0 {
			g = DefaultSurveyGeometry
		}
		m.hdd = NewHDDTiming(g.Tracks, g.HPC, g.SPT, cfg.HDDPreset, m.sched)
	}

	m.LoadBIOS(cfg.BIOS)
	m.Reset()
	return m, nil
}

func (m *XTMachine) logf(format string, args ...any) {
	if m.debug {
		fmt.Fprintf(os.Stderr, "machine: "+format+"\n", args...)
	}
}

// LoadBIOS maps rom so that it ends at FFFFF. A nil rom installs a single HLT
// at the reset vector so bare programs can be loaded with LoadProgram.
func (m *XTMachine) LoadBIOS(rom []byte) {
	if len(rom) == 0 {
		m.romBase = 0xF0000
		for i := m.romBase; i < xtMemSize; i++ {
			m.mem[i] = 0xFF
		}
		m.mem[0xFFFF0] = 0xF4
		return
	}
	m.romBase = xtMemSize - uint32(len(rom))
	copy(m.mem[m.romBase:], rom)
}

// LoadProgram copies data to seg:off in RAM and points CS:IP at it.
func (m *XTMachine) LoadProgram(seg, off uint16, data []byte) error {
	base := uint32(seg)<<4 + uint32(off)
	if base+uint32(len(data)) > m.romBase {
		return fmt.Errorf("machine: program at %05X (%d bytes) overlaps ROM", base, len(data))
	}
	copy(m.mem[base:], data)
	m.cpu.SetSeg(x86SegCS, seg)
	m.cpu.SetIP(off)
	return nil
}

func (m *XTMachine) CPU() *CPU_X86          { return m.cpu }
func (m *XTMachine) Scheduler() *Scheduler  { return m.sched }
func (m *XTMachine) PIC() *PIC8259          { return m.pic }
func (m *XTMachine) PIT() *PIT8253          { return m.pit }
func (m *XTMachine) DMA() *DMA8237          { return m.dma }
func (m *XTMachine) FDC() *FDC765           { return m.fdc }
func (m *XTMachine) FPU() *FPU_8087         { return m.fpu }
func (m *XTMachine) HDD() *HDDTiming        { return m.hdd }
func (m *XTMachine) Config() *MachineConfig { return &m.cfg }

// -----------------------------------------------------------------------------
// Memory
// -----------------------------------------------------------------------------

func (m *XTMachine) Read(addr uint32) byte {
	return m.mem[addr&x86AddressMask]
}

func (m *XTMachine) Write(addr uint32, value byte) {
	addr &= x86AddressMask
	if addr >= m.romBase {
		return
	}
	m.mem[addr] = value
}

func (m *XTMachine) Read16(addr uint32) uint16 {
	return uint16(m.Read(addr)) | uint16(m.Read(addr+1))<<8
}

func (m *XTMachine) Write16(addr uint32, value uint16) {
	m.Write(addr, byte(value))
	m.Write(addr+1, byte(value>>8))
}

// -----------------------------------------------------------------------------
// I/O
// -----------------------------------------------------------------------------

func (m *XTMachine) In(port uint16) byte {
	switch {
	case port <= xtPortDMAHi:
		return m.dma.Read(port)
	case port >= xtPortPICLo && port <= xtPortPICHi:
		return m.pic.Read(port)
	case port >= xtPortPITLo && port <= xtPortPITHi:
		return m.pit.Read(port)
	case port == xtPortPPIA:
		return 0
	case port == xtPortPPIB:
		return m.ppiB
	case port == xtPortPPIC:
		var v byte
		if m.pit.OutHigh(2) {
			v |= 0x20
		}
		return v
	case port >= xtPortPage && port <= xtPortPageHi:
		return m.dma.ReadPage(port)
	case port == xtPortNMI:
		return m.nmiReg
	case port >= xtPortFDCLo && port <= xtPortFDCHi:
		return m.fdc.Read(port)
	}
	m.logf("unhandled IN %04X", port)
	return 0xFF
}

func (m *XTMachine) Out(port uint16, value byte) {
	switch {
	case port <= xtPortDMAHi:
		m.dma.Write(port, value)
	case port >= xtPortPICLo && port <= xtPortPICHi:
		m.pic.Write(port, value)
	case port >= xtPortPITLo && port <= xtPortPITHi:
		m.pit.Write(port, value)
	case port == xtPortPPIB:
		m.ppiB = value
		m.pit.SetGate(2, value&0x01 != 0)
	case port >= xtPortPage && port <= xtPortPageHi:
		m.dma.WritePage(port, value)
	case port == xtPortNMI:
		m.nmiReg = value
		m.cpu.SetNMIMask(value&0x80 != 0)
	case port >= xtPortFDCLo && port <= xtPortFDCHi:
		m.fdc.Write(port, value)
	default:
		m.logf("unhandled OUT %04X,%02X", port, value)
	}
}

func (m *XTMachine) In16(port uint16) uint16 {
	return uint16(m.In(port)) | uint16(m.In(port+1))<<8
}

func (m *XTMachine) Out16(port uint16, value uint16) {
	m.Out(port, byte(value))
	m.Out(port+1, byte(value>>8))
}

// -----------------------------------------------------------------------------
// Media and disk timing
// -----------------------------------------------------------------------------

// InsertFloppy loads an image file into drive n.
func (m *XTMachine) InsertFloppy(n int, path string, writeProtect bool) error {
	d := m.fdc.Drive(n)
	if d == nil {
		return fmt.Errorf("machine: no floppy drive %d", n)
	}
	return d.Load(path, writeProtect)
}

// FlushMedia writes dirty floppy images back to their files.
func (m *XTMachine) FlushMedia() error {
	var errs []error
	for i := range 4 {
		if d := m.fdc.Drive(i); d != nil {
			errs = append(errs, d.Flush())
		}
	}
	return errors.Join(errs...)
}

// HDDAccess times an n-sector transfer at addr on the fitted disk and returns
// the delay in microseconds. Without a disk preset it returns 0.
func (m *XTMachine) HDDAccess(addr, n uint32, write bool) float64 {
	if m.hdd == nil {
		return 0
	}
	if write {
		return m.hdd.TimingWrite(addr, n)
	}
	return m.hdd.TimingRead(addr, n)
}
