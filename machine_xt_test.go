// machine_xt_test.go - board wiring tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"errors"
	"testing"
)

// newTestMachine builds a BIOS-less XT and loads code at 1000:0100 with
// the data and stack segments set up like a .COM program.
func newTestMachine(t *testing.T, cfg MachineConfig, code ...byte) *XTMachine {
	t.Helper()
	m, err := NewXTMachine(cfg)
	if err != nil {
		t.Fatalf("NewXTMachine failed: %v", err)
	}
	if len(code) > 0 {
		if err := m.LoadProgram(programSegment, 0x0100, code); err != nil {
			t.Fatal(err)
		}
		c := m.CPU()
		for _, seg := range []int{x86SegDS, x86SegES, x86SegSS} {
			c.SetSeg(seg, programSegment)
		}
		c.SetSP(0xFFFE)
	}
	return m
}

func setIVT(m *XTMachine, vec int, seg, off uint16) {
	m.Write16(uint32(vec)*4, off)
	m.Write16(uint32(vec)*4+2, seg)
}

func TestMachine_NoBIOSResetHalts(t *testing.T) {
	m := newTestMachine(t, DefaultMachineConfig())
	c := m.CPU()
	if c.CS() != 0xFFFF || c.IP != 0 {
		t.Fatalf("reset at %04X:%04X, want FFFF:0000", c.CS(), c.IP)
	}
	if m.Read(0xF0000) != 0xFF || m.Read(0xFFFF0) != 0xF4 {
		t.Fatalf("ROM fill %02X, reset vector %02X", m.Read(0xF0000), m.Read(0xFFFF0))
	}
	r := NewCPUX86Runner(m)
	if err := r.RunCycles(1000); err != nil {
		t.Fatal(err)
	}
	if !c.Halted() {
		t.Fatal("CPU should halt at the reset vector without a BIOS")
	}
}

func TestMachine_ROMIsReadOnly(t *testing.T) {
	cfg := DefaultMachineConfig()
	cfg.BIOS = make([]byte, 8192)
	cfg.BIOS[len(cfg.BIOS)-16] = 0xEA
	m := newTestMachine(t, cfg)

	if m.Read(0xFFFF0) != 0xEA {
		t.Fatal("BIOS should end at FFFFF")
	}
	m.Write(0xFE000, 0x55)
	if m.Read(0xFE000) != 0 {
		t.Fatal("write to ROM took effect")
	}
	m.Write16(0x9FFFF, 0xBEEF)
	if got := m.Read16(0x9FFFF); got != 0xBEEF {
		t.Fatalf("RAM word = %04X", got)
	}
	if err := m.LoadProgram(0xFDF0, 0, make([]byte, 0x200)); err == nil {
		t.Fatal("program overlapping ROM accepted")
	}
}

func TestMachine_BIOSTooLarge(t *testing.T) {
	cfg := DefaultMachineConfig()
	cfg.BIOS = make([]byte, xtROMLimit+1)
	if _, err := NewXTMachine(cfg); !errors.Is(err, ErrBIOSSize) {
		t.Fatalf("err = %v, want ErrBIOSSize", err)
	}
}

func TestMachine_TimerInterrupt(t *testing.T) {
	m := newTestMachine(t, DefaultMachineConfig(),
		0xB0, 0x13, 0xE6, 0x20, // ICW1
		0xB0, 0x08, 0xE6, 0x21, // ICW2: vectors 08h-0Fh
		0xB0, 0x09, 0xE6, 0x21, // ICW4
		0xB0, 0xFE, 0xE6, 0x21, // unmask IRQ0
		0xB0, 0x34, 0xE6, 0x43, // channel 0, mode 2
		0xB0, 0x00, 0xE6, 0x40,
		0xB0, 0x04, 0xE6, 0x40, // count 0400h
		0xFB,       // STI
		0xF4,       // HLT
		0xEB, 0xFD, // JMP back to HLT
	)
	// INC BX; MOV AL,20h; OUT 20h,AL; IRET
	copy(m.mem[0x0600:], []byte{0x43, 0xB0, 0x20, 0xE6, 0x20, 0xCF})
	setIVT(m, 0x08, 0, 0x0600)

	r := NewCPUX86Runner(m)
	if err := r.RunCycles(100_000); err != nil {
		t.Fatal(err)
	}
	// 1024 PIT clocks is about 4096 CPU clocks
	if n := m.CPU().BX(); n < 15 || n > 30 {
		t.Fatalf("timer ticks = %d, want about 24", n)
	}
}

func TestMachine_FPUExceptionRaisesNMI(t *testing.T) {
	cfg := DefaultMachineConfig()
	cfg.FPU = true
	m := newTestMachine(t, cfg,
		0xB0, 0x80, 0xE6, 0xA0, // enable NMI
		0xD9, 0x2E, 0x00, 0x02, // FLDCW [0200]
		0xD9, 0xE8, // FLD1
		0xD9, 0xEE, // FLDZ
		0xDE, 0xF9, // FDIVP
		0xF4,
	)
	m.Write16(programSegment<<4+0x0200, 0x037B)
	copy(m.mem[0x0700:], []byte{0x43, 0xCF}) // INC BX; IRET
	setIVT(m, 0x02, 0, 0x0700)

	r := NewCPUX86Runner(m)
	if err := r.RunCycles(5000); err != nil {
		t.Fatal(err)
	}
	if m.CPU().BX() != 1 {
		t.Fatalf("NMI handler ran %d times, want 1", m.CPU().BX())
	}
	if m.FPU().SW&fpuSW_ZE == 0 {
		t.Fatal("ZE not set")
	}
}

func TestMachine_NMIMaskedAfterReset(t *testing.T) {
	cfg := DefaultMachineConfig()
	cfg.FPU = true
	m := newTestMachine(t, cfg, 0xF4)
	copy(m.mem[0x0700:], []byte{0x43, 0xCF})
	setIVT(m, 0x02, 0, 0x0700)

	m.FPU().OnInterrupt()
	r := NewCPUX86Runner(m)
	if err := r.RunCycles(500); err != nil {
		t.Fatal(err)
	}
	if m.CPU().BX() != 0 {
		t.Fatal("NMI delivered while port A0h mask is clear")
	}
	m.Out(xtPortNMI, 0x80)
	if m.In(xtPortNMI) != 0x80 {
		t.Fatal("NMI mask register not readable")
	}
	if err := r.RunCycles(500); err != nil {
		t.Fatal(err)
	}
	if m.CPU().BX() != 1 {
		t.Fatalf("latched NMI taken %d times after unmasking, want 1", m.CPU().BX())
	}
}

func TestMachine_SpeakerGate(t *testing.T) {
	m := newTestMachine(t, DefaultMachineConfig())
	m.Out(0x43, 0xB6) // channel 2, mode 3
	m.Out(0x42, 0x02)
	m.Out(0x42, 0x00)
	m.Out(xtPortPPIB, 0x01)
	if m.In(xtPortPPIB) != 0x01 {
		t.Fatal("port 61h does not read back")
	}
	if !m.PIT().ch[2].gate {
		t.Fatal("port 61h bit 0 should gate channel 2")
	}
	m.Out(xtPortPPIB, 0x00)
	if m.PIT().ch[2].gate {
		t.Fatal("gate still high")
	}
}

func TestMachine_Media(t *testing.T) {
	m := newTestMachine(t, DefaultMachineConfig())
	if err := m.InsertFloppy(2, "a.img", false); err == nil {
		t.Fatal("insert into a missing drive accepted")
	}
	if err := m.FlushMedia(); err != nil {
		t.Fatalf("flush with empty drives: %v", err)
	}
	if got := m.HDDAccess(0, 1, false); got != 0 {
		t.Fatalf("HDDAccess without a disk = %v", got)
	}

	cfg := DefaultMachineConfig()
	cfg.HDDPreset = &NewHDDCatalog().Presets()[0]
	m = newTestMachine(t, cfg)
	if got := m.HDDAccess(100, 4, true); got != hddOverheadUsec {
		t.Fatalf("RAM disk access = %v, want %v", got, hddOverheadUsec)
	}
}

func TestMachine_ResetKeepsRAM(t *testing.T) {
	m := newTestMachine(t, DefaultMachineConfig(), 0x90)
	m.Write(0x500, 0xA5)
	m.Out(xtPortNMI, 0x80)
	m.Reset()
	if m.Read(0x500) != 0xA5 {
		t.Fatal("reset cleared RAM")
	}
	if m.In(xtPortNMI) != 0 {
		t.Fatal("reset should clear the NMI mask register")
	}
	if c := m.CPU(); c.CS() != 0xFFFF || c.IP != 0 {
		t.Fatalf("reset at %04X:%04X", c.CS(), c.IP)
	}
}
