package main

import "testing"

// initXTPIC programs the PIC the way the XT BIOS does: edge triggered,
// single, vector base 08h, 8086 mode, all inputs unmasked.
func initXTPIC(t *testing.T, p *PIC8259) {
	t.Helper()
	p.Write(0, 0x13)
	p.Write(1, 0x08)
	p.Write(1, 0x09)
	p.Write(1, 0x00)
	if p.IRQPending() {
		t.Fatal("pending IRQ right after init")
	}
}

func ackVector(p *PIC8259) byte {
	p.Acknowledge()
	return p.Acknowledge()
}

func TestPIC_PriorityAndEOI(t *testing.T) {
	p := NewPIC8259()
	initXTPIC(t, p)

	p.PulseIRQ(1)
	p.PulseIRQ(0)
	if !p.IRQPending() {
		t.Fatal("expected INTR")
	}
	if v := ackVector(p); v != 0x08 {
		t.Fatalf("first vector %02X, want 08", v)
	}
	if p.IRQPending() {
		t.Fatal("IRQ1 must wait while IRQ0 is in service")
	}
	p.Write(0, 0x20) // non-specific EOI
	if !p.IRQPending() {
		t.Fatal("IRQ1 should be pending after EOI")
	}
	if v := ackVector(p); v != 0x09 {
		t.Fatalf("second vector %02X, want 09", v)
	}
	if p.ISR() != 0x02 {
		t.Fatalf("ISR = %02X, want 02", p.ISR())
	}
}

func TestPIC_Mask(t *testing.T) {
	p := NewPIC8259()
	initXTPIC(t, p)
	p.Write(1, 0x40) // mask IRQ6
	p.PulseIRQ(6)
	if p.IRQPending() {
		t.Fatal("masked IRQ6 raised INTR")
	}
	if p.IRR()&0x40 == 0 {
		t.Fatal("masked request should still latch in IRR")
	}
	p.Write(1, 0x00)
	if !p.IRQPending() {
		t.Fatal("unmasking should expose IRQ6")
	}
	if v := ackVector(p); v != 0x0E {
		t.Fatalf("vector %02X, want 0E", v)
	}
}

func TestPIC_EdgeTriggered(t *testing.T) {
	p := NewPIC8259()
	initXTPIC(t, p)
	p.RaiseIRQ(3)
	ackVector(p)
	p.Write(0, 0x20)
	if p.IRQPending() {
		t.Fatal("a held line must not retrigger without a new edge")
	}
	p.LowerIRQ(3)
	p.RaiseIRQ(3)
	if !p.IRQPending() {
		t.Fatal("new edge should latch")
	}
}

func TestPIC_SpuriousVector(t *testing.T) {
	p := NewPIC8259()
	initXTPIC(t, p)
	if v := ackVector(p); v != 0x0F {
		t.Fatalf("spurious vector %02X, want 0F", v)
	}
}

func TestPIC_ReadRegisters(t *testing.T) {
	p := NewPIC8259()
	initXTPIC(t, p)
	p.Write(1, 0xFE)
	if got := p.Read(1); got != 0xFE {
		t.Fatalf("IMR = %02X", got)
	}
	p.PulseIRQ(0)
	ackVector(p)
	p.Write(0, 0x0B) // OCW3: read ISR
	if got := p.Read(0); got != 0x01 {
		t.Fatalf("ISR read = %02X, want 01", got)
	}
	p.Write(0, 0x0A) // OCW3: read IRR
	if got := p.Read(0); got != 0x00 {
		t.Fatalf("IRR read = %02X, want 00", got)
	}
}
