// pic_8259.go - Intel 8259A programmable interrupt controller (single, XT wiring)

package main

import (
	"fmt"
	"os"
)

const (
	picStateReady = iota
	picStateICW2
	picStateICW3
	picStateICW4
)

// PIC8259 is a single-mode 8259A in edge-triggered fixed-priority operation,
// as wired on the PC/XT (ports 20h/21h, vectors 08h-0Fh after BIOS init).
type PIC8259 struct {
	irr, isr, imr byte
	lines         byte // current input levels, for edge detection

	vectorBase byte
	icw1, icw4 byte
	state      int
	readISR    bool
	autoEOI    bool

	// INTA sequencing
	inta      int
	latchedIV byte

	Debug bool
}

func NewPIC8259() *PIC8259 {
	p := &PIC8259{}
	p.Reset()
	return p
}

func (p *PIC8259) Reset() {
	p.irr, p.isr, p.imr, p.lines = 0, 0, 0xFF, 0
	p.vectorBase = 0x08
	p.icw1, p.icw4 = 0, 0
	p.state = picStateReady
	p.readISR = false
	p.autoEOI = false
	p.inta = 0
}

// RaiseIRQ drives input n high; a rising edge latches the request.
func (p *PIC8259) RaiseIRQ(n int) {
	bit := byte(1) << (n & 7)
	if p.lines&bit == 0 {
		p.irr |= bit
	}
	p.lines |= bit
}

// LowerIRQ drives input n low.
func (p *PIC8259) LowerIRQ(n int) {
	bit := byte(1) << (n & 7)
	p.lines &^= bit
	p.irr &^= bit
}

// PulseIRQ latches a request on n without leaving the line asserted.
func (p *PIC8259) PulseIRQ(n int) {
	p.RaiseIRQ(n)
	p.lines &^= 1 << (n & 7)
}

// highest returns the highest priority request in mask (IR0 highest), or -1.
func highestIRQ(mask byte) int {
	for i := range 8 {
		if mask&(1<<i) != 0 {
			return i
		}
	}
	return -1
}

// pending is the IRQ that would be granted, honouring in-service priority.
func (p *PIC8259) pending() int {
	req := highestIRQ(p.irr &^ p.imr)
	if req < 0 {
		return -1
	}
	if svc := highestIRQ(p.isr); svc >= 0 && svc <= req {
		return -1
	}
	return req
}

// IRQPending reports the INTR output.
func (p *PIC8259) IRQPending() bool {
	return p.state == picStateReady && p.pending() >= 0
}

// Acknowledge answers one INTA pulse. The first pulse resolves priority and
// moves the request into service; the second returns the vector. A request
// that vanished before the first pulse yields the IR7 spurious vector.
func (p *PIC8259) Acknowledge() uint8 {
	if p.inta == 0 {
		p.inta = 1
		irq := p.pending()
		if irq < 0 {
			p.latchedIV = p.vectorBase | 7
			return 0xFF
		}
		bit := byte(1) << irq
		p.irr &^= bit
		p.isr |= bit
		p.latchedIV = p.vectorBase | byte(irq)
		if p.Debug {
			fmt.Fprintf(os.Stderr, "pic: ack IRQ%d vector %02X\n", irq, p.latchedIV)
		}
		return 0xFF
	}
	p.inta = 0
	if p.autoEOI {
		p.eoi()
	}
	return p.latchedIV
}

func (p *PIC8259) eoi() {
	if irq := highestIRQ(p.isr); irq >= 0 {
		p.isr &^= 1 << irq
	}
}

// Read handles an IN from port 20h (addr 0) or 21h (addr 1).
func (p *PIC8259) Read(addr uint16) byte {
	if addr&1 != 0 {
		return p.imr
	}
	if p.readISR {
		return p.isr
	}
	return p.irr
}

// Write handles an OUT to port 20h (addr 0) or 21h (addr 1).
func (p *PIC8259) Write(addr uint16, v byte) {
	if addr&1 == 0 {
		switch {
		case v&0x10 != 0: // ICW1
			p.icw1 = v
			p.imr = 0
			p.isr = 0
			p.irr = 0
			p.readISR = false
			p.state = picStateICW2
		case v&0x08 != 0: // OCW3
			if v&0x02 != 0 {
				p.readISR = v&0x01 != 0
			}
		default: // OCW2
			switch v & 0xE0 {
			case 0x20: // non-specific EOI
				p.eoi()
			case 0x60: // specific EOI
				p.isr &^= 1 << (v & 7)
			}
		}
		return
	}

	switch p.state {
	case picStateICW2:
		p.vectorBase = v & 0xF8
		switch {
		case p.icw1&0x02 == 0:
			p.state = picStateICW3
		case p.icw1&0x01 != 0:
			p.state = picStateICW4
		default:
			p.state = picStateReady
		}
	case picStateICW3:
		if p.icw1&0x01 != 0 {
			p.state = picStateICW4
		} else {
			p.state = picStateReady
		}
	case picStateICW4:
		p.icw4 = v
		p.autoEOI = v&0x02 != 0
		p.state = picStateReady
	default: // OCW1
		p.imr = v
	}
}

// ISR returns the in-service register.
func (p *PIC8259) ISR() byte { return p.isr }

// IRR returns the request register.
func (p *PIC8259) IRR() byte { return p.irr }
