// pit_8253.go - Intel 8253 programmable interval timer (XT wiring)

package main

import (
	"fmt"
	"os"
)

// pitHz is the PIT input clock: the 14.31818 MHz crystal divided by 12.
const pitHz = 1193182

type pitChannel struct {
	reload  uint16
	mode    byte
	access  byte // 1 = LSB, 2 = MSB, 3 = LSB then MSB
	bcd     bool
	writeHi bool
	readHi  bool
	latched bool
	latch   uint16
	gate    bool
	armed   bool
	start   uint64
	timer   TimerHandle
}

// PIT8253 counts PIT clocks against the scheduler TSC. Each channel calls its
// Out hook when the counter reaches terminal count; on the XT channel 0 feeds
// IRQ0, channel 1 DRAM refresh and channel 2 the speaker.
type PIT8253 struct {
	ch    [3]pitChannel
	sched *Scheduler

	Out [3]func()

	Debug bool
}

func NewPIT8253(sched *Scheduler) *PIT8253 {
	p := &PIT8253{sched: sched}
	p.Reset()
	return p
}

func (p *PIT8253) Reset() {
	for i := range p.ch {
		c := &p.ch[i]
		if c.armed {
			p.sched.Cancel(c.timer)
		}
		*c = pitChannel{access: 3, gate: i != 2}
	}
}

func (p *PIT8253) logf(format string, args ...any) {
	if p.Debug {
		fmt.Fprintf(os.Stderr, "pit: "+format+"\n", args...)
	}
}

// period returns the programmed count in PIT clocks.
func (c *pitChannel) period() uint32 {
	n := uint32(c.reload)
	if c.bcd {
		n = uint32(c.reload>>12&0xF)*1000 + uint32(c.reload>>8&0xF)*100 +
			uint32(c.reload>>4&0xF)*10 + uint32(c.reload&0xF)
		if n == 0 {
			return 10000
		}
		return n
	}
	if n == 0 {
		return 0x10000
	}
	return n
}

func (c *pitChannel) periodic() bool { return c.mode == 2 || c.mode == 3 }

func (p *PIT8253) ticks(clocks uint64) uint64 {
	return clocks * p.sched.Hz() / pitHz
}

func (p *PIT8253) elapsed(c *pitChannel) uint64 {
	now := p.sched.Now()
	if now < c.start {
		return 0
	}
	return (now - c.start) * pitHz / p.sched.Hz()
}

func (p *PIT8253) arm(n int) {
	c := &p.ch[n]
	p.disarm(n)
	if !c.gate {
		return
	}
	c.armed = true
	c.start = p.sched.Now()
	c.timer = p.sched.ScheduleAt(c.start+p.ticks(uint64(c.period())), func() { p.terminal(n) })
}

func (p *PIT8253) disarm(n int) {
	c := &p.ch[n]
	if c.armed {
		p.sched.Cancel(c.timer)
		c.armed = false
	}
}

func (p *PIT8253) terminal(n int) {
	c := &p.ch[n]
	if p.Out[n] != nil {
		p.Out[n]()
	}
	if !c.periodic() {
		return
	}
	c.start += p.ticks(uint64(c.period()))
	c.timer = p.sched.ScheduleAt(c.start+p.ticks(uint64(c.period())), func() { p.terminal(n) })
}

// Count returns the live counter value of channel n.
func (p *PIT8253) Count(n int) uint16 {
	c := &p.ch[n%3]
	if !c.armed {
		return c.reload
	}
	per := uint64(c.period())
	e := p.elapsed(c)
	switch c.mode {
	case 2:
		return uint16(per - e%per)
	case 3:
		return uint16(per - (2*e)%per)
	}
	return uint16(per - e)
}

// SetGate drives the GATE input of channel n.
func (p *PIT8253) SetGate(n int, on bool) {
	c := &p.ch[n]
	if c.gate == on {
		return
	}
	c.gate = on
	if !on {
		p.disarm(n)
		return
	}
	if c.periodic() || c.mode == 1 || c.mode == 5 {
		p.arm(n)
	}
}

// OutHigh reports the OUT pin level, used by PPI port C bit 5 for channel 2.
func (p *PIT8253) OutHigh(n int) bool {
	c := &p.ch[n]
	per := uint64(c.period())
	switch {
	case !c.armed:
		return c.mode != 0
	case c.mode == 3:
		return p.elapsed(c)%per < (per+1)/2
	case c.mode == 0:
		return p.elapsed(c) >= per
	}
	return true
}

func (p *PIT8253) Read(port uint16) byte {
	n := int(port & 3)
	if n == 3 {
		return 0xFF
	}
	c := &p.ch[n]
	v := c.latch
	if !c.latched {
		v = p.Count(n)
	}
	var b byte
	switch c.access {
	case 1:
		b = byte(v)
		c.latched = false
	case 2:
		b = byte(v >> 8)
		c.latched = false
	default:
		if c.readHi {
			b = byte(v >> 8)
			c.latched = false
		} else {
			b = byte(v)
		}
		c.readHi = !c.readHi
	}
	return b
}

func (p *PIT8253) Write(port uint16, v byte) {
	n := int(port & 3)
	if n == 3 {
		p.control(v)
		return
	}
	c := &p.ch[n]
	switch c.access {
	case 1:
		c.reload = c.reload&0xFF00 | uint16(v)
	case 2:
		c.reload = c.reload&0x00FF | uint16(v)<<8
	default:
		if !c.writeHi {
			c.reload = c.reload&0xFF00 | uint16(v)
			c.writeHi = true
			if c.mode == 0 {
				p.disarm(n)
			}
			return
		}
		c.reload = c.reload&0x00FF | uint16(v)<<8
		c.writeHi = false
	}
	p.logf("channel %d mode %d count %04X", n, c.mode, c.reload)
	if c.mode != 1 && c.mode != 5 {
		p.arm(n)
	}
}

func (p *PIT8253) control(v byte) {
	sc := int(v >> 6)
	if sc == 3 {
		return
	}
	c := &p.ch[sc]
	rw := v >> 4 & 3
	if rw == 0 {
		if !c.latched {
			c.latch = p.Count(sc)
			c.latched = true
			c.readHi = false
		}
		return
	}
	p.disarm(sc)
	c.access = rw
	c.mode = v >> 1 & 7
	if c.mode > 5 {
		c.mode -= 4
	}
	c.bcd = v&1 != 0
	c.writeHi = false
	c.readHi = false
	c.latched = false
}
