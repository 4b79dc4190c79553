package main

import "testing"

// newTestPIT returns a PIT whose scheduler runs at four ticks per PIT clock.
func newTestPIT() (*PIT8253, *Scheduler, *fakeClock) {
	s, clk := newTestScheduler(4 * pitHz)
	return NewPIT8253(s), s, clk
}

func programPIT(p *PIT8253, ch int, mode byte, count uint16) {
	p.Write(3, byte(ch)<<6|0x30|mode<<1)
	p.Write(uint16(ch), byte(count))
	p.Write(uint16(ch), byte(count>>8))
}

func TestPIT_RateGenerator(t *testing.T) {
	p, s, clk := newTestPIT()
	fired := 0
	p.Out[0] = func() { fired++ }
	programPIT(p, 0, 2, 100)

	clk.advance(s, 399)
	if fired != 0 {
		t.Fatal("fired before terminal count")
	}
	clk.advance(s, 1)
	if fired != 1 {
		t.Fatalf("fired %d times at terminal count, want 1", fired)
	}
	clk.advance(s, 600) // tsc 1000: second terminal at 800
	if fired != 2 {
		t.Fatalf("fired %d times, want 2", fired)
	}
	if got := p.Count(0); got != 50 {
		t.Fatalf("Count = %d, want 50", got)
	}
}

func TestPIT_LatchedRead(t *testing.T) {
	p, s, clk := newTestPIT()
	programPIT(p, 0, 2, 1000)
	clk.advance(s, 40) // 10 PIT clocks

	p.Write(3, 0x00) // latch channel 0
	clk.advance(s, 40)
	lo := p.Read(0)
	hi := p.Read(0)
	if got := uint16(hi)<<8 | uint16(lo); got != 990 {
		t.Fatalf("latched count = %d, want 990", got)
	}
	lo = p.Read(0)
	hi = p.Read(0)
	if got := uint16(hi)<<8 | uint16(lo); got != 980 {
		t.Fatalf("live count after latch = %d, want 980", got)
	}
}

func TestPIT_OneShot(t *testing.T) {
	p, s, clk := newTestPIT()
	fired := 0
	p.Out[1] = func() { fired++ }
	programPIT(p, 1, 0, 10)
	if p.OutHigh(1) {
		t.Fatal("mode 0 OUT should be low while counting")
	}
	clk.advance(s, 40)
	if fired != 1 || !p.OutHigh(1) {
		t.Fatalf("fired=%d out=%v at terminal count", fired, p.OutHigh(1))
	}
	clk.advance(s, 4000)
	if fired != 1 {
		t.Fatalf("one-shot fired %d times", fired)
	}
}

func TestPIT_Channel2Gate(t *testing.T) {
	p, s, clk := newTestPIT()
	fired := 0
	p.Out[2] = func() { fired++ }
	programPIT(p, 2, 3, 8)
	clk.advance(s, 1000)
	if fired != 0 {
		t.Fatal("channel 2 counted with its gate low")
	}
	if got := p.Count(2); got != 8 {
		t.Fatalf("idle count = %d, want reload 8", got)
	}
	p.SetGate(2, true)
	clk.advance(s, 32)
	if fired != 1 {
		t.Fatalf("fired %d times after gate, want 1", fired)
	}
	p.SetGate(2, false)
	clk.advance(s, 320)
	if fired != 1 {
		t.Fatal("channel 2 kept counting after the gate dropped")
	}
}

func TestPIT_BCDAndZeroCount(t *testing.T) {
	tests := []struct {
		name   string
		bcd    bool
		reload uint16
		want   uint32
	}{
		{"binary zero is 65536", false, 0, 0x10000},
		{"bcd zero is 10000", true, 0, 10000},
		{"bcd 1234", true, 0x1234, 1234},
		{"binary 1234", false, 0x1234, 0x1234},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := pitChannel{reload: tt.reload, bcd: tt.bcd}
			if got := c.period(); got != tt.want {
				t.Fatalf("period = %d, want %d", got, tt.want)
			}
		})
	}
}
