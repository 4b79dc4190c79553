package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// fdcRig is a controller on a 1 MHz scheduler (1 tick = 1us) with a DMA
// engine and one drive in bay 0.
type fdcRig struct {
	f    *FDC765
	d    *FloppyDrive
	dma  *DMA8237
	mem  *testDMAMemory
	s    *Scheduler
	clk  *fakeClock
	irqs int
}

func newFDCRig(t *testing.T, cfg FDCConfig, dt FloppyDriveType) *fdcRig {
	t.Helper()
	s, clk := newTestScheduler(1_000_000)
	mem := &testDMAMemory{}
	r := &fdcRig{s: s, clk: clk, mem: mem, dma: NewDMA8237(mem)}
	r.f = NewFDC765(cfg, s, r.dma)
	r.f.RaiseIRQ = func(int) { r.irqs++ }
	r.d = NewFloppyDrive(dt)
	r.f.AttachDrive(0, r.d)
	return r
}

// run advances the clock event by event until done reports true.
func (r *fdcRig) run(t *testing.T, done func() bool) {
	t.Helper()
	for range 100_000 {
		if done() {
			return
		}
		dl := r.s.NextDeadline()
		if dl == math.MaxUint64 {
			t.Fatal("scheduler idle before the controller finished")
		}
		r.clk.tsc = dl
		r.s.ProcessDue(dl)
	}
	t.Fatal("controller did not finish")
}

func (r *fdcRig) resultReady() bool { return r.f.Read(0x3F4)&0xD0 == 0xD0 }

// command writes a command byte and its parameters to the data register.
func (r *fdcRig) command(b ...byte) {
	for _, v := range b {
		r.f.Write(0x3F5, v)
	}
}

func (r *fdcRig) results(t *testing.T, n int) []byte {
	t.Helper()
	out := make([]byte, n)
	for i := range out {
		if msr := r.f.Read(0x3F4); msr&0xC0 != 0xC0 {
			t.Fatalf("result byte %d: MSR %02X not ready for read", i, msr)
		}
		out[i] = r.f.Read(0x3F5)
	}
	if msr := r.f.Read(0x3F4); msr != 0x80 {
		t.Fatalf("MSR after result phase = %02X, want 80", msr)
	}
	return out
}

// powerUp takes the controller out of reset with drive 0 selected, its
// motor on and DMA/IRQ enabled.
func (r *fdcRig) powerUp(t *testing.T) {
	t.Helper()
	r.f.Write(0x3F2, 0x1C)
	r.run(t, func() bool { return r.irqs > 0 })
}

func TestFDC_ResetSenseInterrupt(t *testing.T) {
	r := newFDCRig(t, DefaultXTFDCConfig(), FloppyDrive525DD)
	r.powerUp(t)
	if r.irqs != 1 {
		t.Fatalf("reset raised %d interrupts, want 1", r.irqs)
	}
	for n := range 4 {
		r.command(0x08)
		got := r.results(t, 2)
		if got[0] != 0xC0|byte(n) || got[1] != 0 {
			t.Fatalf("sense %d = % X, want %02X 00", n, got, 0xC0|n)
		}
	}
	r.command(0x08)
	if got := r.results(t, 1); got[0] != 0x80 {
		t.Fatalf("sense with nothing pending = %02X, want 80", got[0])
	}
}

func TestFDC_Version(t *testing.T) {
	tests := []struct {
		name string
		cfg  FDCConfig
		want byte
	}{
		{"uPD765 rejects", DefaultXTFDCConfig(), 0x80},
		{"82077 reports enhanced", FDCConfig{IRQ: 6, DMAChannel: 2}, 0x90},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newFDCRig(t, tc.cfg, FloppyDrive35HD)
			r.command(0x10)
			r.run(t, r.resultReady)
			if got := r.results(t, 1); got[0] != tc.want {
				t.Fatalf("VERSION = %02X, want %02X", got[0], tc.want)
			}
		})
	}
}

func TestFDC_SenseDriveStatus(t *testing.T) {
	r := newFDCRig(t, DefaultXTFDCConfig(), FloppyDrive525DD)
	r.powerUp(t)
	r.command(0x04, 0x00)
	r.run(t, r.resultReady)
	// Ready, two-sided, track 0, write protected (no media)
	if got := r.results(t, 1); got[0] != 0x78 {
		t.Fatalf("ST3 = %02X, want 78", got[0])
	}
}

func TestFDC_ReadHead1SingleSided(t *testing.T) {
	r := newFDCRig(t, DefaultXTFDCConfig(), FloppyDrive525SS)
	if err := r.d.Insert(make([]byte, 184320), false); err != nil {
		t.Fatal(err)
	}
	r.powerUp(t)
	r.command(0x46, 0x04, 0, 1, 1, 2, 9, 0x2A, 0xFF)
	if !r.resultReady() {
		t.Fatal("head 1 on a single-sided drive should fail without delay")
	}
	got := r.results(t, 7)
	if got[0] != 0x44 || got[1] != 0x01 || got[2] != 0 {
		t.Fatalf("status = % X, want 44 01 00", got[:3])
	}
}

func TestFDC_ReadEmptyDrive(t *testing.T) {
	r := newFDCRig(t, DefaultXTFDCConfig(), FloppyDrive525DD)
	r.powerUp(t)
	start := r.clk.tsc
	r.command(0x46, 0x00, 0, 0, 1, 2, 9, 0x2A, 0xFF)
	r.run(t, r.resultReady)
	// Two revolutions at 300 rpm
	if elapsed := r.clk.tsc - start; elapsed < 400_000 {
		t.Fatalf("no-media error after %dus, want two revolutions", elapsed)
	}
	got := r.results(t, 7)
	if got[0] != 0x40 || got[1] != 0x01 {
		t.Fatalf("ST0/ST1 = %02X %02X, want 40 01", got[0], got[1])
	}
}

func TestFDC_ReadDataDMA(t *testing.T) {
	r := newFDCRig(t, DefaultXTFDCConfig(), FloppyDrive525DD)
	img := make([]byte, 368640)
	for i := range floppySectorSize {
		img[i] = byte(i * 7)
	}
	if err := r.d.Insert(img, false); err != nil {
		t.Fatal(err)
	}
	r.powerUp(t)
	programDMA(r.dma, 2, 0x44, 0x00, 0x0600, floppySectorSize-1)

	r.command(0x46, 0x00, 0, 0, 1, 2, 1, 0x2A, 0xFF)
	r.run(t, r.resultReady)
	got := r.results(t, 7)
	// Reading up to EOT leaves C advanced and R back at 1
	want := []byte{0x00, 0x00, 0x00, 1, 0, 1, 2}
	if !bytes.Equal(got, want) {
		t.Fatalf("result = % X, want % X", got, want)
	}
	if !bytes.Equal(r.mem.mem[0x0600:0x0600+floppySectorSize], img[:floppySectorSize]) {
		t.Fatal("sector data did not reach memory")
	}
	if r.irqs != 2 {
		t.Fatalf("interrupts = %d, want 2 (reset and completion)", r.irqs)
	}
}

func TestFDC_WriteDataDMA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, make([]byte, 368640), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newFDCRig(t, DefaultXTFDCConfig(), FloppyDrive525DD)
	if err := r.d.Load(path, false); err != nil {
		t.Fatal(err)
	}
	r.powerUp(t)
	for i := range floppySectorSize {
		r.mem.mem[0x0800+i] = byte(0xFF - i)
	}
	programDMA(r.dma, 2, 0x48, 0x00, 0x0800, floppySectorSize-1)

	// Cylinder 0, head 1, sector 3
	r.command(0x45, 0x04, 0, 1, 3, 2, 3, 0x2A, 0xFF)
	r.run(t, r.resultReady)
	if got := r.results(t, 7); got[0]&0xC0 != 0 || got[1] != 0 {
		t.Fatalf("write failed: % X", got)
	}
	off := (1*9 + 2) * floppySectorSize
	if !bytes.Equal(r.d.Image()[off:off+floppySectorSize], r.mem.mem[0x0800:0x0800+floppySectorSize]) {
		t.Fatal("sector not written to the image")
	}
	if err := r.d.Flush(); err != nil {
		t.Fatal(err)
	}
	disk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if disk[off] != 0xFF || disk[off+1] != 0xFE {
		t.Fatalf("flushed image holds %02X %02X", disk[off], disk[off+1])
	}
}

func TestFDC_WriteProtected(t *testing.T) {
	r := newFDCRig(t, DefaultXTFDCConfig(), FloppyDrive35DD)
	if err := r.d.Insert(make([]byte, 737280), true); err != nil {
		t.Fatal(err)
	}
	r.powerUp(t)
	programDMA(r.dma, 2, 0x48, 0x00, 0x0800, floppySectorSize-1)
	r.command(0x45, 0x00, 0, 0, 1, 2, 9, 0x2A, 0xFF)
	if !r.resultReady() {
		t.Fatal("write protect should be reported at once")
	}
	if got := r.results(t, 7); got[0] != 0x40 || got[1] != 0x02 {
		t.Fatalf("ST0/ST1 = %02X %02X, want 40 02", got[0], got[1])
	}
}

func TestFDC_ReadWrongCylinder(t *testing.T) {
	tests := []struct {
		name     string
		c        byte
		st1, st2 byte
	}{
		{"wrong cylinder", 5, 0x04, 0x10},
		{"bad cylinder", 0xFF, 0x04, 0x02},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newFDCRig(t, DefaultXTFDCConfig(), FloppyDrive525DD)
			if err := r.d.Insert(make([]byte, 368640), false); err != nil {
				t.Fatal(err)
			}
			r.powerUp(t)
			programDMA(r.dma, 2, 0x44, 0x00, 0x0600, floppySectorSize-1)
			r.command(0x46, 0x00, tc.c, 0, 1, 2, 1, 0x2A, 0xFF)
			r.run(t, r.resultReady)
			got := r.results(t, 7)
			if got[1] != tc.st1 || got[2] != tc.st2 {
				t.Fatalf("ST1/ST2 = %02X %02X, want %02X %02X", got[1], got[2], tc.st1, tc.st2)
			}
		})
	}
}

func TestFDC_SpecifyThenReadNoSector(t *testing.T) {
	r := newFDCRig(t, DefaultXTFDCConfig(), FloppyDrive525DD)
	if err := r.d.Insert(make([]byte, 368640), false); err != nil {
		t.Fatal(err)
	}
	r.powerUp(t)

	// SPECIFY SRT=D HUT=F HLT=1, DMA mode
	r.command(0x03, 0xDF, 0x02)
	r.run(t, func() bool { return r.f.Read(0x3F4) == 0x80 })

	for i := range floppySectorSize {
		r.mem.mem[0x0600+i] = 0x5A
	}
	programDMA(r.dma, 2, 0x44, 0x00, 0x0600, floppySectorSize-1)

	// READ DATA C=0 H=0 R=20h: no such sector on the track
	r.command(0x46, 0x00, 0, 0, 0x20, 2, 9, 0x2A, 0xFF)
	r.run(t, r.resultReady)
	got := r.results(t, 7)
	if got[0]&0xC0 != 0x40 || got[1] != 0x04 || got[2] != 0 {
		t.Fatalf("ST0-2 = % X, want 40 04 00", got[:3])
	}
	if got[5] != 0x20 {
		t.Fatalf("result R = %02X, want 20", got[5])
	}
	for i := range floppySectorSize {
		if r.mem.mem[0x0600+i] != 0x5A {
			t.Fatalf("DMA wrote memory at %04X", 0x0600+i)
		}
	}
	if c := r.dma.Count(2); c != floppySectorSize-1 {
		t.Fatalf("DMA count = %04X, want %04X untouched", c, floppySectorSize-1)
	}
}
