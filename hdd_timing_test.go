package main

import (
	"errors"
	"testing"
)

// testHDDClock is a 1 MHz time base.
type testHDDClock struct{ tsc uint64 }

func (c *testHDDClock) Now() uint64 { return c.tsc }
func (c *testHDDClock) Hz() uint64  { return 1_000_000 }

func lookupPreset(t *testing.T, name string) *HDDPreset {
	t.Helper()
	p, err := NewHDDCatalog().Lookup(name)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestHDD_RAMDiskFixedOverhead(t *testing.T) {
	h := NewHDDTiming(615, 4, 17, nil, &testHDDClock{})
	if !h.Preset.RAMDisk() {
		t.Fatalf("nil preset gave %s, want ramdisk", h.Preset.InternalName)
	}
	for name, got := range map[string]float64{
		"read":  h.TimingRead(1000, 32),
		"write": h.TimingWrite(5, 1),
		"seek":  h.SeekTime(40000, HDDOpSeek, false, 0),
	} {
		if got != hddOverheadUsec {
			t.Fatalf("%s = %v, want %v", name, got, hddOverheadUsec)
		}
	}
	if h.Zones() != 0 {
		t.Fatalf("RAM disk has %d zones", h.Zones())
	}
}

func TestHDD_NoZonesPanics(t *testing.T) {
	p := *lookupPreset(t, "1989_3500rpm")
	p.InternalName = "zoneless"
	p.Zones = 0
	h := NewHDDTiming(615, 4, 17, &p, &testHDDClock{})

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrHDDNoZones) {
			t.Fatalf("recovered %v, want ErrHDDNoZones", r)
		}
	}()
	h.TimingRead(0, 1)
	t.Fatal("timing a zoneless drive did not panic")
}

func TestHDD_ZonesCoverDisk(t *testing.T) {
	g := DefaultSurveyGeometry
	total := g.Tracks * g.HPC * g.SPT
	for _, p := range NewHDDCatalog().Presets() {
		if p.RAMDisk() {
			continue
		}
		h := NewHDDTiming(g.Tracks, g.HPC, g.SPT, &p, &testHDDClock{})
		if want := min(p.Zones, hddMaxZones); h.Zones() != want {
			t.Fatalf("%s: %d zones, want %d", p.InternalName, h.Zones(), want)
		}
		if last := h.zones[len(h.zones)-1]; last.endSector < total-1 {
			t.Fatalf("%s: zones end at %d, disk has %d sectors", p.InternalName, last.endSector, total)
		}
	}
}

func TestHDD_SeekTime(t *testing.T) {
	h := NewHDDTiming(615, 4, 17, lookupPreset(t, "1989_3500rpm"), &testHDDClock{})

	if got := h.SeekTime(0, HDDOpSeek, false, 0); got != hddOverheadUsec {
		t.Fatalf("seek on the current cylinder = %v, want %v", got, hddOverheadUsec)
	}
	if got := h.SeekTime(1, HDDOpRead, true, 0); got != h.zones[0].sectorTimeUsec {
		t.Fatalf("next sector = %v, want one sector time %v", got, h.zones[0].sectorTimeUsec)
	}
	if got := h.SeekTime(10, HDDOpRead, false, 0); got != h.avgRotationLatUsec {
		t.Fatalf("same-track read = %v, want rotational latency %v", got, h.avgRotationLatUsec)
	}

	far := h.Tracks*h.HPC*h.SPT - 1
	got := h.SeekTime(far, HDDOpRead, false, 1)
	if got <= h.fullStrokeUsec {
		t.Fatalf("full stroke read = %v, want more than %v", got, h.fullStrokeUsec)
	}
	if h.curAddr != 10 {
		t.Fatalf("seek over budget moved the head to %d", h.curAddr)
	}
}

func TestHDD_ReadCacheHit(t *testing.T) {
	clk := &testHDDClock{}
	h := NewHDDTiming(615, 4, 17, lookupPreset(t, "1994_4500rpm"), clk)

	cold := h.TimingRead(20000, 8)
	if cold <= h.avgRotationLatUsec {
		t.Fatalf("cold read = %v, want at least rotational latency", cold)
	}
	clk.tsc += uint64(cold)
	if warm := h.TimingRead(20000, 8); warm != 0 {
		t.Fatalf("repeated read = %v, want a free cache hit", warm)
	}
}

func TestHDD_WriteBuffer(t *testing.T) {
	h := NewHDDTiming(615, 4, 17, lookupPreset(t, "1989_3500rpm"), &testHDDClock{})

	if got := h.TimingWrite(100, 8); got != 0 {
		t.Fatalf("buffered write = %v, want 0", got)
	}
	if got := h.TimingWrite(108, 8); got != 0 {
		t.Fatalf("sequential buffered write = %v, want 0", got)
	}
	if got := h.TimingWrite(30000, 1); got == 0 {
		t.Fatal("non-sequential write should flush the buffer")
	}
	if got := h.TimingRead(500, 1); got == 0 {
		t.Fatal("read after a write should flush and seek")
	}
}
