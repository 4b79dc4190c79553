package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFloppy_GeometryBySize(t *testing.T) {
	tests := []struct {
		size             int
		cyls, heads, spt int
		kbps             int
	}{
		{163840, 40, 1, 8, 250},
		{368640, 40, 2, 9, 250},
		{737280, 80, 2, 9, 250},
		{1228800, 80, 2, 15, 500},
		{1474560, 80, 2, 18, 500},
		{2949120, 80, 2, 36, 1000},
	}
	for _, tc := range tests {
		g, err := geometryForSize(tc.size)
		if err != nil {
			t.Fatalf("size %d: %v", tc.size, err)
		}
		if g.cyls != tc.cyls || g.heads != tc.heads || g.spt != tc.spt || g.kbps != tc.kbps {
			t.Fatalf("size %d: geometry %+v", tc.size, g)
		}
	}
}

func TestFloppy_InsertRejectsOddSize(t *testing.T) {
	d := NewFloppyDrive(FloppyDrive35HD)
	err := d.Insert(make([]byte, 1000), false)
	if !errors.Is(err, ErrFloppyGeometry) {
		t.Fatalf("Insert error = %v, want ErrFloppyGeometry", err)
	}
	if d.HasMedia() {
		t.Fatal("drive accepted a bad image")
	}
}

func TestFloppy_ParseDriveType(t *testing.T) {
	for name, want := range map[string]FloppyDriveType{
		"525ss": FloppyDrive525SS,
		"525hd": FloppyDrive525HD,
		"35ed":  FloppyDrive35ED,
	} {
		got, err := ParseFloppyDriveType(name)
		if err != nil || got != want {
			t.Fatalf("ParseFloppyDriveType(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseFloppyDriveType("8inch"); err == nil {
		t.Fatal("unknown type accepted")
	}
}

func TestFloppy_MediaBitRate(t *testing.T) {
	d := NewFloppyDrive(FloppyDrive525HD)
	if err := d.Insert(make([]byte, 368640), false); err != nil {
		t.Fatal(err)
	}
	// 360K media spun at 360 rpm
	if got := d.mediaKbps(); got != 300 {
		t.Fatalf("mediaKbps = %d, want 300", got)
	}
	d = NewFloppyDrive(FloppyDrive525DD)
	if err := d.Insert(make([]byte, 368640), false); err != nil {
		t.Fatal(err)
	}
	if got := d.mediaKbps(); got != 250 {
		t.Fatalf("mediaKbps = %d, want 250", got)
	}
}

func TestFloppy_SeekClampsAndClearsChange(t *testing.T) {
	d := NewFloppyDrive(FloppyDrive525DD)
	if err := d.Insert(make([]byte, 368640), false); err != nil {
		t.Fatal(err)
	}
	if !d.Changed() {
		t.Fatal("new media should latch disk change")
	}
	d.seek(100)
	if d.Track() != 39 {
		t.Fatalf("track = %d, want 39", d.Track())
	}
	if d.Changed() {
		t.Fatal("step with media should clear disk change")
	}
	d.seek(-100)
	if !d.Track0() {
		t.Fatal("seek below 0 should stop at track 0")
	}
}

func TestFloppy_LoadFlushEject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.img")
	if err := os.WriteFile(path, make([]byte, 737280), 0o644); err != nil {
		t.Fatal(err)
	}
	d := NewFloppyDrive(FloppyDrive35DD)
	if err := d.Load(path, false); err != nil {
		t.Fatal(err)
	}
	if d.WriteProtect() {
		t.Fatal("loaded read-write media reports write protect")
	}

	// Clean media is not written back
	if err := os.WriteFile(path, []byte("sentinel"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(path); string(data) != "sentinel" {
		t.Fatal("Flush wrote a clean image")
	}

	d.Image()[0] = 0xEB
	d.dirty = true
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 737280 || data[0] != 0xEB {
		t.Fatalf("flushed %d bytes, first %02X", len(data), data[0])
	}

	d.Eject()
	if d.HasMedia() || !d.WriteProtect() || !d.Changed() {
		t.Fatal("ejected drive should be empty, protected and changed")
	}
}

func TestFloppy_LoadMissingFile(t *testing.T) {
	d := NewFloppyDrive(FloppyDrive35HD)
	err := d.Load(filepath.Join(t.TempDir(), "none.img"), false)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load error = %v, want not-exist", err)
	}
}
