package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testCatalogCSV = `name,internal_name,model,zones,avg_spt,heads,rpm,full_stroke_ms,track_seek_ms,cache_segments,cache_segment_size,max_multiple
Custom 3600,custom3600,CUSTOM DRIVE 3600,4,52,4,3600,28.5,4.5,2,32,8
Custom 5400,custom5400,CUSTOM DRIVE 5400,8,120,6,5400,18.0,2.5,4,64,16
`

func writeTempFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestHDDPresets_BuiltinTable(t *testing.T) {
	c := NewHDDCatalog()
	if n := len(c.Presets()); n != 42 {
		t.Fatalf("built-in presets = %d, want 42", n)
	}
	if !c.Presets()[0].RAMDisk() {
		t.Fatal("preset 0 should be the RAM disk")
	}
	for _, p := range c.Presets() {
		if err := p.Validate(); err != nil {
			t.Fatalf("built-in preset invalid: %v", err)
		}
	}
	p, err := c.Lookup("st3780a")
	if err != nil || p.Model != "ST3780A" {
		t.Fatalf("Lookup(st3780a) = %+v, %v", p, err)
	}
	if _, err := c.Lookup("nosuchdrive"); err == nil {
		t.Fatal("unknown preset found")
	}
}

func TestHDDPresets_Validate(t *testing.T) {
	tests := []struct {
		name string
		p    HDDPreset
		ok   bool
	}{
		{"ram disk", HDDPreset{InternalName: "ramdisk", CacheSegments: 1, CacheSegmentSize: 16}, true},
		{"no internal name", HDDPreset{Name: "x", CacheSegments: 1, CacheSegmentSize: 16}, false},
		{"no cache", HDDPreset{InternalName: "x", Heads: 2, RPM: 3600, AvgSPT: 17}, false},
		{"zero rpm", HDDPreset{InternalName: "x", Heads: 2, AvgSPT: 17, CacheSegments: 1, CacheSegmentSize: 8}, false},
		{"mechanical", HDDPreset{InternalName: "x", Heads: 2, RPM: 3600, AvgSPT: 17, CacheSegments: 1, CacheSegmentSize: 8}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.p.Validate(); (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestHDDCatalog_LoadCSV(t *testing.T) {
	path := writeTempFile(t, "drives.csv", testCatalogCSV)
	presets, err := LoadHDDCatalog(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadHDDCatalog failed: %v", err)
	}
	if len(presets) != 2 {
		t.Fatalf("loaded %d presets, want 2", len(presets))
	}
	want := HDDPreset{
		Name: "Custom 5400", InternalName: "custom5400", Model: "CUSTOM DRIVE 5400",
		Zones: 8, AvgSPT: 120, Heads: 6, RPM: 5400, FullStrokeMs: 18, TrackSeekMs: 2.5,
		CacheSegments: 4, CacheSegmentSize: 64, MaxMultiple: 16,
	}
	if presets[1] != want {
		t.Fatalf("row 1 = %+v\nwant   %+v", presets[1], want)
	}

	c := NewHDDCatalog()
	c.Merge(presets)
	c.Merge([]HDDPreset{{Name: "replaced", InternalName: "CUSTOM3600", CacheSegments: 1, CacheSegmentSize: 8}})
	if n := len(c.Presets()); n != 44 {
		t.Fatalf("merged catalog has %d presets, want 44", n)
	}
	if p, _ := c.Lookup("custom3600"); p.Name != "replaced" {
		t.Fatalf("merge did not replace by internal name: %+v", p)
	}
}

func TestHDDCatalog_Errors(t *testing.T) {
	ctx := context.Background()

	missing := writeTempFile(t, "short.csv", "name,internal_name,zones\nA,a,2\n")
	if _, err := LoadHDDCatalog(ctx, missing); !errors.Is(err, ErrCatalogColumn) {
		t.Fatalf("missing columns: err = %v, want ErrCatalogColumn", err)
	}

	bad := strings.Replace(testCatalogCSV, ",6,5400,", ",0,5400,", 1)
	if _, err := LoadHDDCatalog(ctx, writeTempFile(t, "bad.csv", bad)); err == nil {
		t.Fatal("row with zero heads accepted")
	}

	if _, err := LoadHDDCatalog(ctx, writeTempFile(t, "drives.json", "{}")); err == nil {
		t.Fatal("unsupported extension accepted")
	}
	if _, err := LoadHDDCatalog(ctx, filepath.Join(t.TempDir(), "none.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: err = %v", err)
	}
}

func TestHDDSurvey_RunAndExport(t *testing.T) {
	ctx := context.Background()
	presets := NewHDDCatalog().Presets()[:6]
	results, err := RunHDDSurvey(ctx, presets, DefaultSurveyGeometry)
	if err != nil {
		t.Fatalf("RunHDDSurvey failed: %v", err)
	}
	for i, r := range results {
		if r.Preset != presets[i].InternalName {
			t.Fatalf("result %d is %s, want %s", i, r.Preset, presets[i].InternalName)
		}
	}
	if r := results[0]; r.ColdRead != hddOverheadUsec || r.SeqWrite != 16*hddOverheadUsec {
		t.Fatalf("RAM disk survey = %+v", r)
	}
	for _, r := range results[1:] {
		if r.WarmRead >= r.ColdRead {
			t.Fatalf("%s: warm read %v not faster than cold %v", r.Preset, r.WarmRead, r.ColdRead)
		}
		if r.FullSeek <= 0 {
			t.Fatalf("%s: full seek %v", r.Preset, r.FullSeek)
		}
	}

	path := filepath.Join(t.TempDir(), "survey.csv")
	if err := WriteSurvey(ctx, path, results); err != nil {
		t.Fatalf("WriteSurvey failed: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	lines := 0
	for sc.Scan() {
		if lines == 0 && !strings.HasPrefix(sc.Text(), "preset,zones,") {
			t.Fatalf("header = %q", sc.Text())
		}
		lines++
	}
	if lines != len(results)+1 {
		t.Fatalf("survey CSV has %d lines, want %d", lines, len(results)+1)
	}

	if err := WriteSurvey(ctx, filepath.Join(t.TempDir(), "survey.txt"), results); err == nil {
		t.Fatal("unsupported survey format accepted")
	}
}

func TestHDDSurvey_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunHDDSurvey(ctx, NewHDDCatalog().Presets(), DefaultSurveyGeometry); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
