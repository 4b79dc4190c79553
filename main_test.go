package main

import (
	"errors"
	"flag"
	"slices"
	"testing"
)

func TestParseFlags_Defaults(t *testing.T) {
	o, err := parseFlags(nil)
	if err != nil {
		t.Fatal(err)
	}
	if o.cpu != "8088" || o.clock != xtDefaultClock || o.driveType != "525dd" {
		t.Fatalf("unexpected defaults: %+v", o)
	}
	if o.monitor || o.program != "" {
		t.Fatalf("unexpected defaults: %+v", o)
	}
}

func TestParseFlags_ProgramAndOptions(t *testing.T) {
	o, err := parseFlags([]string{"-cpu", "v20", "-cycles", "5000", "-floppy", "a.img,b.img", "prog.bin"})
	if err != nil {
		t.Fatal(err)
	}
	if o.cpu != "v20" || o.cycles != 5000 || o.program != "prog.bin" {
		t.Fatalf("got %+v", o)
	}
	if got := floppyImages(o.floppies); !slices.Equal(got, []string{"a.img", "b.img"}) {
		t.Fatalf("floppyImages = %q", got)
	}
}

func TestParseFlags_Help(t *testing.T) {
	_, err := parseFlags([]string{"-h"})
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
}

func TestMachineConfig(t *testing.T) {
	catalog := NewHDDCatalog()
	tests := []struct {
		name    string
		opts    cliOptions
		wantErr bool
		check   func(t *testing.T, cfg MachineConfig)
	}{
		{
			name: "v30 with fpu",
			opts: cliOptions{cpu: "V30", clock: 8000000, driveType: "35hd", fpu: true},
			check: func(t *testing.T, cfg MachineConfig) {
				if cfg.CPU.Model != X86ModelV30 || cfg.ClockHz != 8000000 || !cfg.FPU {
					t.Fatalf("got %+v", cfg)
				}
				if cfg.Floppies[0] != FloppyDrive35HD {
					t.Fatalf("drive type = %v", cfg.Floppies[0])
				}
			},
		},
		{
			name: "hdd preset",
			opts: cliOptions{cpu: "8088", driveType: "525dd", hddPreset: "ramdisk"},
			check: func(t *testing.T, cfg MachineConfig) {
				if cfg.HDDPreset == nil || !cfg.HDDPreset.RAMDisk() {
					t.Fatalf("preset = %+v", cfg.HDDPreset)
				}
			},
		},
		{name: "unknown cpu", opts: cliOptions{cpu: "z80", driveType: "525dd"}, wantErr: true},
		{name: "unknown drive", opts: cliOptions{cpu: "8088", driveType: "8inch"}, wantErr: true},
		{name: "unknown preset", opts: cliOptions{cpu: "8088", driveType: "525dd", hddPreset: "nope"}, wantErr: true},
		{name: "missing bios", opts: cliOptions{cpu: "8088", driveType: "525dd", bios: "/nonexistent/bios.bin"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := machineConfig(tt.opts, catalog)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestFloppyImages_Empty(t *testing.T) {
	if got := floppyImages(""); got != nil {
		t.Fatalf("got %q", got)
	}
	if got := floppyImages(",b.img"); len(got) != 2 || got[0] != "" {
		t.Fatalf("got %q", got)
	}
}
