// main.go - entry point for the IntuitionXT PC/XT machine

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionXT
License: GPLv3 or later
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
)

func boilerPlate() {
	fmt.Println("\n\033[38;2;255;20;147m ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████\033[0m\n\033[38;2;255;50;147m▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀\033[0m\n\033[38;2;255;80;147m▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███\033[0m\n\033[38;2;255;110;147m░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄\033[0m\n\033[38;2;255;140;147m░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒\033[0m\n\033[38;2;255;170;147m░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░\033[0m\n\033[38;2;255;200;147m ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░\033[0m\n\033[38;2;255;230;147m ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░\033[0m\n\033[38;2;255;255;147m ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░\033[0m")
	fmt.Println("\nA cycle-exact 8088/8086/V20/V30/80188/80186 PC/XT with uPD765 floppy and zoned hard disk timing.")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/IntuitionXT")
	fmt.Println("License: GPLv3 or later")
}

// programSegment is where a raw program image is loaded when no BIOS is
// given, COM style at offset 0100.
const programSegment = 0x1000

type cliOptions struct {
	cpu       string
	clock     uint64
	bios      string
	floppies  string
	driveType string
	fpu       bool
	hddPreset string
	catalog   string
	survey    string
	script    string
	monitor   bool
	cycles    int64
	perf      bool
	debug     bool
	program   string
}

func parseFlags(args []string) (cliOptions, error) {
	var o cliOptions
	flagSet := flag.NewFlagSet("intuition_xt", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&o.cpu, "cpu", "8088", "CPU model: 8088, 8086, v20, v30, 80188, 80186")
	flagSet.Uint64Var(&o.clock, "clock", xtDefaultClock, "CPU clock in Hz")
	flagSet.StringVar(&o.bios, "bios", "", "BIOS ROM image, mapped to end at FFFFF")
	flagSet.StringVar(&o.floppies, "floppy", "", "floppy images for A: and B:, comma separated")
	flagSet.StringVar(&o.driveType, "floppy-type", "525dd", "floppy drive type: 525ss, 525dd, 525hd, 35dd, 35hd, 35ed")
	flagSet.BoolVar(&o.fpu, "fpu", false, "fit an 8087")
	flagSet.StringVar(&o.hddPreset, "hdd-preset", "", "hard disk timing preset (internal name)")
	flagSet.StringVar(&o.catalog, "catalog", "", "extra HDD presets from a .parquet or .csv catalog")
	flagSet.StringVar(&o.survey, "survey", "", "write an HDD timing survey of all presets to a .csv or .parquet file and exit")
	flagSet.StringVar(&o.script, "script", "", "run a Lua script against the machine and exit")
	flagSet.BoolVar(&o.monitor, "monitor", false, "start the interactive monitor")
	flagSet.Int64Var(&o.cycles, "cycles", 0, "stop after this many CPU cycles (0 runs until interrupted)")
	flagSet.BoolVar(&o.perf, "perf", false, "report MIPS and effective clock once a second")
	flagSet.BoolVar(&o.debug, "debug", false, "device diagnostics on stderr")
	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./intuition_xt [-cpu v20] [-bios rom.bin] [-floppy a.img,b.img] [-monitor] [program.bin]")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return o, err
	}
	o.program = flagSet.Arg(0)
	return o, nil
}

// machineConfig turns the command line into a MachineConfig.
func machineConfig(o cliOptions, catalog *HDDCatalog) (MachineConfig, error) {
	cfg := DefaultMachineConfig()
	model, err := ParseX86Model(strings.ToLower(o.cpu))
	if err != nil {
		return cfg, err
	}
	cfg.CPU.Model = model
	cfg.CPU.Trace = o.debug
	if o.clock != 0 {
		cfg.ClockHz = o.clock
	}
	cfg.FPU = o.fpu
	cfg.Debug = o.debug
	cfg.FDC.Debug = o.debug

	dt, err := ParseFloppyDriveType(strings.ToLower(o.driveType))
	if err != nil {
		return cfg, err
	}
	cfg.Floppies = []FloppyDriveType{dt, dt}

	if o.hddPreset != "" {
		p, err := catalog.Lookup(o.hddPreset)
		if err != nil {
			return cfg, err
		}
		cfg.HDDPreset = p
	}
	if o.bios != "" {
		rom, err := os.ReadFile(o.bios)
		if err != nil {
			return cfg, fmt.Errorf("bios: %w", err)
		}
		cfg.BIOS = rom
	}
	return cfg, nil
}

// floppyImages splits the -floppy list; empty entries leave a drive empty.
func floppyImages(list string) []string {
	if list == "" {
		return nil
	}
	return strings.Split(list, ",")
}

func main() {
	boilerPlate()

	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, o); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o cliOptions) error {
	catalog := NewHDDCatalog()
	if o.catalog != "" {
		presets, err := LoadHDDCatalog(ctx, o.catalog)
		if err != nil {
			return err
		}
		catalog.Merge(presets)
		fmt.Printf("Loaded %d HDD preset(s) from %s\n", len(presets), o.catalog)
	}

	if o.survey != "" {
		results, err := RunHDDSurvey(ctx, catalog.Presets(), DefaultSurveyGeometry)
		if err != nil {
			return err
		}
		if err := WriteSurvey(ctx, o.survey, results); err != nil {
			return err
		}
		fmt.Printf("Surveyed %d HDD preset(s) into %s\n", len(results), o.survey)
		return nil
	}

	cfg, err := machineConfig(o, catalog)
	if err != nil {
		return err
	}
	m, err := NewXTMachine(cfg)
	if err != nil {
		return err
	}
	for i, path := range floppyImages(o.floppies) {
		if path == "" {
			continue
		}
		if err := m.InsertFloppy(i, path, false); err != nil {
			return err
		}
	}
	defer func() {
		if err := m.FlushMedia(); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}()

	if o.program != "" {
		data, err := os.ReadFile(o.program)
		if err != nil {
			return err
		}
		if err := m.LoadProgram(programSegment, 0x0100, data); err != nil {
			return err
		}
		c := m.CPU()
		for _, seg := range []int{x86SegDS, x86SegES, x86SegSS} {
			c.SetSeg(seg, programSegment)
		}
		c.SetSP(0xFFFE)
		fmt.Printf("Loaded %s (%d bytes) at %04X:0100\n", o.program, len(data), programSegment)
	}

	runner := NewCPUX86Runner(m)
	runner.PerfEnabled = o.perf

	switch {
	case o.script != "":
		session := NewMonitorSession(runner)
		host := NewLuaHost(session.Debugger(), func(line string) { fmt.Println(line) })
		defer host.Close()
		return host.RunFile(o.script)
	case o.monitor:
		return NewTerminalHost(NewMonitorSession(runner)).Run(ctx)
	}

	fmt.Printf("Starting %s at %d Hz\n", m.CPU().Model(), cfg.ClockHz)
	err = runner.Execute(ctx, o.cycles)
	c := m.CPU()
	fmt.Printf("Stopped at %04X:%04X after %d cycles, %d instructions\n",
		c.CS(), c.IP, c.TSC(), c.InstructionCount)
	return err
}
