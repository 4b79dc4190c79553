// cpu_x86_runner_test.go - runner slice, worker and panic handling tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// spinProgram is an endless JMP $ loop.
var spinProgram = []byte{0xEB, 0xFE}

func TestRunner_StepLeavesBudget(t *testing.T) {
	m := newTestMachine(t, DefaultMachineConfig(), 0xB8, 0x34, 0x12, 0x90)
	r := NewCPUX86Runner(m)
	before := m.CPU().Cycles()

	n, err := r.Step()
	if err != nil {
		t.Fatal(err)
	}
	if n <= 0 {
		t.Fatalf("step took %d cycles", n)
	}
	if m.CPU().Cycles() != before {
		t.Fatalf("cycle budget %d after step, want %d", m.CPU().Cycles(), before)
	}
	if m.CPU().AX() != 0x1234 || m.CPU().IP != 0x0103 {
		t.Fatalf("AX=%04X IP=%04X", m.CPU().AX(), m.CPU().IP)
	}
}

func TestRunner_RunCycles(t *testing.T) {
	m := newTestMachine(t, DefaultMachineConfig(), spinProgram...)
	r := NewCPUX86Runner(m)
	r.SliceCycles = 1000
	if err := r.RunCycles(25_000); err != nil {
		t.Fatal(err)
	}
	if tsc := m.CPU().TSC(); tsc < 25_000 || tsc > 25_100 {
		t.Fatalf("TSC = %d after 25000 cycles", tsc)
	}
}

func TestRunner_ExecuteLimitAndCancel(t *testing.T) {
	m := newTestMachine(t, DefaultMachineConfig(), spinProgram...)
	r := NewCPUX86Runner(m)
	if err := r.Execute(context.Background(), 10_000); err != nil {
		t.Fatal(err)
	}
	if m.CPU().TSC() < 10_000 {
		t.Fatalf("TSC = %d, want at least the limit", m.CPU().TSC())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := m.CPU().TSC()
	if err := r.Execute(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if m.CPU().TSC() != start {
		t.Fatal("cancelled Execute ran cycles")
	}
}

func TestRunner_WorkerStartStop(t *testing.T) {
	m := newTestMachine(t, DefaultMachineConfig(), spinProgram...)
	r := NewCPUX86Runner(m)

	r.StartExecution(context.Background(), 0)
	if !r.IsRunning() {
		t.Fatal("worker not running after StartExecution")
	}
	r.StartExecution(context.Background(), 0) // no second worker
	time.Sleep(10 * time.Millisecond)
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if r.IsRunning() {
		t.Fatal("worker still running after Stop")
	}
	if m.CPU().TSC() == 0 {
		t.Fatal("worker ran no cycles")
	}
	if err := r.Wait(); err != nil {
		t.Fatalf("Wait after Stop: %v", err)
	}
}

func TestRunner_WorkerHonoursLimit(t *testing.T) {
	m := newTestMachine(t, DefaultMachineConfig(), spinProgram...)
	r := NewCPUX86Runner(m)
	r.StartExecution(context.Background(), 50_000)
	if err := r.Wait(); err != nil {
		t.Fatal(err)
	}
	if r.IsRunning() {
		t.Fatal("worker still running after its limit")
	}
}

func TestRecoverFatal(t *testing.T) {
	run := func(v any) (err error) {
		defer recoverFatal(&err)
		panic(v)
	}

	fatal := &X86FatalError{CS: 0x1000, IP: 0x0100, Msg: "bad operand"}
	if err := run(fatal); !errors.Is(err, fatal) {
		t.Fatalf("fatal error = %v", err)
	}
	if err := run(ErrHDDNoZones); !errors.Is(err, ErrHDDNoZones) || !strings.HasPrefix(err.Error(), "cpu_x86: ") {
		t.Fatalf("wrapped error = %v", err)
	}

	defer func() {
		if r := recover(); r != "not an error" {
			t.Fatalf("recovered %v, want the original panic", r)
		}
	}()
	run("not an error")
}
