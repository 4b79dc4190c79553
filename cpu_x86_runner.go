// cpu_x86_runner.go - x86 machine runner
//
// Drives an XTMachine in fixed cycle slices, either inline or on a worker
// goroutine, and turns core panics into errors at the session boundary.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// defaultSliceCycles is one scheduling slice: roughly 1ms at 4.77 MHz.
const defaultSliceCycles = 4772

// CPUX86Runner manages the machine's execution loop.
type CPUX86Runner struct {
	m   *XTMachine
	cpu *CPU_X86

	SliceCycles int

	// Performance monitoring
	PerfEnabled    bool
	perfStartTime  time.Time
	lastPerfReport time.Time
	perfBase       uint64

	stop       atomic.Bool
	execMu     sync.Mutex
	execDone   chan struct{}
	execActive bool
	execErr    error
}

func NewCPUX86Runner(m *XTMachine) *CPUX86Runner {
	return &CPUX86Runner{m: m, cpu: m.CPU(), SliceCycles: defaultSliceCycles}
}

func (r *CPUX86Runner) Machine() *XTMachine { return r.m }
func (r *CPUX86Runner) GetCPU() *CPU_X86    { return r.cpu }

// RefreshRead queues one DRAM refresh cycle, for refresh drivers other than
// the PIT.
func (r *CPUX86Runner) RefreshRead() { r.cpu.RefreshRead() }

// recoverFatal converts a core panic into err. Panics that are not errors
// are re-raised.
func recoverFatal(err *error) {
	rec := recover()
	if rec == nil {
		return
	}
	switch e := rec.(type) {
	case *X86FatalError:
		*err = e
	case error:
		*err = fmt.Errorf("cpu_x86: %w", e)
	default:
		panic(rec)
	}
}

// Step runs one outer-loop iteration of the CPU and returns the cycles it
// took. The slice budget is left untouched so a later Execute starts clean.
func (r *CPUX86Runner) Step() (cycles int, err error) {
	defer recoverFatal(&err)
	before := r.cpu.cycles
	defer func() { r.cpu.cycles = before }()
	r.cpu.Step()
	return before - r.cpu.cycles, nil
}

// RunCycles executes n CPU cycles inline.
func (r *CPUX86Runner) RunCycles(n int64) (err error) {
	defer recoverFatal(&err)
	for n > 0 && !r.stop.Load() {
		slice := int64(r.SliceCycles)
		if slice > n {
			slice = n
		}
		r.cpu.Execute(int(slice))
		n -= slice
		r.reportPerf()
	}
	return nil
}

// Reset performs a hard reset of the whole machine.
func (r *CPUX86Runner) Reset() {
	r.m.Reset()
}

// Execute runs slices until ctx is cancelled, Stop is called or limit cycles
// have run (limit <= 0 means no limit).
func (r *CPUX86Runner) Execute(ctx context.Context, limit int64) (err error) {
	defer recoverFatal(&err)
	if r.PerfEnabled {
		r.perfStartTime = time.Now()
		r.lastPerfReport = r.perfStartTime
		r.perfBase = r.cpu.InstructionCount
	}
	var ran int64
	for !r.stop.Load() {
		if limit > 0 && ran >= limit {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		slice := r.SliceCycles
		if limit > 0 && int64(slice) > limit-ran {
			slice = int(limit - ran)
		}
		r.cpu.Execute(slice)
		ran += int64(slice)
		r.reportPerf()
	}
	return nil
}

func (r *CPUX86Runner) reportPerf() {
	if !r.PerfEnabled {
		return
	}
	now := time.Now()
	if now.Sub(r.lastPerfReport) < time.Second {
		return
	}
	elapsed := now.Sub(r.perfStartTime).Seconds()
	n := r.cpu.InstructionCount - r.perfBase
	mips := float64(n) / elapsed / 1_000_000
	mhz := float64(r.cpu.TSC()) / float64(r.cpu.multiplier) / elapsed / 1_000_000
	fmt.Printf("x86: %.2f MIPS, %.2f MHz effective (%d instructions in %.1fs)\n", mips, mhz, n, elapsed)
	r.lastPerfReport = now
}

func (r *CPUX86Runner) IsRunning() bool {
	r.execMu.Lock()
	defer r.execMu.Unlock()
	return r.execActive
}

// StartExecution runs Execute on a worker goroutine.
func (r *CPUX86Runner) StartExecution(ctx context.Context, limit int64) {
	r.execMu.Lock()
	defer r.execMu.Unlock()
	if r.execActive {
		return
	}
	r.execActive = true
	r.execErr = nil
	r.stop.Store(false)
	r.execDone = make(chan struct{})
	go func() {
		err := r.Execute(ctx, limit)
		r.execMu.Lock()
		r.execActive = false
		r.execErr = err
		close(r.execDone)
		r.execMu.Unlock()
	}()
}

// Wait blocks until the worker started by StartExecution returns.
func (r *CPUX86Runner) Wait() error {
	r.execMu.Lock()
	done := r.execDone
	r.execMu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	r.execMu.Lock()
	defer r.execMu.Unlock()
	return r.execErr
}

// Stop asks the worker to finish its slice and waits for it.
func (r *CPUX86Runner) Stop() error {
	r.stop.Store(true)
	err := r.Wait()
	r.stop.Store(false)
	return err
}
