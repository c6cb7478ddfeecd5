// Package sdb implements the interactive monitor/debugger layered over
// the instruction engine in package isa: the REPL command set, the
// expression-driven watchpoint pool, the function and instruction
// tracers, and snapshot save/load.
package sdb

import (
	"errors"
	"fmt"
	"io"

	"github.com/ycli90/riscv32-iss/internal/expr"
	"github.com/ycli90/riscv32-iss/internal/isa"
	"github.com/ycli90/riscv32-iss/internal/log"
	"github.com/ycli90/riscv32-iss/internal/machine"
)

// causeECall mirrors isa's unexported ECALL cause code; kept here too so
// the monitor can recognize the exit-syscall convention (a7==93) without
// isa exporting trap-cause plumbing it otherwise has no reason to.
const causeECall = 11

// exitSyscallNum is the a7 value guest programs use to request a clean
// stop, carrying the exit status in a0 — the riscv-tests convention.
const exitSyscallNum = 93

// DiffTest is the subset of a difftest session the monitor drives.
// Defined here rather than in package difftest so sdb never imports it —
// cmd/emu wires a concrete *difftest.Session in.
type DiffTest interface {
	Attach(m *machine.Machine) error
	Detach()
	Compare(m *machine.Machine) error
	Attached() bool

	// WriteMemory mirrors one guest store into the reference's memory,
	// keeping it in sync between attach and the next full resync.
	WriteMemory(addr uint32, length int, value uint32) error
}

// ErrHalted is returned by Run/Step when the guest program reached its
// exit syscall; Monitor.ExitCode holds the reported status.
var ErrHalted = errors.New("sdb: guest program halted")

// Monitor is the single-hart REPL state: the machine it drives, the
// bounded tracers/watchpoints attached to it, and an optional difftest
// reference.
type Monitor struct {
	M    *machine.Machine
	Hist *InstructionHistory
	FT   *FunctionTracer
	WP   *Watchpoints
	Diff DiffTest
	Log  *log.Logger

	Halted   bool
	ExitCode uint32
}

// NewMonitor wires a fresh REPL state around m. diff may be nil.
func NewMonitor(m *machine.Machine, diff DiffTest, lg *log.Logger) *Monitor {
	return &Monitor{
		M:    m,
		Hist: NewInstructionHistory(),
		FT:   NewFunctionTracer(),
		WP:   NewWatchpoints(),
		Diff: diff,
		Log:  lg,
	}
}

func (mon *Monitor) hooks() isa.Hooks {
	return isa.Hooks{
		OnRetire: func(pc uint32, disasm string) {
			mon.Hist.Record(pc, disasm)
			mon.checkExitSyscall(pc)
		},
		OnCall: mon.FT.RecordCall,
		OnRet:  mon.FT.RecordRet,
		OnMemWrite: func(addr uint32, length int, value uint32) {
			if mon.Diff == nil || !mon.Diff.Attached() {
				return
			}
			if err := mon.Diff.WriteMemory(addr, length, value); err != nil && mon.Log != nil {
				mon.Log.Warn(fmt.Sprintf("difftest memory mirror failed: %v", err))
			}
		},
		DiffCompare: func() error {
			if mon.Diff == nil || !mon.Diff.Attached() {
				return nil
			}
			return mon.Diff.Compare(mon.M)
		},
		CheckWatch: func() bool {
			hits, err := mon.WP.Check(mon.evalExpr)
			if err != nil {
				if mon.Log != nil {
					mon.Log.Warn(fmt.Sprintf("watchpoint evaluation failed: %v", err))
				}
				return false
			}
			for _, h := range hits {
				if mon.Log != nil {
					mon.Log.Info(fmt.Sprintf("watchpoint %d (%s) changed 0x%x -> 0x%x", h.ID, h.Expr, h.Old, h.New))
				}
			}
			return len(hits) > 0
		},
	}
}

// checkExitSyscall recognizes the ecall-based exit convention by
// inspecting CSR state right after the instruction at pc retired:
// mcause==ECALL with mepc==pc means that instruction was the trapping
// ecall, and a7==93 means the guest asked to stop, with a0 as its exit
// code.
func (mon *Monitor) checkExitSyscall(pc uint32) {
	if mon.M.CPU.CSR[3] != causeECall { // csrIxMcause order, fixed in package machine
		return
	}
	if mon.M.CPU.CSR[2] != pc { // csrIxMepc
		return
	}
	if mon.M.CPU.GPR[17] != exitSyscallNum { // a7
		return
	}
	mon.Halted = true
	mon.ExitCode = mon.M.CPU.GPR[10] // a0
}

func (mon *Monitor) evalExpr(s string) (uint32, error) {
	return expr.Eval(s, machineContext{mon.M})
}

// Step advances the guest by n instructions (default 1), stopping early
// on a watchpoint hit, a halted program, or an execution error.
func (mon *Monitor) Step(n int) error {
	if n <= 0 {
		n = 1
	}
	h := mon.hooks()
	for i := 0; i < n; i++ {
		if err := isa.Step(mon.M, h); err != nil {
			return err
		}
		if mon.Halted {
			return ErrHalted
		}
	}
	return nil
}

// Run steps until a watchpoint hit, halt, or error — "c" in the REPL.
func (mon *Monitor) Run() error {
	h := mon.hooks()
	for {
		if err := isa.Step(mon.M, h); err != nil {
			return err
		}
		if mon.Halted {
			return ErrHalted
		}
	}
}

// DisplayRegisters writes the register dump to w.
func (mon *Monitor) DisplayRegisters(w io.Writer) {
	mon.M.CPU.DisplayRegisters(w)
}
