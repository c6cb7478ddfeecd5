// Package isa implements a minimal-but-real RV32I/M fetch-decode-
// execute engine. The core spec treats the decoder as an external
// collaborator and only specifies the ABI it needs (registers, CSRs,
// traps, memory); this package is the supplemented engine that actually
// drives that ABI so the rest of the system is runnable end to end.
package isa

import "errors"

// ErrWatchpointHit is returned by Step when a watchpoint fired,
// telling the caller's loop to transition to STOP.
var ErrWatchpointHit = errors.New("isa: watchpoint triggered")

// Hooks lets the caller observe each retired instruction without this
// package importing the debugger packages that consume the events —
// the instruction engine calls out to the debugger through plain
// callbacks instead of an interface dependency cycle.
type Hooks struct {
	// OnRetire is called after every successfully retired instruction,
	// in program order, before difftest/watchpoint processing.
	OnRetire func(pc uint32, disasm string)

	// OnCall/OnRet are called for jal/jalr instructions that match the
	// link-register call/return convention (see Step). A non-nil error
	// (e.g. a shadow call stack overflow or underflow) is fatal.
	OnCall func(pc, target uint32) error
	OnRet  func(pc, target uint32) error

	// OnMemWrite mirrors a guest store to an attached difftest reference.
	OnMemWrite func(addr uint32, length int, value uint32)

	// DiffCompare runs the lock-step GPR/PC comparison against an
	// attached reference; a non-nil error aborts the session.
	DiffCompare func() error

	// CheckWatch re-evaluates active watchpoints; true means a value
	// changed and the execution loop should stop.
	CheckWatch func() bool
}
