// Package difftest drives a reference RISC-V emulator in lock-step with
// this one, comparing GPR/PC state after every retired instruction and
// synthesizing CSR-carrying instructions so the reference observes the
// same architectural state this hart does.
package difftest

import (
	"encoding/binary"
	"fmt"

	"github.com/ycli90/riscv32-iss/internal/machine"
)

// Reference is the contract a difftest backend exposes, regardless of
// how it is loaded (Go plugin on a supporting platform, or a headless
// stub everywhere else).
type Reference interface {
	SetGPR(gpr [machine.NumGPR]uint32)
	SetPC(pc uint32)
	SetMemory(base uint32, ram []byte)
	Step() error
	GPR() [machine.NumGPR]uint32
	PC() uint32

	// ExecRaw executes a single raw instruction word without advancing
	// the reference's notion of program order — used only to push CSR
	// state during attach, since the reference exposes no direct CSR
	// poke and a real csrrw is the simplest way to set one.
	ExecRaw(word uint32) error

	Close()
}

// csrAttachOpcode synthesizes "csrrw x0, addr, x1": it writes x1 (which
// the caller has just poked with the value to push) into the CSR at
// addr, discarding the CSR's old value into x0.
func csrAttachOpcode(addr uint32) uint32 {
	const (
		rdZero   = 0
		rs1One   = 1
		funct3W  = 0x1
		opSystem = 0x73
	)
	return (addr << 20) | (rs1One << 15) | (funct3W << 12) | (rdZero << 7) | opSystem
}

// Session compares this emulator's architectural state against a loaded
// Reference after every retired instruction.
type Session struct {
	ref      Reference
	attached bool
}

// NewSession wraps an already-loaded Reference; ref may be nil, in
// which case Attach always fails (no reference was built for this host).
func NewSession(ref Reference) *Session {
	return &Session{ref: ref}
}

// Attach pushes this hart's full architectural state — GPR, PC, RAM,
// and every CSR via synthesized csrrw instructions — into the
// reference, then marks the session live.
func (s *Session) Attach(m *machine.Machine) error {
	if s.ref == nil {
		return fmt.Errorf("difftest: no reference emulator available on this platform")
	}
	s.ref.SetGPR(m.CPU.GPR)
	s.ref.SetPC(m.CPU.PC)
	s.ref.SetMemory(m.Bus.Base(), m.Bus.RAM())

	csrAddrs := []uint32{
		machine.CSRMstatus, machine.CSRMtvec, machine.CSRMepc,
		machine.CSRMcause, machine.CSRSatp, machine.CSRMscratch,
	}
	scratch := m.CPU.GPR // push CSRs through a copy; x1 is restored below
	for _, addr := range csrAddrs {
		v, err := m.CPU.CSRByAddr(addr)
		if err != nil {
			return fmt.Errorf("difftest: attach: read csr 0x%x: %w", addr, err)
		}
		scratch[1] = v
		s.ref.SetGPR(scratch)
		if err := s.ref.ExecRaw(csrAttachOpcode(addr)); err != nil {
			return fmt.Errorf("difftest: attach: push csr 0x%x: %w", addr, err)
		}
	}
	// Restore the real register file now that every CSR has been pushed
	// through the scratch copy of x1.
	s.ref.SetGPR(m.CPU.GPR)
	s.ref.SetPC(m.CPU.PC)
	s.attached = true
	return nil
}

// Detach stops comparisons without closing the underlying reference, so
// a later "attach" can resynchronize and resume.
func (s *Session) Detach() {
	s.attached = false
}

// Attached reports whether Compare currently does anything.
func (s *Session) Attached() bool {
	return s.attached
}

// Compare steps the reference once and checks its GPR/PC against m's.
// A mismatch is reported, not panicked, so the REPL can surface it and
// let the user decide whether to keep running.
func (s *Session) Compare(m *machine.Machine) error {
	if !s.attached {
		return nil
	}
	if err := s.ref.Step(); err != nil {
		return fmt.Errorf("difftest: reference step: %w", err)
	}
	refGPR := s.ref.GPR()
	for i := range refGPR {
		if refGPR[i] != m.CPU.GPR[i] {
			return fmt.Errorf("difftest: gpr[%d] mismatch: dut=0x%x ref=0x%x at pc=0x%x",
				i, m.CPU.GPR[i], refGPR[i], m.CPU.PC)
		}
	}
	if s.ref.PC() != m.CPU.PC {
		return fmt.Errorf("difftest: pc mismatch: dut=0x%x ref=0x%x", m.CPU.PC, s.ref.PC())
	}
	return nil
}

// WriteMemory mirrors a single guest store into the reference's memory
// via SetMemory, so the reference's RAM doesn't drift from the dut's
// between attach and the next full resync.
func (s *Session) WriteMemory(addr uint32, length int, value uint32) error {
	if !s.attached {
		return nil
	}
	buf := make([]byte, length)
	switch length {
	case 1:
		buf[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(buf, value)
	default:
		return fmt.Errorf("difftest: mirror: unsupported write length %d", length)
	}
	s.ref.SetMemory(addr, buf)
	return nil
}

// Close releases the underlying reference, if any.
func (s *Session) Close() {
	if s.ref != nil {
		s.ref.Close()
	}
}
