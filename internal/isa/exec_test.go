package isa

import (
	"errors"
	"testing"

	"github.com/ycli90/riscv32-iss/internal/machine"
)

func newTestMachine() *machine.Machine {
	return machine.NewMachine(0x80000000, 1<<20, 0x80000000)
}

// encode helpers for the handful of instruction formats the tests need.
func encodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeU(opcode, rd uint32, imm uint32) uint32 {
	return (imm & 0xFFFFF000) | rd<<7 | opcode
}

func TestStepAddiSetsRegister(t *testing.T) {
	m := newTestMachine()
	word := encodeI(opImm, 5, 0x0, 0, 42) // addi x5, x0, 42
	copyWord(m, m.CPU.PC, word)

	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if m.CPU.GPR[5] != 42 {
		t.Fatalf("x5 = %d, want 42", m.CPU.GPR[5])
	}
	if m.CPU.PC != 0x80000004 {
		t.Fatalf("PC = 0x%x, want 0x80000004", m.CPU.PC)
	}
}

func TestStepAddRegisterRegister(t *testing.T) {
	m := newTestMachine()
	m.CPU.GPR[1] = 10
	m.CPU.GPR[2] = 32
	word := encodeR(opReg, 3, 0x0, 1, 2, 0x00) // add x3, x1, x2
	copyWord(m, m.CPU.PC, word)

	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if m.CPU.GPR[3] != 42 {
		t.Fatalf("x3 = %d, want 42", m.CPU.GPR[3])
	}
}

func TestStepX0NeverWritten(t *testing.T) {
	m := newTestMachine()
	word := encodeI(opImm, 0, 0x0, 0, 7) // addi x0, x0, 7
	copyWord(m, m.CPU.PC, word)

	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if m.CPU.GPR[0] != 0 {
		t.Fatalf("x0 = %d, want 0", m.CPU.GPR[0])
	}
}

func TestStepLuiAndAuipc(t *testing.T) {
	m := newTestMachine()
	word := encodeU(opLUI, 1, 0x12345000)
	copyWord(m, m.CPU.PC, word)
	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if m.CPU.GPR[1] != 0x12345000 {
		t.Fatalf("x1 = 0x%x, want 0x12345000", m.CPU.GPR[1])
	}

	// auipc x2, 0x1 at the next pc (0x80000004): x2 = pc + 0x1000.
	copyWord(m, m.CPU.PC, encodeU(opAUIPC, 2, 0x1000))
	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if m.CPU.GPR[2] != 0x80001004 {
		t.Fatalf("x2 = 0x%x, want 0x80001004", m.CPU.GPR[2])
	}
}

func TestStepUnknownOpcodeRaisesTrapNotAbort(t *testing.T) {
	m := newTestMachine()
	// opcode 0x00 is not a valid RV32 major opcode (bits [1:0] must be 11).
	copyWord(m, m.CPU.PC, 0x00000000)

	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("Step returned error instead of trapping: %v", err)
	}
	if m.CPU.CSR[csrIxMcause()] != machine.CauseIllegalInstr {
		t.Fatalf("mcause = %d, want %d", m.CPU.CSR[csrIxMcause()], machine.CauseIllegalInstr)
	}
	if m.CPU.Mode != machine.ModeM {
		t.Fatalf("mode = %d, want M", m.CPU.Mode)
	}
}

func TestStepBranchTaken(t *testing.T) {
	m := newTestMachine()
	m.CPU.GPR[1] = 5
	m.CPU.GPR[2] = 5
	// beq x1, x2, +8
	imm := uint32(8)
	word := (((imm >> 12) & 1) << 31) | (((imm >> 5) & 0x3F) << 25) | (2 << 20) | (1 << 15) | (0x0 << 12) | (((imm >> 1) & 0xF) << 8) | (((imm >> 11) & 1) << 7) | opBranch
	copyWord(m, m.CPU.PC, word)

	start := m.CPU.PC
	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if m.CPU.PC != start+8 {
		t.Fatalf("PC = 0x%x, want 0x%x", m.CPU.PC, start+8)
	}
}

func TestStepStoreAndLoadRoundTrip(t *testing.T) {
	m := newTestMachine()
	m.CPU.GPR[1] = m.Bus.Base() // base address
	m.CPU.GPR[2] = 0xCAFEBABE

	sw := encodeS(opStore, 0x2, 1, 2, 0)
	copyWord(m, m.CPU.PC, sw)
	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("store Step: %v", err)
	}

	lw := encodeI(opLoad, 3, 0x2, 1, 0)
	copyWord(m, m.CPU.PC, lw)
	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("load Step: %v", err)
	}
	if m.CPU.GPR[3] != 0xCAFEBABE {
		t.Fatalf("x3 = 0x%x, want 0xCAFEBABE", m.CPU.GPR[3])
	}
}

func TestStepJalCallHook(t *testing.T) {
	m := newTestMachine()
	word := encodeJ(opJAL, 1, 16) // jal x1, +16 (link register => call)

	copyWord(m, m.CPU.PC, word)
	var calledPC, calledTarget uint32
	called := false
	h := Hooks{OnCall: func(pc, target uint32) error {
		called = true
		calledPC, calledTarget = pc, target
		return nil
	}}
	start := m.CPU.PC
	if err := Step(m, h); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !called {
		t.Fatalf("OnCall not invoked for jal with link register ra")
	}
	if calledPC != start || calledTarget != start+16 {
		t.Fatalf("OnCall(pc=0x%x, target=0x%x), want (0x%x, 0x%x)", calledPC, calledTarget, start, start+16)
	}
}

func TestStepCsrrwRoundTrip(t *testing.T) {
	m := newTestMachine()
	m.CPU.GPR[1] = 0x1000
	word := encodeI(opSystem, 2, 0x1, 1, 0) // csrrw x2, mscratch, x1
	word = (machine.CSRMscratch << 20) | word&0xFFFFF
	copyWord(m, m.CPU.PC, word)

	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got, _ := m.CPU.CSRByAddr(machine.CSRMscratch); got != 0x1000 {
		t.Fatalf("mscratch = 0x%x, want 0x1000", got)
	}
}

func TestStepEcallRaisesTrap(t *testing.T) {
	m := newTestMachine()
	word := uint32(funct12ECall)<<20 | opSystem
	copyWord(m, m.CPU.PC, word)

	if err := Step(m, Hooks{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if m.CPU.CSR[csrIxMcause()] != causeECall {
		t.Fatalf("mcause = %d, want %d", m.CPU.CSR[csrIxMcause()], causeECall)
	}
}

func TestExecMDivisionByZero(t *testing.T) {
	r, err := execM(0x4, 7, 0) // div
	if err != nil {
		t.Fatalf("execM: %v", err)
	}
	if r != 0xFFFFFFFF {
		t.Fatalf("div by zero = 0x%x, want 0xFFFFFFFF", r)
	}
}

func TestExecMOverflowCase(t *testing.T) {
	r, err := execM(0x4, 0x80000000, 0xFFFFFFFF) // div INT_MIN / -1
	if err != nil {
		t.Fatalf("execM: %v", err)
	}
	if r != 0x80000000 {
		t.Fatalf("div overflow = 0x%x, want 0x80000000", r)
	}
}

func TestWatchpointHitStopsStep(t *testing.T) {
	m := newTestMachine()
	word := encodeI(opImm, 1, 0x0, 0, 1)
	copyWord(m, m.CPU.PC, word)
	err := Step(m, Hooks{CheckWatch: func() bool { return true }})
	if !errors.Is(err, ErrWatchpointHit) {
		t.Fatalf("err = %v, want ErrWatchpointHit", err)
	}
}

// --- test-only helpers ---

func copyWord(m *machine.Machine, vaddr, word uint32) {
	m.Bus.WritePhysical(vaddr, 4, word)
}

func encodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>5)&0x7F)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1F)<<7 | opcode
}

func encodeJ(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return (((u>>20)&1)<<31 | ((u>>1)&0x3FF)<<21 | ((u>>11)&1)<<20 | ((u>>12)&0xFF)<<12) | rd<<7 | opcode
}

func csrIxMcause() int {
	return 3 // mstatus=0, mtvec=1, mepc=2, mcause=3 in package machine's fixed CSR order
}
