package sdb

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ycli90/riscv32-iss/internal/machine"
)

func newTestMonitor() *Monitor {
	m := machine.NewMachine(0x80000000, 1<<16, 0x80000000)
	return NewMonitor(m, nil, nil)
}

func TestDispatchHelp(t *testing.T) {
	mon := newTestMonitor()
	r, err := mon.Dispatch("help")
	if err != nil {
		t.Fatalf("Dispatch(help): %v", err)
	}
	if !strings.Contains(r.Output, "available commands") {
		t.Fatalf("help output missing header: %q", r.Output)
	}
}

func TestDispatchQuit(t *testing.T) {
	mon := newTestMonitor()
	r, err := mon.Dispatch("q")
	if err != nil {
		t.Fatalf("Dispatch(q): %v", err)
	}
	if !r.Quit {
		t.Fatalf("Quit = false, want true")
	}
}

func TestDispatchPrintLiteral(t *testing.T) {
	mon := newTestMonitor()
	r, err := mon.Dispatch("p 1 + 2 * 3")
	if err != nil {
		t.Fatalf("Dispatch(p): %v", err)
	}
	if !strings.Contains(r.Output, "7 ") && !strings.HasPrefix(r.Output, "7 ") {
		t.Fatalf("p 1 + 2 * 3 = %q, want to start with \"7\"", r.Output)
	}
}

func TestDispatchWatchAndDelete(t *testing.T) {
	mon := newTestMonitor()
	r, err := mon.Dispatch("w $a0")
	if err != nil {
		t.Fatalf("Dispatch(w): %v", err)
	}
	if !strings.Contains(r.Output, "watchpoint 1") {
		t.Fatalf("w output = %q, want to mention watchpoint 1", r.Output)
	}
	if _, err := mon.Dispatch("d 1"); err != nil {
		t.Fatalf("Dispatch(d 1): %v", err)
	}
	if _, err := mon.Dispatch("d 1"); err == nil {
		t.Fatalf("Dispatch(d 1) twice did not error the second time")
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	mon := newTestMonitor()
	if _, err := mon.Dispatch("bogus"); err == nil {
		t.Fatalf("Dispatch(bogus) did not error")
	}
}

func TestDispatchInfoR(t *testing.T) {
	mon := newTestMonitor()
	r, err := mon.Dispatch("info r")
	if err != nil {
		t.Fatalf("Dispatch(info r): %v", err)
	}
	if !strings.Contains(r.Output, "pc") {
		t.Fatalf("info r output missing pc: %q", r.Output)
	}
}

func TestDispatchSaveLoad(t *testing.T) {
	mon := newTestMonitor()
	mon.M.CPU.GPR[5] = 0x77
	path := filepath.Join(t.TempDir(), "snap.bin")

	if _, err := mon.Dispatch("save " + path); err != nil {
		t.Fatalf("Dispatch(save): %v", err)
	}
	mon.M.CPU.GPR[5] = 0
	if _, err := mon.Dispatch("load " + path); err != nil {
		t.Fatalf("Dispatch(load): %v", err)
	}
	if mon.M.CPU.GPR[5] != 0x77 {
		t.Fatalf("GPR[5] = 0x%x after load, want 0x77", mon.M.CPU.GPR[5])
	}
}

func TestDispatchSiStepsAndExits(t *testing.T) {
	mon := newTestMonitor()
	// addi a0, zero, 5 (opcode 0x13, rd=10, funct3=0, rs1=0, imm=5)
	const word = uint32(5)<<20 | uint32(10)<<7 | 0x13
	mon.M.Bus.WritePhysical(mon.M.CPU.PC, 4, word)

	if _, err := mon.Dispatch("si 1"); err != nil {
		t.Fatalf("Dispatch(si 1): %v", err)
	}
	if mon.M.CPU.GPR[10] != 5 {
		t.Fatalf("a0 = %d, want 5", mon.M.CPU.GPR[10])
	}

	// addi a7, zero, 93 then ecall: the exit syscall, status in a0.
	const setA7 = uint32(93)<<20 | uint32(17)<<7 | 0x13
	mon.M.Bus.WritePhysical(mon.M.CPU.PC, 4, setA7)
	mon.M.Bus.WritePhysical(mon.M.CPU.PC+4, 4, 0x00000073)
	r, err := mon.Dispatch("si 2")
	if err != nil {
		t.Fatalf("Dispatch(si 2): %v", err)
	}
	if !mon.Halted || !strings.Contains(r.Output, "exited with code 5") {
		t.Fatalf("after ecall: Halted=%v output=%q, want exit with code 5", mon.Halted, r.Output)
	}
}
