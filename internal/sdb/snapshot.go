package sdb

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/ycli90/riscv32-iss/internal/machine"
)

// wireCPUState is the fixed-layout on-disk form of machine.CPUState.
// Snapshot files are uncompressed by design, so external tools can
// inspect them without a decompression step.
type wireCPUState struct {
	GPR  [machine.NumGPR]uint32
	PC   uint32
	CSR  [machine.NumCSR]uint32
	Mode int32
	Intr int32
}

// wireTraceItem mirrors one FunctionTracer call-stack frame: the call
// target address the tracer pushed for it.
type wireTraceItem struct {
	Target uint32
}

func toWire(cpu machine.CPUState) wireCPUState {
	w := wireCPUState{GPR: cpu.GPR, PC: cpu.PC, CSR: cpu.CSR, Mode: int32(cpu.Mode)}
	if cpu.Intr {
		w.Intr = 1
	}
	return w
}

func fromWire(w wireCPUState) machine.CPUState {
	return machine.CPUState{GPR: w.GPR, PC: w.PC, CSR: w.CSR, Mode: int(w.Mode), Intr: w.Intr != 0}
}

// Save writes an uncompressed snapshot: CPU state, the full RAM image,
// and the function tracer's current shadow call stack, in that fixed
// order. ft may be nil if function tracing was never enabled.
func Save(path string, m *machine.Machine, ft *FunctionTracer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sdb: save %s: %w", path, err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, toWire(m.CPU)); err != nil {
		return fmt.Errorf("sdb: save %s: write cpu state: %w", path, err)
	}
	if _, err := f.Write(m.Bus.RAM()); err != nil {
		return fmt.Errorf("sdb: save %s: write ram: %w", path, err)
	}

	var stack []uint32
	if ft != nil {
		stack = ft.Stack()
	}
	if err := binary.Write(f, binary.LittleEndian, int32(len(stack))); err != nil {
		return fmt.Errorf("sdb: save %s: write stack count: %w", path, err)
	}
	for _, addr := range stack {
		item := wireTraceItem{Target: addr}
		if err := binary.Write(f, binary.LittleEndian, item); err != nil {
			return fmt.Errorf("sdb: save %s: write trace item: %w", path, err)
		}
	}
	return nil
}

// Load restores CPU state and RAM from an uncompressed snapshot written
// by Save, and returns the preserved shadow call stack (an empty slice
// if none was saved).
func Load(path string, m *machine.Machine) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sdb: load %s: %w", path, err)
	}
	defer f.Close()

	var w wireCPUState
	if err := binary.Read(f, binary.LittleEndian, &w); err != nil {
		return nil, fmt.Errorf("sdb: load %s: read cpu state: %w", path, err)
	}

	ram := m.Bus.RAM()
	if _, err := io.ReadFull(f, ram); err != nil {
		return nil, fmt.Errorf("sdb: load %s: read ram: %w", path, err)
	}

	var n int32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("sdb: load %s: read stack count: %w", path, err)
	}
	if n < 0 {
		return nil, fmt.Errorf("sdb: load %s: negative stack count %d", path, n)
	}

	stack := make([]uint32, 0, n)
	for i := int32(0); i < n; i++ {
		var item wireTraceItem
		if err := binary.Read(f, binary.LittleEndian, &item); err != nil {
			return nil, fmt.Errorf("sdb: load %s: read trace item %d: %w", path, i, err)
		}
		stack = append(stack, item.Target)
	}

	m.CPU = fromWire(w)
	return stack, nil
}
