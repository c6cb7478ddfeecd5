package sdb

import "github.com/ycli90/riscv32-iss/internal/machine"

// machineContext adapts a *machine.Machine to expr.Context: register
// names resolve through CPUState.NameToValue, DEREF reads one word of
// guest virtual memory.
type machineContext struct {
	m *machine.Machine
}

func (c machineContext) RegisterValue(name string) (uint32, bool) {
	return c.m.CPU.NameToValue(name)
}

func (c machineContext) ReadWord(addr uint32) (uint32, error) {
	return c.m.VAddrRead(addr, 4)
}
