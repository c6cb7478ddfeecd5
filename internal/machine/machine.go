package machine

// Machine is the single value that owns CPU state and the memory bus,
// passed by reference to every component instead of relying on package-
// level singleton state.
type Machine struct {
	CPU CPUState
	Bus *Bus
}

// NewMachine allocates a Bus of memSize bytes at memBase and an idle
// CPU with PC at resetVector, in machine mode.
func NewMachine(memBase, memSize, resetVector uint32) *Machine {
	return &Machine{
		CPU: CPUState{PC: resetVector, Mode: ModeM},
		Bus: NewBus(memBase, memSize),
	}
}

func crossesPage(vaddr uint32, length int) bool {
	return (vaddr&pageMask)+uint32(length) > pageSize
}

// VAddrRead performs a 1/2/4-byte guest read.
func (m *Machine) VAddrRead(vaddr uint32, length int) (uint32, error) {
	if crossesPage(vaddr, length) {
		return 0, faultf(CauseLoadPageFault, "access at 0x%x length %d crosses page boundary", vaddr, length)
	}
	paddr, err := m.Translate(vaddr, AccessRead)
	if err != nil {
		return 0, err
	}
	return m.Bus.ReadPhysical(paddr, length), nil
}

// VAddrWrite performs a 1/2/4-byte guest write.
func (m *Machine) VAddrWrite(vaddr uint32, length int, value uint32) error {
	if crossesPage(vaddr, length) {
		return faultf(CauseStorePageFault, "access at 0x%x length %d crosses page boundary", vaddr, length)
	}
	paddr, err := m.Translate(vaddr, AccessWrite)
	if err != nil {
		return err
	}
	m.Bus.WritePhysical(paddr, length, value)
	return nil
}

// VAddrIfetch performs a 1/2/4-byte guest instruction fetch.
func (m *Machine) VAddrIfetch(vaddr uint32, length int) (uint32, error) {
	if crossesPage(vaddr, length) {
		return 0, faultf(CauseInstrPageFault, "ifetch at 0x%x length %d crosses page boundary", vaddr, length)
	}
	paddr, err := m.Translate(vaddr, AccessIfetch)
	if err != nil {
		return 0, err
	}
	return m.Bus.ReadPhysical(paddr, length), nil
}
