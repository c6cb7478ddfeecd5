// Package machine implements the architectural state of a single RV32
// hart: general-purpose registers, the CSR file, privilege mode, the
// trap unit, the Sv32 MMU and the memory bus that multiplexes RAM
// against memory-mapped devices.
package machine

import "fmt"

const (
	NumGPR = 32
	NumCSR = 6

	// CSR architectural addresses, in the fixed order the index table uses.
	CSRMstatus  = 0x300
	CSRMtvec    = 0x305
	CSRMepc     = 0x341
	CSRMcause   = 0x342
	CSRSatp     = 0x180
	CSRMscratch = 0x340
)

const (
	csrIxMstatus = iota
	csrIxMtvec
	csrIxMepc
	csrIxMcause
	csrIxSatp
	csrIxMscratch
)

var csrAddr = [NumCSR]uint32{CSRMstatus, CSRMtvec, CSRMepc, CSRMcause, CSRSatp, CSRMscratch}
var csrNames = [NumCSR]string{"mstatus", "mtvec", "mepc", "mcause", "satp", "mscratch"}

// csrAddrMap supports O(1) address -> index lookup; -1 means unmapped.
var csrAddrMap [4096]int

func init() {
	for i := range csrAddrMap {
		csrAddrMap[i] = -1
	}
	for i, a := range csrAddr {
		csrAddrMap[a] = i
	}
}

// Privilege modes.
const (
	ModeU = 0
	ModeS = 1
	ModeM = 3
)

// IRQTimer is the only interrupt cause this hart ever raises.
const IRQTimer = 0x80000007

// Guest-fault cause codes, reserved per the standard RISC-V mcause
// exception-code encoding, used when a fault is promoted to a trap
// instead of aborting the process.
const (
	CauseInstrPageFault = 12
	CauseLoadPageFault  = 13
	CauseStorePageFault = 15
	CauseIllegalInstr   = 2
)

// mstatus bit layout used by the trap unit.
const (
	mstatusMIEBit  = 1 << 3
	mstatusMPIEBit = 1 << 7
	mstatusMPPMask = 0x3 << 11
)

// ABI register names, index 0 is the hardwired-zero register.
var abiNames = [NumGPR]string{
	"$0", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// GuestFault is returned by CPUState/Machine methods for conditions
// that would otherwise be fatal (MMU violation, unknown CSR address).
// Callers promote it to an architectural trap via RaiseTrap instead of
// aborting the session; a caller that wants abort-on-fault behavior can
// still treat it as a terminal error.
type GuestFault struct {
	Cause uint32
	Msg   string
}

func (e *GuestFault) Error() string { return e.Msg }

func faultf(cause uint32, format string, args ...any) *GuestFault {
	return &GuestFault{Cause: cause, Msg: fmt.Sprintf(format, args...)}
}

// CPUState is the architectural state of one hart.
type CPUState struct {
	GPR  [NumGPR]uint32
	PC   uint32
	CSR  [NumCSR]uint32
	Mode int
	Intr bool
}

// csrIndexByAddr returns the CSR index for addr, or false if unmapped.
func csrIndexByAddr(addr uint32) (int, bool) {
	if addr >= uint32(len(csrAddrMap)) {
		return 0, false
	}
	ix := csrAddrMap[addr]
	if ix < 0 {
		return 0, false
	}
	return ix, true
}

// CSRByAddr reads a CSR by its architectural address.
func (c *CPUState) CSRByAddr(addr uint32) (uint32, error) {
	ix, ok := csrIndexByAddr(addr)
	if !ok {
		return 0, faultf(CauseIllegalInstr, "unknown csr address 0x%x", addr)
	}
	return c.CSR[ix], nil
}

// SetCSRByAddr writes a CSR by its architectural address.
func (c *CPUState) SetCSRByAddr(addr, val uint32) error {
	ix, ok := csrIndexByAddr(addr)
	if !ok {
		return faultf(CauseIllegalInstr, "unknown csr address 0x%x", addr)
	}
	c.CSR[ix] = val
	return nil
}

// NameToValue resolves an ABI register name, "pc", or a CSR name to its
// current value. Unknown names fail silently (ok=false), matching the
// debugger's tolerant lookup.
func (c *CPUState) NameToValue(name string) (uint32, bool) {
	if name == "pc" {
		return c.PC, true
	}
	for i, n := range abiNames {
		if n == name {
			return c.GPR[i], true
		}
	}
	for i, n := range csrNames {
		if n == name {
			return c.CSR[i], true
		}
	}
	return 0, false
}

// RaiseTrap saves epc/cause, stacks privilege and interrupt-enable into
// mstatus, enters machine mode, and returns the vector to jump to.
func (c *CPUState) RaiseTrap(cause, epc uint32) uint32 {
	c.CSR[csrIxMepc] = epc
	c.CSR[csrIxMcause] = cause

	status := c.CSR[csrIxMstatus]
	status = (status &^ uint32(mstatusMPPMask)) | (uint32(c.Mode) << 11)
	mie := (status & mstatusMIEBit) != 0
	if mie {
		status |= mstatusMPIEBit
	} else {
		status &^= mstatusMPIEBit
	}
	status &^= mstatusMIEBit
	c.CSR[csrIxMstatus] = status

	c.Mode = ModeM
	return c.CSR[csrIxMtvec]
}

// QueryInterrupt reports and clears a pending timer interrupt when
// interrupts are enabled; otherwise it reports no pending interrupt.
func (c *CPUState) QueryInterrupt() (cause uint32, pending bool) {
	mie := c.CSR[csrIxMstatus]&mstatusMIEBit != 0
	if c.Intr && mie {
		c.Intr = false
		return IRQTimer, true
	}
	return 0, false
}

// TrapReturn mirrors RaiseTrap: it restores the saved privilege mode and
// interrupt-enable, resets MPP to U, and returns the saved epc.
func (c *CPUState) TrapReturn() uint32 {
	status := c.CSR[csrIxMstatus]
	mpp := (status & mstatusMPPMask) >> 11
	c.Mode = int(mpp)

	status &^= uint32(mstatusMPPMask) // MPP <- U

	mpie := status&mstatusMPIEBit != 0
	if mpie {
		status |= mstatusMIEBit
	} else {
		status &^= mstatusMIEBit
	}
	status |= mstatusMPIEBit // MPIE <- 1

	c.CSR[csrIxMstatus] = status
	return c.CSR[csrIxMepc]
}
