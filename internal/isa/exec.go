package isa

import (
	"errors"
	"fmt"

	"github.com/ycli90/riscv32-iss/internal/machine"
)

// System instruction funct12 values (instr[31:20] when funct3==0).
const (
	funct12ECall = 0x000
	funct12EBreak = 0x001
	funct12MRet  = 0x302
	funct12WFI   = 0x105
)

// Trap cause codes beyond the guest-fault set already in package machine.
const (
	causeECall      = 11
	causeBreakpoint = 3
)

func setGPR(m *machine.Machine, rd, val uint32) {
	if rd != 0 {
		m.CPU.GPR[rd] = val
	}
}

// raiseFault promotes a *machine.GuestFault into an architectural trap
// and continues the session instead of aborting it. Any other error (a
// host bug, not a guest fault) is returned unchanged.
func raiseFault(m *machine.Machine, err error, pc uint32) error {
	var gf *machine.GuestFault
	if errors.As(err, &gf) {
		m.CPU.PC = m.CPU.RaiseTrap(gf.Cause, pc)
		return nil
	}
	return err
}

func illegalInstruction(pc uint32) error {
	return &machine.GuestFault{Cause: machine.CauseIllegalInstr, Msg: fmt.Sprintf("illegal instruction at pc 0x%x", pc)}
}

// Step fetches, decodes and executes one instruction, advancing PC and
// invoking h's hooks in the order the core spec fixes: retire (itrace),
// difftest compare, watchpoint check.
func Step(m *machine.Machine, h Hooks) error {
	pc := m.CPU.PC
	word, err := m.VAddrIfetch(pc, 4)
	if err != nil {
		return raiseFault(m, err, pc)
	}

	if err := execute(m, word, pc, h); err != nil {
		return raiseFault(m, err, pc)
	}

	if h.OnRetire != nil {
		h.OnRetire(pc, Disassemble(word))
	}
	if h.DiffCompare != nil {
		if err := h.DiffCompare(); err != nil {
			return err
		}
	}
	if h.CheckWatch != nil && h.CheckWatch() {
		return ErrWatchpointHit
	}
	return nil
}

func execute(m *machine.Machine, word, pc uint32, h Hooks) error {
	ins := decode(word)
	nextPC := pc + 4

	switch ins.opcode {
	case opLUI:
		setGPR(m, ins.rd, ins.immU)

	case opAUIPC:
		setGPR(m, ins.rd, pc+ins.immU)

	case opJAL:
		target := pc + ins.immJ
		setGPR(m, ins.rd, pc+4)
		nextPC = target
		if ins.rd == 1 || ins.rd == 5 {
			if h.OnCall != nil {
				if err := h.OnCall(pc, target); err != nil {
					return err
				}
			}
		}

	case opJALR:
		target := (m.CPU.GPR[ins.rs1] + ins.immI) &^ 1
		link := pc + 4
		setGPR(m, ins.rd, link)
		isRet := ins.rd == 0 && (ins.rs1 == 1 || ins.rs1 == 5)
		isCall := ins.rd == 1 || ins.rd == 5
		nextPC = target
		if isRet && h.OnRet != nil {
			if err := h.OnRet(pc, target); err != nil {
				return err
			}
		} else if isCall && h.OnCall != nil {
			if err := h.OnCall(pc, target); err != nil {
				return err
			}
		}

	case opBranch:
		a, b := m.CPU.GPR[ins.rs1], m.CPU.GPR[ins.rs2]
		taken := false
		switch ins.funct3 {
		case 0x0:
			taken = a == b // beq
		case 0x1:
			taken = a != b // bne
		case 0x4:
			taken = int32(a) < int32(b) // blt
		case 0x5:
			taken = int32(a) >= int32(b) // bge
		case 0x6:
			taken = a < b // bltu
		case 0x7:
			taken = a >= b // bgeu
		default:
			return illegalInstruction(pc)
		}
		if taken {
			nextPC = pc + ins.immB
		}

	case opLoad:
		addr := m.CPU.GPR[ins.rs1] + ins.immI
		switch ins.funct3 {
		case 0x0: // lb
			v, err := m.VAddrRead(addr, 1)
			if err != nil {
				return err
			}
			setGPR(m, ins.rd, signExtend(v, 8))
		case 0x1: // lh
			v, err := m.VAddrRead(addr, 2)
			if err != nil {
				return err
			}
			setGPR(m, ins.rd, signExtend(v, 16))
		case 0x2: // lw
			v, err := m.VAddrRead(addr, 4)
			if err != nil {
				return err
			}
			setGPR(m, ins.rd, v)
		case 0x4: // lbu
			v, err := m.VAddrRead(addr, 1)
			if err != nil {
				return err
			}
			setGPR(m, ins.rd, v)
		case 0x5: // lhu
			v, err := m.VAddrRead(addr, 2)
			if err != nil {
				return err
			}
			setGPR(m, ins.rd, v)
		default:
			return illegalInstruction(pc)
		}

	case opStore:
		addr := m.CPU.GPR[ins.rs1] + ins.immS
		val := m.CPU.GPR[ins.rs2]
		var length int
		switch ins.funct3 {
		case 0x0:
			length = 1
		case 0x1:
			length = 2
		case 0x2:
			length = 4
		default:
			return illegalInstruction(pc)
		}
		if err := m.VAddrWrite(addr, length, val); err != nil {
			return err
		}
		if h.OnMemWrite != nil {
			h.OnMemWrite(addr, length, val)
		}

	case opImm:
		a := m.CPU.GPR[ins.rs1]
		var r uint32
		switch ins.funct3 {
		case 0x0: // addi
			r = a + ins.immI
		case 0x2: // slti
			r = boolWord(int32(a) < int32(ins.immI))
		case 0x3: // sltiu
			r = boolWord(a < ins.immI)
		case 0x4: // xori
			r = a ^ ins.immI
		case 0x6: // ori
			r = a | ins.immI
		case 0x7: // andi
			r = a & ins.immI
		case 0x1: // slli
			r = a << (ins.rs2 & 0x1F)
		case 0x5: // srli / srai, distinguished by funct7
			if ins.funct7&0x20 != 0 {
				r = uint32(int32(a) >> (ins.rs2 & 0x1F))
			} else {
				r = a >> (ins.rs2 & 0x1F)
			}
		default:
			return illegalInstruction(pc)
		}
		setGPR(m, ins.rd, r)

	case opReg:
		a, b := m.CPU.GPR[ins.rs1], m.CPU.GPR[ins.rs2]
		if ins.funct7 == 0x01 { // M extension
			r, err := execM(ins.funct3, a, b)
			if err != nil {
				return err
			}
			setGPR(m, ins.rd, r)
			break
		}
		var r uint32
		switch ins.funct3 {
		case 0x0:
			if ins.funct7&0x20 != 0 {
				r = a - b // sub
			} else {
				r = a + b // add
			}
		case 0x1:
			r = a << (b & 0x1F) // sll
		case 0x2:
			r = boolWord(int32(a) < int32(b)) // slt
		case 0x3:
			r = boolWord(a < b) // sltu
		case 0x4:
			r = a ^ b // xor
		case 0x5:
			if ins.funct7&0x20 != 0 {
				r = uint32(int32(a) >> (b & 0x1F)) // sra
			} else {
				r = a >> (b & 0x1F) // srl
			}
		case 0x6:
			r = a | b // or
		case 0x7:
			r = a & b // and
		default:
			return illegalInstruction(pc)
		}
		setGPR(m, ins.rd, r)

	case opSystem:
		if err := execSystem(m, ins, word, pc, &nextPC); err != nil {
			return err
		}

	default:
		return illegalInstruction(pc)
	}

	m.CPU.PC = nextPC
	return nil
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func execM(funct3 uint32, a, b uint32) (uint32, error) {
	switch funct3 {
	case 0x0: // mul
		return a * b, nil
	case 0x1: // mulh
		return uint32((int64(int32(a)) * int64(int32(b))) >> 32), nil
	case 0x2: // mulhsu
		return uint32((int64(int32(a)) * int64(uint64(b))) >> 32), nil
	case 0x3: // mulhu
		return uint32((uint64(a) * uint64(b)) >> 32), nil
	case 0x4: // div
		if b == 0 {
			return 0xFFFFFFFF, nil
		}
		if a == 0x80000000 && int32(b) == -1 {
			return a, nil
		}
		return uint32(int32(a) / int32(b)), nil
	case 0x5: // divu
		if b == 0 {
			return 0xFFFFFFFF, nil
		}
		return a / b, nil
	case 0x6: // rem
		if b == 0 {
			return a, nil
		}
		if a == 0x80000000 && int32(b) == -1 {
			return 0, nil
		}
		return uint32(int32(a) % int32(b)), nil
	case 0x7: // remu
		if b == 0 {
			return a, nil
		}
		return a % b, nil
	default:
		return 0, fmt.Errorf("isa: unknown M-extension funct3 %d", funct3)
	}
}

func execSystem(m *machine.Machine, ins instruction, word, pc uint32, nextPC *uint32) error {
	switch ins.funct3 {
	case 0x0:
		funct12 := word >> 20
		switch funct12 {
		case funct12ECall:
			*nextPC = m.CPU.RaiseTrap(causeECall, pc)
		case funct12EBreak:
			*nextPC = m.CPU.RaiseTrap(causeBreakpoint, pc)
		case funct12MRet:
			*nextPC = m.CPU.TrapReturn()
		case funct12WFI:
			// one-cycle no-op
		default:
			return illegalInstruction(pc)
		}
		return nil

	case 0x1, 0x2, 0x3: // csrrw, csrrs, csrrc
		addr := word >> 20
		old, err := m.CPU.CSRByAddr(addr)
		if err != nil {
			return err
		}
		rs1val := m.CPU.GPR[ins.rs1]
		var newVal uint32
		switch ins.funct3 {
		case 0x1:
			newVal = rs1val
		case 0x2:
			newVal = old | rs1val
		case 0x3:
			newVal = old &^ rs1val
		}
		if err := m.CPU.SetCSRByAddr(addr, newVal); err != nil {
			return err
		}
		setGPR(m, ins.rd, old)
		return nil

	case 0x5, 0x6, 0x7: // csrrwi, csrrsi, csrrci
		addr := word >> 20
		old, err := m.CPU.CSRByAddr(addr)
		if err != nil {
			return err
		}
		imm := ins.rs1 // zimm is encoded in the rs1 field
		var newVal uint32
		switch ins.funct3 {
		case 0x5:
			newVal = imm
		case 0x6:
			newVal = old | imm
		case 0x7:
			newVal = old &^ imm
		}
		if err := m.CPU.SetCSRByAddr(addr, newVal); err != nil {
			return err
		}
		setGPR(m, ins.rd, old)
		return nil

	default:
		return illegalInstruction(pc)
	}
}
