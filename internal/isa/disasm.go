package isa

import "fmt"

var abiNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// Disassemble renders one instruction word as a short mnemonic line for
// the instruction-history ring buffer. It is intentionally terse — a
// debugging aid, not a full disassembler.
func Disassemble(word uint32) string {
	ins := decode(word)
	rd, rs1, rs2 := abiNames[ins.rd], abiNames[ins.rs1], abiNames[ins.rs2]

	switch ins.opcode {
	case opLUI:
		return fmt.Sprintf("lui %s, 0x%x", rd, ins.immU>>12)
	case opAUIPC:
		return fmt.Sprintf("auipc %s, 0x%x", rd, ins.immU>>12)
	case opJAL:
		return fmt.Sprintf("jal %s, %d", rd, int32(ins.immJ))
	case opJALR:
		return fmt.Sprintf("jalr %s, %d(%s)", rd, int32(ins.immI), rs1)
	case opBranch:
		return fmt.Sprintf("b%s %s, %s, %d", branchMnemonic(ins.funct3), rs1, rs2, int32(ins.immB))
	case opLoad:
		return fmt.Sprintf("%s %s, %d(%s)", loadMnemonic(ins.funct3), rd, int32(ins.immI), rs1)
	case opStore:
		return fmt.Sprintf("%s %s, %d(%s)", storeMnemonic(ins.funct3), rs2, int32(ins.immS), rs1)
	case opImm:
		return fmt.Sprintf("%s %s, %s, %d", immMnemonic(ins.funct3, ins.funct7), rd, rs1, int32(ins.immI))
	case opReg:
		return fmt.Sprintf("%s %s, %s, %s", regMnemonic(ins.funct3, ins.funct7), rd, rs1, rs2)
	case opSystem:
		return systemMnemonic(word, ins)
	default:
		return fmt.Sprintf(".word 0x%08x", word)
	}
}

func branchMnemonic(f3 uint32) string {
	switch f3 {
	case 0x0:
		return "eq"
	case 0x1:
		return "ne"
	case 0x4:
		return "lt"
	case 0x5:
		return "ge"
	case 0x6:
		return "ltu"
	case 0x7:
		return "geu"
	default:
		return "?"
	}
}

func loadMnemonic(f3 uint32) string {
	switch f3 {
	case 0x0:
		return "lb"
	case 0x1:
		return "lh"
	case 0x2:
		return "lw"
	case 0x4:
		return "lbu"
	case 0x5:
		return "lhu"
	default:
		return "l?"
	}
}

func storeMnemonic(f3 uint32) string {
	switch f3 {
	case 0x0:
		return "sb"
	case 0x1:
		return "sh"
	case 0x2:
		return "sw"
	default:
		return "s?"
	}
}

func immMnemonic(f3, f7 uint32) string {
	switch f3 {
	case 0x0:
		return "addi"
	case 0x2:
		return "slti"
	case 0x3:
		return "sltiu"
	case 0x4:
		return "xori"
	case 0x6:
		return "ori"
	case 0x7:
		return "andi"
	case 0x1:
		return "slli"
	case 0x5:
		if f7&0x20 != 0 {
			return "srai"
		}
		return "srli"
	default:
		return "?i"
	}
}

func regMnemonic(f3, f7 uint32) string {
	if f7 == 0x01 {
		switch f3 {
		case 0x0:
			return "mul"
		case 0x1:
			return "mulh"
		case 0x2:
			return "mulhsu"
		case 0x3:
			return "mulhu"
		case 0x4:
			return "div"
		case 0x5:
			return "divu"
		case 0x6:
			return "rem"
		case 0x7:
			return "remu"
		}
	}
	switch f3 {
	case 0x0:
		if f7&0x20 != 0 {
			return "sub"
		}
		return "add"
	case 0x1:
		return "sll"
	case 0x2:
		return "slt"
	case 0x3:
		return "sltu"
	case 0x4:
		return "xor"
	case 0x5:
		if f7&0x20 != 0 {
			return "sra"
		}
		return "srl"
	case 0x6:
		return "or"
	case 0x7:
		return "and"
	default:
		return "?"
	}
}

func systemMnemonic(word uint32, ins instruction) string {
	if ins.funct3 == 0 {
		switch word >> 20 {
		case funct12ECall:
			return "ecall"
		case funct12EBreak:
			return "ebreak"
		case funct12MRet:
			return "mret"
		case funct12WFI:
			return "wfi"
		}
	}
	names := map[uint32]string{1: "csrrw", 2: "csrrs", 3: "csrrc", 5: "csrrwi", 6: "csrrsi", 7: "csrrci"}
	return fmt.Sprintf("%s %s, 0x%x, %s", names[ins.funct3], abiNames[ins.rd], word>>20, abiNames[ins.rs1])
}
