package isa

// Opcodes (instr[6:0]) for the RV32I/M subset this engine decodes.
const (
	opLoad   = 0x03
	opImm    = 0x13
	opAUIPC  = 0x17
	opStore  = 0x23
	opReg    = 0x33
	opLUI    = 0x37
	opBranch = 0x63
	opJALR   = 0x67
	opJAL    = 0x6F
	opSystem = 0x73
)

type instruction struct {
	opcode uint32
	rd     uint32
	funct3 uint32
	rs1    uint32
	rs2    uint32
	funct7 uint32

	immI uint32
	immS uint32
	immB uint32
	immU uint32
	immJ uint32
}

func signExtend(v uint32, bits uint) uint32 {
	shift := 32 - bits
	return uint32(int32(v<<shift) >> shift)
}

func decode(word uint32) instruction {
	ins := instruction{
		opcode: word & 0x7F,
		rd:     (word >> 7) & 0x1F,
		funct3: (word >> 12) & 0x7,
		rs1:    (word >> 15) & 0x1F,
		rs2:    (word >> 20) & 0x1F,
		funct7: (word >> 25) & 0x7F,
	}
	ins.immI = signExtend(word>>20, 12)
	ins.immS = signExtend((((word>>25)&0x7F)<<5)|((word>>7)&0x1F), 12)
	ins.immB = signExtend(
		(((word>>31)&1)<<12)|(((word>>7)&1)<<11)|(((word>>25)&0x3F)<<5)|(((word>>8)&0xF)<<1),
		13,
	)
	ins.immU = word & 0xFFFFF000
	ins.immJ = signExtend(
		(((word>>31)&1)<<20)|(((word>>12)&0xFF)<<12)|(((word>>20)&1)<<11)|(((word>>21)&0x3FF)<<1),
		21,
	)
	return ins
}

// csrAddrField extracts the 12-bit unsigned CSR address from a SYSTEM
// instruction word (instr[31:20], never sign-extended).
func (ins instruction) csrAddrField(word uint32) uint32 {
	return word >> 20
}
