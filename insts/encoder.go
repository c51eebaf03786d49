package insts

import "encoding/binary"

// EncodeR encodes a register-register instruction.
func EncodeR(opcode, f3, f7 uint32, rd, rs1, rs2 uint8) uint32 {
	return f7<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		(f3&0x7)<<12 | uint32(rd&0x1F)<<7 | opcode&0x7F
}

// EncodeI encodes a register-immediate instruction. Only the low 12 bits of
// imm are kept.
func EncodeI(opcode, f3 uint32, rd, rs1 uint8, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1&0x1F)<<15 |
		(f3&0x7)<<12 | uint32(rd&0x1F)<<7 | opcode&0x7F
}

// EncodeS encodes a store.
func EncodeS(f3 uint32, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7F)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		(f3&0x7)<<12 | (u&0x1F)<<7 | opcodeStore
}

// EncodeB encodes a conditional branch. imm is the byte offset from the
// branch and must be even.
func EncodeB(f3 uint32, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return (u>>12&1)<<31 | (u>>5&0x3F)<<25 | uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 | (f3&0x7)<<12 | (u>>1&0xF)<<8 |
		(u>>11&1)<<7 | opcodeBranch
}

// EncodeU encodes LUI or AUIPC. imm is the 20-bit upper immediate before
// shifting.
func EncodeU(opcode uint32, rd uint8, imm uint32) uint32 {
	return (imm&0xFFFFF)<<12 | uint32(rd&0x1F)<<7 | opcode&0x7F
}

// EncodeJ encodes JAL with a byte offset.
func EncodeJ(rd uint8, imm int32) uint32 {
	u := uint32(imm)
	return (u>>20&1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&1)<<20 |
		(u>>12&0xFF)<<12 | uint32(rd&0x1F)<<7 | opcodeJAL
}

// Mnemonic helpers, one per operation used by the benchmarks and tests.

func LUI(rd uint8, imm uint32) uint32   { return EncodeU(opcodeLUI, rd, imm) }
func AUIPC(rd uint8, imm uint32) uint32 { return EncodeU(opcodeAUIPC, rd, imm) }
func JAL(rd uint8, off int32) uint32    { return EncodeJ(rd, off) }

func JALR(rd, rs1 uint8, imm int32) uint32 {
	return EncodeI(opcodeJALR, 0, rd, rs1, imm)
}

func BEQ(rs1, rs2 uint8, off int32) uint32  { return EncodeB(0b000, rs1, rs2, off) }
func BNE(rs1, rs2 uint8, off int32) uint32  { return EncodeB(0b001, rs1, rs2, off) }
func BLT(rs1, rs2 uint8, off int32) uint32  { return EncodeB(0b100, rs1, rs2, off) }
func BGE(rs1, rs2 uint8, off int32) uint32  { return EncodeB(0b101, rs1, rs2, off) }
func BLTU(rs1, rs2 uint8, off int32) uint32 { return EncodeB(0b110, rs1, rs2, off) }
func BGEU(rs1, rs2 uint8, off int32) uint32 { return EncodeB(0b111, rs1, rs2, off) }

func LB(rd, rs1 uint8, imm int32) uint32  { return EncodeI(opcodeLoad, 0b000, rd, rs1, imm) }
func LH(rd, rs1 uint8, imm int32) uint32  { return EncodeI(opcodeLoad, 0b001, rd, rs1, imm) }
func LW(rd, rs1 uint8, imm int32) uint32  { return EncodeI(opcodeLoad, 0b010, rd, rs1, imm) }
func LBU(rd, rs1 uint8, imm int32) uint32 { return EncodeI(opcodeLoad, 0b100, rd, rs1, imm) }
func LHU(rd, rs1 uint8, imm int32) uint32 { return EncodeI(opcodeLoad, 0b101, rd, rs1, imm) }

func SB(rs2, rs1 uint8, imm int32) uint32 { return EncodeS(0b000, rs1, rs2, imm) }
func SH(rs2, rs1 uint8, imm int32) uint32 { return EncodeS(0b001, rs1, rs2, imm) }
func SW(rs2, rs1 uint8, imm int32) uint32 { return EncodeS(0b010, rs1, rs2, imm) }

func ADDI(rd, rs1 uint8, imm int32) uint32  { return EncodeI(opcodeOpImm, 0b000, rd, rs1, imm) }
func SLTI(rd, rs1 uint8, imm int32) uint32  { return EncodeI(opcodeOpImm, 0b010, rd, rs1, imm) }
func SLTIU(rd, rs1 uint8, imm int32) uint32 { return EncodeI(opcodeOpImm, 0b011, rd, rs1, imm) }
func XORI(rd, rs1 uint8, imm int32) uint32  { return EncodeI(opcodeOpImm, 0b100, rd, rs1, imm) }
func ORI(rd, rs1 uint8, imm int32) uint32   { return EncodeI(opcodeOpImm, 0b110, rd, rs1, imm) }
func ANDI(rd, rs1 uint8, imm int32) uint32  { return EncodeI(opcodeOpImm, 0b111, rd, rs1, imm) }

func SLLI(rd, rs1 uint8, shamt uint8) uint32 {
	return EncodeR(opcodeOpImm, 0b001, 0, rd, rs1, shamt)
}

func SRLI(rd, rs1 uint8, shamt uint8) uint32 {
	return EncodeR(opcodeOpImm, 0b101, 0, rd, rs1, shamt)
}

func SRAI(rd, rs1 uint8, shamt uint8) uint32 {
	return EncodeR(opcodeOpImm, 0b101, 0b0100000, rd, rs1, shamt)
}

func ADD(rd, rs1, rs2 uint8) uint32  { return EncodeR(opcodeOp, 0b000, 0, rd, rs1, rs2) }
func SUB(rd, rs1, rs2 uint8) uint32  { return EncodeR(opcodeOp, 0b000, 0b0100000, rd, rs1, rs2) }
func SLL(rd, rs1, rs2 uint8) uint32  { return EncodeR(opcodeOp, 0b001, 0, rd, rs1, rs2) }
func SLT(rd, rs1, rs2 uint8) uint32  { return EncodeR(opcodeOp, 0b010, 0, rd, rs1, rs2) }
func SLTU(rd, rs1, rs2 uint8) uint32 { return EncodeR(opcodeOp, 0b011, 0, rd, rs1, rs2) }
func XOR(rd, rs1, rs2 uint8) uint32  { return EncodeR(opcodeOp, 0b100, 0, rd, rs1, rs2) }
func SRL(rd, rs1, rs2 uint8) uint32  { return EncodeR(opcodeOp, 0b101, 0, rd, rs1, rs2) }
func SRA(rd, rs1, rs2 uint8) uint32  { return EncodeR(opcodeOp, 0b101, 0b0100000, rd, rs1, rs2) }
func OR(rd, rs1, rs2 uint8) uint32   { return EncodeR(opcodeOp, 0b110, 0, rd, rs1, rs2) }
func AND(rd, rs1, rs2 uint8) uint32  { return EncodeR(opcodeOp, 0b111, 0, rd, rs1, rs2) }

// NOP encodes ADDI x0, x0, 0.
func NOP() uint32 { return ADDI(0, 0, 0) }

// Halt returns the halt sentinel word.
func Halt() uint32 { return HaltWord }

// Program is a sequence of instruction words laid out from address 0.
type Program []uint32

// Bytes returns the little-endian memory image of the program.
func (p Program) Bytes() []byte {
	out := make([]byte, 4*len(p))
	for i, w := range p {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// BuildProgram concatenates instruction words into a Program.
func BuildProgram(words ...uint32) Program {
	return Program(words)
}
