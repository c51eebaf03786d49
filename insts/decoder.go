package insts

import "fmt"

// Op represents an RV32I operation.
type Op uint8

// RV32I operations.
const (
	OpUnknown Op = iota

	// Other
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	// Branch
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// Load
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU

	// Store
	OpSB
	OpSH
	OpSW

	// Arithmetic immediate
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	// Arithmetic register
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	// NumOps is the number of defined operations, OpUnknown included.
	NumOps
)

var opNames = [NumOps]string{
	OpUnknown: "UNKNOWN",
	OpLUI:     "LUI", OpAUIPC: "AUIPC", OpJAL: "JAL", OpJALR: "JALR",
	OpBEQ: "BEQ", OpBNE: "BNE", OpBLT: "BLT", OpBGE: "BGE", OpBLTU: "BLTU", OpBGEU: "BGEU",
	OpLB: "LB", OpLH: "LH", OpLW: "LW", OpLBU: "LBU", OpLHU: "LHU",
	OpSB: "SB", OpSH: "SH", OpSW: "SW",
	OpADDI: "ADDI", OpSLTI: "SLTI", OpSLTIU: "SLTIU", OpXORI: "XORI", OpORI: "ORI",
	OpANDI: "ANDI", OpSLLI: "SLLI", OpSRLI: "SRLI", OpSRAI: "SRAI",
	OpADD: "ADD", OpSUB: "SUB", OpSLL: "SLL", OpSLT: "SLT", OpSLTU: "SLTU",
	OpXOR: "XOR", OpSRL: "SRL", OpSRA: "SRA", OpOR: "OR", OpAND: "AND",
}

// String returns the assembler mnemonic of the operation.
func (o Op) String() string {
	if o >= NumOps {
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
	return opNames[o]
}

// Class groups operations by how the core handles them.
type Class uint8

// Operation classes.
const (
	ClassOther Class = iota
	ClassBranch
	ClassLoad
	ClassStore
	ClassArithImm
	ClassArithReg
)

func (c Class) String() string {
	switch c {
	case ClassBranch:
		return "branch"
	case ClassLoad:
		return "load"
	case ClassStore:
		return "store"
	case ClassArithImm:
		return "arith-imm"
	case ClassArithReg:
		return "arith-reg"
	default:
		return "other"
	}
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // register-register
	FormatI              // register-immediate, loads, JALR
	FormatS              // store
	FormatB              // branch
	FormatU              // upper immediate
	FormatJ              // jump
)

// NoReg marks a register field that the instruction does not use.
const NoReg uint8 = 0xFF

// Well-known register numbers.
const (
	RegZero uint8 = 0
	RegRA   uint8 = 1
	RegSP   uint8 = 2
	RegA0   uint8 = 10
)

// HaltWord is the encoding of ADDI a0, zero, 255. Committing it ends a run and
// the low byte of a0 becomes the exit code.
const HaltWord uint32 = 0x0ff00513

// Instruction represents a decoded RV32I instruction.
type Instruction struct {
	Op     Op     // Operation
	Class  Class  // Operation class
	Format Format // Encoding format

	Rd  uint8 // Destination register, NoReg if none
	Rs1 uint8 // First source register, NoReg if none
	Rs2 uint8 // Second source register, NoReg if none

	// Imm is the immediate, already sign or zero extended per the op.
	Imm int32

	// PC is the address the instruction was fetched from.
	PC uint32

	// Word is the raw instruction word.
	Word uint32
}

// IsHalt reports whether the instruction is the halt sentinel.
func (i *Instruction) IsHalt() bool {
	return i.Word == HaltWord
}

// HasDest reports whether the instruction writes an architectural register
// other than x0.
func (i *Instruction) HasDest() bool {
	return i.Rd != NoReg && i.Rd != RegZero
}

// String renders the instruction in assembler syntax.
func (i *Instruction) String() string {
	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	case FormatI:
		if i.Class == ClassLoad {
			return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rd, i.Imm, i.Rs1)
		}
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rd, i.Rs1, i.Imm)
	case FormatS:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rs2, i.Imm, i.Rs1)
	case FormatB:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rs1, i.Rs2, i.Imm)
	case FormatU:
		return fmt.Sprintf("%s x%d, 0x%x", i.Op, i.Rd, uint32(i.Imm)>>12)
	case FormatJ:
		return fmt.Sprintf("%s x%d, %d", i.Op, i.Rd, i.Imm)
	default:
		return fmt.Sprintf("%s 0x%08x", i.Op, i.Word)
	}
}

// Major opcodes, bits [6:0].
const (
	opcodeLUI    = 0b0110111
	opcodeAUIPC  = 0b0010111
	opcodeJAL    = 0b1101111
	opcodeJALR   = 0b1100111
	opcodeBranch = 0b1100011
	opcodeLoad   = 0b0000011
	opcodeStore  = 0b0100011
	opcodeOpImm  = 0b0010011
	opcodeOp     = 0b0110011
)

// Decoder decodes RV32I machine code into instructions.
// It is stateless; a single Decoder may be shared.
type Decoder struct{}

// NewDecoder creates a new RV32I instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word.
// Words that do not match the base set yield OpUnknown with ClassOther.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Op:   OpUnknown,
		Rd:   NoReg,
		Rs1:  NoReg,
		Rs2:  NoReg,
		Word: word,
	}

	switch word & 0x7F {
	case opcodeLUI, opcodeAUIPC:
		d.decodeU(word, inst)
	case opcodeJAL:
		d.decodeJ(word, inst)
	case opcodeJALR, opcodeLoad, opcodeOpImm:
		d.decodeI(word, inst)
	case opcodeBranch:
		d.decodeB(word, inst)
	case opcodeStore:
		d.decodeS(word, inst)
	case opcodeOp:
		d.decodeR(word, inst)
	}

	return inst
}

func rd(word uint32) uint8      { return uint8((word >> 7) & 0x1F) }
func rs1(word uint32) uint8     { return uint8((word >> 15) & 0x1F) }
func rs2(word uint32) uint8     { return uint8((word >> 20) & 0x1F) }
func funct3(word uint32) uint32 { return (word >> 12) & 0x7 }
func funct7(word uint32) uint32 { return word >> 25 }

// signExtend sign-extends the low bits of value.
func signExtend(value uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(value<<shift) >> shift
}

// decodeR decodes register-register arithmetic.
// Format: funct7 | rs2 | rs1 | funct3 | rd | opcode
func (d *Decoder) decodeR(word uint32, inst *Instruction) {
	f7 := funct7(word)
	var op Op

	switch funct3(word) {
	case 0b000:
		switch f7 {
		case 0b0000000:
			op = OpADD
		case 0b0100000:
			op = OpSUB
		}
	case 0b001:
		if f7 == 0 {
			op = OpSLL
		}
	case 0b010:
		if f7 == 0 {
			op = OpSLT
		}
	case 0b011:
		if f7 == 0 {
			op = OpSLTU
		}
	case 0b100:
		if f7 == 0 {
			op = OpXOR
		}
	case 0b101:
		switch f7 {
		case 0b0000000:
			op = OpSRL
		case 0b0100000:
			op = OpSRA
		}
	case 0b110:
		if f7 == 0 {
			op = OpOR
		}
	case 0b111:
		if f7 == 0 {
			op = OpAND
		}
	}

	if op == OpUnknown {
		return
	}

	inst.Op = op
	inst.Class = ClassArithReg
	inst.Format = FormatR
	inst.Rd = rd(word)
	inst.Rs1 = rs1(word)
	inst.Rs2 = rs2(word)
}

// decodeI decodes register-immediate arithmetic, loads and JALR.
// Format: imm[11:0] | rs1 | funct3 | rd | opcode
func (d *Decoder) decodeI(word uint32, inst *Instruction) {
	imm := signExtend(word>>20, 12)
	shamt := int32((word >> 20) & 0x1F)
	var op Op
	class := ClassArithImm

	switch word & 0x7F {
	case opcodeOpImm:
		switch funct3(word) {
		case 0b000:
			op = OpADDI
		case 0b010:
			op = OpSLTI
		case 0b011:
			op = OpSLTIU
		case 0b100:
			op = OpXORI
		case 0b110:
			op = OpORI
		case 0b111:
			op = OpANDI
		case 0b001:
			if funct7(word) == 0 {
				op = OpSLLI
				imm = shamt
			}
		case 0b101:
			switch funct7(word) {
			case 0b0000000:
				op = OpSRLI
			case 0b0100000:
				op = OpSRAI
			}
			imm = shamt
		}
	case opcodeLoad:
		class = ClassLoad
		switch funct3(word) {
		case 0b000:
			op = OpLB
		case 0b001:
			op = OpLH
		case 0b010:
			op = OpLW
		case 0b100:
			op = OpLBU
		case 0b101:
			op = OpLHU
		}
	case opcodeJALR:
		class = ClassOther
		if funct3(word) == 0 {
			op = OpJALR
		}
	}

	if op == OpUnknown {
		return
	}

	inst.Op = op
	inst.Class = class
	inst.Format = FormatI
	inst.Rd = rd(word)
	inst.Rs1 = rs1(word)
	inst.Imm = imm
}

// decodeS decodes stores.
// Format: imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | opcode
func (d *Decoder) decodeS(word uint32, inst *Instruction) {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpSB
	case 0b001:
		op = OpSH
	case 0b010:
		op = OpSW
	default:
		return
	}

	raw := ((word >> 7) & 0x1F) | ((word >> 25) << 5)
	inst.Op = op
	inst.Class = ClassStore
	inst.Format = FormatS
	inst.Rs1 = rs1(word)
	inst.Rs2 = rs2(word)
	inst.Imm = signExtend(raw, 12)
}

// decodeB decodes conditional branches.
// Format: imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | opcode
func (d *Decoder) decodeB(word uint32, inst *Instruction) {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpBEQ
	case 0b001:
		op = OpBNE
	case 0b100:
		op = OpBLT
	case 0b101:
		op = OpBGE
	case 0b110:
		op = OpBLTU
	case 0b111:
		op = OpBGEU
	default:
		return
	}

	raw := ((word >> 7) & 0x1E) |
		((word << 4) & 0x800) |
		((word >> 20) & 0x7E0) |
		((word >> 19) & 0x1000)
	inst.Op = op
	inst.Class = ClassBranch
	inst.Format = FormatB
	inst.Rs1 = rs1(word)
	inst.Rs2 = rs2(word)
	inst.Imm = signExtend(raw, 13)
}

// decodeU decodes LUI and AUIPC. Imm holds the shifted upper immediate.
func (d *Decoder) decodeU(word uint32, inst *Instruction) {
	if word&0x7F == opcodeLUI {
		inst.Op = OpLUI
	} else {
		inst.Op = OpAUIPC
	}
	inst.Class = ClassOther
	inst.Format = FormatU
	inst.Rd = rd(word)
	inst.Imm = int32(word & 0xFFFFF000)
}

// decodeJ decodes JAL.
// Format: imm[20|10:1|11|19:12] | rd | opcode
func (d *Decoder) decodeJ(word uint32, inst *Instruction) {
	raw := ((word >> 11) & 0x100000) |
		((word >> 20) & 0x7FE) |
		((word >> 9) & 0x800) |
		(word & 0xFF000)
	inst.Op = OpJAL
	inst.Class = ClassOther
	inst.Format = FormatJ
	inst.Rd = rd(word)
	inst.Imm = signExtend(raw, 21)
}
