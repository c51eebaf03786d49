package emu

import "github.com/sarchlab/tomasim/insts"

// Compute evaluates an arithmetic, logic, shift, compare or branch operation
// on two 32-bit operands. Arithmetic wraps modulo 2^32, shifts use the low
// five bits of b, comparisons and branch conditions yield 0 or 1. JALR yields
// the jump target a+b with bit 0 cleared. Operations without an arithmetic
// meaning yield 0.
func Compute(op insts.Op, a, b uint32) uint32 {
	switch op {
	case insts.OpADD, insts.OpADDI:
		return a + b
	case insts.OpSUB:
		return a - b
	case insts.OpJALR:
		return (a + b) &^ 1
	case insts.OpSLT, insts.OpSLTI:
		return boolToWord(int32(a) < int32(b))
	case insts.OpSLTU, insts.OpSLTIU:
		return boolToWord(a < b)
	case insts.OpXOR, insts.OpXORI:
		return a ^ b
	case insts.OpOR, insts.OpORI:
		return a | b
	case insts.OpAND, insts.OpANDI:
		return a & b
	case insts.OpSLL, insts.OpSLLI:
		return a << (b & 0x1F)
	case insts.OpSRL, insts.OpSRLI:
		return a >> (b & 0x1F)
	case insts.OpSRA, insts.OpSRAI:
		return uint32(int32(a) >> (b & 0x1F))
	case insts.OpBEQ, insts.OpBNE, insts.OpBLT,
		insts.OpBGE, insts.OpBLTU, insts.OpBGEU:
		return boolToWord(BranchTaken(op, a, b))
	}

	return 0
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// ALU executes register-writing arithmetic instructions against a register
// file.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Execute computes rd = rs1 op (rs2 | imm).
func (a *ALU) Execute(inst *insts.Instruction) {
	op1 := a.regFile.ReadReg(inst.Rs1)

	var op2 uint32
	if inst.Class == insts.ClassArithReg {
		op2 = a.regFile.ReadReg(inst.Rs2)
	} else {
		op2 = uint32(inst.Imm)
	}

	a.regFile.WriteReg(inst.Rd, Compute(inst.Op, op1, op2))
}
