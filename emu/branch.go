package emu

import "github.com/sarchlab/tomasim/insts"

// BranchTaken evaluates a conditional branch condition.
func BranchTaken(op insts.Op, a, b uint32) bool {
	switch op {
	case insts.OpBEQ:
		return a == b
	case insts.OpBNE:
		return a != b
	case insts.OpBLT:
		return int32(a) < int32(b)
	case insts.OpBGE:
		return int32(a) >= int32(b)
	case insts.OpBLTU:
		return a < b
	case insts.OpBGEU:
		return a >= b
	}

	return false
}

// BranchTarget returns the next pc of a conditional branch at pc.
func BranchTarget(pc uint32, imm int32, taken bool) uint32 {
	if taken {
		return pc + uint32(imm)
	}
	return pc + 4
}

// BranchUnit implements RV32I control transfers.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// Branch resolves a conditional branch and updates the PC.
func (b *BranchUnit) Branch(inst *insts.Instruction) bool {
	taken := BranchTaken(inst.Op,
		b.regFile.ReadReg(inst.Rs1), b.regFile.ReadReg(inst.Rs2))
	b.regFile.PC = BranchTarget(b.regFile.PC, inst.Imm, taken)

	return taken
}

// JAL saves the return address to rd and jumps PC-relative.
func (b *BranchUnit) JAL(inst *insts.Instruction) {
	pc := b.regFile.PC
	b.regFile.WriteReg(inst.Rd, pc+4)
	b.regFile.PC = pc + uint32(inst.Imm)
}

// JALR saves the return address to rd and jumps to (rs1 + imm) with bit 0
// cleared. The base is read before rd is written.
func (b *BranchUnit) JALR(inst *insts.Instruction) {
	pc := b.regFile.PC
	target := Compute(insts.OpJALR, b.regFile.ReadReg(inst.Rs1), uint32(inst.Imm))
	b.regFile.WriteReg(inst.Rd, pc+4)
	b.regFile.PC = target
}
