package emu

import "github.com/sarchlab/tomasim/insts"

// LoadValue reads memory for a load operation, sign- or zero-extending to
// 32 bits.
func LoadValue(mem *Memory, op insts.Op, addr uint32) uint32 {
	switch op {
	case insts.OpLB:
		return uint32(int32(int8(mem.Read8(addr))))
	case insts.OpLBU:
		return uint32(mem.Read8(addr))
	case insts.OpLH:
		return uint32(int32(int16(mem.Read16(addr))))
	case insts.OpLHU:
		return uint32(mem.Read16(addr))
	default:
		return mem.Read32(addr)
	}
}

// StoreValue writes the low byte, half word or word of value per the store
// operation.
func StoreValue(mem *Memory, op insts.Op, addr, value uint32) {
	switch op {
	case insts.OpSB:
		mem.Write8(addr, uint8(value))
	case insts.OpSH:
		mem.Write16(addr, uint16(value))
	default:
		mem.Write32(addr, value)
	}
}

// LoadStoreUnit implements RV32I loads and stores.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// Load performs rd = mem[rs1 + imm].
func (lsu *LoadStoreUnit) Load(inst *insts.Instruction) {
	addr := lsu.regFile.ReadReg(inst.Rs1) + uint32(inst.Imm)
	lsu.regFile.WriteReg(inst.Rd, LoadValue(lsu.memory, inst.Op, addr))
}

// Store performs mem[rs1 + imm] = rs2.
func (lsu *LoadStoreUnit) Store(inst *insts.Instruction) {
	addr := lsu.regFile.ReadReg(inst.Rs1) + uint32(inst.Imm)
	StoreValue(lsu.memory, inst.Op, addr, lsu.regFile.ReadReg(inst.Rs2))
}
