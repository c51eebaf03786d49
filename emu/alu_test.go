package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

var _ = Describe("Compute", func() {
	DescribeTable("operations",
		func(op insts.Op, a, b, want uint32) {
			Expect(emu.Compute(op, a, b)).To(Equal(want))
		},
		Entry("ADD wraps", insts.OpADD, uint32(0xFFFFFFFF), uint32(2), uint32(1)),
		Entry("ADDI negative", insts.OpADDI, uint32(5), uint32(0xFFFFFFFF), uint32(4)),
		Entry("SUB wraps", insts.OpSUB, uint32(0), uint32(1), uint32(0xFFFFFFFF)),
		Entry("SLT signed", insts.OpSLT, uint32(0xFFFFFFFF), uint32(1), uint32(1)),
		Entry("SLTU unsigned", insts.OpSLTU, uint32(0xFFFFFFFF), uint32(1), uint32(0)),
		Entry("SLTIU", insts.OpSLTIU, uint32(0), uint32(1), uint32(1)),
		Entry("XOR", insts.OpXOR, uint32(0xF0F0), uint32(0xFF00), uint32(0x0FF0)),
		Entry("ORI", insts.OpORI, uint32(0xF0), uint32(0x0F), uint32(0xFF)),
		Entry("AND", insts.OpAND, uint32(0xF0), uint32(0x3C), uint32(0x30)),
		Entry("SLL masks amount", insts.OpSLL, uint32(1), uint32(33), uint32(2)),
		Entry("SRL logical", insts.OpSRL, uint32(0x80000000), uint32(31), uint32(1)),
		Entry("SRA arithmetic", insts.OpSRA, uint32(0x80000000), uint32(31), uint32(0xFFFFFFFF)),
		Entry("SRAI", insts.OpSRAI, uint32(0xFFFFFF00), uint32(4), uint32(0xFFFFFFF0)),
		Entry("JALR clears bit 0", insts.OpJALR, uint32(0x101), uint32(2), uint32(0x102)),
		Entry("BEQ as compare", insts.OpBEQ, uint32(3), uint32(3), uint32(1)),
		Entry("BGE signed", insts.OpBGE, uint32(0xFFFFFFFF), uint32(0), uint32(0)),
		Entry("BGEU unsigned", insts.OpBGEU, uint32(0xFFFFFFFF), uint32(0), uint32(1)),
		Entry("unknown", insts.OpUnknown, uint32(3), uint32(3), uint32(0)),
	)
})

var _ = Describe("BranchUnit", func() {
	var (
		rf *emu.RegFile
		bu *emu.BranchUnit
	)

	BeforeEach(func() {
		rf = &emu.RegFile{PC: 0x100}
		bu = emu.NewBranchUnit(rf)
	})

	It("should take a branch forward", func() {
		rf.WriteReg(1, 5)
		rf.WriteReg(2, 5)

		taken := bu.Branch(&insts.Instruction{Op: insts.OpBEQ, Rs1: 1, Rs2: 2, Imm: 16})

		Expect(taken).To(BeTrue())
		Expect(rf.PC).To(Equal(uint32(0x110)))
	})

	It("should fall through a not-taken branch", func() {
		rf.WriteReg(1, 5)

		taken := bu.Branch(&insts.Instruction{Op: insts.OpBLT, Rs1: 1, Rs2: 0, Imm: -16})

		Expect(taken).To(BeFalse())
		Expect(rf.PC).To(Equal(uint32(0x104)))
	})

	It("should link and jump for JAL", func() {
		bu.JAL(&insts.Instruction{Op: insts.OpJAL, Rd: 1, Imm: -8})

		Expect(rf.ReadReg(1)).To(Equal(uint32(0x104)))
		Expect(rf.PC).To(Equal(uint32(0xF8)))
	})

	It("should read the JALR base before writing the link register", func() {
		rf.WriteReg(1, 0x401)

		bu.JALR(&insts.Instruction{Op: insts.OpJALR, Rd: 1, Rs1: 1, Imm: 4})

		Expect(rf.PC).To(Equal(uint32(0x404)))
		Expect(rf.ReadReg(1)).To(Equal(uint32(0x104)))
	})
})

var _ = Describe("LoadValue", func() {
	It("should sign- and zero-extend narrow loads", func() {
		mem := emu.NewMemory()
		mem.Write32(0x20, 0x8080FF80)

		Expect(emu.LoadValue(mem, insts.OpLB, 0x20)).To(Equal(uint32(0xFFFFFF80)))
		Expect(emu.LoadValue(mem, insts.OpLBU, 0x20)).To(Equal(uint32(0x80)))
		Expect(emu.LoadValue(mem, insts.OpLH, 0x20)).To(Equal(uint32(0xFFFFFF80)))
		Expect(emu.LoadValue(mem, insts.OpLHU, 0x22)).To(Equal(uint32(0x8080)))
		Expect(emu.LoadValue(mem, insts.OpLW, 0x20)).To(Equal(uint32(0x8080FF80)))
	})

	It("should store only the low bytes for narrow stores", func() {
		mem := emu.NewMemory()
		emu.StoreValue(mem, insts.OpSB, 0x10, 0x12345678)
		emu.StoreValue(mem, insts.OpSH, 0x14, 0x12345678)

		Expect(mem.Read32(0x10)).To(Equal(uint32(0x78)))
		Expect(mem.Read32(0x14)).To(Equal(uint32(0x5678)))
	})
})
