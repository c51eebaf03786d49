package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

var _ = Describe("Emulator", func() {
	var e *emu.Emulator

	BeforeEach(func() {
		e = emu.NewEmulator()
	})

	load := func(words ...uint32) {
		e.LoadProgram(0, insts.BuildProgram(words...).Bytes())
	}

	Describe("NewEmulator", func() {
		It("should create an emulator with initialized components", func() {
			Expect(e).NotTo(BeNil())
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory()).NotTo(BeNil())
		})

		It("should execute out of a provided memory", func() {
			mem := emu.NewMemory()
			e = emu.NewEmulator(emu.WithMemory(mem))
			Expect(e.Memory()).To(BeIdenticalTo(mem))
		})
	})

	Describe("LoadProgram", func() {
		It("should set the PC to the entry point", func() {
			e.LoadProgram(0x1000, []byte{0xDE, 0xAD, 0xBE, 0xEF})

			Expect(e.RegFile().PC).To(Equal(uint32(0x1000)))
			Expect(e.Memory().Read8(0x1001)).To(Equal(uint8(0xAD)))
		})
	})

	Describe("Step", func() {
		It("should record pc, word and registers after each instruction", func() {
			load(insts.ADDI(5, 0, 7), insts.HaltWord)

			result := e.Step()

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(result.Halted).To(BeFalse())
			Expect(result.Record.PC).To(Equal(uint32(0)))
			Expect(result.Record.Word).To(Equal(insts.ADDI(5, 0, 7)))
			Expect(result.Record.Regs[5]).To(Equal(uint32(7)))
			Expect(e.RegFile().PC).To(Equal(uint32(4)))
		})

		It("should retire the halt sentinel without writing a0", func() {
			load(insts.ADDI(10, 0, 3), insts.HaltWord)

			e.Step()
			result := e.Step()

			Expect(result.Halted).To(BeTrue())
			Expect(result.Record.PC).To(Equal(uint32(4)))
			Expect(result.Record.ExitCode()).To(Equal(uint8(3)))
			Expect(e.Halted()).To(BeTrue())
		})

		It("should materialize LUI and AUIPC", func() {
			load(insts.NOP(), insts.LUI(1, 0x12345), insts.AUIPC(2, 1), insts.HaltWord)

			_, err := e.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(0x12345000)))
			Expect(e.RegFile().ReadReg(2)).To(Equal(uint32(0x1008)))
		})

		It("should reject unknown words", func() {
			load(0)

			result := e.Step()

			Expect(errors.Is(result.Err, emu.ErrIllegalInstruction)).To(BeTrue())
		})

		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(emu.WithMaxInstructions(2))
			load(insts.JAL(0, 0))

			_, err := e.Run()

			Expect(errors.Is(err, emu.ErrStepLimit)).To(BeTrue())
			Expect(e.InstructionCount()).To(Equal(uint64(2)))
		})
	})

	Describe("Run", func() {
		It("should sum 1..10 in a loop", func() {
			load(
				insts.ADDI(1, 0, 10), // counter
				insts.ADDI(10, 0, 0), // sum
				insts.ADD(10, 10, 1),
				insts.ADDI(1, 1, -1),
				insts.BNE(1, 0, -8),
				insts.HaltWord,
			)

			code, err := e.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(uint8(55)))
		})

		It("should call and return through JAL and JALR", func() {
			load(
				insts.JAL(1, 12),      // 0: call f
				insts.ADDI(10, 10, 1), // 4: a0 += 1
				insts.HaltWord,        // 8
				insts.ADDI(10, 0, 40), // 12: f: a0 = 40
				insts.JALR(0, 1, 0),   // 16: ret
			)

			code, err := e.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(uint8(41)))
		})

		It("should round-trip memory through stores and loads", func() {
			load(
				insts.ADDI(1, 0, 0x400),
				insts.ADDI(2, 0, -2),
				insts.SH(2, 1, 0),
				insts.LHU(3, 1, 0),
				insts.LB(4, 1, 1),
				insts.ADD(10, 3, 4),
				insts.HaltWord,
			)

			code, err := e.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(0xFFFE)))
			Expect(e.RegFile().ReadReg(4)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(code).To(Equal(uint8(0xFD)))
		})

		It("should notify the commit handler for every instruction", func() {
			var records []emu.CommitRecord
			e = emu.NewEmulator(emu.WithCommitHandler(func(r emu.CommitRecord) {
				records = append(records, r)
			}))
			load(insts.ADDI(1, 0, 1), insts.ADDI(2, 0, 2), insts.HaltWord)

			_, err := e.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(records[2].Word).To(Equal(insts.HaltWord))
			Expect(records[0].DiffRegs(records[1])).To(Equal([]uint8{2}))
		})
	})
})
