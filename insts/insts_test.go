package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/insts"
)

var _ = Describe("Insts Package", func() {
	It("should have an Instruction type", func() {
		var i insts.Instruction
		Expect(i).To(BeZero())
	})

	It("should have a Decoder type", func() {
		decoder := insts.NewDecoder()
		Expect(decoder).ToNot(BeNil())
	})

	It("should name operations by mnemonic", func() {
		Expect(insts.OpSRAI.String()).To(Equal("SRAI"))
		Expect(insts.OpUnknown.String()).To(Equal("UNKNOWN"))
		Expect(insts.Op(200).String()).To(Equal("Op(200)"))
	})

	It("should encode the halt sentinel as ADDI a0, zero, 255", func() {
		Expect(insts.ADDI(insts.RegA0, insts.RegZero, 255)).To(Equal(insts.HaltWord))
		Expect(insts.Halt()).To(Equal(uint32(0x0ff00513)))
	})

	It("should lay programs out little-endian", func() {
		p := insts.BuildProgram(0x11223344, insts.HaltWord)
		Expect(p.Bytes()).To(Equal([]byte{
			0x44, 0x33, 0x22, 0x11,
			0x13, 0x05, 0xf0, 0x0f,
		}))
	})
})
