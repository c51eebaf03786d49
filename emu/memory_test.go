package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
)

var _ = Describe("Memory", func() {
	var mem *emu.Memory

	BeforeEach(func() {
		mem = emu.NewMemory()
	})

	It("should default to 1 MiB", func() {
		Expect(mem.Size()).To(Equal(uint32(1 << 20)))
	})

	It("should reject sizes that are not a power of two", func() {
		_, err := emu.NewMemoryWithSize(3000)
		Expect(err).To(HaveOccurred())

		_, err = emu.NewMemoryWithSize(0)
		Expect(err).To(HaveOccurred())
	})

	It("should store words little-endian", func() {
		mem.Write32(0x100, 0xDEADBEEF)

		Expect(mem.Read8(0x100)).To(Equal(uint8(0xEF)))
		Expect(mem.Read8(0x103)).To(Equal(uint8(0xDE)))
		Expect(mem.Read16(0x102)).To(Equal(uint16(0xDEAD)))
	})

	It("should support unaligned accesses", func() {
		mem.Write32(0x201, 0x11223344)

		Expect(mem.Read32(0x201)).To(Equal(uint32(0x11223344)))
		Expect(mem.Read16(0x203)).To(Equal(uint16(0x1122)))
	})

	It("should wrap addresses beyond the end", func() {
		mem.Write32(0xFFFFE, 0xAABBCCDD)

		Expect(mem.Read8(0xFFFFF)).To(Equal(uint8(0xCC)))
		Expect(mem.Read8(0x0)).To(Equal(uint8(0xBB)))
		Expect(mem.Read32(0xFFFFE)).To(Equal(uint32(0xAABBCCDD)))
		Expect(mem.Read32(0x100FFFFE)).To(Equal(uint32(0xAABBCCDD)))
	})

	It("should clone independently", func() {
		mem.Write8(4, 7)
		c := mem.Clone()
		c.Write8(4, 9)

		Expect(mem.Read8(4)).To(Equal(uint8(7)))
		Expect(c.Read8(4)).To(Equal(uint8(9)))
	})

	It("should load programs at an address", func() {
		mem.LoadProgram(0x40, []byte{1, 2, 3})
		Expect(mem.Read8(0x42)).To(Equal(uint8(3)))
	})
})

var _ = Describe("RegFile", func() {
	It("should hardwire x0 to zero", func() {
		rf := &emu.RegFile{}
		rf.WriteReg(0, 99)
		rf.WriteReg(5, 42)

		Expect(rf.ReadReg(0)).To(Equal(uint32(0)))
		Expect(rf.ReadReg(5)).To(Equal(uint32(42)))
		Expect(rf.ReadReg(0xFF)).To(Equal(uint32(0)))
	})
})
