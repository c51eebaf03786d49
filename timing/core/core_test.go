package core_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

const (
	t0 = 5
	t1 = 6
	a0 = 10
)

// countdown leaves a0 = 6 after a five-iteration loop with a store and a
// load per iteration.
var countdown = insts.BuildProgram(
	insts.ADDI(t0, 0, 5),
	insts.ADDI(a0, 0, 1),
	insts.SW(a0, 0, 0x300),
	insts.LW(t1, 0, 0x300),
	insts.ADDI(a0, t1, 1),
	insts.ADDI(t0, t0, -1),
	insts.BNE(t0, 0, -16),
	insts.Halt(),
)

func memoryWith(addr uint32, prog insts.Program) *emu.Memory {
	mem := emu.NewMemory()
	mem.LoadProgram(addr, prog.Bytes())
	return mem
}

var _ = Describe("Core", func() {
	var (
		memory *emu.Memory
		c      *core.Core
	)

	BeforeEach(func() {
		var err error
		memory = memoryWith(0x1000, countdown)
		c, err = core.NewCore(memory)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create a core with pipeline", func() {
		Expect(c).NotTo(BeNil())
		Expect(c.Pipeline).NotTo(BeNil())
		Expect(c.Memory()).To(BeIdenticalTo(memory))
	})

	It("should set and get PC", func() {
		c.SetPC(0x1000)
		Expect(c.Pipeline.PC()).To(Equal(uint32(0x1000)))
	})

	It("should not be halted initially", func() {
		Expect(c.Halted()).To(BeFalse())
	})

	It("should execute instructions through tick", func() {
		c.SetPC(0x1000)

		for !c.Halted() {
			Expect(c.Tick()).To(Succeed())
		}

		Expect(c.ExitCode()).To(Equal(uint8(6)))
		Expect(memory.Read32(0x300)).To(Equal(uint32(5)))
	})

	It("should return stats", func() {
		c.SetPC(0x1000)
		_, err := c.Run()
		Expect(err).NotTo(HaveOccurred())

		stats := c.Stats()
		Expect(stats.Instructions).To(Equal(uint64(2 + 5*5 + 1)))
		Expect(stats.Cycles).To(BeNumerically(">", stats.Instructions))
	})

	It("should stop early with RunCycles", func() {
		c.SetPC(0x1000)

		running, err := c.RunCycles(3)

		Expect(err).NotTo(HaveOccurred())
		Expect(running).To(BeTrue())
		Expect(c.Stats().Cycles).To(Equal(uint64(3)))
	})

	It("should reset", func() {
		c.SetPC(0x1000)
		_, err := c.RunCycles(10)
		Expect(err).NotTo(HaveOccurred())

		c.Reset()

		Expect(c.Stats().Cycles).To(BeZero())
		Expect(c.Pipeline.PC()).To(Equal(uint32(0)))
	})

	It("should reject a bad configuration", func() {
		cfg := pipeline.DefaultCoreConfig()
		cfg.ROBSize = 0

		_, err := core.NewCore(emu.NewMemory(), pipeline.WithCoreConfig(cfg))

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Component", func() {
	It("should run the core on an akita engine", func() {
		c, err := core.NewCore(memoryWith(0, countdown))
		Expect(err).NotTo(HaveOccurred())

		code, now, err := core.Simulate(c)

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(uint8(6)))
		Expect(c.Halted()).To(BeTrue())
		Expect(float64(now)).To(BeNumerically(">", 0))
	})

	It("should surface a core fault", func() {
		c, err := core.NewCore(memoryWith(0, insts.BuildProgram(0xFFFFFFFF)))
		Expect(err).NotTo(HaveOccurred())

		_, _, err = core.Simulate(c)

		Expect(err).To(MatchError(pipeline.ErrUnclassifiableOperation))
	})
})

var _ = Describe("CrossCheck", func() {
	It("should find no divergence on a correct run", func() {
		res, err := core.CrossCheck(memoryWith(0x80, countdown), 0x80, 10000)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Match()).To(BeTrue())
		Expect(res.Commits).To(Equal(2 + 5*5 + 1))
		Expect(res.ExitCode).To(Equal(uint8(6)))
		Expect(res.ReferenceCode).To(Equal(uint8(6)))
		Expect(res.Stats.Instructions).To(Equal(uint64(res.Commits)))
	})

	It("should match under every predictor", func() {
		for _, name := range []string{"bimodal", "taken", "not-taken"} {
			pred, err := pipeline.NewPredictor(name)
			Expect(err).NotTo(HaveOccurred())

			res, err := core.CrossCheck(memoryWith(0, countdown), 0, 10000,
				pipeline.WithPredictor(pred))

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Match()).To(BeTrue(), name)
		}
	})

	It("should leave the input memory untouched", func() {
		mem := memoryWith(0, countdown)

		_, err := core.CrossCheck(mem, 0, 10000)

		Expect(err).NotTo(HaveOccurred())
		Expect(mem.Read32(0x300)).To(BeZero())
	})

	It("should report a reference failure", func() {
		_, err := core.CrossCheck(memoryWith(0, insts.BuildProgram(0xFFFFFFFF)), 0, 100)
		Expect(err).To(MatchError(emu.ErrIllegalInstruction))
	})

	It("should describe differing registers", func() {
		want := emu.CommitRecord{PC: 8, Word: insts.ADDI(a0, 0, 1)}
		got := want
		want.Regs[a0] = 1
		got.Regs[a0] = 2

		d := &core.Divergence{Index: 3, Want: want, Got: got}

		var buf bytes.Buffer
		d.Report(&buf)

		Expect(d.Regs()).To(Equal([]uint8{a0}))
		Expect(buf.String()).To(ContainSubstring("commit 3"))
		Expect(buf.String()).To(ContainSubstring("a0"))
	})

	It("should describe a missing commit", func() {
		d := &core.Divergence{Index: 1, GotMissing: true}

		var buf bytes.Buffer
		d.Report(&buf)

		Expect(d.Regs()).To(BeNil())
		Expect(buf.String()).To(ContainSubstring("core halted"))
	})
})
