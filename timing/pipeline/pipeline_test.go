package pipeline_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/cache"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

const (
	zero = 0
	ra   = 1
	t0   = 5
	t1   = 6
	t2   = 7
	s0   = 8
	a0   = 10
	a1   = 11
	a2   = 12
	a3   = 13
	a4   = 14
	a5   = 15
	a6   = 16
	a7   = 17
)

func newMemory(prog insts.Program) *emu.Memory {
	mem := emu.NewMemory()
	mem.LoadProgram(0, prog.Bytes())
	return mem
}

func newPipeline(prog insts.Program, opts ...pipeline.PipelineOption) *pipeline.Pipeline {
	p, err := pipeline.NewPipeline(newMemory(prog), opts...)
	Expect(err).NotTo(HaveOccurred())
	return p
}

func referenceTrace(prog insts.Program) ([]emu.CommitRecord, uint8) {
	var trace []emu.CommitRecord
	ref := emu.NewEmulator(
		emu.WithMaxInstructions(100000),
		emu.WithCommitHandler(func(r emu.CommitRecord) { trace = append(trace, r) }),
	)
	ref.LoadProgram(0, prog.Bytes())

	code, err := ref.Run()
	Expect(err).NotTo(HaveOccurred())

	return trace, code
}

// crossCheck runs prog on the core and on the reference emulator and
// expects identical commit traces and exit codes.
func crossCheck(prog insts.Program, opts ...pipeline.PipelineOption) *pipeline.Pipeline {
	want, wantCode := referenceTrace(prog)

	var got []emu.CommitRecord
	opts = append(opts,
		pipeline.WithMaxCycles(1000000),
		pipeline.WithCommitHandler(func(r emu.CommitRecord) { got = append(got, r) }),
	)
	p := newPipeline(prog, opts...)

	code, err := p.Run()
	Expect(err).NotTo(HaveOccurred())
	Expect(got).To(HaveLen(len(want)))
	for i := range want {
		Expect(got[i]).To(Equal(want[i]), "commit %d: got %s, want %s", i, got[i], want[i])
	}
	Expect(code).To(Equal(wantCode))

	return p
}

type hookCounter struct {
	commits []emu.CommitRecord
	squash  []uint32
}

func (h *hookCounter) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case pipeline.HookPosCommit:
		h.commits = append(h.commits, ctx.Item.(emu.CommitRecord))
	case pipeline.HookPosSquash:
		h.squash = append(h.squash, ctx.Detail.(uint32))
	}
}

var sumLoop = insts.BuildProgram(
	insts.ADDI(t0, zero, 10),
	insts.ADDI(a0, zero, 0),
	insts.ADD(a0, a0, t0),
	insts.ADDI(t0, t0, -1),
	insts.BNE(t0, zero, -8),
	insts.Halt(),
)

var aliasing = insts.BuildProgram(
	insts.ADDI(t0, zero, 0x100),
	insts.ADDI(t1, zero, 7),
	insts.SW(t1, t0, 0),
	insts.LW(a0, t0, 0),
	insts.ADDI(t1, zero, 9),
	insts.LW(a1, t0, 0),
	insts.SW(t1, t0, 0),
	insts.LW(a2, t0, 0),
	insts.ADD(a0, a0, a1),
	insts.ADD(a0, a0, a2),
	insts.Halt(),
)

var callReturn = insts.BuildProgram(
	insts.ADDI(a0, zero, 3),
	insts.JAL(ra, 12),
	insts.ADDI(a0, a0, 100),
	insts.Halt(),
	insts.SLLI(a0, a0, 2),
	insts.JALR(zero, ra, 0),
)

var mixed = insts.BuildProgram(
	insts.LUI(t0, 0x12345),
	insts.AUIPC(t1, 1),
	insts.ADDI(t2, zero, -1),
	insts.ADDI(s0, zero, 0x200),
	insts.SB(t2, s0, 0),
	insts.LB(a1, s0, 0),
	insts.LBU(a2, s0, 0),
	insts.SH(t2, s0, 2),
	insts.LHU(a3, s0, 2),
	insts.SRAI(a4, t2, 4),
	insts.SRLI(a5, t2, 28),
	insts.SLTU(a6, t0, t2),
	insts.XOR(a7, t0, t1),
	insts.SLT(t0, t2, zero),
	insts.OR(t1, t1, a5),
	insts.AND(t1, t1, a7),
	insts.SUB(a7, a7, t0),
	insts.ADD(a0, a2, a5),
	insts.Halt(),
)

var _ = Describe("Pipeline", func() {
	It("should commit one instruction and halt with its result", func() {
		h := &hookCounter{}
		p := newPipeline(insts.BuildProgram(insts.ADDI(a0, zero, 42), insts.Halt()))
		p.AcceptHook(h)

		code, err := p.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(uint8(42)))
		Expect(p.Halted()).To(BeTrue())
		Expect(h.commits).To(HaveLen(2))
		Expect(h.commits[0].PC).To(Equal(uint32(0)))
		Expect(h.commits[0].Regs[a0]).To(Equal(uint32(42)))
		Expect(h.commits[1].Word).To(Equal(insts.HaltWord))
		Expect(p.Stats().Instructions).To(Equal(uint64(2)))
		Expect(p.Stats().CPI()).To(BeNumerically(">", 1))
	})

	It("should take the exit code from the low byte of a0", func() {
		p := newPipeline(insts.BuildProgram(insts.ADDI(a0, zero, -2), insts.Halt()))

		code, err := p.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(uint8(0xfe)))
	})

	It("should retire a dependent chain in program order", func() {
		h := &hookCounter{}
		p := newPipeline(insts.BuildProgram(
			insts.ADDI(t0, zero, 1),
			insts.ADDI(t1, t0, 2),
			insts.ADDI(a0, t1, 3),
			insts.Halt(),
		))
		p.AcceptHook(h)

		code, err := p.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(uint8(6)))
		Expect(h.commits).To(HaveLen(4))
		for i, c := range h.commits {
			Expect(c.PC).To(Equal(uint32(4 * i)))
		}
		Expect(h.commits[1].Regs[t1]).To(Equal(uint32(3)))
		Expect(p.Stats().Instructions).To(Equal(uint64(4)))
	})

	It("should not tick after halting", func() {
		p := newPipeline(insts.BuildProgram(insts.Halt()))
		_, err := p.Run()
		Expect(err).NotTo(HaveOccurred())

		cycles := p.Stats().Cycles
		Expect(p.Tick()).To(Succeed())
		Expect(p.Stats().Cycles).To(Equal(cycles))
	})

	DescribeTable("should match the reference emulator",
		func(prog insts.Program, opts ...pipeline.PipelineOption) {
			crossCheck(prog, opts...)
		},
		Entry("loop, bimodal", sumLoop),
		Entry("loop, always taken", sumLoop, pipeline.WithPredictor(pipeline.NewAlwaysTaken())),
		Entry("loop, never taken", sumLoop, pipeline.WithPredictor(pipeline.NewNeverTaken())),
		Entry("aliasing loads and stores", aliasing),
		Entry("call and return", callReturn),
		Entry("mixed operations", mixed),
		Entry("mixed operations, slow units", mixed,
			pipeline.WithLatencyTable(latency.NewTableWithConfig(&latency.TimingConfig{
				AddLatency: 3, CompareLatency: 2, LogicLatency: 4, ShiftLatency: 2,
				LoadLatency: 5, StoreLatency: 1,
			}))),
	)

	It("should keep loads ordered against stores", func() {
		p := crossCheck(aliasing)

		Expect(p.ExitCode()).To(Equal(uint8(23)))
		Expect(p.Memory().Read32(0x100)).To(Equal(uint32(9)))
		Expect(p.Stats().Loads).To(Equal(uint64(3)))
		Expect(p.Stats().Stores).To(Equal(uint64(2)))
	})

	It("should time memory accesses with a data cache", func() {
		plain := crossCheck(aliasing)

		dcache, err := cache.New(cache.Config{
			Size: 1024, Associativity: 2, BlockSize: 32, HitLatency: 1, MissLatency: 20,
		})
		Expect(err).NotTo(HaveOccurred())

		p := crossCheck(aliasing, pipeline.WithDataCache(dcache))

		Expect(p.Memory().Read32(0x100)).To(Equal(uint32(9)))
		Expect(dcache.Stats().Reads).To(Equal(uint64(3)))
		Expect(dcache.Stats().Writes).To(Equal(uint64(2)))
		Expect(dcache.Stats().Misses).To(Equal(uint64(1)))
		Expect(p.Stats().Cycles).To(BeNumerically(">", plain.Stats().Cycles))

		p.Reset()
		Expect(dcache.Stats()).To(Equal(cache.Statistics{}))
	})

	It("should return through JALR", func() {
		p := crossCheck(callReturn)

		Expect(p.ExitCode()).To(Equal(uint8(112)))
		Expect(p.RegValues()[ra]).To(Equal(uint32(8)))
	})

	Context("with a forced prediction", func() {
		var (
			mockCtrl  *gomock.Controller
			predictor *MockPredictor
			prog      insts.Program
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			predictor = NewMockPredictor(mockCtrl)
			prog = insts.BuildProgram(
				insts.ADDI(t0, zero, 1),
				insts.BNE(t0, zero, 8),
				insts.ADDI(t1, zero, 99),
				insts.ADDI(a0, t1, 5),
				insts.Halt(),
			)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should squash the wrong path on a misprediction", func() {
			predictor.EXPECT().Predict(uint32(4)).Return(false)
			predictor.EXPECT().Feedback(uint32(4), true)

			h := &hookCounter{}
			p := newPipeline(prog, pipeline.WithPredictor(predictor))
			p.AcceptHook(h)

			code, err := p.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(uint8(5)))
			Expect(p.RegValues()[t1]).To(Equal(uint32(0)))
			Expect(h.squash).To(Equal([]uint32{12}))
			for _, c := range h.commits {
				Expect(c.PC).NotTo(Equal(uint32(8)))
			}
			Expect(p.Stats().Squashes).To(Equal(uint64(1)))
			Expect(p.Stats().Mispredictions).To(Equal(uint64(1)))
			Expect(p.Stats().Branches).To(Equal(uint64(1)))
		})

		It("should not squash when the guess is right", func() {
			predictor.EXPECT().Predict(uint32(4)).Return(true)
			predictor.EXPECT().Feedback(uint32(4), true)

			p := newPipeline(prog, pipeline.WithPredictor(predictor))

			code, err := p.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(uint8(5)))
			Expect(p.Stats().Squashes).To(BeZero())
		})
	})

	It("should keep at most one register per producer tag", func() {
		prog := insts.BuildProgram(
			insts.ADDI(t0, zero, 1),
			insts.ADDI(t0, zero, 2),
			insts.ADDI(t0, t0, 3),
			insts.ADD(t1, t0, t0),
			insts.ADDI(t0, t1, 1),
			insts.ADDI(zero, t0, 1),
			insts.ADD(a0, t0, t1),
			insts.Halt(),
		)
		p := newPipeline(prog)

		for !p.Halted() {
			Expect(p.Tick()).To(Succeed())

			seen := map[int]bool{}
			for i, r := range p.State().Regs {
				if r.Producer == pipeline.NoProducer {
					continue
				}
				Expect(i).NotTo(BeZero())
				Expect(seen[r.Producer]).To(BeFalse())
				seen[r.Producer] = true
			}
		}

		Expect(p.ExitCode()).To(Equal(uint8(21)))
		for _, r := range p.State().Regs {
			Expect(r.Producer).To(Equal(pipeline.NoProducer))
		}
	})

	It("should hold an unknown word until nothing older can squash it", func() {
		prog := insts.BuildProgram(
			insts.BEQ(zero, zero, 8),
			0xFFFFFFFF,
			insts.ADDI(a0, zero, 3),
			insts.Halt(),
		)
		p := newPipeline(prog, pipeline.WithPredictor(pipeline.NewNeverTaken()))

		code, err := p.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(uint8(3)))
		Expect(p.Stats().IssueStall(pipeline.StallSpeculativeUnknown)).To(BeNumerically(">", 0))
		Expect(p.Stats().Squashes).To(Equal(uint64(1)))
	})

	It("should fault on an unknown word on the committed path", func() {
		p := newPipeline(insts.BuildProgram(0xFFFFFFFF, insts.Halt()))

		_, err := p.Run()

		Expect(errors.Is(err, pipeline.ErrUnclassifiableOperation)).To(BeTrue())

		var f *pipeline.Fault
		Expect(errors.As(err, &f)).To(BeTrue())
		Expect(f.Component).To(Equal("issue"))
		Expect(f.Cycle).To(Equal(uint64(1)))
		Expect(f.Inst).NotTo(BeNil())
		Expect(f.Inst.PC).To(Equal(uint32(0)))
		Expect(p.Err()).To(MatchError(err))

		Expect(errors.Is(p.Tick(), pipeline.ErrFailed)).To(BeTrue())
	})

	It("should give up at the cycle limit", func() {
		p := newPipeline(insts.BuildProgram(insts.JAL(zero, 0)),
			pipeline.WithMaxCycles(50))

		_, err := p.Run()

		Expect(errors.Is(err, pipeline.ErrCycleLimit)).To(BeTrue())
		Expect(p.Stats().Cycles).To(Equal(uint64(50)))
	})

	It("should reject an invalid core config", func() {
		cfg := pipeline.DefaultCoreConfig()
		cfg.BusCapacity = 3

		_, err := pipeline.NewPipeline(emu.NewMemory(), pipeline.WithCoreConfig(cfg))

		Expect(err).To(MatchError(ContainSubstring("bus_capacity")))
	})

	It("should stall issue on a small reorder buffer", func() {
		cfg := pipeline.DefaultCoreConfig()
		cfg.ROBSize = 2
		cfg.InstQueueSize = 2

		p := crossCheck(sumLoop, pipeline.WithCoreConfig(cfg))

		Expect(p.Stats().IssueStall(pipeline.StallROBFull)).To(BeNumerically(">", 0))
		Expect(p.Stats().FetchStalls).To(BeNumerically(">", 0))
	})

	It("should run again after Reset", func() {
		p := newPipeline(sumLoop)
		first, err := p.Run()
		Expect(err).NotTo(HaveOccurred())
		cycles := p.Stats().Cycles

		p.Reset()
		Expect(p.Halted()).To(BeFalse())
		Expect(p.Stats().Cycles).To(BeZero())

		second, err := p.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
		Expect(p.Stats().Cycles).To(Equal(cycles))
	})

	It("should honour a non-zero entry point", func() {
		prog := insts.BuildProgram(insts.ADDI(a0, zero, 9), insts.Halt())
		mem := emu.NewMemory()
		mem.LoadProgram(0x400, prog.Bytes())

		p, err := pipeline.NewPipeline(mem)
		Expect(err).NotTo(HaveOccurred())
		p.SetPC(0x400)

		code, err := p.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(uint8(9)))
		Expect(p.LastCommit().PC).To(Equal(uint32(0x404)))
	})

	It("should dump registers, reorder buffer and bus", func() {
		p := newPipeline(sumLoop)
		_, err := p.RunCycles(6)
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		p.Dump(&buf)

		Expect(buf.String()).To(ContainSubstring("cycle 6"))
		Expect(buf.String()).To(ContainSubstring("a0"))
		Expect(buf.String()).To(ContainSubstring("rob "))
		Expect(buf.String()).To(ContainSubstring("bus "))
	})
})
