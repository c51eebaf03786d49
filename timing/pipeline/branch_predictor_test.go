package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/timing/pipeline"
)

var _ = Describe("BranchPredictor", func() {
	var bp *pipeline.BranchPredictor

	BeforeEach(func() {
		bp = pipeline.NewBranchPredictor(pipeline.BranchPredictorConfig{BHTSize: 16})
	})

	It("should initially predict taken", func() {
		Expect(bp.Predict(0x1000)).To(BeTrue())
	})

	It("should learn a not-taken branch", func() {
		for i := 0; i < 3; i++ {
			bp.Feedback(0x1000, false)
		}
		Expect(bp.Predict(0x1000)).To(BeFalse())
	})

	It("should require two mispredictions to flip a saturated counter", func() {
		pc := uint32(0x40)
		bp.Feedback(pc, true)
		bp.Feedback(pc, true)

		bp.Feedback(pc, false)
		Expect(bp.Predict(pc)).To(BeTrue())

		bp.Feedback(pc, false)
		Expect(bp.Predict(pc)).To(BeFalse())
	})

	It("should alias pcs that share index bits", func() {
		bp.Feedback(0x0, false)
		bp.Feedback(0x0, false)

		Expect(bp.Predict(16 * 4)).To(BeFalse())
		Expect(bp.Predict(4)).To(BeTrue())
	})

	It("should count correct and wrong guesses", func() {
		bp.Predict(0x10)
		bp.Feedback(0x10, true)
		bp.Feedback(0x10, false)
		bp.Feedback(0x10, false)
		bp.Feedback(0x10, false)

		stats := bp.Stats()
		Expect(stats.Predictions).To(Equal(uint64(1)))
		Expect(stats.Correct).To(Equal(uint64(2)))
		Expect(stats.Mispredictions).To(Equal(uint64(2)))
		Expect(stats.Accuracy()).To(BeNumerically("~", 50.0))
		Expect(stats.MispredictionRate()).To(BeNumerically("~", 50.0))
	})

	It("should forget history on Reset", func() {
		bp.Feedback(0x10, false)
		bp.Feedback(0x10, false)
		bp.Reset()

		Expect(bp.Predict(0x10)).To(BeTrue())
		Expect(bp.Stats().Predictions).To(Equal(uint64(1)))
	})
})

var _ = Describe("NewPredictor", func() {
	DescribeTable("should build predictors by name",
		func(name string, firstGuess bool) {
			p, err := pipeline.NewPredictor(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Predict(0x100)).To(Equal(firstGuess))
		},
		Entry("default", "", true),
		Entry("bimodal", "bimodal", true),
		Entry("taken", "taken", true),
		Entry("not-taken", "not-taken", false),
	)

	It("should reject an unknown name", func() {
		_, err := pipeline.NewPredictor("oracle")
		Expect(err).To(MatchError(ContainSubstring("oracle")))
	})
})
