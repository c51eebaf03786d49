package monitoring_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/google/pprof/profile"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/monitoring"
	"github.com/sarchlab/tomasim/timing/core"
)

type nowRsp struct {
	Cycle  uint64 `json:"cycle"`
	PC     uint32 `json:"pc"`
	Halted bool   `json:"halted"`
	Exit   uint8  `json:"exit_code"`
}

var _ = Describe("Monitor", func() {
	var (
		c       *core.Core
		handler http.Handler
	)

	request := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	now := func(rec *httptest.ResponseRecorder) nowRsp {
		Expect(rec.Code).To(Equal(http.StatusOK))
		var rsp nowRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		return rsp
	}

	BeforeEach(func() {
		memory := emu.NewMemory()
		memory.LoadProgram(0x1000, insts.BuildProgram(
			insts.ADDI(5, 0, 3),
			insts.ADDI(10, 5, 4),
			insts.Halt(),
		).Bytes())

		var err error
		c, err = core.NewCore(memory)
		Expect(err).NotTo(HaveOccurred())
		c.SetPC(0x1000)

		handler = monitoring.NewMonitor(c).Handler()
	})

	It("should report the initial position", func() {
		rsp := now(request(http.MethodGet, "/api/now"))
		Expect(rsp.Cycle).To(BeZero())
		Expect(rsp.PC).To(Equal(uint32(0x1000)))
		Expect(rsp.Halted).To(BeFalse())
	})

	It("should advance by the requested cycles", func() {
		rsp := now(request(http.MethodPost, "/api/tick/5"))
		Expect(rsp.Cycle).To(Equal(uint64(5)))
		Expect(c.Pipeline.Stats().Cycles).To(Equal(uint64(5)))
	})

	It("should reject a malformed cycle count", func() {
		Expect(request(http.MethodPost, "/api/tick/five").Code).To(Equal(http.StatusNotFound))
	})

	It("should only advance on POST", func() {
		Expect(request(http.MethodGet, "/api/tick/5").Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("should run to the halt", func() {
		rsp := now(request(http.MethodPost, "/api/run"))
		Expect(rsp.Halted).To(BeTrue())
		Expect(rsp.Exit).To(Equal(uint8(7)))

		rec := request(http.MethodGet, "/api/stats")
		Expect(rec.Code).To(Equal(http.StatusOK))
		var stats struct{ Instructions uint64 }
		Expect(json.Unmarshal(rec.Body.Bytes(), &stats)).To(Succeed())
		Expect(stats.Instructions).To(Equal(uint64(3)))
	})

	It("should restart from the entry point on reset", func() {
		now(request(http.MethodPost, "/api/run"))

		rsp := now(request(http.MethodPost, "/api/reset"))
		Expect(rsp.Cycle).To(BeZero())
		Expect(rsp.PC).To(Equal(uint32(0x1000)))
		Expect(rsp.Halted).To(BeFalse())

		Expect(now(request(http.MethodPost, "/api/run")).Exit).To(Equal(uint8(7)))
	})

	It("should dump the pipeline", func() {
		request(http.MethodPost, "/api/tick/2")

		rec := request(http.MethodGet, "/api/dump")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("cycle 2"))
	})

	It("should serialize the pipeline state", func() {
		rec := request(http.MethodGet, "/api/state?depth=2")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Valid(rec.Body.Bytes())).To(BeTrue())
	})

	It("should serialize every level of a busy pipeline", func() {
		request(http.MethodPost, "/api/tick/4")

		rec := request(http.MethodGet, "/api/state?depth=8")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Valid(rec.Body.Bytes())).To(BeTrue())
		Expect(rec.Body.String()).To(ContainSubstring(`"Regs"`))
		Expect(rec.Body.String()).To(ContainSubstring(`"ROB"`))
		Expect(rec.Body.String()).To(ContainSubstring(`"RSFull"`))
	})

	It("should reject a bad depth", func() {
		Expect(request(http.MethodGet, "/api/state?depth=0").Code).To(Equal(http.StatusBadRequest))
	})

	It("should report host resources", func() {
		rec := request(http.MethodGet, "/api/resource")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("memory_size"))
	})
})

var _ = Describe("TopFunctions", func() {
	It("should rank leaf functions by flat samples", func() {
		hot := &profile.Function{ID: 1, Name: "hot"}
		warm := &profile.Function{ID: 2, Name: "warm"}
		hotLoc := &profile.Location{ID: 1, Line: []profile.Line{{Function: hot}}}
		warmLoc := &profile.Location{ID: 2, Line: []profile.Line{{Function: warm}}}

		prof := &profile.Profile{
			Sample: []*profile.Sample{
				{Location: []*profile.Location{hotLoc, warmLoc}, Value: []int64{5}},
				{Location: []*profile.Location{warmLoc}, Value: []int64{2}},
				{Location: []*profile.Location{hotLoc}, Value: []int64{1}},
				{Location: nil, Value: []int64{9}},
			},
		}

		top := monitoring.TopFunctions(prof, 1)
		Expect(top).To(Equal([]monitoring.FunctionSamples{{Name: "hot", Samples: 6}}))
		Expect(monitoring.TopFunctions(prof, 5)).To(HaveLen(2))
	})
})
