package monitoring

import (
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// robSlot is a reorder-buffer entry together with its index.
type robSlot struct {
	Index int
	Entry pipeline.ROBEntry
}

// stateView mirrors pipeline.State with slices in place of fixed arrays,
// which goseth cannot walk. It also lists the live reorder-buffer entries.
type stateView struct {
	PC    uint32
	Clock uint64
	Wait  bool
	Clear bool
	Halt  bool

	Regs []pipeline.RegEntry
	Bus  []pipeline.Message

	Fetched     pipeline.Latch[pipeline.QueuedInst]
	RSIn        pipeline.Latch[pipeline.RSEntry]
	ROBIn       pipeline.Latch[pipeline.ROBEntry]
	LSBIn       pipeline.Latch[pipeline.LSBEntry]
	FUIn        []pipeline.Latch[pipeline.FUInput]
	QueryID     []int
	QueryResult []pipeline.Latch[pipeline.QueryResult]

	InstQueueFull  bool
	ROBFull        bool
	ROBEmpty       bool
	ROBTail        int
	RSFull         []bool
	LoadQueueFull  bool
	StoreQueueFull bool
	ALUBusy        []bool

	ROB []robSlot
}

func newStateView(p *pipeline.Pipeline) *stateView {
	s := p.State()

	v := &stateView{
		PC:    s.PC,
		Clock: s.Clock,
		Wait:  s.Wait,
		Clear: s.Clear,
		Halt:  s.Halt,

		Regs: append([]pipeline.RegEntry(nil), s.Regs[:]...),
		Bus:  append([]pipeline.Message(nil), s.Bus.Messages()...),

		Fetched:     s.Fetched,
		RSIn:        s.RSIn,
		ROBIn:       s.ROBIn,
		LSBIn:       s.LSBIn,
		FUIn:        append([]pipeline.Latch[pipeline.FUInput](nil), s.FUIn[:]...),
		QueryID:     append([]int(nil), s.QueryID[:]...),
		QueryResult: append([]pipeline.Latch[pipeline.QueryResult](nil), s.QueryResult[:]...),

		InstQueueFull:  s.InstQueueFull,
		ROBFull:        s.ROBFull,
		ROBEmpty:       s.ROBEmpty,
		ROBTail:        s.ROBTail,
		RSFull:         append([]bool(nil), s.RSFull[:]...),
		LoadQueueFull:  s.LoadQueueFull,
		StoreQueueFull: s.StoreQueueFull,
		ALUBusy:        append([]bool(nil), s.ALUBusy[:]...),
	}

	p.ReorderBuffer().Entries().Each(func(i int, e *pipeline.ROBEntry) {
		v.ROB = append(v.ROB, robSlot{Index: i, Entry: *e})
	})

	return v
}
