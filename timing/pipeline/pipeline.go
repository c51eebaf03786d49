package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/latency"
)

// HookPosCommit is invoked for every retired instruction. The hook item is
// an emu.CommitRecord and the detail is the cycle.
var HookPosCommit = &sim.HookPos{Name: "Commit"}

// HookPosSquash is invoked when a mispredicted branch retires. The hook item
// is the branch instruction and the detail is the corrected pc.
var HookPosSquash = &sim.HookPos{Name: "Squash"}

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the number of completed Flush/Execute ticks.
	Cycles uint64
	// Instructions is the number of committed instructions, the halt included.
	Instructions uint64
	// Issued counts instructions issued, wrong path included.
	Issued uint64
	// IssueStalls counts cycles issue did not proceed, per reason.
	IssueStalls [NumStallReasons]uint64
	// FetchStalls counts cycles fetch was blocked.
	FetchStalls uint64
	// Squashes is the number of global clears.
	Squashes uint64
	// Branches is the number of committed conditional branches.
	Branches uint64
	// Mispredictions is the number of committed branches predicted wrong.
	Mispredictions uint64
	Loads          uint64
	Stores         uint64
}

// CPI returns the cycles per committed instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// IssueStall returns the stall count for one reason.
func (s Statistics) IssueStall(r StallReason) uint64 {
	return s.IssueStalls[r]
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLatencyTable sets the functional-unit latencies.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.latencyTable = table
	}
}

// WithPredictor sets the branch predictor. The default is a bimodal
// predictor.
func WithPredictor(pred Predictor) PipelineOption {
	return func(p *Pipeline) {
		p.predictor = pred
	}
}

// WithCoreConfig sets the structure sizes.
func WithCoreConfig(config CoreConfig) PipelineOption {
	return func(p *Pipeline) {
		p.config = config
	}
}

// WithLogger sets the logger for debug events. The default discards.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMaxCycles makes Run give up after the given number of cycles. Zero
// means no limit.
func WithMaxCycles(n uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = n
	}
}

// WithDataCache times loads and stores with a data cache instead of the
// fixed load and store latencies.
func WithDataCache(cache DataCache) PipelineOption {
	return func(p *Pipeline) {
		p.dataCache = cache
	}
}

// WithCommitHandler registers a function called with every commit record.
func WithCommitHandler(fn func(emu.CommitRecord)) PipelineOption {
	return func(p *Pipeline) {
		p.commitHandler = fn
	}
}

// Pipeline is the out-of-order core driver. Each Tick flushes every unit
// and then executes every unit, always in the same static order.
type Pipeline struct {
	*sim.HookableBase

	memory       *emu.Memory
	config       CoreConfig
	latencyTable *latency.Table
	predictor    Predictor
	dataCache    DataCache
	logger       *slog.Logger
	maxCycles    uint64

	commitHandler func(emu.CommitRecord)

	states [2]*State
	cur    int

	iu   *InstructionUnit
	rob  *ReorderBuffer
	alus [NumALUs]*ArithmeticStage
	rs   *ReservationStation
	lsb  *LoadStoreBuffer

	stats Statistics

	lastCommit emu.CommitRecord
	halted     bool
	exitCode   uint8
	err        error
}

// NewPipeline creates a core over memory. The core starts at pc 0.
func NewPipeline(memory *emu.Memory, opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		HookableBase: sim.NewHookableBase(),
		memory:       memory,
		config:       DefaultCoreConfig(),
		latencyTable: latency.NewTable(),
		predictor:    NewBranchPredictor(DefaultBranchPredictorConfig()),
		logger:       slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid core config: %w", err)
	}
	if err := p.latencyTable.Config().Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}

	p.build()

	return p, nil
}

func (p *Pipeline) build() {
	c := p.config

	p.states = [2]*State{newState(c.BusCapacity), newState(c.BusCapacity)}
	p.cur = 0

	p.iu = NewInstructionUnit(p.memory, p.predictor, c.InstQueueSize, &p.stats)
	p.rob = NewReorderBuffer(c.ROBSize, p.predictor, &p.stats, p.logger,
		p.onCommit, p.onSquash)
	for k := range p.alus {
		u := latency.Unit(k + 1)
		p.alus[k] = NewArithmeticStage(u, p.latencyTable.UnitLatency(u))
	}
	p.rs = NewReservationStation(c.RSSize)
	p.lsb = NewLoadStoreBuffer(p.memory, c.LoadQueueSize, c.StoreQueueSize,
		p.latencyTable.LoadLatency(), p.latencyTable.StoreLatency())
	if p.dataCache != nil {
		p.lsb.SetDataCache(p.dataCache)
	}
}

// PC returns the fetch pc.
func (p *Pipeline) PC() uint32 {
	return p.states[p.cur].PC
}

// SetPC sets the fetch pc. Call it before the first Tick.
func (p *Pipeline) SetPC(pc uint32) {
	p.states[p.cur].PC = pc
}

// Memory returns the memory the core executes from.
func (p *Pipeline) Memory() *emu.Memory {
	return p.memory
}

// Predictor returns the branch predictor.
func (p *Pipeline) Predictor() Predictor {
	return p.predictor
}

// ReorderBuffer returns the reorder buffer.
func (p *Pipeline) ReorderBuffer() *ReorderBuffer {
	return p.rob
}

// ReservationStation returns the reservation station.
func (p *Pipeline) ReservationStation() *ReservationStation {
	return p.rs
}

// LoadStoreBuffer returns the load/store buffer.
func (p *Pipeline) LoadStoreBuffer() *LoadStoreBuffer {
	return p.lsb
}

// State returns the current clocked state. It must not be modified.
func (p *Pipeline) State() *State {
	return p.states[p.cur]
}

// RegValues returns the architectural register values.
func (p *Pipeline) RegValues() [emu.NumRegs]uint32 {
	return p.states[p.cur].RegValues()
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Halted returns true if the halt sentinel has committed.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// ExitCode returns the low byte of a0 at halt.
func (p *Pipeline) ExitCode() uint8 {
	return p.exitCode
}

// Err returns the fault that stopped the pipeline, if any.
func (p *Pipeline) Err() error {
	return p.err
}

// LastCommit returns the most recent commit record.
func (p *Pipeline) LastCommit() emu.CommitRecord {
	return p.lastCommit
}

// Tick advances the core by one cycle. It is a no-op once halted.
func (p *Pipeline) Tick() error {
	if p.err != nil {
		return fmt.Errorf("%w: %w", ErrFailed, p.err)
	}
	if p.halted {
		return nil
	}

	cur := p.states[p.cur]
	next := p.states[1-p.cur]

	if err := p.flush(cur); err != nil {
		return p.fail(cur, err)
	}

	if cur.Halt {
		p.halted = true
		p.exitCode = uint8(cur.Regs[insts.RegA0].Value)
		p.logger.Debug("halt", "cycle", cur.Clock, "exit_code", p.exitCode)
		return nil
	}

	next.advance(cur)

	if err := p.execute(cur, next); err != nil {
		return p.fail(cur, err)
	}

	p.cur = 1 - p.cur
	p.stats.Cycles++

	return nil
}

func (p *Pipeline) flush(cur *State) error {
	if cur.Clear {
		cur.squash()
	}
	cur.Regs[insts.RegZero] = RegEntry{Producer: NoProducer}

	if err := p.iu.flush(cur); err != nil {
		return err
	}
	if err := p.rob.flush(cur); err != nil {
		return err
	}
	for _, a := range p.alus {
		if err := a.flush(cur); err != nil {
			return err
		}
	}
	if err := p.rs.flush(cur); err != nil {
		return err
	}
	if err := p.lsb.flush(cur); err != nil {
		return err
	}

	cur.Bus.Clear()

	return nil
}

// execute runs the units in flush order. The reorder buffer runs after the
// instruction unit so a commit redirect overrides the fetch pc.
func (p *Pipeline) execute(cur, next *State) error {
	if err := p.iu.execute(cur, next); err != nil {
		return err
	}
	if err := p.rob.execute(cur, next); err != nil {
		return err
	}
	for _, a := range p.alus {
		if err := a.execute(cur, next); err != nil {
			return err
		}
	}
	if err := p.rs.execute(cur, next); err != nil {
		return err
	}
	return p.lsb.execute(cur, next)
}

func (p *Pipeline) fail(cur *State, err error) error {
	var f *Fault
	if errors.As(err, &f) {
		f.Cycle = cur.Clock
	}

	p.err = err
	p.logger.Error("pipeline fault", "cycle", cur.Clock, "err", err)

	return err
}

func (p *Pipeline) onCommit(inst insts.Instruction, regs [emu.NumRegs]uint32) {
	rec := emu.CommitRecord{PC: inst.PC, Word: inst.Word, Regs: regs}
	cycle := p.states[p.cur].Clock

	p.stats.Instructions++
	p.lastCommit = rec

	if p.commitHandler != nil {
		p.commitHandler(rec)
	}

	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Pos:    HookPosCommit,
		Item:   rec,
		Detail: cycle,
	})
}

func (p *Pipeline) onSquash(branch insts.Instruction, target uint32) {
	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Pos:    HookPosSquash,
		Item:   branch,
		Detail: target,
	})
}

// Run ticks until the halt sentinel commits and returns the exit code.
func (p *Pipeline) Run() (uint8, error) {
	for !p.halted {
		if p.maxCycles > 0 && p.stats.Cycles >= p.maxCycles {
			return 0, fmt.Errorf("%w after %d cycles", ErrCycleLimit, p.stats.Cycles)
		}
		if err := p.Tick(); err != nil {
			return 0, err
		}
	}
	return p.exitCode, nil
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) (bool, error) {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		if err := p.Tick(); err != nil {
			return false, err
		}
	}
	return !p.halted, nil
}

// Reset clears all core state, statistics, predictor history and data-cache
// contents. Memory is left as it is.
func (p *Pipeline) Reset() {
	for _, s := range p.states {
		next := newState(p.config.BusCapacity)
		*s = *next
	}
	p.cur = 0

	p.iu.reset()
	p.rob.reset()
	for _, a := range p.alus {
		a.reset()
	}
	p.rs.reset()
	p.lsb.reset()

	p.stats = Statistics{}
	p.lastCommit = emu.CommitRecord{}
	p.halted = false
	p.exitCode = 0
	p.err = nil

	if r, ok := p.predictor.(interface{ Reset() }); ok {
		r.Reset()
	}
	if p.dataCache != nil {
		p.dataCache.Reset()
	}
}

// Dump writes the registers, the reorder buffer and the next bus contents.
func (p *Pipeline) Dump(w io.Writer) {
	s := p.states[p.cur]

	fmt.Fprintf(w, "cycle %d pc %08x wait=%t\n", s.Clock, s.PC, s.Wait)

	for i, r := range s.Regs {
		tag := "-"
		if r.Producer != NoProducer {
			tag = fmt.Sprintf("#%d", r.Producer)
		}
		fmt.Fprintf(w, "%-4s %08x %-4s", emu.ABINames[i], r.Value, tag)
		if i%4 == 3 {
			fmt.Fprintln(w)
		} else {
			fmt.Fprint(w, "  ")
		}
	}

	fmt.Fprintf(w, "rob %d/%d\n", p.rob.entries.Len(), p.rob.entries.Cap())
	p.rob.entries.Each(func(i int, e *ROBEntry) {
		fmt.Fprintf(w, "  #%-2d %-6s %08x %-24s value=%08x\n",
			i, e.State, e.Inst.PC, e.Inst.String(), e.Value)
	})

	fmt.Fprintf(w, "bus %d/%d\n", s.Bus.Len(), s.Bus.Capacity())
	for _, m := range s.Bus.Messages() {
		fmt.Fprintf(w, "  %-12s #%-2d %08x\n", m.Kind, m.Tag, m.Value)
	}
}
