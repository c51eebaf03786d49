// Package pipeline implements a Tomasulo-style out-of-order RV32I core.
//
// The core advances in two phases per cycle. Flush latches what the previous
// cycle produced (bus broadcasts and issued entries) into each unit's private
// storage and recomputes the full flags that issue consults. Execute then
// computes, from the flushed state only, the next State and the messages the
// next Flush will see. Two State buffers alternate as current and next.
package pipeline

import (
	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/latency"
)

// NoProducer marks a register or operand with no pending producer.
const NoProducer = -1

// NumALUs is the number of arithmetic stages: add, compare, logic and shift.
const NumALUs = 4

// Latch holds a value handed from one Execute to the next Flush.
type Latch[T any] struct {
	Valid bool
	Value T
}

// Set stores v and marks the latch valid.
func (l *Latch[T]) Set(v T) {
	l.Valid = true
	l.Value = v
}

// Clear empties the latch.
func (l *Latch[T]) Clear() {
	var zero T
	l.Valid = false
	l.Value = zero
}

// RegEntry is an architectural register together with the reorder-buffer
// index of the youngest in-flight instruction that will write it.
type RegEntry struct {
	Value    uint32
	Producer int
}

// Operand is a reservation-station source: a resolved value when Tag is
// NoProducer, otherwise the reorder-buffer index that will supply it.
type Operand struct {
	Value uint32
	Tag   int
}

// Ready reports whether the operand value is known.
func (o Operand) Ready() bool {
	return o.Tag == NoProducer
}

func readyOperand(v uint32) Operand {
	return Operand{Value: v, Tag: NoProducer}
}

// QueuedInst is a fetched instruction waiting in the instruction queue.
type QueuedInst struct {
	Inst insts.Instruction

	// PredictedTaken is the fetch-time guess for conditional branches.
	PredictedTaken bool
}

// RSEntry is an issued instruction waiting in a reservation station.
type RSEntry struct {
	Inst insts.Instruction
	Dest int // reorder-buffer index
	J, K Operand

	// Imm is the store offset or branch displacement.
	Imm uint32
}

// Ready reports whether both operands are resolved.
func (e *RSEntry) Ready() bool {
	return e.J.Ready() && e.K.Ready()
}

// FUInput is an operation dispatched to an arithmetic stage.
type FUInput struct {
	Op   insts.Op
	A, B uint32
	Dest int
}

// ROBState is the commit state of a reorder-buffer entry.
type ROBState uint8

// Reorder-buffer entry states.
const (
	ROBIssue  ROBState = iota // waiting for operands or execution
	ROBExec                   // memory address computed
	ROBWrite                  // result available
	ROBWaitSt                 // store released to memory, waiting for completion
)

func (s ROBState) String() string {
	switch s {
	case ROBIssue:
		return "Issue"
	case ROBExec:
		return "Exec"
	case ROBWrite:
		return "Write"
	case ROBWaitSt:
		return "WaitSt"
	default:
		return "?"
	}
}

// ROBEntry is an in-flight instruction in program order.
type ROBEntry struct {
	Inst  insts.Instruction
	State ROBState

	// Tag is the index the entry was renamed as at issue.
	Tag int

	// Dest is the destination register, insts.NoReg if none.
	Dest uint8

	// Value is the result, the store data, the branch outcome (0 or 1) or the
	// indirect jump target.
	Value uint32

	PredictedTaken bool
}

// LSBEntry is a load or store in the load/store buffer.
type LSBEntry struct {
	Op    insts.Op
	Class insts.Class
	Dest  int // reorder-buffer index

	Addr      uint32
	AddrReady bool

	// Timestamp is the cycle the entry was inserted.
	Timestamp uint64
}

// QueryResult answers a reservation-station lookup of a reorder-buffer entry
// that has already written its result.
type QueryResult struct {
	Tag   int
	Value uint32
}

// State is the snapshot of every pipeline register for one cycle.
type State struct {
	PC    uint32
	Clock uint64

	// Wait stalls fetch until an indirect jump or halt retires.
	Wait bool

	// Clear requests a full squash on the next Flush.
	Clear bool

	// Halt is raised when the halt sentinel commits.
	Halt bool

	Regs [emu.NumRegs]RegEntry

	// Bus carries messages from this Execute to the next Flush.
	Bus *Bus

	// Latches written during Execute and consumed by the next Flush.
	Fetched     Latch[QueuedInst]
	RSIn        Latch[RSEntry]
	ROBIn       Latch[ROBEntry]
	LSBIn       Latch[LSBEntry]
	FUIn        [NumALUs]Latch[FUInput]
	QueryID     [2]int
	QueryResult [2]Latch[QueryResult]

	// Flags recomputed during Flush and read by issue.
	InstQueueFull  bool
	ROBFull        bool
	ROBEmpty       bool
	ROBTail        int
	RSFull         [latency.NumUnits]bool
	LoadQueueFull  bool
	StoreQueueFull bool
	ALUBusy        [NumALUs]bool
}

func newState(busCapacity int) *State {
	s := &State{Bus: NewBus(busCapacity)}
	s.resetLatches()
	for i := range s.Regs {
		s.Regs[i].Producer = NoProducer
	}
	return s
}

// resetLatches empties every Execute-to-Flush latch.
func (s *State) resetLatches() {
	s.Fetched.Clear()
	s.RSIn.Clear()
	s.ROBIn.Clear()
	s.LSBIn.Clear()
	for i := range s.FUIn {
		s.FUIn[i].Clear()
	}
	for i := range s.QueryID {
		s.QueryID[i] = NoProducer
		s.QueryResult[i].Clear()
	}
}

// squash applies a misprediction clear: the bus is emptied, fetch resumes,
// latches are dropped and every producer tag is forgotten.
func (s *State) squash() {
	s.Bus.Clear()
	s.Wait = false
	s.resetLatches()
	for i := range s.Regs {
		s.Regs[i].Producer = NoProducer
	}
}

// advance prepares s as the successor of cur. Architectural registers,
// the pc and the fetch stall carry over; everything else starts empty.
func (s *State) advance(cur *State) {
	s.PC = cur.PC
	s.Clock = cur.Clock + 1
	s.Wait = cur.Wait
	s.Clear = false
	s.Halt = false
	s.Regs = cur.Regs
	s.Bus.Clear()
	s.resetLatches()
}

// RegValues returns the architectural register values.
func (s *State) RegValues() [emu.NumRegs]uint32 {
	var out [emu.NumRegs]uint32
	for i, r := range s.Regs {
		out[i] = r.Value
	}
	return out
}
