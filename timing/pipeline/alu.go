package pipeline

import (
	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/timing/latency"
)

// ArithmeticStage is a single-issue fixed-latency functional unit. Stage k
// serves the reservation bank of the unit class with Index k.
type ArithmeticStage struct {
	unit    latency.Unit
	latency uint64

	// counter is 0 when idle, otherwise the cycle of the current operation.
	counter uint64
	input   FUInput
}

// NewArithmeticStage creates a stage for a unit class.
func NewArithmeticStage(unit latency.Unit, lat uint64) *ArithmeticStage {
	return &ArithmeticStage{unit: unit, latency: lat}
}

// Busy reports whether the stage is counting and cannot accept an input.
func (a *ArithmeticStage) Busy() bool {
	return a.counter > 0 && a.counter < a.latency
}

func (a *ArithmeticStage) reset() {
	a.counter = 0
	a.input = FUInput{}
}

func (a *ArithmeticStage) flush(cur *State) error {
	if cur.Clear {
		a.reset()
	}

	k := a.unit.Index()
	if in := cur.FUIn[k]; in.Valid {
		if a.counter != 0 {
			return newFault(ProtocolViolation, a.unit.String()+" stage", nil,
				"dispatch to busy stage (tag %d)", in.Value.Dest)
		}
		a.input = in.Value
		a.counter = 1
	}

	cur.ALUBusy[k] = a.Busy()

	return nil
}

func (a *ArithmeticStage) execute(_, next *State) error {
	switch {
	case a.counter == 0:
		return nil
	case a.counter < a.latency:
		a.counter++
		return nil
	}

	a.counter = 0

	return next.Bus.Send(Message{
		Kind:  MsgWriteBack,
		Tag:   a.input.Dest,
		Value: emu.Compute(a.input.Op, a.input.A, a.input.B),
	})
}
