package pipeline

import (
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/latency"
)

// ReservationStation holds one slot bank per functional-unit class. Entries
// wait for their operands and are dispatched in slot order, lowest ready
// slot first.
type ReservationStation struct {
	banks [latency.NumUnits]*SlotTable[RSEntry]
}

// NewReservationStation creates the banks with size slots each.
func NewReservationStation(size int) *ReservationStation {
	rs := &ReservationStation{}
	for i := range rs.banks {
		rs.banks[i] = NewSlotTable[RSEntry](size)
	}
	return rs
}

// Bank returns the slot bank of a unit class.
func (rs *ReservationStation) Bank(u latency.Unit) *SlotTable[RSEntry] {
	return rs.banks[u.Index()]
}

func (rs *ReservationStation) reset() {
	for _, b := range rs.banks {
		b.Clear()
	}
}

func (rs *ReservationStation) flush(cur *State) error {
	if cur.Clear {
		rs.reset()
	}

	if cur.RSIn.Valid {
		e := cur.RSIn.Value
		u := latency.UnitOf(e.Inst.Op)
		if u == latency.UnitNone {
			return newFault(UnclassifiableOperation, "reservation station", &e.Inst,
				"no bank for %s", e.Inst.Op)
		}
		if _, err := rs.Bank(u).Insert(e); err != nil {
			return newFault(StructuralOverflow, "reservation station", &e.Inst,
				"%s bank: %v", u, err)
		}
	}

	for _, m := range cur.Bus.Messages() {
		if m.Kind == MsgWriteBack || m.Kind == MsgCommitReg {
			rs.wakeup(m.Tag, m.Value)
		}
	}
	for _, q := range cur.QueryResult {
		if q.Valid {
			rs.wakeup(q.Value.Tag, q.Value.Value)
		}
	}

	for i, b := range rs.banks {
		cur.RSFull[i] = b.Full()
	}

	return nil
}

// wakeup resolves every operand waiting on tag.
func (rs *ReservationStation) wakeup(tag int, value uint32) {
	for _, b := range rs.banks {
		b.Each(func(_ int, e *RSEntry) {
			if e.J.Tag == tag {
				e.J = readyOperand(value)
			}
			if e.K.Tag == tag {
				e.K = readyOperand(value)
			}
		})
	}
}

func ready(e *RSEntry) bool { return e.Ready() }

// execute dispatches the first ready entry of each arithmetic bank whose
// stage is free, and at most one load or store address computation.
func (rs *ReservationStation) execute(cur, next *State) error {
	for k := 0; k < NumALUs; k++ {
		if cur.ALUBusy[k] {
			continue
		}

		bank := rs.banks[k]
		i := bank.First(ready)
		if i < 0 {
			continue
		}

		e := bank.Get(i)
		next.FUIn[k].Set(FUInput{Op: e.Inst.Op, A: e.J.Value, B: e.K.Value, Dest: e.Dest})
		bank.Remove(i)
	}

	return rs.dispatchMemory(next)
}

func (rs *ReservationStation) dispatchMemory(next *State) error {
	bank := rs.Bank(latency.UnitLoadStore)
	i := bank.First(ready)
	if i < 0 {
		return nil
	}

	e := *bank.Get(i)
	bank.Remove(i)

	if e.Inst.Class == insts.ClassLoad {
		return next.Bus.Send(Message{Kind: MsgGetAddr, Tag: e.Dest, Value: e.J.Value + e.K.Value})
	}

	if err := next.Bus.Send(Message{Kind: MsgGetAddr, Tag: e.Dest, Value: e.J.Value + e.Imm}); err != nil {
		return err
	}

	return next.Bus.Send(Message{Kind: MsgWriteBack, Tag: e.Dest, Value: e.K.Value})
}
