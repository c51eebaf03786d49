package pipeline

import (
	"log/slog"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

// CommitFunc is called once per retired instruction with the architectural
// register values right after it retired.
type CommitFunc func(inst insts.Instruction, regs [emu.NumRegs]uint32)

// SquashFunc is called when a mispredicted branch retires, with the
// branch and the corrected pc.
type SquashFunc func(branch insts.Instruction, target uint32)

// ReorderBuffer keeps in-flight instructions in program order and retires
// the head once its result is known.
type ReorderBuffer struct {
	entries   *Ring[ROBEntry]
	predictor Predictor
	stats     *Statistics
	logger    *slog.Logger

	onCommit CommitFunc
	onSquash SquashFunc
}

// NewReorderBuffer creates a reorder buffer with size entries.
func NewReorderBuffer(
	size int,
	predictor Predictor,
	stats *Statistics,
	logger *slog.Logger,
	onCommit CommitFunc,
	onSquash SquashFunc,
) *ReorderBuffer {
	return &ReorderBuffer{
		entries:   NewRing[ROBEntry](size),
		predictor: predictor,
		stats:     stats,
		logger:    logger,
		onCommit:  onCommit,
		onSquash:  onSquash,
	}
}

// Entries returns the underlying ring.
func (r *ReorderBuffer) Entries() *Ring[ROBEntry] {
	return r.entries
}

func (r *ReorderBuffer) reset() {
	r.entries.Clear()
}

func (r *ReorderBuffer) flush(cur *State) error {
	if cur.Clear {
		r.reset()
	}

	if cur.ROBIn.Valid {
		e := cur.ROBIn.Value
		i, err := r.entries.Push(e)
		if err != nil {
			return newFault(StructuralOverflow, "reorder buffer", &e.Inst, "%v", err)
		}
		if i != e.Tag {
			return newFault(ProtocolViolation, "reorder buffer", &e.Inst,
				"entry landed at %d, renamed as %d", i, e.Tag)
		}
	}

	for _, m := range cur.Bus.Messages() {
		if err := r.observe(cur, m); err != nil {
			return err
		}
	}

	cur.ROBFull = r.entries.Full()
	cur.ROBEmpty = r.entries.Empty()
	cur.ROBTail = r.entries.Tail()

	return nil
}

func (r *ReorderBuffer) observe(cur *State, m Message) error {
	switch m.Kind {
	case MsgWriteBack:
		if !r.entries.Busy(m.Tag) {
			return newFault(ProtocolViolation, "reorder buffer", nil,
				"write-back to free entry %d", m.Tag)
		}
		e := r.entries.At(m.Tag)
		e.State = ROBWrite
		e.Value = m.Value

	case MsgGetAddr:
		if r.entries.Busy(m.Tag) {
			if e := r.entries.At(m.Tag); e.State == ROBIssue {
				e.State = ROBExec
			}
		}

	case MsgStoreSuccess:
		if r.entries.Empty() {
			return newFault(ProtocolViolation, "reorder buffer", nil,
				"store completion %d with empty buffer", m.Tag)
		}
		head := r.entries.Front()
		if r.entries.Head() != m.Tag || head.State != ROBWaitSt ||
			head.Inst.Class != insts.ClassStore {
			return newFault(ProtocolViolation, "reorder buffer", &head.Inst,
				"store completion %d does not match head %d in state %s",
				m.Tag, r.entries.Head(), head.State)
		}
		e, _ := r.entries.Pop()
		r.stats.Stores++
		r.retire(e.Inst, cur.RegValues())
	}

	return nil
}

func (r *ReorderBuffer) retire(inst insts.Instruction, regs [emu.NumRegs]uint32) {
	if r.onCommit != nil {
		r.onCommit(inst, regs)
	}
}

func (r *ReorderBuffer) execute(cur, next *State) error {
	r.answerQueries(cur, next)

	if r.entries.Empty() {
		return nil
	}

	head := r.entries.Front()
	if head.State != ROBWrite && head.State != ROBWaitSt {
		return nil
	}

	return r.commit(next, head)
}

// answerQueries reports operands that were already written back when the
// reading instruction issued.
func (r *ReorderBuffer) answerQueries(cur, next *State) {
	for i, id := range cur.QueryID {
		if id == NoProducer || !r.entries.Busy(id) {
			continue
		}
		if e := r.entries.At(id); e.State == ROBWrite {
			next.QueryResult[i].Set(QueryResult{Tag: id, Value: e.Value})
		}
	}
}

func (r *ReorderBuffer) commit(next *State, head *ROBEntry) error {
	idx := r.entries.Head()
	inst := head.Inst

	switch {
	case inst.IsHalt():
		next.Halt = true
		r.pop(next)

	case inst.Op == insts.OpJALR:
		link := inst.PC + 4
		r.writeReg(next, head.Dest, idx, link)
		next.PC = head.Value
		next.Wait = false
		if err := next.Bus.Send(Message{Kind: MsgCommitReg, Tag: idx, Value: link}); err != nil {
			return err
		}
		r.pop(next)

	case inst.Class == insts.ClassBranch:
		r.resolveBranch(next, head)
		r.pop(next)

	case inst.Class == insts.ClassArithImm, inst.Class == insts.ClassArithReg,
		inst.Class == insts.ClassLoad:
		r.writeReg(next, head.Dest, idx, head.Value)
		if err := next.Bus.Send(Message{Kind: MsgCommitReg, Tag: idx, Value: head.Value}); err != nil {
			return err
		}
		if inst.Class == insts.ClassLoad {
			r.stats.Loads++
		}
		r.pop(next)

	case inst.Class == insts.ClassStore:
		if head.State == ROBWrite {
			head.State = ROBWaitSt
			return next.Bus.Send(Message{Kind: MsgCommitMem, Tag: idx, Value: head.Value})
		}

	default:
		return newFault(ProtocolViolation, "reorder buffer", &inst,
			"no commit rule for %s", inst.Op)
	}

	return nil
}

// writeReg updates the architectural register and drops its rename if this
// entry is still the youngest producer.
func (r *ReorderBuffer) writeReg(next *State, rd uint8, idx int, v uint32) {
	if rd == insts.NoReg || rd == insts.RegZero || rd >= emu.NumRegs {
		return
	}

	next.Regs[rd].Value = v
	if next.Regs[rd].Producer == idx {
		next.Regs[rd].Producer = NoProducer
	}
}

func (r *ReorderBuffer) resolveBranch(next *State, head *ROBEntry) {
	inst := head.Inst
	taken := head.Value != 0

	r.predictor.Feedback(inst.PC, taken)
	r.stats.Branches++

	if taken == head.PredictedTaken {
		return
	}

	target := emu.BranchTarget(inst.PC, inst.Imm, taken)
	next.Clear = true
	next.PC = target
	r.stats.Mispredictions++
	r.stats.Squashes++

	r.logger.Debug("branch mispredicted",
		"pc", inst.PC, "taken", taken, "target", target, "cycle", next.Clock)

	if r.onSquash != nil {
		r.onSquash(inst, target)
	}
}

func (r *ReorderBuffer) pop(next *State) {
	e, _ := r.entries.Pop()
	r.retire(e.Inst, next.RegValues())
}
