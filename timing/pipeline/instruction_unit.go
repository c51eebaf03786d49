package pipeline

import (
	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/latency"
)

// StallReason is why issue did not proceed in a cycle.
type StallReason uint8

// Issue stall reasons.
const (
	StallQueueEmpty StallReason = iota
	StallROBFull
	StallRSFull
	StallLoadQueueFull
	StallStoreQueueFull
	StallSpeculativeUnknown

	// NumStallReasons is the number of stall reasons.
	NumStallReasons
)

func (r StallReason) String() string {
	switch r {
	case StallQueueEmpty:
		return "queue empty"
	case StallROBFull:
		return "rob full"
	case StallRSFull:
		return "rs full"
	case StallLoadQueueFull:
		return "load queue full"
	case StallStoreQueueFull:
		return "store queue full"
	case StallSpeculativeUnknown:
		return "unknown instruction"
	default:
		return "?"
	}
}

// InstructionUnit fetches one word per cycle into the instruction queue and
// issues the queue head in program order, renaming its destination.
type InstructionUnit struct {
	memory    *emu.Memory
	decoder   *insts.Decoder
	predictor Predictor
	stats     *Statistics

	queue *Ring[QueuedInst]

	// ir is the word at the current pc, read during Flush.
	ir uint32
}

// NewInstructionUnit creates an instruction unit with a queue of the given
// depth.
func NewInstructionUnit(
	memory *emu.Memory,
	predictor Predictor,
	queueSize int,
	stats *Statistics,
) *InstructionUnit {
	return &InstructionUnit{
		memory:    memory,
		decoder:   insts.NewDecoder(),
		predictor: predictor,
		stats:     stats,
		queue:     NewRing[QueuedInst](queueSize),
	}
}

// QueueLen returns the number of queued instructions.
func (u *InstructionUnit) QueueLen() int {
	return u.queue.Len()
}

func (u *InstructionUnit) reset() {
	u.queue.Clear()
	u.ir = 0
}

func (u *InstructionUnit) flush(cur *State) error {
	if cur.Clear {
		u.queue.Clear()
	}

	if cur.Fetched.Valid {
		if _, err := u.queue.Push(cur.Fetched.Value); err != nil {
			inst := cur.Fetched.Value.Inst
			return newFault(StructuralOverflow, "instruction queue", &inst, "%v", err)
		}
	}

	cur.InstQueueFull = u.queue.Full()
	u.ir = u.memory.Read32(cur.PC)

	return nil
}

func (u *InstructionUnit) execute(cur, next *State) error {
	u.fetch(cur, next)
	return u.issue(cur, next)
}

// fetch decodes the word read at Flush and steers the next pc. LUI, AUIPC
// and JAL become ADDI from x0 so they flow through the add unit.
func (u *InstructionUnit) fetch(cur, next *State) {
	if cur.Wait || cur.InstQueueFull {
		u.stats.FetchStalls++
		return
	}

	pc := cur.PC
	q := QueuedInst{Inst: *u.decoder.Decode(u.ir)}
	inst := &q.Inst
	inst.PC = pc
	next.PC = pc + 4

	switch {
	case inst.IsHalt():
		next.Wait = true
	case inst.Op == insts.OpLUI:
		toAddImm(inst, inst.Imm)
	case inst.Op == insts.OpAUIPC:
		toAddImm(inst, int32(pc+uint32(inst.Imm)))
	case inst.Op == insts.OpJAL:
		next.PC = pc + uint32(inst.Imm)
		toAddImm(inst, int32(pc+4))
	case inst.Op == insts.OpJALR:
		next.Wait = true
	case inst.Class == insts.ClassBranch:
		q.PredictedTaken = u.predictor.Predict(pc)
		next.PC = emu.BranchTarget(pc, inst.Imm, q.PredictedTaken)
	}

	next.Fetched.Set(q)
}

func toAddImm(inst *insts.Instruction, imm int32) {
	inst.Op = insts.OpADDI
	inst.Class = insts.ClassArithImm
	inst.Format = insts.FormatI
	inst.Rs1 = insts.RegZero
	inst.Imm = imm
}

func (u *InstructionUnit) stall(r StallReason) error {
	u.stats.IssueStalls[r]++
	return nil
}

// issue moves the queue head into the reorder buffer and, except for the
// halt sentinel, into a reservation station and the load/store buffer.
func (u *InstructionUnit) issue(cur, next *State) error {
	if u.queue.Empty() {
		return u.stall(StallQueueEmpty)
	}

	head := u.queue.Front()
	inst := head.Inst
	halt := inst.IsHalt()
	unit := latency.UnitOf(inst.Op)

	if cur.ROBFull {
		return u.stall(StallROBFull)
	}

	if !halt {
		if unit == latency.UnitNone {
			// Only fatal once nothing older can squash it.
			if cur.ROBEmpty {
				return newFault(UnclassifiableOperation, "issue", &inst,
					"no functional unit for %s", inst.Op)
			}
			return u.stall(StallSpeculativeUnknown)
		}

		if cur.RSFull[unit.Index()] {
			return u.stall(StallRSFull)
		}
		if inst.Class == insts.ClassLoad && cur.LoadQueueFull {
			return u.stall(StallLoadQueueFull)
		}
		if inst.Class == insts.ClassStore && cur.StoreQueueFull {
			return u.stall(StallStoreQueueFull)
		}
	}

	q, _ := u.queue.Pop()
	tag := cur.ROBTail

	rob := ROBEntry{
		Inst:           inst,
		State:          ROBIssue,
		Tag:            tag,
		Dest:           inst.Rd,
		PredictedTaken: q.PredictedTaken,
	}

	if halt {
		rob.State = ROBWrite
		rob.Dest = insts.NoReg
		next.ROBIn.Set(rob)
		u.stats.Issued++
		return nil
	}

	rs := RSEntry{Inst: inst, Dest: tag}
	imm := uint32(inst.Imm)

	switch inst.Class {
	case insts.ClassLoad, insts.ClassArithImm:
		rs.J = readOperand(cur, inst.Rs1)
		rs.K = readyOperand(imm)
	case insts.ClassStore, insts.ClassBranch:
		rs.J = readOperand(cur, inst.Rs1)
		rs.K = readOperand(cur, inst.Rs2)
		rs.Imm = imm
	case insts.ClassArithReg:
		rs.J = readOperand(cur, inst.Rs1)
		rs.K = readOperand(cur, inst.Rs2)
	default: // JALR
		rs.J = readOperand(cur, inst.Rs1)
		rs.K = readyOperand(imm)
	}

	if inst.HasDest() {
		next.Regs[inst.Rd].Producer = tag
	}

	next.QueryID = [2]int{rs.J.Tag, rs.K.Tag}
	next.RSIn.Set(rs)
	next.ROBIn.Set(rob)

	if inst.Class == insts.ClassLoad || inst.Class == insts.ClassStore {
		next.LSBIn.Set(LSBEntry{Op: inst.Op, Class: inst.Class, Dest: tag})
	}

	u.stats.Issued++

	return nil
}

// readOperand reads a source register from the flushed state: its value
// when no producer is pending, otherwise the producer's tag.
func readOperand(cur *State, reg uint8) Operand {
	if reg == insts.RegZero || reg >= emu.NumRegs {
		return readyOperand(0)
	}

	r := cur.Regs[reg]
	if r.Producer != NoProducer {
		return Operand{Tag: r.Producer}
	}

	return readyOperand(r.Value)
}
