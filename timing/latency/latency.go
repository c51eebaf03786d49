// Package latency provides functional-unit classification and latencies for
// the out-of-order core.
//
// Every operation is served by exactly one functional-unit class. UnitOf is
// the only place that mapping is defined; issue, reservation-station
// insertion and dispatch all consult it.
package latency

import (
	"github.com/sarchlab/tomasim/insts"
)

// Unit identifies a functional-unit class.
type Unit uint8

// Functional-unit classes. UnitNone marks operations no unit can execute.
const (
	UnitNone Unit = iota
	UnitAdd
	UnitCompare
	UnitLogic
	UnitShift
	UnitLoadStore
)

// NumUnits is the number of executable unit classes.
const NumUnits = 5

// Index returns the zero-based index of an executable unit.
func (u Unit) Index() int {
	return int(u) - 1
}

func (u Unit) String() string {
	switch u {
	case UnitAdd:
		return "add"
	case UnitCompare:
		return "compare"
	case UnitLogic:
		return "logic"
	case UnitShift:
		return "shift"
	case UnitLoadStore:
		return "load-store"
	default:
		return "none"
	}
}

var unitTable = func() [insts.NumOps]Unit {
	var t [insts.NumOps]Unit

	for _, op := range []insts.Op{insts.OpADD, insts.OpADDI, insts.OpSUB, insts.OpJALR} {
		t[op] = UnitAdd
	}
	for _, op := range []insts.Op{
		insts.OpSLT, insts.OpSLTI, insts.OpSLTU, insts.OpSLTIU,
		insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGE, insts.OpBLTU, insts.OpBGEU,
	} {
		t[op] = UnitCompare
	}
	for _, op := range []insts.Op{
		insts.OpAND, insts.OpANDI, insts.OpOR, insts.OpORI, insts.OpXOR, insts.OpXORI,
	} {
		t[op] = UnitLogic
	}
	for _, op := range []insts.Op{
		insts.OpSLL, insts.OpSLLI, insts.OpSRL, insts.OpSRLI, insts.OpSRA, insts.OpSRAI,
	} {
		t[op] = UnitShift
	}
	for _, op := range []insts.Op{
		insts.OpLB, insts.OpLH, insts.OpLW, insts.OpLBU, insts.OpLHU,
		insts.OpSB, insts.OpSH, insts.OpSW,
	} {
		t[op] = UnitLoadStore
	}

	return t
}()

// UnitOf returns the functional-unit class that executes op. LUI, AUIPC and
// JAL are rewritten to ADDI before issue and so have no unit of their own.
func UnitOf(op insts.Op) Unit {
	if op >= insts.NumOps {
		return UnitNone
	}
	return unitTable[op]
}

// Table provides latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with the default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// UnitLatency returns the latency of an arithmetic unit class. The
// load-store class has separate load and store latencies; see LoadLatency
// and StoreLatency.
func (t *Table) UnitLatency(u Unit) uint64 {
	switch u {
	case UnitAdd:
		return t.config.AddLatency
	case UnitCompare:
		return t.config.CompareLatency
	case UnitLogic:
		return t.config.LogicLatency
	case UnitShift:
		return t.config.ShiftLatency
	default:
		return 1
	}
}

// LoadLatency returns the load unit latency.
func (t *Table) LoadLatency() uint64 {
	return t.config.LoadLatency
}

// StoreLatency returns the store unit latency.
func (t *Table) StoreLatency() uint64 {
	return t.config.StoreLatency
}

// GetLatency returns the execution latency in cycles for the given instruction.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Class {
	case insts.ClassLoad:
		return t.config.LoadLatency
	case insts.ClassStore:
		return t.config.StoreLatency
	}

	return t.UnitLatency(UnitOf(inst.Op))
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	return inst != nil && UnitOf(inst.Op) == UnitLoadStore
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
