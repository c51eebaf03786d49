package pipeline

import (
	"errors"
	"fmt"

	"github.com/sarchlab/tomasim/insts"
)

// Sentinel errors for the fault kinds, matched with errors.Is.
var (
	ErrStructuralOverflow      = errors.New("structural overflow")
	ErrUnclassifiableOperation = errors.New("unclassifiable operation")
	ErrProtocolViolation       = errors.New("protocol violation")

	// ErrCycleLimit is returned by Run when the cycle limit is reached
	// before the program halts.
	ErrCycleLimit = errors.New("cycle limit reached")

	// ErrFailed is returned when ticking a pipeline that has already faulted.
	ErrFailed = errors.New("pipeline has faulted")
)

// FaultKind classifies an internal invariant violation.
type FaultKind uint8

// Fault kinds.
const (
	// StructuralOverflow is an insert into a full fixed-capacity structure.
	StructuralOverflow FaultKind = iota
	// UnclassifiableOperation is an operation no functional unit executes.
	UnclassifiableOperation
	// ProtocolViolation is a message or state no correct control path produces.
	ProtocolViolation
)

func (k FaultKind) sentinel() error {
	switch k {
	case StructuralOverflow:
		return ErrStructuralOverflow
	case UnclassifiableOperation:
		return ErrUnclassifiableOperation
	default:
		return ErrProtocolViolation
	}
}

func (k FaultKind) String() string {
	return k.sentinel().Error()
}

// Fault is a fatal core error with its diagnostic context.
type Fault struct {
	Kind      FaultKind
	Component string
	Cycle     uint64

	// Inst is the offending instruction, if any.
	Inst *insts.Instruction

	Detail string
}

func newFault(
	kind FaultKind,
	component string,
	inst *insts.Instruction,
	format string,
	args ...any,
) *Fault {
	f := &Fault{
		Kind:      kind,
		Component: component,
		Detail:    fmt.Sprintf(format, args...),
	}

	if inst != nil {
		c := *inst
		f.Inst = &c
	}

	return f
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("%s in %s at cycle %d: %s",
		f.Kind, f.Component, f.Cycle, f.Detail)
	if f.Inst != nil {
		msg += fmt.Sprintf(" (pc=0x%08x %s)", f.Inst.PC, f.Inst)
	}
	return msg
}

// Unwrap returns the sentinel for the fault kind.
func (f *Fault) Unwrap() error {
	return f.Kind.sentinel()
}
