package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/tomasim/insts"
)

var (
	// ErrIllegalInstruction is returned when a word outside the base set is
	// executed.
	ErrIllegalInstruction = errors.New("illegal instruction")

	// ErrStepLimit is returned when the configured instruction limit is
	// reached before the program halts.
	ErrStepLimit = errors.New("step limit reached")
)

// CommitRecord is the architectural state observed after one instruction
// retires.
type CommitRecord struct {
	PC   uint32
	Word uint32
	Regs [NumRegs]uint32
}

// ExitCode returns the low byte of a0.
func (c CommitRecord) ExitCode() uint8 {
	return uint8(c.Regs[insts.RegA0])
}

// DiffRegs returns the indices of registers whose values differ.
func (c CommitRecord) DiffRegs(other CommitRecord) []uint8 {
	var diff []uint8
	for i := range c.Regs {
		if c.Regs[i] != other.Regs[i] {
			diff = append(diff, uint8(i))
		}
	}
	return diff
}

// Equal reports whether two records match in pc, word and registers.
func (c CommitRecord) Equal(other CommitRecord) bool {
	return c == other
}

func (c CommitRecord) String() string {
	return fmt.Sprintf("pc=%08x word=%08x", c.PC, c.Word)
}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Record is the state after the instruction.
	Record CommitRecord

	// Halted is true if the instruction was the halt sentinel.
	Halted bool

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes RV32I instructions sequentially, one per step. It is the
// reference model the out-of-order core is checked against.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder

	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	onCommit func(CommitRecord)

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
	halted           bool
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMemory makes the emulator execute out of the given memory.
func WithMemory(m *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = m
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithCommitHandler registers a function called with every retired
// instruction's record, the halt included.
func WithCommitHandler(fn func(CommitRecord)) EmulatorOption {
	return func(e *Emulator) {
		e.onCommit = fn
	}
}

// NewEmulator creates a new RV32I emulator starting at pc 0.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		decoder: insts.NewDecoder(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = NewMemory()
	}

	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions retired.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram loads a program image into memory and sets the entry point.
func (e *Emulator) LoadProgram(entry uint32, program []byte) {
	e.memory.LoadProgram(entry, program)
	e.regFile.PC = entry
}

// Halted reports whether the halt sentinel has been reached.
func (e *Emulator) Halted() bool {
	return e.halted
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(pc uint32) {
	e.regFile.PC = pc
}

// Step executes a single instruction. The halt sentinel is retired without
// being executed, so a0 keeps the program's exit value.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{
			Err: fmt.Errorf("%w after %d instructions", ErrStepLimit, e.instructionCount),
		}
	}

	pc := e.regFile.PC
	word := e.memory.Read32(pc)

	if word == insts.HaltWord {
		e.halted = true
		return e.retire(pc, word, true)
	}

	inst := e.decoder.Decode(word)
	inst.PC = pc

	if err := e.execute(inst); err != nil {
		return StepResult{Err: err}
	}

	return e.retire(pc, word, false)
}

func (e *Emulator) retire(pc, word uint32, halted bool) StepResult {
	rec := CommitRecord{PC: pc, Word: word, Regs: e.regFile.Snapshot()}
	e.instructionCount++

	if e.onCommit != nil {
		e.onCommit(rec)
	}

	return StepResult{Record: rec, Halted: halted}
}

// Run executes instructions until the halt sentinel retires or an error
// occurs, and returns the low byte of a0.
func (e *Emulator) Run() (uint8, error) {
	for {
		result := e.Step()
		if result.Err != nil {
			return 0, result.Err
		}
		if result.Halted {
			return uint8(e.regFile.ReadReg(insts.RegA0)), nil
		}
	}
}

// execute dispatches a decoded instruction to its unit.
func (e *Emulator) execute(inst *insts.Instruction) error {
	switch inst.Class {
	case insts.ClassArithImm, insts.ClassArithReg:
		e.alu.Execute(inst)
		e.regFile.PC += 4
	case insts.ClassLoad:
		e.lsu.Load(inst)
		e.regFile.PC += 4
	case insts.ClassStore:
		e.lsu.Store(inst)
		e.regFile.PC += 4
	case insts.ClassBranch:
		e.branchUnit.Branch(inst)
	default:
		return e.executeOther(inst)
	}

	return nil
}

func (e *Emulator) executeOther(inst *insts.Instruction) error {
	switch inst.Op {
	case insts.OpLUI:
		e.regFile.WriteReg(inst.Rd, uint32(inst.Imm))
		e.regFile.PC += 4
	case insts.OpAUIPC:
		e.regFile.WriteReg(inst.Rd, inst.PC+uint32(inst.Imm))
		e.regFile.PC += 4
	case insts.OpJAL:
		e.branchUnit.JAL(inst)
	case insts.OpJALR:
		e.branchUnit.JALR(inst)
	default:
		return fmt.Errorf("%w 0x%08x at pc=0x%08x",
			ErrIllegalInstruction, inst.Word, inst.PC)
	}

	return nil
}
