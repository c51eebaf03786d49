// Package core provides the cycle-accurate CPU core model.
// It wraps the out-of-order pipeline to provide a high-level interface, an
// akita ticking component, and a commit-by-commit check against the
// sequential reference emulator.
package core

import (
	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// IssueStalls is the number of cycles issue did not proceed with a
	// non-empty instruction queue.
	IssueStalls uint64
	// Squashes is the number of misprediction clears.
	Squashes uint64
}

// Core represents a cycle-accurate CPU core model.
type Core struct {
	// Pipeline is the underlying out-of-order pipeline.
	Pipeline *pipeline.Pipeline

	memory *emu.Memory
}

// NewCore creates a new Core executing out of memory.
func NewCore(memory *emu.Memory, opts ...pipeline.PipelineOption) (*Core, error) {
	p, err := pipeline.NewPipeline(memory, opts...)
	if err != nil {
		return nil, err
	}

	return &Core{
		Pipeline: p,
		memory:   memory,
	}, nil
}

// Memory returns the core's memory.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() error {
	return c.Pipeline.Tick()
}

// Halted returns true if the halt sentinel has committed.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// ExitCode returns the exit code if the core has halted.
func (c *Core) ExitCode() uint8 {
	return c.Pipeline.ExitCode()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	ps := c.Pipeline.Stats()

	var stalls uint64
	for r := pipeline.StallROBFull; r <= pipeline.StallSpeculativeUnknown; r++ {
		stalls += ps.IssueStall(r)
	}

	return Stats{
		Cycles:       ps.Cycles,
		Instructions: ps.Instructions,
		IssueStalls:  stalls,
		Squashes:     ps.Squashes,
	}
}

// Run executes the core until it halts.
// Returns the exit code.
func (c *Core) Run() (uint8, error) {
	return c.Pipeline.Run()
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) (bool, error) {
	return c.Pipeline.RunCycles(cycles)
}

// Reset clears all core state.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}
