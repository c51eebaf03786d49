package core

import (
	"github.com/sarchlab/akita/v4/sim"
)

// Component drives a Core as an akita ticking component, one pipeline cycle
// per engine tick.
type Component struct {
	*sim.TickingComponent

	core *Core
	err  error
}

// NewComponent creates a component ticking c at freq on engine.
func NewComponent(name string, engine sim.Engine, freq sim.Freq, c *Core) *Component {
	comp := &Component{core: c}
	comp.TickingComponent = sim.NewTickingComponent(name, engine, freq, comp)
	return comp
}

// Tick advances the core. It reports no progress once the core has halted
// or faulted so the engine can drain.
func (c *Component) Tick() bool {
	if c.err != nil || c.core.Halted() {
		return false
	}

	if err := c.core.Tick(); err != nil {
		c.err = err
		return false
	}

	return !c.core.Halted()
}

// Err returns the fault that stopped the core, if any.
func (c *Component) Err() error {
	return c.err
}

// Core returns the driven core.
func (c *Component) Core() *Core {
	return c.core
}

// Simulate runs c to completion on a serial akita engine at 1 GHz and
// returns the exit code and the simulated time in seconds.
func Simulate(c *Core) (uint8, sim.VTimeInSec, error) {
	engine := sim.NewSerialEngine()
	comp := NewComponent("Core", engine, 1*sim.GHz, c)

	comp.TickLater()

	if err := engine.Run(); err != nil {
		return 0, engine.CurrentTime(), err
	}
	if comp.Err() != nil {
		return 0, engine.CurrentTime(), comp.Err()
	}

	return c.ExitCode(), engine.CurrentTime(), nil
}
