// Package emu provides functional RV32I emulation.
package emu

import (
	"fmt"
	"io"
)

// NumRegs is the number of architectural integer registers.
const NumRegs = 32

// RegFile represents the RV32I register file and program counter.
type RegFile struct {
	// X holds registers x0-x31. X[0] is never written and always reads 0.
	X [NumRegs]uint32

	// PC is the program counter.
	PC uint32
}

// ReadReg reads a register value. Register 0 and out-of-range indices (e.g.,
// the insts.NoReg sentinel) return 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= NumRegs {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to x0 and out-of-range
// indices are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= NumRegs {
		return
	}
	r.X[reg] = value
}

// Snapshot returns a copy of the integer registers.
func (r *RegFile) Snapshot() [NumRegs]uint32 {
	return r.X
}

// ABINames are the calling-convention names of x0-x31.
var ABINames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// DumpRegs writes a four-column table of register values.
func DumpRegs(w io.Writer, regs [NumRegs]uint32) {
	for i := 0; i < NumRegs; i += 4 {
		for j := i; j < i+4; j++ {
			_, _ = fmt.Fprintf(w, "x%-2d %-4s %08x  ", j, ABINames[j], regs[j])
		}
		_, _ = fmt.Fprintln(w)
	}
}

// Dump writes the program counter and the register table.
func (r *RegFile) Dump(w io.Writer) {
	_, _ = fmt.Fprintf(w, "pc %08x\n", r.PC)
	DumpRegs(w, r.X)
}
