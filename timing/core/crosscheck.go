package core

import (
	"fmt"
	"io"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// Divergence is the first commit at which the core and the reference
// emulator disagree.
type Divergence struct {
	// Index is the zero-based commit number.
	Index int

	// Want is the reference record, Got the core's. A zero record with
	// Missing set means that side ran out of commits.
	Want, Got emu.CommitRecord

	WantMissing bool
	GotMissing  bool
}

// Regs returns the registers that differ between the two records.
func (d *Divergence) Regs() []uint8 {
	if d.WantMissing || d.GotMissing {
		return nil
	}
	return d.Want.DiffRegs(d.Got)
}

// Report writes a human readable description of the divergence.
func (d *Divergence) Report(w io.Writer) {
	fmt.Fprintf(w, "traces diverge at commit %d\n", d.Index)

	switch {
	case d.WantMissing:
		fmt.Fprintf(w, "  reference halted, core committed %s\n", d.Got)
		return
	case d.GotMissing:
		fmt.Fprintf(w, "  core halted, reference committed %s\n", d.Want)
		return
	}

	fmt.Fprintf(w, "  reference %s\n  core      %s\n", d.Want, d.Got)
	for _, r := range d.Regs() {
		fmt.Fprintf(w, "  %-4s reference %08x core %08x\n",
			emu.ABINames[r], d.Want.Regs[r], d.Got.Regs[r])
	}
}

// CheckResult is the outcome of CrossCheck.
type CheckResult struct {
	Commits        int
	ExitCode       uint8
	ReferenceCode  uint8
	Stats          pipeline.Statistics
	FirstDivergent *Divergence
}

// Match reports whether both traces and exit codes agree.
func (r *CheckResult) Match() bool {
	return r.FirstDivergent == nil && r.ExitCode == r.ReferenceCode
}

// CrossCheck runs the reference emulator and the core on separate copies of
// mem, both starting at entry, and compares their commit traces record by
// record. maxSteps bounds the reference run, zero meaning no bound; the core
// gets a proportional cycle budget unless the options set their own.
func CrossCheck(
	mem *emu.Memory,
	entry uint32,
	maxSteps uint64,
	opts ...pipeline.PipelineOption,
) (*CheckResult, error) {
	var want []emu.CommitRecord
	ref := emu.NewEmulator(
		emu.WithMemory(mem.Clone()),
		emu.WithMaxInstructions(maxSteps),
		emu.WithCommitHandler(func(r emu.CommitRecord) { want = append(want, r) }),
	)
	ref.SetPC(entry)

	refCode, err := ref.Run()
	if err != nil {
		return nil, fmt.Errorf("reference run failed: %w", err)
	}

	result := &CheckResult{ReferenceCode: refCode}

	n := 0
	compare := func(got emu.CommitRecord) {
		defer func() { n++ }()
		if result.FirstDivergent != nil {
			return
		}
		if n >= len(want) {
			result.FirstDivergent = &Divergence{Index: n, Got: got, WantMissing: true}
			return
		}
		if !want[n].Equal(got) {
			result.FirstDivergent = &Divergence{Index: n, Want: want[n], Got: got}
		}
	}

	if maxSteps > 0 {
		opts = append([]pipeline.PipelineOption{
			pipeline.WithMaxCycles(64 * (maxSteps + 16)),
		}, opts...)
	}
	opts = append(opts, pipeline.WithCommitHandler(compare))

	c, err := NewCore(mem.Clone(), opts...)
	if err != nil {
		return nil, err
	}
	c.SetPC(entry)

	code, err := c.Run()
	if err != nil {
		return nil, fmt.Errorf("core run failed: %w", err)
	}

	result.Commits = n
	result.ExitCode = code
	result.Stats = c.Pipeline.Stats()

	if result.FirstDivergent == nil && n < len(want) {
		result.FirstDivergent = &Divergence{Index: n, Want: want[n], GotMissing: true}
	}

	return result, nil
}
