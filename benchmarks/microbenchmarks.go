package benchmarks

import (
	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

// Registers used by the listings.
const (
	zero uint8 = 0
	ra   uint8 = 1
	t0   uint8 = 5
	t1   uint8 = 6
	t2   uint8 = 7
	s0   uint8 = 8
	a0   uint8 = 10
	a1   uint8 = 11
	a2   uint8 = 12
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each
// benchmark targets one characteristic of the core.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		branchAlternating(),
		mixedOperations(),
		arraySum(),
		loopSimulation(),
		storeLoadAlias(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick
// validation: a loop, a memory walk and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		arraySum(),
		branchTaken(),
	}
}

// 1. Arithmetic Sequential - ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	var prog insts.Program
	for range 4 {
		prog = append(prog,
			insts.ADDI(t0, t0, 1),
			insts.ADDI(t1, t1, 1),
			insts.ADDI(t2, t2, 1),
			insts.ADDI(a1, a1, 1),
			insts.ADDI(a2, a2, 1),
		)
	}
	prog = append(prog, insts.ADDI(a0, t0, 0), insts.Halt())

	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "20 independent ADDIs across 5 registers - measures ALU throughput",
		Program:      prog,
		ExpectedExit: 4,
	}
}

// 2. Dependency Chain - every instruction waits for the previous result
func dependencyChain() Benchmark {
	var prog insts.Program
	for range 20 {
		prog = append(prog, insts.ADDI(a0, a0, 1))
	}
	prog = append(prog, insts.Halt())

	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs - measures wakeup and broadcast latency",
		Program:      prog,
		ExpectedExit: 20,
	}
}

// 3. Memory Sequential - store then reload ten consecutive words
func memorySequential() Benchmark {
	prog := insts.Program{
		insts.LUI(s0, DataBase>>12),
		insts.ADDI(t0, zero, 1),
	}
	for i := range int32(10) {
		prog = append(prog,
			insts.SW(t0, s0, 4*i),
			insts.LW(t1, s0, 4*i),
			insts.ADD(a0, a0, t1),
		)
	}
	prog = append(prog, insts.Halt())

	return Benchmark{
		Name:         "memory_sequential",
		Description:  "10 store/load pairs to sequential words - measures load-store buffer ordering",
		Program:      prog,
		ExpectedExit: 10,
	}
}

// 4. Function Calls - JAL/JALR pairs
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "5 calls to a leaf function - measures jump and return handling",
		Program: insts.BuildProgram(
			insts.JAL(ra, 24), // 0x00
			insts.JAL(ra, 20), // 0x04
			insts.JAL(ra, 16), // 0x08
			insts.JAL(ra, 12), // 0x0c
			insts.JAL(ra, 8),  // 0x10
			insts.Halt(),      // 0x14

			// leaf at 0x18
			insts.ADDI(a0, a0, 1),
			insts.JALR(zero, ra, 0),
		),
		ExpectedExit: 5,
	}
}

// 5. Branch Taken - unconditional taken branches
func branchTaken() Benchmark {
	var prog insts.Program
	for range 5 {
		prog = append(prog,
			insts.BEQ(zero, zero, 8),
			insts.ADDI(a0, a0, 100), // skipped
			insts.ADDI(a0, a0, 1),
		)
	}
	prog = append(prog, insts.Halt())

	return Benchmark{
		Name:         "branch_taken",
		Description:  "5 always-taken forward branches - measures predictor warmup and squash cost",
		Program:      prog,
		ExpectedExit: 5,
	}
}

// 6. Branch Alternating - a branch whose outcome flips every iteration
func branchAlternating() Benchmark {
	return Benchmark{
		Name:        "branch_alternating",
		Description: "8-iteration loop with an alternating branch - measures misprediction recovery",
		Program: insts.BuildProgram(
			insts.ADDI(t0, zero, 8), // 0x00
			insts.ANDI(t1, t0, 1),   // 0x04 loop
			insts.BEQ(t1, zero, 8),  // 0x08 even: skip
			insts.ADDI(a0, a0, 3),   // 0x0c
			insts.ADDI(a0, a0, 1),   // 0x10
			insts.ADDI(t0, t0, -1),  // 0x14
			insts.BNE(t0, zero, -20),
			insts.Halt(),
		),
		ExpectedExit: 20,
	}
}

// 7. Mixed Operations - every functional unit class plus memory
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "Adds, shifts, logic, compares and memory in one block",
		Program: insts.BuildProgram(
			insts.LUI(s0, DataBase>>12),
			insts.ADDI(t0, zero, 7),
			insts.ADDI(t1, zero, 3),
			insts.ADD(t2, t0, t1),  // 10
			insts.SUB(a1, t0, t1),  // 4
			insts.SLLI(a2, t2, 2),  // 40
			insts.SW(a2, s0, 0),    // mem = 40
			insts.XOR(t0, t2, a1),  // 14
			insts.LW(t1, s0, 0),    // 40
			insts.OR(a1, a1, t0),   // 14
			insts.SLT(t2, a1, t1),  // 1
			insts.ADD(a0, t1, a1),  // 54
			insts.ADD(a0, a0, t2),  // 55
			insts.ADDI(a0, a0, 16), // 71
			insts.Halt(),
		),
		ExpectedExit: 71,
	}
}

// 8. Array Sum - loop over an array prepared in memory
func arraySum() Benchmark {
	return Benchmark{
		Name:        "array_sum",
		Description: "Sum of an 8-element word array - measures a load-dependent loop",
		Setup: func(memory *emu.Memory) {
			for i := range uint32(8) {
				memory.Write32(DataBase+4*i, i+1)
			}
		},
		Program: insts.BuildProgram(
			insts.LUI(s0, DataBase>>12), // 0x00
			insts.ADDI(t0, zero, 8),     // 0x04
			insts.LW(t1, s0, 0),         // 0x08 loop
			insts.ADD(a0, a0, t1),       // 0x0c
			insts.ADDI(s0, s0, 4),       // 0x10
			insts.ADDI(t0, t0, -1),      // 0x14
			insts.BNE(t0, zero, -16),    // 0x18
			insts.Halt(),
		),
		ExpectedExit: 36,
	}
}

// 9. Loop Simulation - counted loop with a short body
func loopSimulation() Benchmark {
	return Benchmark{
		Name:        "loop_simulation",
		Description: "10-iteration loop of 3 ADDIs - measures backward branch handling",
		Program: insts.BuildProgram(
			insts.ADDI(t0, zero, 10), // 0x00
			insts.ADDI(a0, a0, 1),    // 0x04 loop
			insts.ADDI(a0, a0, 1),    // 0x08
			insts.ADDI(a0, a0, 1),    // 0x0c
			insts.ADDI(t0, t0, -1),   // 0x10
			insts.BNE(t0, zero, -16), // 0x14
			insts.Halt(),
		),
		ExpectedExit: 30,
	}
}

// 10. Store-Load Alias - loads that must observe an older store
func storeLoadAlias() Benchmark {
	return Benchmark{
		Name:        "store_load_alias",
		Description: "Loads that read back a just-stored word - measures store-to-load ordering",
		Program: insts.BuildProgram(
			insts.LUI(s0, DataBase>>12),
			insts.ADDI(t0, zero, 5),
			insts.SW(t0, s0, 0),
			insts.LW(t1, s0, 0),   // 5
			insts.ADDI(t1, t1, 5), // 10
			insts.SW(t1, s0, 0),
			insts.LW(t2, s0, 0),   // 10
			insts.ADD(a0, t2, t1), // 20
			insts.Halt(),
		),
		ExpectedExit: 20,
	}
}
