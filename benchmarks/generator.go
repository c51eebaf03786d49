package benchmarks

import (
	"fmt"
	"math/rand/v2"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

// GeneratorConfig shapes randomly generated programs.
type GeneratorConfig struct {
	// Blocks is the number of basic blocks before the final halt.
	Blocks int
	// BlockSize is the number of instruction slots per block.
	BlockSize int
	// MemoryWeight, BranchWeight and CallWeight are the relative chances of
	// a slot holding a memory access, a block-ending branch and a call,
	// against a fixed weight of 8 for arithmetic.
	MemoryWeight int
	BranchWeight int
	CallWeight   int
}

// DefaultGeneratorConfig returns a mix with every instruction class present.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Blocks:       24,
		BlockSize:    8,
		MemoryWeight: 3,
		BranchWeight: 4,
		CallWeight:   1,
	}
}

// genDataBase is where generated loads and stores go; s0 holds it.
const genDataBase = 0x8000

// genDataSpan is the size of the generated programs' data window.
const genDataSpan = 64

// writable excludes zero, ra, sp and s0, which the generator reserves.
var writable = func() []uint8 {
	var regs []uint8
	for r := uint8(3); r < 32; r++ {
		if r != s0 {
			regs = append(regs, r)
		}
	}
	return regs
}()

type generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
	out insts.Program
}

// Generate builds a random terminating program. Control flow only moves
// forward, except for the self-contained call sequences, so every run ends
// at the halt that closes the program.
func Generate(seed uint64, cfg GeneratorConfig) insts.Program {
	if cfg.Blocks < 1 {
		cfg.Blocks = 1
	}
	if cfg.BlockSize < 4 {
		cfg.BlockSize = 4
	}

	g := &generator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}

	g.out = append(g.out, insts.LUI(s0, genDataBase>>12))
	for b := range cfg.Blocks {
		g.block(b)
	}
	g.out = append(g.out, insts.Halt())

	return g.out
}

// GenerateBenchmark wraps a generated program as a benchmark whose expected
// exit code comes from the reference emulator.
func GenerateBenchmark(seed uint64, cfg GeneratorConfig) (Benchmark, error) {
	b := Benchmark{
		Name:        fmt.Sprintf("random_%d", seed),
		Description: "Randomly generated straight-line and forward-branching code",
		Program:     Generate(seed, cfg),
	}

	ref := emu.NewEmulator(emu.WithMemory(b.Memory()), emu.WithMaxInstructions(1_000_000))
	ref.SetPC(ProgramBase)

	code, err := ref.Run()
	if err != nil {
		return b, err
	}
	b.ExpectedExit = code

	return b, nil
}

// blockStart returns the word index of block b. Block cfg.Blocks is the halt.
func (g *generator) blockStart(b int) int {
	return 1 + b*g.cfg.BlockSize
}

func (g *generator) block(b int) {
	end := g.blockStart(b + 1)

	for len(g.out) < end {
		left := end - len(g.out)

		w := g.rng.IntN(8 + g.cfg.MemoryWeight + g.cfg.BranchWeight + g.cfg.CallWeight)
		switch {
		case w < 8:
			g.out = append(g.out, g.arith())
		case w < 8+g.cfg.MemoryWeight:
			g.out = append(g.out, g.memory())
		case w < 8+g.cfg.MemoryWeight+g.cfg.BranchWeight:
			g.out = append(g.out, g.branch(b))
		case left >= 3:
			g.call()
		default:
			g.out = append(g.out, g.arith())
		}
	}
}

func (g *generator) reg() uint8 {
	return uint8(g.rng.IntN(32))
}

func (g *generator) dest() uint8 {
	return writable[g.rng.IntN(len(writable))]
}

func (g *generator) imm12() int32 {
	return g.rng.Int32N(4096) - 2048
}

func (g *generator) arith() uint32 {
	rd, rs1, rs2 := g.dest(), g.reg(), g.reg()
	shamt := uint8(g.rng.IntN(32))

	switch g.rng.IntN(21) {
	case 0:
		return insts.ADD(rd, rs1, rs2)
	case 1:
		return insts.SUB(rd, rs1, rs2)
	case 2:
		return insts.SLL(rd, rs1, rs2)
	case 3:
		return insts.SLT(rd, rs1, rs2)
	case 4:
		return insts.SLTU(rd, rs1, rs2)
	case 5:
		return insts.XOR(rd, rs1, rs2)
	case 6:
		return insts.SRL(rd, rs1, rs2)
	case 7:
		return insts.SRA(rd, rs1, rs2)
	case 8:
		return insts.OR(rd, rs1, rs2)
	case 9:
		return insts.AND(rd, rs1, rs2)
	case 10:
		return insts.ADDI(rd, rs1, g.imm12())
	case 11:
		return insts.SLTI(rd, rs1, g.imm12())
	case 12:
		return insts.SLTIU(rd, rs1, g.imm12())
	case 13:
		return insts.XORI(rd, rs1, g.imm12())
	case 14:
		return insts.ORI(rd, rs1, g.imm12())
	case 15:
		return insts.ANDI(rd, rs1, g.imm12())
	case 16:
		return insts.SLLI(rd, rs1, shamt)
	case 17:
		return insts.SRLI(rd, rs1, shamt)
	case 18:
		return insts.SRAI(rd, rs1, shamt)
	case 19:
		return insts.LUI(rd, g.rng.Uint32())
	default:
		return insts.AUIPC(rd, g.rng.Uint32())
	}
}

// memory emits a naturally aligned access inside the data window.
func (g *generator) memory() uint32 {
	kind := g.rng.IntN(8)
	size := int32(1) << (kind % 3)
	off := g.rng.Int32N(genDataSpan/size) * size
	rd := g.dest()

	switch kind {
	case 0:
		return insts.SB(g.reg(), s0, off)
	case 1:
		return insts.SH(g.reg(), s0, off)
	case 2:
		return insts.SW(g.reg(), s0, off)
	case 3:
		return insts.LB(rd, s0, off)
	case 4:
		return insts.LH(rd, s0, off)
	case 5:
		return insts.LW(rd, s0, off)
	case 6:
		return insts.LBU(rd, s0, off)
	default:
		return insts.LHU(rd, s0, off)
	}
}

// branch emits a conditional branch or JAL to the start of a later block,
// at most four blocks ahead.
func (g *generator) branch(b int) uint32 {
	target := min(b+1+g.rng.IntN(4), g.cfg.Blocks)
	off := int32(4 * (g.blockStart(target) - len(g.out)))
	rs1, rs2 := g.reg(), g.reg()

	switch g.rng.IntN(7) {
	case 0:
		return insts.BEQ(rs1, rs2, off)
	case 1:
		return insts.BNE(rs1, rs2, off)
	case 2:
		return insts.BLT(rs1, rs2, off)
	case 3:
		return insts.BGE(rs1, rs2, off)
	case 4:
		return insts.BLTU(rs1, rs2, off)
	case 5:
		return insts.BGEU(rs1, rs2, off)
	default:
		return insts.JAL(zero, off)
	}
}

// call emits a call into the next-but-one word that returns straight back:
//
//	jal  ra, 8
//	jal  zero, 8
//	jalr zero, ra, 0
func (g *generator) call() {
	g.out = append(g.out,
		insts.JAL(ra, 8),
		insts.JAL(zero, 8),
		insts.JALR(zero, ra, 0),
	)
}
