// Package benchmarks provides RV32I microbenchmarks, a random program
// generator, and a timing harness for the out-of-order core.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/cache"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// ProgramBase is the address every benchmark is loaded and started at.
const ProgramBase = 0x1000

// DataBase is the start of the benchmarks' data region.
const DataBase = 0x2000

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of committed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	IssueStalls [pipeline.NumStallReasons]uint64 `json:"issue_stalls"`
	FetchStalls uint64                           `json:"fetch_stalls"`

	// Squashes is the number of misprediction clears
	Squashes uint64 `json:"squashes"`

	Branches       uint64 `json:"branches"`
	Mispredictions uint64 `json:"mispredictions"`
	Loads          uint64 `json:"loads"`
	Stores         uint64 `json:"stores"`

	// DataCache holds the data-cache counters when a cache was simulated
	DataCache *cache.Statistics `json:"data_cache,omitempty"`

	// ExitCode is the program's exit code
	ExitCode uint8 `json:"exit_code"`

	// Verified is set when the commit trace was checked against the
	// reference emulator.
	Verified bool `json:"verified,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares memory, e.g. input arrays. It may be nil.
	Setup func(memory *emu.Memory)

	// Program is the RV32I machine code, loaded at ProgramBase
	Program insts.Program

	// ExpectedExit is the expected exit code (for validation)
	ExpectedExit uint8
}

// Memory builds the initial memory of the benchmark.
func (b Benchmark) Memory() *emu.Memory {
	memory := emu.NewMemory()
	if b.Setup != nil {
		b.Setup(memory)
	}
	memory.LoadProgram(ProgramBase, b.Program.Bytes())
	return memory
}

// Image returns the benchmark as a loadable image. Images start at address 0,
// so the image begins with a jump to ProgramBase, followed by the program
// and any data the setup writes into the data region.
func (b Benchmark) Image() *loader.Program {
	p := loader.FromBytes(0, insts.BuildProgram(insts.JAL(0, ProgramBase)).Bytes())
	p.Segments = append(p.Segments, loader.Segment{Addr: ProgramBase, Data: b.Program.Bytes()})

	if b.Setup != nil {
		scratch := emu.NewMemory()
		b.Setup(scratch)

		data := make([]byte, 256)
		used := 0
		for i := range data {
			data[i] = scratch.Read8(DataBase + uint32(i))
			if data[i] != 0 {
				used = i + 1
			}
		}
		if used > 0 {
			p.Segments = append(p.Segments, loader.Segment{Addr: DataBase, Data: data[:used]})
		}
	}

	return p
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Predictor names the branch predictor (see pipeline.NewPredictor).
	Predictor string

	// Timing sets the functional-unit latencies. Nil uses the defaults.
	Timing *latency.TimingConfig

	// Core sets the structure sizes.
	Core pipeline.CoreConfig

	// DataCache, when set, times loads and stores with a data cache.
	DataCache *cache.Config

	// CrossCheck verifies every commit against the reference emulator.
	CrossCheck bool

	// MaxCycles bounds each run. Zero means no bound.
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Predictor:  "bimodal",
		Core:       pipeline.DefaultCoreConfig(),
		CrossCheck: true,
		MaxCycles:  1_000_000,
		Output:     os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results. It stops at the first
// benchmark that faults, diverges or exits with an unexpected code.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.runBenchmark(bench)
		if err != nil {
			return results, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

func (h *Harness) pipelineOptions() ([]pipeline.PipelineOption, *cache.Cache, error) {
	pred, err := pipeline.NewPredictor(h.config.Predictor)
	if err != nil {
		return nil, nil, err
	}

	table := latency.NewTable()
	if h.config.Timing != nil {
		table = latency.NewTableWithConfig(h.config.Timing)
	}

	opts := []pipeline.PipelineOption{
		pipeline.WithPredictor(pred),
		pipeline.WithLatencyTable(table),
		pipeline.WithCoreConfig(h.config.Core),
		pipeline.WithMaxCycles(h.config.MaxCycles),
	}

	var dcache *cache.Cache
	if h.config.DataCache != nil {
		dcache, err = cache.New(*h.config.DataCache)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithDataCache(dcache))
	}

	return opts, dcache, nil
}

// runBenchmark executes a single benchmark. With cross-checking enabled the
// run doubles as the verification run.
func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	result := BenchmarkResult{Name: bench.Name, Description: bench.Description}

	opts, dcache, err := h.pipelineOptions()
	if err != nil {
		return result, err
	}

	var (
		stats    pipeline.Statistics
		exitCode uint8
	)

	start := time.Now()
	if h.config.CrossCheck {
		check, err := core.CrossCheck(bench.Memory(), ProgramBase, h.config.MaxCycles, opts...)
		if err != nil {
			return result, err
		}
		if d := check.FirstDivergent; d != nil {
			d.Report(h.config.Output)
			return result, fmt.Errorf("commit trace diverges at %d", d.Index)
		}
		stats, exitCode = check.Stats, check.ExitCode
		result.Verified = true
	} else {
		c, err := core.NewCore(bench.Memory(), opts...)
		if err != nil {
			return result, err
		}
		c.SetPC(ProgramBase)

		exitCode, err = c.Run()
		if err != nil {
			return result, err
		}
		stats = c.Pipeline.Stats()
	}
	result.WallTime = time.Since(start)

	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.IssueStalls = stats.IssueStalls
	result.FetchStalls = stats.FetchStalls
	result.Squashes = stats.Squashes
	result.Branches = stats.Branches
	result.Mispredictions = stats.Mispredictions
	result.Loads = stats.Loads
	result.Stores = stats.Stores
	result.ExitCode = exitCode

	if dcache != nil {
		cs := dcache.Stats()
		result.DataCache = &cs
	}

	if exitCode != bench.ExpectedExit {
		return result, fmt.Errorf("exit code %d, expected %d", exitCode, bench.ExpectedExit)
	}

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output

	_, _ = fmt.Fprintln(w, "=== Tomasulo Core Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(w, "  Exit Code: %d\n", r.ExitCode)
		_, _ = fmt.Fprintln(w, "  --- Timing ---")
		_, _ = fmt.Fprintf(w, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(w, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(w, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(w, "  Fetch Stalls:         %d\n", r.FetchStalls)
		_, _ = fmt.Fprintf(w, "  Squashes:             %d\n", r.Squashes)

		if h.config.Verbose {
			_, _ = fmt.Fprintln(w, "  --- Issue Stalls ---")
			for i, n := range r.IssueStalls {
				_, _ = fmt.Fprintf(w, "  %-20s  %d\n", pipeline.StallReason(i).String()+":", n)
			}
		}

		if r.Branches > 0 {
			_, _ = fmt.Fprintln(w, "  --- Branches ---")
			_, _ = fmt.Fprintf(w, "  Committed:       %d\n", r.Branches)
			_, _ = fmt.Fprintf(w, "  Mispredictions:  %d\n", r.Mispredictions)
		}

		if r.Loads > 0 || r.Stores > 0 {
			_, _ = fmt.Fprintln(w, "  --- Memory ---")
			_, _ = fmt.Fprintf(w, "  Loads:  %d\n", r.Loads)
			_, _ = fmt.Fprintf(w, "  Stores: %d\n", r.Stores)
			if c := r.DataCache; c != nil {
				_, _ = fmt.Fprintf(w, "  D-Cache Hits:   %d\n", c.Hits)
				_, _ = fmt.Fprintf(w, "  D-Cache Misses: %d\n", c.Misses)
				_, _ = fmt.Fprintf(w, "  D-Cache Hit Rate: %.2f%%\n", c.HitRate()*100)
			}
		}

		if r.Verified {
			_, _ = fmt.Fprintln(w, "  Trace: matches reference")
		}
		_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,fetch_stalls,squashes,branches,mispredictions,loads,stores,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.FetchStalls,
			r.Squashes,
			r.Branches,
			r.Mispredictions,
			r.Loads,
			r.Stores,
			r.ExitCode,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	Predictor  string               `json:"predictor"`
	Timing     latency.TimingConfig `json:"timing"`
	Core       pipeline.CoreConfig  `json:"core"`
	CrossCheck bool                 `json:"cross_check"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Version is reported in JSON output.
const Version = "0.1.0"

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	timing := latency.DefaultTimingConfig()
	if h.config.Timing != nil {
		timing = h.config.Timing
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config: BenchmarkConfig{
				Predictor:  h.config.Predictor,
				Timing:     *timing,
				Core:       h.config.Core,
				DataCache:  h.config.DataCache,
				CrossCheck: h.config.CrossCheck,
			},
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
