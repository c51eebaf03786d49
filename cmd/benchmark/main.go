// Command benchmark runs the Tomasim microbenchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv          Output results in CSV format (default: human-readable)
//	-json         Output results in JSON format
//	-core         Run only the three core benchmarks
//	-predictor    Branch predictor: bimodal, taken or not-taken
//	-timing       Functional-unit latency JSON file
//	-random N     Also run N randomly generated programs
//	-no-check     Skip cross-checking against the reference emulator
//	-dcache       Time loads and stores with a 4KB data cache
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Compare predictors in a spreadsheet
//	go run ./cmd/benchmark -csv -predictor taken > taken.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/tomasim/benchmarks"
	"github.com/sarchlab/tomasim/timing/cache"
	"github.com/sarchlab/tomasim/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	predictor := flag.String("predictor", "bimodal", "Branch predictor: bimodal, taken or not-taken")
	timingPath := flag.String("timing", "", "Functional-unit latency JSON file")
	random := flag.Int("random", 0, "Also run this many random programs")
	noCheck := flag.Bool("no-check", false, "Skip cross-checking against the reference emulator")
	dcache := flag.Bool("dcache", false, "Time loads and stores with a data cache")
	verbose := flag.Bool("v", false, "Print issue stall breakdowns")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.Predictor = *predictor
	config.CrossCheck = !*noCheck
	config.Verbose = *verbose
	config.Output = os.Stdout

	if *dcache {
		dcacheConfig := cache.DefaultConfig()
		config.DataCache = &dcacheConfig
	}

	if *timingPath != "" {
		timing, err := latency.LoadConfig(*timingPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
		config.Timing = timing
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	for i := range *random {
		b, err := benchmarks.GenerateBenchmark(uint64(i), benchmarks.DefaultGeneratorConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating random program %d: %v\n", i, err)
			os.Exit(1)
		}
		harness.AddBenchmark(b)
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("Tomasim Benchmark Harness")
		fmt.Println("=========================")
		fmt.Printf("Predictor:   %s\n", config.Predictor)
		fmt.Printf("Cross-check: %v\n", config.CrossCheck)
		fmt.Printf("D-Cache:     %v\n", config.DataCache != nil)
		fmt.Println("")
	}

	results, err := harness.RunAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- arithmetic_sequential: independent work, CPI close to 1")
		fmt.Println("- dependency_chain: one result per ALU round trip")
		fmt.Println("- memory_sequential, store_load_alias: loads wait for older stores")
		fmt.Println("- branch_taken, branch_alternating: squash cost of mispredictions")
		fmt.Println("- function_calls: fetch waits for every return to commit")
	}
}
