// Command tomasim runs RV32I memory images on the out-of-order timing core
// and on the sequential reference emulator.
//
// Usage:
//
//	tomasim run [flags] <image>       # timing simulation
//	tomasim emulate [flags] <image>   # reference emulator
//	tomasim check [flags] <image>     # compare both commit traces
//	tomasim profile [flags] <image>   # timing run under the CPU profiler
//	tomasim image [flags] [name...]   # write microbenchmarks as images
//	tomasim monitor [flags] <image>   # serve the core over HTTP
//
// The process exits with the simulated program's exit code. Defaults for the
// global flags may be given as TOMASIM_* environment variables or in a .env
// file in the working directory.
package main

import (
	"github.com/joho/godotenv"
	"github.com/tebeka/atexit"
)

func main() {
	_ = godotenv.Load()

	root, a := newRootCmd()
	if err := root.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(a.exitCode)
}
