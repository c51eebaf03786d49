// Package main provides the entry point for Tomasim.
// Tomasim is a cycle-accurate Tomasulo out-of-order RV32I simulator built on
// Akita.
//
// For the full CLI, use: go run ./cmd/tomasim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("Tomasim - Tomasulo RV32I Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: tomasim <command> [flags] <image>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run        Run an image on the timing core")
	fmt.Println("  emulate    Run an image on the reference emulator")
	fmt.Println("  check      Compare the two commit traces")
	fmt.Println("  profile    Run under the CPU profiler")
	fmt.Println("  image      Write microbenchmarks as memory images")
	fmt.Println("  monitor    Serve the core over HTTP")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/tomasim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/tomasim' instead.")
	}
}
