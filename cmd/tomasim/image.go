package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/benchmarks"
	"github.com/sarchlab/tomasim/loader"
)

func (a *app) newImageCmd() *cobra.Command {
	var (
		outDir string
		random int
		seed   uint64
		list   bool
	)

	cmd := &cobra.Command{
		Use:   "image [benchmark...]",
		Short: "Write microbenchmarks and random programs as memory images",
		Long: `Writes <name>.hex for each named microbenchmark, or for all of them ` +
			`when none is named. Images start with a jump to the benchmark code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			all := benchmarks.GetMicrobenchmarks()

			if list {
				for _, b := range all {
					_, _ = fmt.Fprintf(out, "%-24s exit %3d  %s\n", b.Name, b.ExpectedExit, b.Description)
				}
				return nil
			}

			selected, err := selectBenchmarks(all, args)
			if err != nil {
				return err
			}

			for i := range random {
				b, err := benchmarks.GenerateBenchmark(seed+uint64(i), benchmarks.DefaultGeneratorConfig())
				if err != nil {
					return err
				}
				selected = append(selected, b)
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			for _, b := range selected {
				path := filepath.Join(outDir, b.Name+".hex")
				if err := writeImage(path, b.Image()); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%s (exit %d)\n", path, b.ExpectedExit)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write images into")
	cmd.Flags().IntVar(&random, "random", 0, "also write this many random programs")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "seed of the first random program")
	cmd.Flags().BoolVar(&list, "list", false, "list the microbenchmarks and exit")

	return cmd
}

// selectBenchmarks picks benchmarks by name; no names selects all of them.
func selectBenchmarks(all []benchmarks.Benchmark, names []string) ([]benchmarks.Benchmark, error) {
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]benchmarks.Benchmark, len(all))
	for _, b := range all {
		byName[b.Name] = b
	}

	selected := make([]benchmarks.Benchmark, 0, len(names))
	for _, name := range names {
		b, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown benchmark %q", name)
		}
		selected = append(selected, b)
	}

	return selected, nil
}

func writeImage(path string, prog *loader.Program) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := loader.WriteImage(f, prog); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
