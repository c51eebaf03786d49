package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/google/pprof/profile"
	"github.com/shirou/gopsutil/process"
	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/monitoring"
	"github.com/sarchlab/tomasim/timing/core"
)

func (a *app) newProfileCmd() *cobra.Command {
	var (
		cpuProfile string
		memProfile string
		top        int
	)

	cmd := &cobra.Command{
		Use:   "profile <image>",
		Short: "Run an image on the timing core under the CPU profiler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := a.coreConfig()
			if err != nil {
				return err
			}

			opts, _, err := a.pipelineOptions(config)
			if err != nil {
				return err
			}

			mem, err := a.loadMemory(args[0], config)
			if err != nil {
				return err
			}

			c, err := core.NewCore(mem, opts...)
			if err != nil {
				return err
			}
			c.SetPC(a.entry)

			f, err := os.Create(cpuProfile)
			if err != nil {
				return fmt.Errorf("creating CPU profile: %w", err)
			}

			if err := pprof.StartCPUProfile(f); err != nil {
				_ = f.Close()
				return fmt.Errorf("starting CPU profile: %w", err)
			}

			start := time.Now()
			code, runErr := c.Run()
			elapsed := time.Since(start)

			pprof.StopCPUProfile()
			if err := f.Close(); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			a.exitCode = int(code)

			if memProfile != "" {
				if err := writeHeapProfile(memProfile); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			stats := c.Pipeline.Stats()

			_, _ = fmt.Fprintf(out, "Program: %s\n", args[0])
			_, _ = fmt.Fprintf(out, "Exit code: %d\n", code)
			_, _ = fmt.Fprintf(out, "Cycles: %d  Instructions: %d  CPI: %.3f\n",
				stats.Cycles, stats.Instructions, stats.CPI())
			_, _ = fmt.Fprintf(out, "Wall time: %v\n", elapsed)
			if secs := elapsed.Seconds(); secs > 0 {
				_, _ = fmt.Fprintf(out, "Simulation speed: %.0f cycles/s\n", float64(stats.Cycles)/secs)
			}

			if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
				if cpu, err := proc.CPUPercent(); err == nil {
					_, _ = fmt.Fprintf(out, "Host CPU: %.1f%%\n", cpu)
				}
				if memInfo, err := proc.MemoryInfo(); err == nil {
					_, _ = fmt.Fprintf(out, "Host RSS: %d KiB\n", memInfo.RSS/1024)
				}
			}

			return printTopFunctions(cmd, cpuProfile, top)
		},
	}

	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "tomasim.prof", "write the CPU profile to this file")
	cmd.Flags().StringVar(&memProfile, "memprofile", "", "write a heap profile to this file")
	cmd.Flags().IntVar(&top, "top", 10, "number of hottest functions to print")

	return cmd
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating memory profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	return pprof.WriteHeapProfile(f)
}

func printTopFunctions(cmd *cobra.Command, path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	prof, err := profile.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing CPU profile: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "CPU profile written to %s\n", path)

	hottest := monitoring.TopFunctions(prof, n)
	if len(hottest) == 0 {
		_, _ = fmt.Fprintln(out, "No samples (run too short)")
		return nil
	}

	_, _ = fmt.Fprintln(out, "Hottest functions (flat samples):")
	for _, fn := range hottest {
		_, _ = fmt.Fprintf(out, "  %8d  %s\n", fn.Samples, fn.Name)
	}

	return nil
}
