package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/timing/core"
)

var errMismatch = errors.New("timing core does not match the reference")

func (a *app) newCheckCmd() *cobra.Command {
	var maxSteps uint64

	cmd := &cobra.Command{
		Use:   "check <image>",
		Short: "Compare the timing core's commit trace with the reference emulator",
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

			result, err := core.CrossCheck(mem, a.entry, maxSteps, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Commits: %d\n", result.Commits)
			_, _ = fmt.Fprintf(out, "Exit code: %d (reference %d)\n", result.ExitCode, result.ReferenceCode)
			_, _ = fmt.Fprintf(out, "Cycles: %d  CPI: %.3f\n", result.Stats.Cycles, result.Stats.CPI())

			if d := result.FirstDivergent; d != nil {
				d.Report(out)
			}
			if !result.Match() {
				return errMismatch
			}

			_, _ = fmt.Fprintln(out, "Traces match")
			a.exitCode = 0

			return nil
		},
	}

	cmd.Flags().Uint64Var(&maxSteps, "max-steps", 1_000_000, "reference step bound (0 = unlimited)")

	return cmd
}
