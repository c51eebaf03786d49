package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/emu"
)

func (a *app) newEmulateCmd() *cobra.Command {
	var (
		maxSteps uint64
		trace    bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "emulate <image>",
		Short: "Run an image on the sequential reference emulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := a.coreConfig()
			if err != nil {
				return err
			}

			mem, err := a.loadMemory(args[0], config)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := []emu.EmulatorOption{
				emu.WithMemory(mem),
				emu.WithMaxInstructions(maxSteps),
			}
			if trace {
				opts = append(opts, emu.WithCommitHandler(func(r emu.CommitRecord) {
					_, _ = fmt.Fprintln(out, r.String())
				}))
			}

			e := emu.NewEmulator(opts...)
			e.SetPC(a.entry)

			code, err := e.Run()
			if err != nil {
				return err
			}
			a.exitCode = int(code)

			if !quiet {
				_, _ = fmt.Fprintf(out, "Program: %s\n", args[0])
				_, _ = fmt.Fprintf(out, "Exit code: %d\n", code)
				_, _ = fmt.Fprintf(out, "Instructions executed: %d\n", e.InstructionCount())
				if a.verbose {
					e.RegFile().Dump(out)
				}
			}

			return nil
		},
	}

	cmd.Flags().Uint64Var(&maxSteps, "max-steps", 0, "stop after this many instructions (0 = unlimited)")
	cmd.Flags().BoolVarP(&trace, "trace", "t", false, "print every commit record")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing; only set the exit code")

	return cmd
}
