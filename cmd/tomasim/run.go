package main

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/tracing"
)

func (a *app) newRunCmd() *cobra.Command {
	var (
		useEngine bool
		dump      bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "run <image>",
		Short: "Run an image on the timing core",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := a.coreConfig()
			if err != nil {
				return err
			}

			opts, dcache, err := a.pipelineOptions(config)
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

			var recorder *tracing.SQLiteRecorder
			if a.traceDB != "" {
				recorder, err = tracing.NewSQLiteRecorder(a.traceDB)
				if err != nil {
					return err
				}
				defer func() {
					if cerr := recorder.Close(); cerr != nil {
						a.logger.Error("close commit trace", "err", cerr)
					}
				}()
				c.Pipeline.AcceptHook(recorder)
			}

			var code uint8
			if useEngine {
				var simTime sim.VTimeInSec
				code, simTime, err = core.Simulate(c)
				a.logger.Debug("engine stopped", "sim_time", float64(simTime))
			} else {
				code, err = c.Run()
			}
			a.exitCode = int(code)

			out := cmd.OutOrStdout()
			if dump || err != nil {
				c.Pipeline.Dump(out)
			}
			if err != nil {
				return err
			}

			if recorder != nil {
				if err := recorder.Close(); err != nil {
					return err
				}
				if err := recorder.Err(); err != nil {
					return err
				}
				a.logger.Info("commit trace recorded",
					"path", recorder.Path(), "run_id", recorder.RunID(), "commits", recorder.Count())
			}

			if !quiet {
				_, _ = fmt.Fprintf(out, "Program: %s\n", args[0])
				_, _ = fmt.Fprintf(out, "Exit code: %d\n", a.exitCode)
				printStats(out, c.Pipeline.Stats())
				if dcache != nil {
					printCacheStats(out, dcache.Stats())
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&useEngine, "engine", false, "drive the core from an akita serial engine")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the final pipeline state")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing; only set the exit code")

	return cmd
}
