package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/monitoring"
	"github.com/sarchlab/tomasim/timing/core"
)

func (a *app) newMonitorCmd() *cobra.Command {
	var (
		port int
		open bool
	)

	cmd := &cobra.Command{
		Use:   "monitor <image>",
		Short: "Load an image and serve the core over HTTP until interrupted",
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

			m := monitoring.NewMonitor(c).WithPortNumber(port).WithLogger(a.logger)
			url, err := m.StartServer()
			if err != nil {
				return err
			}
			defer func() { _ = m.Stop() }()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %s at %s\n", args[0], url)

			if open {
				if err := m.OpenBrowser(url); err != nil {
					a.logger.Warn("cannot open browser", "err", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			a.exitCode = int(c.ExitCode())

			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (0 = random)")
	cmd.Flags().BoolVar(&open, "open", false, "open the state page in a browser")

	return cmd
}
