package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/cache"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// app holds the global flags and the exit code of the simulated program.
type app struct {
	verbose    bool
	configPath string
	timingPath string
	predictor  string
	traceDB    string
	dcache     bool
	maxCycles  uint64
	entry      uint32

	logger   *slog.Logger
	exitCode int
}

// envDefaults maps global flags to the environment variables that supply
// their defaults.
var envDefaults = map[string]string{
	"config":     "TOMASIM_CONFIG",
	"timing":     "TOMASIM_TIMING",
	"predictor":  "TOMASIM_PREDICTOR",
	"trace-db":   "TOMASIM_TRACE_DB",
	"max-cycles": "TOMASIM_MAX_CYCLES",
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "tomasim",
		Short: "Tomasim is a cycle-accurate Tomasulo RV32I simulator.",
		Long: `Tomasim simulates an out-of-order RV32I core with register renaming, ` +
			`reservation stations, a load/store buffer and a reorder buffer. ` +
			`Programs are memory images of hex bytes with @address directives.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log pipeline events at debug level")
	flags.StringVar(&a.configPath, "config", "", "core configuration JSON file")
	flags.StringVar(&a.timingPath, "timing", "", "functional-unit latency JSON file")
	flags.StringVar(&a.predictor, "predictor", "bimodal", "branch predictor: bimodal, taken or not-taken")
	flags.StringVar(&a.traceDB, "trace-db", "", "record the commit trace into this SQLite file")
	flags.BoolVar(&a.dcache, "dcache", false, "time loads and stores with a 4KB data cache")
	flags.Uint64Var(&a.maxCycles, "max-cycles", 0, "stop after this many cycles (0 = unlimited)")
	flags.Uint32Var(&a.entry, "entry", 0, "address execution starts at")

	root.AddCommand(
		a.newRunCmd(),
		a.newEmulateCmd(),
		a.newCheckCmd(),
		a.newProfileCmd(),
		a.newImageCmd(),
		a.newMonitorCmd(),
	)

	return root, a
}

// setup applies environment defaults to unset flags and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	for name, env := range envDefaults {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}
		if v, ok := os.LookupEnv(env); ok && v != "" {
			if err := cmd.Flags().Set(name, v); err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
		}
	}

	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	return nil
}

func (a *app) coreConfig() (pipeline.CoreConfig, error) {
	if a.configPath == "" {
		return pipeline.DefaultCoreConfig(), nil
	}
	return pipeline.LoadCoreConfig(a.configPath)
}

// pipelineOptions builds the core options from the global flags. The data
// cache is nil unless --dcache is set.
func (a *app) pipelineOptions(config pipeline.CoreConfig) ([]pipeline.PipelineOption, *cache.Cache, error) {
	timing := latency.DefaultTimingConfig()
	if a.timingPath != "" {
		var err error
		timing, err = latency.LoadConfig(a.timingPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading timing config: %w", err)
		}
	}

	pred, err := pipeline.NewPredictor(a.predictor)
	if err != nil {
		return nil, nil, err
	}

	opts := []pipeline.PipelineOption{
		pipeline.WithCoreConfig(config),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(timing)),
		pipeline.WithPredictor(pred),
		pipeline.WithLogger(a.logger),
	}
	if a.maxCycles > 0 {
		opts = append(opts, pipeline.WithMaxCycles(a.maxCycles))
	}

	var dcache *cache.Cache
	if a.dcache {
		dcache, err = cache.New(cache.DefaultConfig())
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithDataCache(dcache))
	}

	return opts, dcache, nil
}

// loadMemory reads an image into a fresh memory of the configured size.
func (a *app) loadMemory(path string, config pipeline.CoreConfig) (*emu.Memory, error) {
	prog, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	mem, err := emu.NewMemoryWithSize(config.MemorySize)
	if err != nil {
		return nil, err
	}
	prog.LoadInto(mem)

	a.logger.Debug("image loaded",
		"path", path, "segments", len(prog.Segments), "bytes", prog.Size())

	return mem, nil
}

func printStats(w io.Writer, stats pipeline.Statistics) {
	_, _ = fmt.Fprintf(w, "Cycles:         %d\n", stats.Cycles)
	_, _ = fmt.Fprintf(w, "Instructions:   %d\n", stats.Instructions)
	_, _ = fmt.Fprintf(w, "CPI:            %.3f\n", stats.CPI())
	_, _ = fmt.Fprintf(w, "Issued:         %d\n", stats.Issued)
	_, _ = fmt.Fprintf(w, "Fetch stalls:   %d\n", stats.FetchStalls)
	_, _ = fmt.Fprintf(w, "Branches:       %d\n", stats.Branches)
	_, _ = fmt.Fprintf(w, "Mispredictions: %d\n", stats.Mispredictions)
	_, _ = fmt.Fprintf(w, "Squashes:       %d\n", stats.Squashes)
	_, _ = fmt.Fprintf(w, "Loads:          %d\n", stats.Loads)
	_, _ = fmt.Fprintf(w, "Stores:         %d\n", stats.Stores)
	_, _ = fmt.Fprintln(w, "Issue stalls:")
	for r := range pipeline.NumStallReasons {
		_, _ = fmt.Fprintf(w, "  %-20s %d\n", r.String()+":", stats.IssueStall(r))
	}
}

func printCacheStats(w io.Writer, stats cache.Statistics) {
	_, _ = fmt.Fprintln(w, "Data cache:")
	_, _ = fmt.Fprintf(w, "  Hits:       %d\n", stats.Hits)
	_, _ = fmt.Fprintf(w, "  Misses:     %d\n", stats.Misses)
	_, _ = fmt.Fprintf(w, "  Evictions:  %d\n", stats.Evictions)
	_, _ = fmt.Fprintf(w, "  Writebacks: %d\n", stats.Writebacks)
	_, _ = fmt.Fprintf(w, "  Hit rate:   %.2f%%\n", stats.HitRate()*100)
}
