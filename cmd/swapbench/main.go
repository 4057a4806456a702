// Package main provides the CLI entry point for swapbench, a storage engine
// benchmark that replays randomized account swaps through undo sessions.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/weiihann/swapbench/harness"
	"github.com/weiihann/swapbench/metrics"
	"github.com/weiihann/swapbench/report"
	"github.com/weiihann/swapbench/workload"
)

const argCount = 6

var argNames = [argCount]string{
	"accountCount",
	"swapCount",
	"maxKeyLength",
	"maxKeyValue",
	"maxValueLength",
	"maxValueValue",
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		logger.Error("benchmark failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type runConfig struct {
	workload     workload.Config
	backends     []string
	dbDir        string
	output       string
	undoDepth    int
	workloadPath string
	savePath     string
	outputJSON   bool
	noMetrics    bool
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	var (
		seed         int64
		backends     []string
		dbDir        string
		output       string
		undoDepth    int
		workloadPath string
		savePath     string
		configPath   string
		outputJSON   bool
		noMetrics    bool
	)

	cmd := &cobra.Command{
		Use: "swapbench accountCount swapCount maxKeyLength maxKeyValue " +
			"maxValueLength maxValueValue",
		Short: "Benchmark storage engines with randomized account swaps",
		Long: `Swapbench fills a key/value ledger with random accounts, ten per
undo session, then swaps account values pairwise, one squashed session per
swap. Throughput, CPU load and RAM usage are sampled once per second and
written as tab-separated lines to the output file.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != argCount {
				fmt.Fprintln(cmd.OutOrStdout(), "Please enter the correct amount of arguments.")
				fmt.Fprintln(cmd.OutOrStdout())

				return cmd.Usage()
			}

			wcfg, err := parseArgs(args)
			if err != nil {
				return err
			}

			base := harness.DefaultConfig()
			if configPath != "" {
				loaded, err := harness.LoadConfig(configPath)
				if err != nil {
					return err
				}
				base = *loaded
			}

			flags := cmd.Flags()
			base.Merge(&harness.Config{
				Backends:  changed(flags.Changed("backends"), backends),
				DBDir:     changed(flags.Changed("db-dir"), dbDir),
				Output:    changed(flags.Changed("output"), output),
				UndoDepth: changed(flags.Changed("undo-depth"), undoDepth),
				Seed:      changed(flags.Changed("seed"), seed),
				NoMetrics: noMetrics,
			})

			if err := base.Validate(); err != nil {
				return err
			}

			wcfg.Seed = base.Seed
			if wcfg.Seed == 0 {
				wcfg.Seed = time.Now().UnixNano()
			}

			return runBenchmark(cmd.Context(), logger, cmd.OutOrStdout(), runConfig{
				workload:     wcfg,
				backends:     base.Backends,
				dbDir:        base.DBDir,
				output:       base.Output,
				undoDepth:    base.UndoDepth,
				workloadPath: workloadPath,
				savePath:     savePath,
				outputJSON:   outputJSON,
				noMetrics:    base.NoMetrics,
			})
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&seed, "seed", 0,
		"Random seed (0 = use current time)")
	flags.StringSliceVar(&backends, "backends", []string{"pebble"},
		"Storage engines to benchmark (memory, pebble, mdbx)")
	flags.StringVar(&dbDir, "db-dir", "tmp",
		"Base directory for engine databases")
	flags.StringVar(&output, "output", "data.csv",
		"Sample report path; suffixed with the backend name when several run")
	flags.IntVar(&undoDepth, "undo-depth", 0,
		"Maximum retained undo sessions (0 = unbounded)")
	flags.StringVar(&workloadPath, "workload", "",
		"Path to a saved workload file (skip generation)")
	flags.StringVar(&savePath, "save-workload", "",
		"Write the workload to this path (.zst compresses)")
	flags.StringVar(&configPath, "config", "",
		"JSON config file; flags override its values")
	flags.BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of table")
	flags.BoolVar(&noMetrics, "no-metrics", false,
		"Record zero CPU and RAM instead of probing the host")

	return cmd
}

// changed returns v when the flag was set explicitly and the zero value
// otherwise, so Merge keeps the config file's value.
func changed[T any](set bool, v T) T {
	if set {
		return v
	}

	var zero T

	return zero
}

func parseArgs(args []string) (workload.Config, error) {
	var vals [argCount]int

	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 31)
		if err != nil {
			return workload.Config{}, errors.Wrapf(workload.ErrInvalidConfig,
				"%s: %q is not a non-negative integer", argNames[i], arg)
		}
		vals[i] = int(v)
	}

	return workload.Config{
		Accounts:       vals[0],
		Swaps:          vals[1],
		MaxKeyLength:   vals[2],
		MaxKeyValue:    vals[3],
		MaxValueLength: vals[4],
		MaxValueValue:  vals[5],
	}, nil
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	cfg runConfig,
) error {
	logger.InfoContext(ctx, "starting benchmark",
		slog.Int("accounts", cfg.workload.Accounts),
		slog.Int("swaps", cfg.workload.Swaps),
		slog.Int64("seed", cfg.workload.Seed),
		slog.Any("backends", cfg.backends),
	)

	// Step 1: Generate workload (or load a saved one).
	corpus, err := loadOrGenerate(ctx, logger, cfg)
	if err != nil {
		return err
	}

	if cfg.savePath != "" {
		if err := workload.SaveFile(cfg.savePath, corpus); err != nil {
			return err
		}

		logger.InfoContext(ctx, "workload saved", slog.String("path", cfg.savePath))
	}

	// Step 2: Prepare DB directory.
	if err := os.MkdirAll(cfg.dbDir, 0o755); err != nil {
		return errors.Wrap(err, "create db dir")
	}

	var probe metrics.Probe
	if cfg.noMetrics {
		probe = metrics.Static{}
	}

	// Step 3: Run each backend sequentially. A failed run stops the rest.
	results := make([]harness.Result, 0, len(cfg.backends))
	multi := len(cfg.backends) > 1

	var runErr error

	for _, name := range cfg.backends {
		runner := harness.NewRunner(name, logger)
		result, err := runner.Run(ctx, harness.RunConfig{
			Corpus:     corpus,
			DBDir:      cfg.dbDir,
			ReportPath: harness.ResolveReportPath(cfg.output, name, multi),
			UndoDepth:  cfg.undoDepth,
			Probe:      probe,
			Progress:   os.Stderr,
		})

		if result != nil {
			results = append(results, *result)
		}

		if err != nil {
			runErr = err

			break
		}
	}

	// Step 4: Generate summary.
	if len(results) > 0 {
		if cfg.outputJSON {
			if err := report.GenerateJSON(out, results); err != nil {
				return errors.Wrap(err, "generate JSON report")
			}
		} else {
			if err := report.Generate(out, results); err != nil {
				return errors.Wrap(err, "generate report")
			}
		}
	}

	if runErr != nil {
		return runErr
	}

	logger.InfoContext(ctx, "benchmark complete")

	return nil
}

func loadOrGenerate(
	ctx context.Context,
	logger *slog.Logger,
	cfg runConfig,
) (*workload.Corpus, error) {
	var corpus *workload.Corpus

	if cfg.workloadPath != "" {
		loaded, err := workload.LoadFile(cfg.workloadPath)
		if err != nil {
			return nil, err
		}
		corpus = loaded
	} else {
		gen, err := workload.NewGenerator(cfg.workload)
		if err != nil {
			return nil, err
		}
		corpus = gen.Generate()
	}

	summary := corpus.Summary()
	logger.InfoContext(ctx, "workload ready",
		slog.Int("accounts", summary.Accounts),
		slog.Int("swaps", summary.Swaps),
		slog.Int("key_bytes", summary.KeyBytes),
		slog.Int("value_bytes", summary.ValueBytes),
		slog.Int("self_swaps", summary.SelfSwaps),
	)

	return corpus, nil
}
