package harness

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/weiihann/swapbench/ledger"
	"github.com/weiihann/swapbench/metrics"
	"github.com/weiihann/swapbench/simulator"
	"github.com/weiihann/swapbench/store"
	"github.com/weiihann/swapbench/workload"
)

// RunConfig holds parameters for a single backend run.
type RunConfig struct {
	Corpus *workload.Corpus
	DBDir  string

	// ReportPath is where the sample report is written. Empty skips it.
	ReportPath string
	UndoDepth  int

	// Probe defaults to the host's metrics.
	Probe    metrics.Probe
	Progress io.Writer
	Clock    func() time.Time

	// Wrap, if set, decorates the opened backend, e.g. with store.NewFaulty.
	Wrap func(store.Backend) store.Backend
}

// Runner runs the benchmark against one named backend.
type Runner struct {
	Name   string
	Logger *slog.Logger
}

// NewRunner creates a Runner for the named backend.
func NewRunner(name string, logger *slog.Logger) *Runner {
	return &Runner{
		Name:   name,
		Logger: logger.With(slog.String("backend", name)),
	}
}

// Run executes the benchmark and returns its result. The sample report is
// written even when the run fails; in that case the returned Result is
// partial and carries the error text.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Corpus == nil {
		return nil, errors.New("no corpus to run")
	}

	dbDir := filepath.Join(cfg.DBDir, r.Name)

	if err := os.RemoveAll(dbDir); err != nil {
		return nil, errors.Wrapf(err, "clean db dir %s", dbDir)
	}

	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create db dir %s", dbDir)
	}

	backend, err := OpenBackend(r.Name, dbDir)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", r.Name)
	}

	if cfg.Wrap != nil {
		backend = cfg.Wrap(backend)
	}

	probe := cfg.Probe
	if probe == nil {
		probe = metrics.NewSystemProbe()
	}

	db := ledger.New(backend, ledger.Options{
		MaxUndoDepth: cfg.UndoDepth,
		Logger:       r.Logger,
	})

	sim := simulator.New(db, cfg.Corpus, simulator.Options{
		Probe:    probe,
		Progress: cfg.Progress,
		Logger:   r.Logger,
		Clock:    cfg.Clock,
	})

	r.Logger.InfoContext(ctx, "starting run",
		slog.String("db_dir", dbDir),
		slog.Int("accounts", len(cfg.Corpus.Keys)),
		slog.Int("swaps", len(cfg.Corpus.Swaps)),
	)

	wallStart := time.Now()
	simRes, runErr := sim.Run(ctx)
	wallElapsed := time.Since(wallStart)

	if runErr != nil {
		r.Logger.ErrorContext(ctx, "run failed",
			slog.String("error", runErr.Error()),
		)
	} else {
		r.Logger.InfoContext(ctx, "run finished",
			slog.Duration("wall_time", wallElapsed),
		)
	}

	if cfg.ReportPath != "" {
		if err := sim.Recorder().WriteFile(cfg.ReportPath); err != nil {
			runErr = errors.CombineErrors(runErr, errors.Wrapf(err, "write report %s", cfg.ReportPath))
		}
	}

	stats := db.Stats()

	if err := backend.Close(); err != nil {
		r.Logger.WarnContext(ctx, "failed to close backend",
			slog.String("error", err.Error()),
		)
	}

	result := &Result{
		Backend:          r.Name,
		RunID:            uuid.NewString(),
		Accounts:         len(cfg.Corpus.Keys),
		Swaps:            len(cfg.Corpus.Swaps),
		SessionsPushed:   stats.Pushed,
		SessionsSquashed: stats.Squashed,
		ElapsedMs:        wallElapsed.Milliseconds(),
		PeakMemoryBytes:  peakMemory(),
		ReportPath:       cfg.ReportPath,
	}

	if simRes != nil {
		result.FillMs = simRes.Fill.Elapsed.Milliseconds()
		result.SwapMs = simRes.Swap.Elapsed.Milliseconds()
		result.FlushMs = (simRes.Fill.FlushTime + simRes.Swap.FlushTime).Milliseconds()
		result.Samples = simRes.Samples
		result.DegradedSamples = simRes.DegradedSamples

		if runErr == nil {
			result.StateRoot = simRes.StateRoot.Hex()
		}
	}

	dbSize, err := dirSize(dbDir)
	if err != nil {
		r.Logger.WarnContext(ctx, "failed to measure db size",
			slog.String("error", err.Error()),
		)
	}
	result.DBSizeBytes = dbSize

	if dp, ok := probe.(metrics.DiskProbe); ok {
		used, err := dp.DiskUsed(ctx, dbDir)
		if err != nil {
			r.Logger.WarnContext(ctx, "failed to measure disk usage",
				slog.String("error", err.Error()),
			)
		}
		result.DiskUsedFraction = used
	}

	if runErr != nil {
		result.Error = runErr.Error()

		return result, errors.Wrapf(runErr, "run %s", r.Name)
	}

	return result, nil
}

// peakMemory returns the total memory obtained from the OS by the Go runtime.
func peakMemory() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return ms.Sys
}

func dirSize(path string) (uint64, error) {
	var size uint64

	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += uint64(info.Size())
		}

		return nil
	})

	return size, err
}
