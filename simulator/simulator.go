// Package simulator drives an account-transfer workload through a ledger. It
// fills the ledger one block of accounts per pushed session, then swaps
// account values pairwise in squashed sessions, sampling throughput and host
// metrics once per elapsed second.
package simulator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/weiihann/swapbench/ledger"
	"github.com/weiihann/swapbench/metrics"
	"github.com/weiihann/swapbench/timeseries"
	"github.com/weiihann/swapbench/workload"
)

// AccountsPerBlock is the number of accounts written per pushed session
// during the fill phase.
const AccountsPerBlock = 10

// Options configures a Simulator. Zero fields get working defaults.
type Options struct {
	Probe    metrics.Probe
	Recorder *timeseries.Recorder
	Progress io.Writer
	Logger   *slog.Logger

	// Clock returns the current time. Elapsed seconds are measured from the
	// first reading, taken in New.
	Clock func() time.Time
}

// PhaseResult describes one phase of a run.
type PhaseResult struct {
	Name       string
	Operations uint64
	Sessions   uint64
	Elapsed    time.Duration
	FlushTime  time.Duration
}

// Result describes a completed run.
type Result struct {
	Fill      PhaseResult
	Swap      PhaseResult
	StateRoot common.Hash

	Samples         int
	DegradedSamples int
}

// Simulator runs the fill and swap phases against a ledger. It is
// single-threaded; every call runs to completion before returning.
type Simulator struct {
	db     *ledger.Database
	corpus *workload.Corpus

	probe    metrics.Probe
	rec      *timeseries.Recorder
	progress io.Writer
	logger   *slog.Logger
	clock    func() time.Time

	start      time.Time
	lastSecond int64
	counter    uint64
	degraded   int
}

// New returns a Simulator for corpus over db.
func New(db *ledger.Database, corpus *workload.Corpus, opts Options) *Simulator {
	s := &Simulator{
		db:       db,
		corpus:   corpus,
		probe:    opts.Probe,
		rec:      opts.Recorder,
		progress: opts.Progress,
		logger:   opts.Logger,
		clock:    opts.Clock,
	}

	if s.probe == nil {
		s.probe = metrics.NewSystemProbe()
	}
	if s.rec == nil {
		s.rec = timeseries.NewRecorder(0)
	}
	if s.progress == nil {
		s.progress = io.Discard
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.clock == nil {
		s.clock = time.Now
	}

	s.start = s.clock()

	return s
}

// Recorder returns the recorder samples are written to.
func (s *Simulator) Recorder() *timeseries.Recorder { return s.rec }

// Run fills the ledger, runs every swap and computes the final state root.
// On error the returned Result holds whatever phases completed.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	defer func() {
		res.Samples = s.rec.Len()
		res.DegradedSamples = s.degraded
	}()

	fill, err := s.Populate(ctx)
	res.Fill = fill
	if err != nil {
		return res, errors.Wrap(err, "fill initial state")
	}

	swap, err := s.Swap(ctx)
	res.Swap = swap
	if err != nil {
		return res, errors.Wrap(err, "run swaps")
	}

	root, err := StateRoot(s.db, s.corpus.Keys)
	if err != nil {
		return res, errors.Wrap(err, "compute state root")
	}
	res.StateRoot = root

	return res, nil
}

// Populate writes every account, AccountsPerBlock per pushed session, with
// any remainder in one final pushed session, then flushes once.
func (s *Simulator) Populate(ctx context.Context) (PhaseResult, error) {
	n := len(s.corpus.Keys)
	groups := n / AccountsPerBlock

	res := PhaseResult{Name: "fill"}
	phaseStart := s.clock()
	s.beginPhase(ctx, "filling initial database state", slog.Int("accounts", n))

	for i := 0; i < groups; i++ {
		s.tick(ctx, i, groups)

		if err := s.writeBlock(i*AccountsPerBlock, (i+1)*AccountsPerBlock); err != nil {
			return res, err
		}
		res.Sessions++
	}

	if groups*AccountsPerBlock < n {
		s.tick(ctx, groups, groups+1)

		if err := s.writeBlock(groups*AccountsPerBlock, n); err != nil {
			return res, err
		}
		res.Sessions++
	}

	res.Operations = s.counter

	flushTime, err := s.flush()
	res.FlushTime = flushTime
	res.Elapsed = s.clock().Sub(phaseStart)
	if err != nil {
		return res, err
	}

	s.endPhase(ctx, res)

	return res, nil
}

// Swap exchanges the current values of each planned account pair in its own
// squashed session, then flushes once.
func (s *Simulator) Swap(ctx context.Context) (PhaseResult, error) {
	swaps := s.corpus.Swaps
	keys := s.corpus.Keys

	res := PhaseResult{Name: "swap"}
	phaseStart := s.clock()
	s.beginPhase(ctx, "benchmarking swaps", slog.Int("swaps", len(swaps)))

	for i, sw := range swaps {
		s.tick(ctx, i, len(swaps))

		if err := s.swap(keys[sw.A], keys[sw.B]); err != nil {
			return res, errors.Wrapf(err, "swap %d (%d, %d)", i, sw.A, sw.B)
		}
		res.Sessions++
		s.counter += 2
	}

	res.Operations = s.counter

	flushTime, err := s.flush()
	res.FlushTime = flushTime
	res.Elapsed = s.clock().Sub(phaseStart)
	if err != nil {
		return res, err
	}

	s.endPhase(ctx, res)

	return res, nil
}

func (s *Simulator) writeBlock(lo, hi int) error {
	sess := s.db.StartUndoSession(true)

	for j := lo; j < hi; j++ {
		if err := sess.Put(s.corpus.Keys[j], s.corpus.Values[j]); err != nil {
			_ = sess.Undo()

			return errors.Wrapf(err, "write account %d", j)
		}
		s.counter++
	}

	return sess.Push()
}

// swap reads both values through the ledger so earlier swaps are observed,
// even when a == b.
func (s *Simulator) swap(a, b workload.Datum) error {
	sess := s.db.StartUndoSession(true)

	va, err := s.db.Get(a)
	if err != nil {
		_ = sess.Undo()

		return err
	}

	vb, err := s.db.Get(b)
	if err != nil {
		_ = sess.Undo()

		return err
	}

	if err := sess.Put(a, vb); err != nil {
		_ = sess.Undo()

		return err
	}

	if err := sess.Put(b, va); err != nil {
		_ = sess.Undo()

		return err
	}

	return sess.Squash()
}

func (s *Simulator) flush() (time.Duration, error) {
	start := s.clock()
	err := s.db.Flush()

	return s.clock().Sub(start), err
}

func (s *Simulator) beginPhase(ctx context.Context, msg string, attrs ...any) {
	s.counter = 0
	s.logger.InfoContext(ctx, msg, attrs...)
	s.printProgress(0)
}

func (s *Simulator) endPhase(ctx context.Context, res PhaseResult) {
	s.printProgress(100)
	s.logger.InfoContext(ctx, res.Name+" phase done",
		slog.Uint64("operations", res.Operations),
		slog.Uint64("sessions", res.Sessions),
		slog.Duration("elapsed", res.Elapsed),
		slog.Duration("flush", res.FlushTime),
	)
}

// tick records a sample the first time each new elapsed second is observed.
func (s *Simulator) tick(ctx context.Context, done, total int) {
	elapsed := int64(s.clock().Sub(s.start) / time.Second)
	if elapsed == s.lastSecond || elapsed <= 0 {
		return
	}
	s.lastSecond = elapsed

	cpuLoad, err := s.probe.CPULoad(ctx)
	if err != nil {
		s.degraded++
		s.logger.WarnContext(ctx, "cpu load unavailable",
			slog.Int64("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	}

	ram, err := s.probe.RAMUsed(ctx)
	if err != nil {
		s.degraded++
		s.logger.WarnContext(ctx, "ram usage unavailable",
			slog.Int64("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	}

	s.rec.Record(timeseries.Sample{
		Elapsed:    elapsed,
		Throughput: s.counter / uint64(elapsed),
		CPULoad:    cpuLoad,
		RAMUsed:    ram,
	})

	if total > 0 {
		s.printProgress(done * 100 / total)
	}
}

func (s *Simulator) printProgress(pct int) {
	fmt.Fprintf(s.progress, "[%3d%%]\n", pct)
}
