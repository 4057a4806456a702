package store

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInjected is the cause of every failure raised by a Faulty engine.
var ErrInjected = errors.New("injected fault")

// FaultPlan describes when a Faulty engine starts failing. A zero threshold
// disables that fault; otherwise the Nth call and every later one fails.
type FaultPlan struct {
	FailGetAfter   int
	FailPutAfter   int
	FailWriteAfter int

	// Delay is added to every call before it is forwarded.
	Delay time.Duration
}

// Faulty wraps a Backend and fails calls according to a FaultPlan.
type Faulty struct {
	inner Backend
	plan  FaultPlan

	gets   int
	puts   int
	writes int
}

// NewFaulty wraps inner with the given plan.
func NewFaulty(inner Backend, plan FaultPlan) *Faulty {
	return &Faulty{inner: inner, plan: plan}
}

// Name implements Backend.
func (f *Faulty) Name() string { return f.inner.Name() }

// Get implements Backend.
func (f *Faulty) Get(key []byte) ([]byte, error) {
	f.delay()

	f.gets++
	if tripped(f.plan.FailGetAfter, f.gets) {
		return nil, storageFailure(ErrInjected, "get %x (call %d)", key, f.gets)
	}

	return f.inner.Get(key)
}

// NewBatch implements Backend.
func (f *Faulty) NewBatch() Batch {
	return &faultyBatch{f: f, inner: f.inner.NewBatch()}
}

// Close implements Backend.
func (f *Faulty) Close() error { return f.inner.Close() }

func (f *Faulty) delay() {
	if f.plan.Delay > 0 {
		time.Sleep(f.plan.Delay)
	}
}

func tripped(threshold, calls int) bool {
	return threshold > 0 && calls >= threshold
}

type faultyBatch struct {
	f     *Faulty
	inner Batch
}

func (b *faultyBatch) Put(key, value []byte) error {
	b.f.delay()

	b.f.puts++
	if tripped(b.f.plan.FailPutAfter, b.f.puts) {
		return storageFailure(ErrInjected, "put %x (call %d)", key, b.f.puts)
	}

	return b.inner.Put(key, value)
}

func (b *faultyBatch) Delete(key []byte) error {
	b.f.delay()

	b.f.puts++
	if tripped(b.f.plan.FailPutAfter, b.f.puts) {
		return storageFailure(ErrInjected, "delete %x (call %d)", key, b.f.puts)
	}

	return b.inner.Delete(key)
}

func (b *faultyBatch) Len() int { return b.inner.Len() }

func (b *faultyBatch) Write() error {
	b.f.delay()

	b.f.writes++
	if tripped(b.f.plan.FailWriteAfter, b.f.writes) {
		return storageFailure(ErrInjected, "write (call %d)", b.f.writes)
	}

	return b.inner.Write()
}
