// Package store provides the key-value engines that back a ledger: an
// in-memory map, Pebble and MDBX. Every engine exposes the same point-read and
// batched-write surface.
package store

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned by Backend.Get for keys that were never written.
	ErrNotFound = errors.New("key not found")

	// ErrStorageFailure marks any fault raised by an engine.
	ErrStorageFailure = errors.New("storage failure")
)

// Backend is a durable key-value engine.
type Backend interface {
	// Name identifies the engine in logs and reports.
	Name() string

	// Get returns a copy of the value stored under key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// NewBatch returns an empty write batch bound to this engine.
	NewBatch() Batch

	Close() error
}

// Batch accumulates writes that become durable together on Write.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error

	// Len returns the number of operations staged since the last Write.
	Len() int

	// Write persists all staged operations synchronously and empties the
	// batch so it can be reused.
	Write() error
}

// storageFailure wraps err with context and marks it as ErrStorageFailure.
func storageFailure(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	return errors.Mark(errors.Wrapf(err, format, args...), ErrStorageFailure)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	out := make([]byte, len(b))
	copy(out, b)

	return out
}
