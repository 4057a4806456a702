package store

import (
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

// Memory is an ephemeral engine backed by go-ethereum's memorydb.
type Memory struct {
	db *memorydb.Database
}

// NewMemory returns an empty in-memory engine.
func NewMemory() *Memory {
	return &Memory{db: memorydb.New()}
}

// Name implements Backend.
func (m *Memory) Name() string { return "memory" }

// Get implements Backend.
func (m *Memory) Get(key []byte) ([]byte, error) {
	ok, err := m.db.Has(key)
	if err != nil {
		return nil, storageFailure(err, "memory has %x", key)
	}
	if !ok {
		return nil, ErrNotFound
	}

	value, err := m.db.Get(key)
	if err != nil {
		return nil, storageFailure(err, "memory get %x", key)
	}

	return value, nil
}

// Len returns the number of keys stored.
func (m *Memory) Len() int {
	return m.db.Len()
}

// NewBatch implements Backend.
func (m *Memory) NewBatch() Batch {
	return &memoryBatch{b: m.db.NewBatch()}
}

// Close implements Backend.
func (m *Memory) Close() error {
	return storageFailure(m.db.Close(), "close memory db")
}

type memoryBatch struct {
	b   ethdb.Batch
	ops int
}

func (b *memoryBatch) Put(key, value []byte) error {
	if err := b.b.Put(key, value); err != nil {
		return storageFailure(err, "memory batch put %x", key)
	}
	b.ops++

	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	if err := b.b.Delete(key); err != nil {
		return storageFailure(err, "memory batch delete %x", key)
	}
	b.ops++

	return nil
}

func (b *memoryBatch) Len() int { return b.ops }

func (b *memoryBatch) Write() error {
	if err := b.b.Write(); err != nil {
		return storageFailure(err, "memory batch write")
	}

	b.b.Reset()
	b.ops = 0

	return nil
}
