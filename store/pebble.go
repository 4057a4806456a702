package store

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleOptions tunes a Pebble engine.
type PebbleOptions struct {
	// InMemory keeps all files in a memory-backed filesystem.
	InMemory bool

	CacheSize    int64
	MemTableSize uint64
}

// Pebble is an engine backed by a Pebble LSM tree.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a Pebble database in dir.
func OpenPebble(dir string, opts PebbleOptions) (*Pebble, error) {
	pOpts := &pebble.Options{}
	if opts.InMemory {
		pOpts.FS = vfs.NewMem()
	}
	if opts.CacheSize > 0 {
		cache := pebble.NewCache(opts.CacheSize)
		defer cache.Unref()
		pOpts.Cache = cache
	}
	if opts.MemTableSize > 0 {
		pOpts.MemTableSize = opts.MemTableSize
	}

	db, err := pebble.Open(dir, pOpts)
	if err != nil {
		return nil, storageFailure(err, "open pebble %s", dir)
	}

	return &Pebble{db: db}, nil
}

// Name implements Backend.
func (p *Pebble) Name() string { return "pebble" }

// Get implements Backend.
func (p *Pebble) Get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageFailure(err, "pebble get %x", key)
	}
	defer closer.Close()

	return copyBytes(value), nil
}

// NewBatch implements Backend.
func (p *Pebble) NewBatch() Batch {
	return &pebbleBatch{db: p.db, b: p.db.NewBatch()}
}

// Close implements Backend.
func (p *Pebble) Close() error {
	return storageFailure(p.db.Close(), "close pebble")
}

type pebbleBatch struct {
	db *pebble.DB
	b  *pebble.Batch
}

func (b *pebbleBatch) Put(key, value []byte) error {
	return storageFailure(b.b.Set(key, value, nil), "pebble batch set %x", key)
}

func (b *pebbleBatch) Delete(key []byte) error {
	return storageFailure(b.b.Delete(key, nil), "pebble batch delete %x", key)
}

func (b *pebbleBatch) Len() int { return int(b.b.Count()) }

func (b *pebbleBatch) Write() error {
	if err := b.b.Commit(pebble.Sync); err != nil {
		return storageFailure(err, "pebble batch commit")
	}

	if err := b.b.Close(); err != nil {
		return storageFailure(err, "pebble batch close")
	}
	b.b = b.db.NewBatch()

	return nil
}
