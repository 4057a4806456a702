package store

import (
	"github.com/erigontech/mdbx-go/mdbx"
)

// mdbxTable is the single named database holding account state.
const mdbxTable = "Accounts"

// MDBX is an engine backed by an MDBX environment.
type MDBX struct {
	env *mdbx.Env
	dbi mdbx.DBI
}

// OpenMDBX opens (or creates) an MDBX environment in dir.
func OpenMDBX(dir string) (*MDBX, error) {
	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, storageFailure(err, "create mdbx env")
	}

	if err := env.SetOption(mdbx.OptMaxDB, 8); err != nil {
		env.Close()

		return nil, storageFailure(err, "set mdbx max dbs")
	}

	if err := env.SetGeometry(-1, -1, 1<<40, -1, -1, 4096); err != nil {
		env.Close()

		return nil, storageFailure(err, "set mdbx geometry")
	}

	flags := uint(mdbx.NoReadahead | mdbx.Coalesce | mdbx.Durable)
	if err := env.Open(dir, flags, 0o644); err != nil {
		env.Close()

		return nil, storageFailure(err, "open mdbx %s", dir)
	}

	var dbi mdbx.DBI
	err = env.Update(func(txn *mdbx.Txn) error {
		var err error
		dbi, err = txn.OpenDBI(mdbxTable, mdbx.Create, nil, nil)

		return err
	})
	if err != nil {
		env.Close()

		return nil, storageFailure(err, "create mdbx table %s", mdbxTable)
	}

	return &MDBX{env: env, dbi: dbi}, nil
}

// Name implements Backend.
func (m *MDBX) Name() string { return "mdbx" }

// Get implements Backend.
func (m *MDBX) Get(key []byte) ([]byte, error) {
	var value []byte

	err := m.env.View(func(txn *mdbx.Txn) error {
		v, err := txn.Get(m.dbi, key)
		if err != nil {
			return err
		}
		// v is only valid inside the transaction.
		value = copyBytes(v)

		return nil
	})
	if mdbx.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageFailure(err, "mdbx get %x", key)
	}

	return value, nil
}

// NewBatch implements Backend.
func (m *MDBX) NewBatch() Batch {
	return &mdbxBatch{m: m}
}

// Close implements Backend.
func (m *MDBX) Close() error {
	m.env.Close()

	return nil
}

type mdbxOp struct {
	key    []byte
	value  []byte
	delete bool
}

// mdbxBatch buffers operations and applies them in a single write
// transaction.
type mdbxBatch struct {
	m   *MDBX
	ops []mdbxOp
}

func (b *mdbxBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, mdbxOp{key: copyBytes(key), value: copyBytes(value)})

	return nil
}

func (b *mdbxBatch) Delete(key []byte) error {
	b.ops = append(b.ops, mdbxOp{key: copyBytes(key), delete: true})

	return nil
}

func (b *mdbxBatch) Len() int { return len(b.ops) }

func (b *mdbxBatch) Write() error {
	if len(b.ops) == 0 {
		return nil
	}

	err := b.m.env.Update(func(txn *mdbx.Txn) error {
		for _, op := range b.ops {
			if op.delete {
				if err := txn.Del(b.m.dbi, op.key, nil); err != nil && !mdbx.IsNotFound(err) {
					return err
				}

				continue
			}

			if err := txn.Put(b.m.dbi, op.key, op.value, 0); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return storageFailure(err, "mdbx batch write")
	}

	b.ops = b.ops[:0]

	return nil
}
