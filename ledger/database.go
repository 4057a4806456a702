// Package ledger layers nested undo sessions and a staged write batch over a
// key-value engine. Pushed sessions are retained as undoable checkpoints;
// squashed sessions fold into their parent. Nothing reaches the engine until
// Flush.
//
// Reads observe every staged write, whichever session staged it and whether
// or not it has been flushed.
//
// A Database is not safe for concurrent use.
package ledger

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/weiihann/swapbench/store"
)

// Options configures a Database.
type Options struct {
	// MaxUndoDepth bounds the number of retained sessions on the undo stack.
	// Zero keeps every pushed session.
	MaxUndoDepth int

	Logger *slog.Logger
}

// Stats counts session activity.
type Stats struct {
	Opened   uint64
	Pushed   uint64
	Squashed uint64
	Undone   uint64
	Flushes  uint64

	Revision  int64
	UndoDepth int
	Staged    int
}

// staged is an overlay entry for a write that has not been flushed.
type staged struct {
	value   []byte
	deleted bool
}

// Database stages writes against a store.Backend.
type Database struct {
	backend store.Backend
	batch   store.Batch
	overlay map[string]staged

	stack    []record
	nextID   uint64
	revision int64

	opts   Options
	logger *slog.Logger
	stats  Stats
}

// New returns a Database staging writes for backend.
func New(backend store.Backend, opts Options) *Database {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Database{
		backend: backend,
		batch:   backend.NewBatch(),
		overlay: make(map[string]staged),
		nextID:  1,
		opts:    opts,
		logger:  logger.With(slog.String("backend", backend.Name())),
	}
}

// StartUndoSession opens a session on top of the undo stack. When retainUndo
// is false the session stages writes without recording undo information and
// does not take part in the stack.
func (db *Database) StartUndoSession(retainUndo bool) *Session {
	db.stats.Opened++

	if !retainUndo {
		return &Session{db: db, revision: db.revision}
	}

	var parent uint64
	if n := len(db.stack); n > 0 {
		parent = db.stack[n-1].id
	}

	db.revision++

	rec := record{
		id:       db.nextID,
		parent:   parent,
		state:    Open,
		revision: db.revision,
		undo:     make(map[string]prior),
	}
	db.nextID++
	db.stack = append(db.stack, rec)

	return &Session{db: db, id: rec.id, revision: rec.revision}
}

// Get returns the current value of key. Staged writes take precedence over
// the engine. Absent keys yield ErrUnknownKey.
func (db *Database) Get(key []byte) ([]byte, error) {
	if st, ok := db.overlay[string(key)]; ok {
		if st.deleted {
			return nil, errors.Wrapf(ErrUnknownKey, "key %x", key)
		}

		out := make([]byte, len(st.value))
		copy(out, st.value)

		return out, nil
	}

	value, err := db.backend.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.Wrapf(ErrUnknownKey, "key %x", key)
	}
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Flush durably persists every staged write.
func (db *Database) Flush() error {
	n := db.batch.Len()
	if err := db.batch.Write(); err != nil {
		return errors.Wrap(err, "flush staged batch")
	}

	db.overlay = make(map[string]staged)
	db.stats.Flushes++

	db.logger.Debug("flushed staged batch", slog.Int("operations", n))

	return nil
}

// Undo reverts the most recently pushed session.
func (db *Database) Undo() error {
	n := len(db.stack)
	if n == 0 {
		return ErrNothingToUndo
	}

	rec := &db.stack[n-1]
	if rec.state != Pushed {
		return errors.Wrapf(ErrNotTopSession,
			"session %d on top of the stack is %s", rec.id, rec.state)
	}

	return db.revert(rec)
}

// Commit discards the undo history of every pushed session opened at or
// below revision. Those sessions can no longer be undone.
func (db *Database) Commit(revision int64) {
	i := 0
	for i < len(db.stack) && db.stack[i].state == Pushed && db.stack[i].revision <= revision {
		i++
	}

	db.dropBottom(i)
}

// Revision returns the current revision.
func (db *Database) Revision() int64 { return db.revision }

// Stats returns a snapshot of session counters.
func (db *Database) Stats() Stats {
	s := db.stats
	s.Revision = db.revision
	s.UndoDepth = len(db.stack)
	s.Staged = db.batch.Len()

	return s
}

// stage writes key into the batch and overlay, recording its prior value in
// rec the first time rec touches it.
func (db *Database) stage(rec *record, key, value []byte, del bool) error {
	if rec != nil {
		k := string(key)
		if _, seen := rec.undo[k]; !seen {
			old, err := db.Get(key)
			switch {
			case err == nil:
				rec.undo[k] = prior{value: old, existed: true}
			case errors.Is(err, ErrUnknownKey):
				rec.undo[k] = prior{}
			default:
				return err
			}
		}
	}

	return db.write(key, value, del)
}

func (db *Database) write(key, value []byte, del bool) error {
	if del {
		if err := db.batch.Delete(key); err != nil {
			return err
		}
		db.overlay[string(key)] = staged{deleted: true}

		return nil
	}

	if err := db.batch.Put(key, value); err != nil {
		return err
	}

	v := make([]byte, len(value))
	copy(v, value)
	db.overlay[string(key)] = staged{value: v}

	return nil
}

// revert restores every prior value recorded by the top record and pops it.
func (db *Database) revert(rec *record) error {
	for k, p := range rec.undo {
		if err := db.write([]byte(k), p.value, !p.existed); err != nil {
			return errors.Wrapf(err, "undo session %d", rec.id)
		}
	}

	rec.state = Undone
	db.pop()
	db.revision--
	db.stats.Undone++

	return nil
}

func (db *Database) pop() {
	n := len(db.stack)
	db.stack[n-1] = record{}
	db.stack = db.stack[:n-1]
}

// trim drops the oldest pushed sessions beyond MaxUndoDepth.
func (db *Database) trim() {
	limit := db.opts.MaxUndoDepth
	if limit <= 0 || len(db.stack) <= limit {
		return
	}

	i := 0
	for len(db.stack)-i > limit && db.stack[i].state == Pushed {
		i++
	}

	db.dropBottom(i)
}

func (db *Database) dropBottom(n int) {
	if n == 0 {
		return
	}

	for i := 0; i < n; i++ {
		db.stack[i] = record{}
	}
	db.stack = append(db.stack[:0], db.stack[n:]...)

	if len(db.stack) > 0 {
		db.stack[0].parent = 0
	}

	db.logger.Debug("dropped undo history", slog.Int("sessions", n))
}

// find returns the stack index and record of the session with the given id,
// or nil. Sessions near the top are found first.
func (db *Database) find(id uint64) (int, *record) {
	for i := len(db.stack) - 1; i >= 0; i-- {
		switch {
		case db.stack[i].id == id:
			return i, &db.stack[i]
		case db.stack[i].id < id:
			return -1, nil
		}
	}

	return -1, nil
}
