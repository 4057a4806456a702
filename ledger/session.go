package ledger

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// SessionState is the lifecycle state of an undo session.
type SessionState uint8

const (
	// Open sessions accept staged writes.
	Open SessionState = iota
	// Pushed sessions stay on the undo stack as an undoable checkpoint.
	Pushed
	// Squashed sessions merged their undo records into their parent.
	Squashed
	// Undone sessions had their writes reverted.
	Undone
)

func (s SessionState) String() string {
	switch s {
	case Open:
		return "open"
	case Pushed:
		return "pushed"
	case Squashed:
		return "squashed"
	case Undone:
		return "undone"
	default:
		return fmt.Sprintf("SessionState(%d)", uint8(s))
	}
}

// prior is the value a key held before a session first modified it.
type prior struct {
	value   []byte
	existed bool
}

// record is the undo-stack entry for a session that retains undo. Sessions
// refer to their parent by id, never by pointer.
type record struct {
	id       uint64
	parent   uint64
	state    SessionState
	revision int64
	undo     map[string]prior
}

// Session is a handle to a unit of staged mutation. Sessions opened without
// undo have no stack entry and only track their own state.
//
// Once a session leaves the undo stack, State reports the last state set
// through this handle; Database.Undo and Database.Commit do not update
// handles.
type Session struct {
	db       *Database
	id       uint64
	state    SessionState
	revision int64
}

// ID returns the session's stack id, or 0 if it does not retain undo.
func (s *Session) ID() uint64 { return s.id }

// Revision returns the database revision the session was opened at.
func (s *Session) Revision() int64 { return s.revision }

// State returns the session's lifecycle state.
func (s *Session) State() SessionState {
	if s.id != 0 {
		if _, rec := s.db.find(s.id); rec != nil {
			return rec.state
		}
	}

	return s.state
}

// Put stages key=value into the batch.
func (s *Session) Put(key, value []byte) error {
	rec, err := s.writable()
	if err != nil {
		return err
	}

	return s.db.stage(rec, key, value, false)
}

// Delete stages the removal of key.
func (s *Session) Delete(key []byte) error {
	rec, err := s.writable()
	if err != nil {
		return err
	}

	return s.db.stage(rec, key, nil, true)
}

// Push closes the session and keeps it on the undo stack as an individually
// undoable checkpoint.
func (s *Session) Push() error {
	if s.id == 0 {
		return s.finish(Pushed)
	}

	rec, err := s.top()
	if err != nil {
		return err
	}

	rec.state = Pushed
	s.state = Pushed
	s.db.stats.Pushed++
	s.db.trim()

	return nil
}

// Squash closes the session and merges its undo records into its parent.
// The writes stay staged; only the undo boundary disappears.
func (s *Session) Squash() error {
	if s.id == 0 {
		return s.finish(Squashed)
	}

	rec, err := s.top()
	if err != nil {
		return err
	}

	db := s.db
	if n := len(db.stack); n > 1 {
		parent := &db.stack[n-2]
		for k, p := range rec.undo {
			if _, ok := parent.undo[k]; !ok {
				parent.undo[k] = p
			}
		}
	}

	db.pop()
	db.revision--
	s.state = Squashed
	db.stats.Squashed++

	return nil
}

// Undo closes the session and reverts every write it staged.
func (s *Session) Undo() error {
	if s.id == 0 {
		return s.finish(Undone)
	}

	rec, err := s.top()
	if err != nil {
		return err
	}

	if err := s.db.revert(rec); err != nil {
		return err
	}

	s.state = Undone

	return nil
}

// finish terminates a session that does not retain undo.
func (s *Session) finish(state SessionState) error {
	if s.state != Open {
		return errors.Wrapf(ErrSessionClosed, "session is %s", s.state)
	}

	s.state = state

	switch state {
	case Pushed:
		s.db.stats.Pushed++
	case Squashed:
		s.db.stats.Squashed++
	case Undone:
		s.db.stats.Undone++
	}

	return nil
}

// writable returns the stack record writes should be attributed to, or nil
// for a session without undo.
func (s *Session) writable() (*record, error) {
	if s.id == 0 {
		if s.state != Open {
			return nil, errors.Wrapf(ErrSessionClosed, "session is %s", s.state)
		}

		return nil, nil
	}

	return s.top()
}

// top returns the session's record, requiring it to be open and on top of
// the undo stack.
func (s *Session) top() (*record, error) {
	i, rec := s.db.find(s.id)
	if rec == nil {
		return nil, errors.Wrapf(ErrSessionClosed, "session %d is %s", s.id, s.state)
	}
	if rec.state != Open {
		return nil, errors.Wrapf(ErrSessionClosed, "session %d is %s", s.id, rec.state)
	}
	if i != len(s.db.stack)-1 {
		return nil, errors.Wrapf(ErrNotTopSession, "session %d", s.id)
	}

	return rec, nil
}
