package ledger

import "github.com/cockroachdb/errors"

// Sentinel errors for ledger operations.
var (
	ErrUnknownKey    = errors.New("unknown key")
	ErrSessionClosed = errors.New("session is not open")
	ErrNotTopSession = errors.New("session is not on top of the undo stack")
	ErrNothingToUndo = errors.New("no pushed session to undo")
)
