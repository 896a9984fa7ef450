package storage

import "errors"

// Operation names used in Error.
const (
	OpLoad      = "load"
	OpSave      = "save"
	OpSaveBatch = "save_batch"
	OpMigrate   = "migrate"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("storage: store closed")

// Error wraps a backend failure with the operation and collection involved.
type Error struct {
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	if e.Collection == "" {
		return "storage " + e.Op + ": " + e.Err.Error()
	}
	return "storage " + e.Op + " " + e.Collection + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
