package domain

import "errors"

var (
	// ErrAlreadyRunning is returned when a run is triggered while another is active.
	ErrAlreadyRunning = errors.New("collection already in progress")
	// ErrUnknownSource is returned for source names without a registered adapter.
	ErrUnknownSource = errors.New("unknown source")
	// ErrInvalidInput marks malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)
