package worker

import "errors"

// Errors returned by Pool lifecycle and submission calls. Callers match them
// with errors.Is.
var (
	ErrPoolNotStarted     = errors.New("worker: pool not started")
	ErrPoolStopped        = errors.New("worker: pool stopped")
	ErrPoolAlreadyStarted = errors.New("worker: pool already started")
	ErrNilProcessor       = errors.New("worker: nil processor")
	ErrStopTimeout        = errors.New("worker: workers still busy at stop deadline")
)
