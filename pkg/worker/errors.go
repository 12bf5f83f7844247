package worker

import "errors"

// Pool lifecycle and submission errors.
var (
	// ErrPoolNotStarted rejects submissions before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolStopped rejects submissions after Stop.
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrPoolAlreadyStarted rejects a second Start.
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrQueueFull is returned by TrySubmit when the queue is at capacity.
	// The blocking Submit never returns it; that one waits on the caller's
	// context instead.
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrNilProcessor rejects pool construction without a processor.
	ErrNilProcessor = errors.New("processor function cannot be nil")

	// ErrStopTimeout means Stop gave up waiting for the drain. Workers may
	// still be running, so callers track per-item completion before reading
	// shared results.
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)
