package scheduler

import "errors"

// Submission-time errors are returned to the caller before anything is
// persisted. Request-time errors are returned synchronously by the
// coordinator. Execution errors are never surfaced as errors; they are
// recorded on the task and drive normal state transitions.
var (
	// ErrCycleDetected means admitting the task's dependency edges would
	// make the graph cyclic.
	ErrCycleDetected = errors.New("dependency cycle detected")

	// ErrUnknownDependency means a depends-on id does not exist in the store.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrTaskNotFound means no task exists with the given id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAlreadyTerminal means the task is already completed, failed, or
	// cancelled and cannot be cancelled again.
	ErrAlreadyTerminal = errors.New("task already in a terminal state")

	// ErrNotResumable means the task is not an interrupted failure; only
	// interrupted tasks may be re-admitted for execution.
	ErrNotResumable = errors.New("task is not resumable")
)
