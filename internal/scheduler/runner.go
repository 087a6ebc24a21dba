package scheduler

import (
	"context"
	"time"
)

// RunSpec describes one external agent invocation.
type RunSpec struct {
	TaskID    int64
	Prompt    string
	Cwd       string
	SessionID string // pre-assigned; resume runs carry the prior session
	LogPath   string
	Resume    bool // re-attach to an existing session instead of starting fresh
}

// ExitResult is the outcome of one supervised process.
type ExitResult struct {
	Success     bool
	ExitCode    int
	Detail      string // short human-readable summary for exit_info
	Interrupted bool   // the process ended without reporting a result
}

// RunHandle supervises one live external process. Its exit is the sole
// trigger that releases the task's worker slot and finalizes its status.
type RunHandle interface {
	SessionID() string
	Pid() int

	// Terminate signals the process group to stop, escalating to a kill
	// after the grace period. The exit still arrives through Done.
	Terminate(grace time.Duration)

	// Done delivers exactly one ExitResult when the process ends.
	Done() <-chan ExitResult
}

// SessionRunner spawns and supervises external agent processes. The
// coordinator guarantees at most one live handle per task.
type SessionRunner interface {
	// Spawn starts a new process for the spec. The returned handle is live;
	// a spawn failure returns an error and no handle.
	Spawn(ctx context.Context, spec RunSpec) (RunHandle, error)

	// IsAlive reports whether the process recorded for a prior run still
	// exists. Used by recovery to reconcile tasks left running.
	IsAlive(pid int) bool

	// Watch re-attaches supervision to a process that outlived a previous
	// scheduler instance. The handle's exit carries no exit status, only
	// the fact that the process is gone.
	Watch(sessionID string, pid int) RunHandle
}
