package scheduler

import (
	"context"
	"time"
)

// Draft carries the user-supplied fields of a submission. Everything else on
// a Task is assigned by the store or the coordinator.
type Draft struct {
	Title     string
	Prompt    string
	Cwd       string
	DependsOn []int64
}

// StatusChange describes one atomic status transition. Zero-valued fields
// are left untouched by the store, so a change never clobbers a previously
// recorded session id or timestamp.
type StatusChange struct {
	Status      TaskStatus
	SessionID   string     // set if non-empty
	LogPath     string     // set if non-empty
	StartedAt   *time.Time // set if non-nil
	FinishedAt  *time.Time // set if non-nil
	ExitInfo    string     // set if non-empty
	Interrupted bool
	// ClearRun resets finished_at, exit_info, and the interrupted flag.
	// Used by resume, which re-opens an interrupted task for a new run.
	ClearRun bool
}

// Session records one external process invocation so recovery can probe the
// process after a restart.
type Session struct {
	TaskID    int64
	SessionID string
	Pid       int
	LogPath   string
	CreatedAt time.Time
}

// Store is the durable source of truth for tasks and dependency edges.
// Every mutation is transactional: a crash mid-write never leaves a
// dangling edge or a status inconsistent with its timestamps.
type Store interface {
	// CreateTask atomically inserts a task and its dependency edges.
	// Graph validation happens before this is called; the insert still
	// fails as a whole if any edge references a missing task.
	CreateTask(ctx context.Context, draft Draft) (*Task, error)

	// Task returns a task by id, or ErrTaskNotFound.
	Task(ctx context.Context, id int64) (*Task, error)

	// TaskBySession returns the task owning the given session id.
	TaskBySession(ctx context.Context, sessionID string) (*Task, error)

	// ListTasks returns every task with its dependencies, oldest first.
	ListTasks(ctx context.Context) ([]*Task, error)

	// UpdateStatus applies a single atomic status transition.
	UpdateStatus(ctx context.Context, id int64, change StatusChange) error

	// SaveSession upserts the session record for a task.
	SaveSession(ctx context.Context, s Session) error

	// SessionByTask returns the most recent session record for a task.
	SessionByTask(ctx context.Context, taskID int64) (*Session, error)

	Close() error
}
