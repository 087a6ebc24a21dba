package scheduler

import (
	"fmt"
	"time"
)

// TaskStatus represents the persisted state of a task.
// "Ready" is not a stored status: it is derived from the graph each tick
// (a pending task whose dependencies are all completed).
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Waiting for dependencies or a worker slot
	TaskRunning                     // An agent process is live for this task
	TaskCompleted                   // Agent run finished successfully
	TaskFailed                      // Agent run failed, could not be spawned, or was interrupted
	TaskCancelled                   // Cancelled explicitly or cascaded from a failed ancestor
)

// String returns the status as persisted in the store.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParseStatus converts a persisted status string back to a TaskStatus.
func ParseStatus(s string) (TaskStatus, error) {
	switch s {
	case "pending":
		return TaskPending, nil
	case "running":
		return TaskRunning, nil
	case "completed":
		return TaskCompleted, nil
	case "failed":
		return TaskFailed, nil
	case "cancelled":
		return TaskCancelled, nil
	default:
		return TaskFailed, fmt.Errorf("invalid task status %q", s)
	}
}

// Terminal reports whether the status is one of the end states.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Task is one schedulable unit of work: a prompt executed by an external
// agent process in a working directory, gated on its dependencies.
// ID, Title, Prompt, Cwd and DependsOn are immutable after submission.
type Task struct {
	ID          int64
	Title       string
	Prompt      string
	Cwd         string
	DependsOn   []int64
	Status      TaskStatus
	SessionID   string // empty until the first run starts
	LogPath     string // empty until the first run starts
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	ExitInfo    string // exit summary, populated only in terminal states
	Interrupted bool   // distinguishes an interrupted run from a genuine failure
}

// Resumable reports whether the task may be re-admitted for execution with
// its prior session. Only interrupted failures qualify; a genuine execution
// failure is final.
func (t *Task) Resumable() bool {
	return t.Status == TaskFailed && t.Interrupted
}

func cloneTask(t *Task) *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.DependsOn != nil {
		cp.DependsOn = append([]int64(nil), t.DependsOn...)
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		cp.StartedAt = &started
	}
	if t.FinishedAt != nil {
		finished := *t.FinishedAt
		cp.FinishedAt = &finished
	}
	return &cp
}
