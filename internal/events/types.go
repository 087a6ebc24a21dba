package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() int64
}

// Topic constants
const (
	TopicTask      = "task"
	TopicScheduler = "scheduler"
)

// Event type constants
const (
	EventTypeTaskSubmitted     = "task.submitted"
	EventTypeTaskStarted       = "task.started"
	EventTypeTaskCompleted     = "task.completed"
	EventTypeTaskFailed        = "task.failed"
	EventTypeTaskCancelled     = "task.cancelled"
	EventTypeTaskResumed       = "task.resumed"
	EventTypeSchedulerProgress = "scheduler.progress"
)

// TaskSubmittedEvent is published when a task is admitted to the graph.
type TaskSubmittedEvent struct {
	ID        int64
	Title     string
	DependsOn []int64
	Timestamp time.Time
}

func (e TaskSubmittedEvent) EventType() string { return EventTypeTaskSubmitted }
func (e TaskSubmittedEvent) TaskID() int64     { return e.ID }

// TaskStartedEvent is published when a task's agent process begins.
type TaskStartedEvent struct {
	ID        int64
	Title     string
	SessionID string
	Resumed   bool
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() int64     { return e.ID }

// TaskCompletedEvent is published when a task finishes successfully.
type TaskCompletedEvent struct {
	ID        int64
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() int64     { return e.ID }

// TaskFailedEvent is published when a task fails or its run is interrupted.
type TaskFailedEvent struct {
	ID          int64
	ExitInfo    string
	Interrupted bool
	Timestamp   time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() int64     { return e.ID }

// TaskCancelledEvent is published on explicit or cascaded cancellation.
type TaskCancelledEvent struct {
	ID        int64
	Cascaded  bool
	Timestamp time.Time
}

func (e TaskCancelledEvent) EventType() string { return EventTypeTaskCancelled }
func (e TaskCancelledEvent) TaskID() int64     { return e.ID }

// TaskResumedEvent is published when an interrupted task is re-admitted.
type TaskResumedEvent struct {
	ID        int64
	SessionID string
	Timestamp time.Time
}

func (e TaskResumedEvent) EventType() string { return EventTypeTaskResumed }
func (e TaskResumedEvent) TaskID() int64     { return e.ID }

// SchedulerProgressEvent is published after each scheduling tick.
type SchedulerProgressEvent struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
	Timestamp time.Time
}

func (e SchedulerProgressEvent) EventType() string { return EventTypeSchedulerProgress }
func (e SchedulerProgressEvent) TaskID() int64     { return 0 }
