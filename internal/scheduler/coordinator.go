package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/pmartell/agentsched/internal/events"
)

// CoordinatorConfig configures the scheduling coordinator.
type CoordinatorConfig struct {
	Concurrency      int           // worker slots (default 2)
	LogDir           string        // directory for per-task agent logs
	TerminationGrace time.Duration // SIGTERM-to-SIGKILL window on cancel (default 10s)
}

// Coordinator owns all mutable scheduling state. Every scheduling decision
// runs under a single mutex: submissions, cancellations, resume requests,
// recovery, and completion handling are serialized, so readiness is always
// computed against a consistent, durably persisted snapshot. The external
// processes it supervises run concurrently up to the slot limit.
type Coordinator struct {
	cfg    CoordinatorConfig
	store  Store
	runner SessionRunner
	bus    *events.EventBus
	logger *slog.Logger

	slots *semaphore.Weighted

	mu        sync.Mutex
	running   map[int64]RunHandle // at most one live handle per task
	slotHeld  map[int64]bool      // whether the running task occupies a worker slot
	cancelReq map[int64]bool      // cancel requested while running
	recovered bool
	shutdown  bool

	wg    sync.WaitGroup // supervision goroutines
	fatal chan error     // store failures outside a request path
}

// NewCoordinator creates a coordinator. Recovery must be run before the
// coordinator will dispatch anything.
func NewCoordinator(cfg CoordinatorConfig, store Store, runner SessionRunner, bus *events.EventBus, logger *slog.Logger) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.TerminationGrace <= 0 {
		cfg.TerminationGrace = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:       cfg,
		store:     store,
		runner:    runner,
		bus:       bus,
		logger:    logger.With("component", "coordinator"),
		slots:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		running:   make(map[int64]RunHandle),
		slotHeld:  make(map[int64]bool),
		cancelReq: make(map[int64]bool),
		fatal:     make(chan error, 1),
	}
}

// Fatal delivers at most one unrecoverable store error encountered outside a
// request path. The daemon must stop when it fires: the scheduler cannot
// guarantee its invariants against a store it can no longer write.
func (c *Coordinator) Fatal() <-chan error {
	return c.fatal
}

// Submit validates a draft against the entire existing graph, persists it,
// and schedules a tick. Validation failures leave the store untouched.
func (c *Coordinator) Submit(ctx context.Context, draft Draft) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot, err := c.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	g := NewGraph(snapshot)
	if err := g.ValidateAdmission(draft.DependsOn); err != nil {
		return nil, err
	}

	task, err := c.store.CreateTask(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	c.logger.Info("task submitted",
		slog.Int64("task", task.ID),
		slog.String("title", task.Title),
		slog.Any("depends_on", task.DependsOn))
	c.publish(events.TopicTask, events.TaskSubmittedEvent{
		ID: task.ID, Title: task.Title, DependsOn: task.DependsOn, Timestamp: time.Now(),
	})

	c.tickLocked(ctx)
	return task, nil
}

// Cancel requests cancellation of a task. A pending task is finalized
// immediately; a running task has its process group signalled and is
// finalized when the process exits (bounded by the termination grace).
func (c *Coordinator) Cancel(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, err := c.store.Task(ctx, id)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return fmt.Errorf("%w: task %d is %s", ErrAlreadyTerminal, id, task.Status)
	}

	if task.Status == TaskRunning {
		c.cancelReq[id] = true
		if h, ok := c.running[id]; ok {
			c.logger.Info("terminating running task", slog.Int64("task", id))
			h.Terminate(c.cfg.TerminationGrace)
		}
		return nil
	}

	now := time.Now().UTC()
	change := StatusChange{
		Status:     TaskCancelled,
		FinishedAt: &now,
		ExitInfo:   "cancelled by request",
	}
	if err := c.store.UpdateStatus(ctx, id, change); err != nil {
		return fmt.Errorf("cancelling task %d: %w", id, err)
	}
	c.logger.Info("task cancelled", slog.Int64("task", id))
	c.publish(events.TopicTask, events.TaskCancelledEvent{ID: id, Timestamp: time.Now()})

	c.tickLocked(ctx)
	return nil
}

// Resume re-admits an interrupted task for execution. The task keeps its
// identity (id, created_at, dependencies) and its prior session id; the next
// dispatch starts a new run that re-attaches to that session.
func (c *Coordinator) Resume(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, err := c.store.Task(ctx, id)
	if err != nil {
		return err
	}
	if !task.Resumable() {
		return fmt.Errorf("%w: task %d is %s", ErrNotResumable, id, task.Status)
	}

	change := StatusChange{Status: TaskPending, ClearRun: true}
	if err := c.store.UpdateStatus(ctx, id, change); err != nil {
		return fmt.Errorf("resuming task %d: %w", id, err)
	}
	c.logger.Info("task re-admitted for resume",
		slog.Int64("task", id), slog.String("session", task.SessionID))
	c.publish(events.TopicTask, events.TaskResumedEvent{
		ID: id, SessionID: task.SessionID, Timestamp: time.Now(),
	})

	c.tickLocked(ctx)
	return nil
}

// ResumeSession resolves a session id to its task and resumes it.
func (c *Coordinator) ResumeSession(ctx context.Context, sessionID string) (int64, error) {
	task, err := c.store.TaskBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return task.ID, c.Resume(ctx, task.ID)
}

// Get returns a single task.
func (c *Coordinator) Get(ctx context.Context, id int64) (*Task, error) {
	return c.store.Task(ctx, id)
}

// GetBySession returns the task that owns the given session id.
func (c *Coordinator) GetBySession(ctx context.Context, sessionID string) (*Task, error) {
	return c.store.TaskBySession(ctx, sessionID)
}

// List returns every task in topological-then-FIFO order.
func (c *Coordinator) List(ctx context.Context) ([]*Task, error) {
	snapshot, err := c.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	g := NewGraph(snapshot)
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	tasks := make([]*Task, 0, len(order))
	for _, id := range order {
		t, _ := g.Task(id)
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Shutdown terminates all supervised processes and waits, bounded by ctx,
// for their supervisors to finish. Interrupted runs keep their recorded
// session so they can be resumed by a later scheduler instance.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.shutdown = true
	for id, h := range c.running {
		c.logger.Info("shutdown: terminating task", slog.Int64("task", id))
		h.Terminate(c.cfg.TerminationGrace)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tickLocked runs one scheduling pass. Caller must hold c.mu.
// Each pass recomputes the ready set from freshly loaded store state,
// cascades cancellations, and fills free worker slots in FIFO order.
// Every status change is persisted before its consequences are acted on.
func (c *Coordinator) tickLocked(ctx context.Context) {
	if !c.recovered || c.shutdown {
		return
	}

	for {
		snapshot, err := c.store.ListTasks(ctx)
		if err != nil {
			c.reportFatal(fmt.Errorf("loading tasks for tick: %w", err))
			return
		}
		g := NewGraph(snapshot)

		if err := c.cascadeLocked(ctx, g); err != nil {
			c.reportFatal(err)
			return
		}

		spawnFailed := false
		for _, id := range g.ReadySet() {
			if !c.slots.TryAcquire(1) {
				break
			}
			task, _ := g.Task(id)
			failed, err := c.dispatchLocked(ctx, task)
			if err != nil {
				c.slots.Release(1)
				c.reportFatal(err)
				return
			}
			if failed {
				spawnFailed = true
			}
		}

		c.publishProgress(g)

		// A spawn failure is a terminal transition: rebuild the snapshot so
		// its dependents are cascaded before the tick ends.
		if !spawnFailed {
			return
		}
	}
}

// cascadeLocked marks every pending task doomed by a failed or cancelled
// ancestor as cancelled. Breadth-first and transitive.
func (c *Coordinator) cascadeLocked(ctx context.Context, g *Graph) error {
	for _, id := range g.CancelCascade() {
		now := time.Now().UTC()
		change := StatusChange{
			Status:     TaskCancelled,
			FinishedAt: &now,
			ExitInfo:   "cancelled: upstream dependency failed or was cancelled",
		}
		if err := c.store.UpdateStatus(ctx, id, change); err != nil {
			return fmt.Errorf("cascading cancellation to task %d: %w", id, err)
		}
		if t, ok := g.Task(id); ok {
			t.Status = TaskCancelled
		}
		c.logger.Info("task cancelled by cascade", slog.Int64("task", id))
		c.publish(events.TopicTask, events.TaskCancelledEvent{ID: id, Cascaded: true, Timestamp: time.Now()})
	}
	return nil
}

// dispatchLocked starts one ready task. The slot is already acquired.
// Returns failed=true when the process could not be spawned; the task is
// then already finalized and the slot released. A non-nil error is a store
// failure and fatal.
func (c *Coordinator) dispatchLocked(ctx context.Context, task *Task) (failed bool, err error) {
	resume := task.SessionID != ""
	sessionID := task.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logPath := task.LogPath
	if logPath == "" {
		logPath = filepath.Join(c.cfg.LogDir, fmt.Sprintf("task_%d.jsonl", task.ID))
	}

	// Persist the transition before spawning: if the process dies right
	// after the write, recovery sees a running task and reconciles it.
	now := time.Now().UTC()
	change := StatusChange{
		Status:    TaskRunning,
		SessionID: sessionID,
		LogPath:   logPath,
		StartedAt: &now,
		ClearRun:  true,
	}
	if err := c.store.UpdateStatus(ctx, task.ID, change); err != nil {
		return false, fmt.Errorf("marking task %d running: %w", task.ID, err)
	}

	spec := RunSpec{
		TaskID:    task.ID,
		Prompt:    task.Prompt,
		Cwd:       task.Cwd,
		SessionID: sessionID,
		LogPath:   logPath,
		Resume:    resume,
	}
	handle, spawnErr := c.runner.Spawn(ctx, spec)
	if spawnErr != nil {
		// Not retried: an immediate terminal transition, never a leaked slot.
		finished := time.Now().UTC()
		change := StatusChange{
			Status:     TaskFailed,
			FinishedAt: &finished,
			ExitInfo:   fmt.Sprintf("spawn: %v", spawnErr),
		}
		if err := c.store.UpdateStatus(ctx, task.ID, change); err != nil {
			return false, fmt.Errorf("marking task %d spawn failure: %w", task.ID, err)
		}
		c.slots.Release(1)
		c.logger.Error("task spawn failed",
			slog.Int64("task", task.ID), slog.String("error", spawnErr.Error()))
		c.publish(events.TopicTask, events.TaskFailedEvent{
			ID: task.ID, ExitInfo: change.ExitInfo, Timestamp: time.Now(),
		})
		return true, nil
	}

	if err := c.store.SaveSession(ctx, Session{
		TaskID:    task.ID,
		SessionID: sessionID,
		Pid:       handle.Pid(),
		LogPath:   logPath,
		CreatedAt: now,
	}); err != nil {
		return false, fmt.Errorf("saving session for task %d: %w", task.ID, err)
	}

	task.Status = TaskRunning
	c.running[task.ID] = handle
	c.slotHeld[task.ID] = true
	c.superviseLocked(task.ID, handle)

	c.logger.Info("task started",
		slog.Int64("task", task.ID),
		slog.String("session", sessionID),
		slog.Int("pid", handle.Pid()),
		slog.Bool("resume", resume))
	c.publish(events.TopicTask, events.TaskStartedEvent{
		ID: task.ID, Title: task.Title, SessionID: sessionID, Resumed: resume, Timestamp: time.Now(),
	})
	return false, nil
}

// superviseLocked observes one process exit asynchronously and feeds it back
// as a completion event. Caller must hold c.mu.
func (c *Coordinator) superviseLocked(id int64, handle RunHandle) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := <-handle.Done()
		c.onExit(id, res)
	}()
}

// onExit finalizes a task after its process ended and runs the next tick.
func (c *Coordinator) onExit(id int64, res ExitResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.running, id)
	heldSlot := c.slotHeld[id]
	delete(c.slotHeld, id)
	wasCancelled := c.cancelReq[id]
	delete(c.cancelReq, id)

	now := time.Now().UTC()
	change := StatusChange{FinishedAt: &now}
	switch {
	case wasCancelled:
		change.Status = TaskCancelled
		change.ExitInfo = "cancelled by request"
	case c.shutdown && !res.Success:
		// Interrupted by scheduler shutdown: keep the session resumable.
		change.Status = TaskFailed
		change.ExitInfo = "interrupted: scheduler shutdown"
		change.Interrupted = true
	case res.Success:
		change.Status = TaskCompleted
		change.ExitInfo = res.Detail
	default:
		change.Status = TaskFailed
		change.ExitInfo = res.Detail
		change.Interrupted = res.Interrupted
	}

	ctx := context.Background()
	if err := c.store.UpdateStatus(ctx, id, change); err != nil {
		if heldSlot {
			c.slots.Release(1)
		}
		c.reportFatal(fmt.Errorf("finalizing task %d: %w", id, err))
		return
	}
	if heldSlot {
		c.slots.Release(1)
	}

	switch change.Status {
	case TaskCompleted:
		c.logger.Info("task completed", slog.Int64("task", id))
		c.publish(events.TopicTask, events.TaskCompletedEvent{ID: id, Timestamp: time.Now()})
	case TaskCancelled:
		c.logger.Info("task cancelled", slog.Int64("task", id))
		c.publish(events.TopicTask, events.TaskCancelledEvent{ID: id, Timestamp: time.Now()})
	default:
		c.logger.Warn("task failed",
			slog.Int64("task", id),
			slog.String("exit_info", change.ExitInfo),
			slog.Bool("interrupted", change.Interrupted))
		c.publish(events.TopicTask, events.TaskFailedEvent{
			ID: id, ExitInfo: change.ExitInfo, Interrupted: change.Interrupted, Timestamp: time.Now(),
		})
	}

	c.tickLocked(ctx)
}

func (c *Coordinator) publish(topic string, ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(topic, ev)
	}
}

func (c *Coordinator) publishProgress(g *Graph) {
	if c.bus == nil {
		return
	}
	ev := events.SchedulerProgressEvent{Total: g.Len(), Timestamp: time.Now()}
	for id := range g.tasks {
		switch g.tasks[id].Status {
		case TaskPending:
			ev.Pending++
		case TaskRunning:
			ev.Running++
		case TaskCompleted:
			ev.Completed++
		case TaskFailed:
			ev.Failed++
		case TaskCancelled:
			ev.Cancelled++
		}
	}
	c.bus.Publish(events.TopicScheduler, ev)
}

func (c *Coordinator) reportFatal(err error) {
	c.logger.Error("fatal scheduler error", slog.String("error", err.Error()))
	select {
	case c.fatal <- err:
	default:
	}
}
