package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Recover reconciles persisted state with reality after a restart. It must
// complete before the coordinator dispatches anything, so a task whose old
// process is still alive is never scheduled a second time.
//
// Tasks found running fall into two cases. If the recorded process is still
// alive, supervision is re-attached and the task keeps its slot until the
// process ends; the exit status of a re-attached process is unknowable, so
// its end is recorded as interrupted. If the process is gone, the task is
// marked failed with the interrupted flag, making it eligible for resume.
//
// Recover is idempotent: a second run finds no running tasks with dead
// processes and changes nothing.
func (c *Coordinator) Recover(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot, err := c.store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("recovery: loading tasks: %w", err)
	}
	g := NewGraph(snapshot)
	if err := g.Validate(); err != nil {
		// The persisted graph violates the scheduler's invariants; running
		// against it would make every scheduling decision unverifiable.
		return fmt.Errorf("recovery: store corrupted: %w", err)
	}

	var interrupted []*Task
	for _, t := range snapshot {
		if t.Status == TaskRunning {
			interrupted = append(interrupted, t)
		}
	}
	sort.Slice(interrupted, func(i, j int) bool { return interrupted[i].ID < interrupted[j].ID })

	for _, t := range interrupted {
		if _, live := c.running[t.ID]; live {
			// Already re-attached by a prior Recover call.
			continue
		}

		sess, err := c.store.SessionByTask(ctx, t.ID)
		if err != nil && !errors.Is(err, ErrTaskNotFound) {
			// Only a confirmed missing session means the process is gone.
			// A store read failure here must not condemn a live process.
			return fmt.Errorf("recovery: loading session for task %d: %w", t.ID, err)
		}
		if err == nil && sess.Pid > 0 && c.runner.IsAlive(sess.Pid) {
			handle := c.runner.Watch(sess.SessionID, sess.Pid)
			c.running[t.ID] = handle
			c.slotHeld[t.ID] = c.slots.TryAcquire(1)
			if !c.slotHeld[t.ID] {
				c.logger.Warn("re-attached task exceeds worker capacity",
					slog.Int64("task", t.ID), slog.Int("pid", sess.Pid))
			}
			c.superviseLocked(t.ID, handle)
			c.logger.Info("re-attached supervision to live process",
				slog.Int64("task", t.ID),
				slog.String("session", sess.SessionID),
				slog.Int("pid", sess.Pid))
			continue
		}

		now := time.Now().UTC()
		change := StatusChange{
			Status:      TaskFailed,
			FinishedAt:  &now,
			ExitInfo:    "interrupted: process not found after restart",
			Interrupted: true,
		}
		if err := c.store.UpdateStatus(ctx, t.ID, change); err != nil {
			return fmt.Errorf("recovery: reconciling task %d: %w", t.ID, err)
		}
		c.logger.Warn("reconciled interrupted task",
			slog.Int64("task", t.ID), slog.String("session", t.SessionID))
	}

	c.recovered = true
	c.tickLocked(ctx)
	return nil
}
