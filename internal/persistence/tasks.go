package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pmartell/agentsched/internal/scheduler"
)

const taskColumns = `id, title, prompt, cwd, status, session_id, log_path,
	created_at, started_at, finished_at, exit_info, interrupted`

// CreateTask inserts a task and its dependency edges in a single transaction.
// Returns scheduler.ErrUnknownDependency if any edge references a task that
// does not exist.
func (s *SQLiteStore) CreateTask(ctx context.Context, draft scheduler.Draft) (*scheduler.Task, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (title, prompt, cwd, status, created_at)
		VALUES (?, ?, ?, 'pending', ?)`,
		draft.Title, draft.Prompt, draft.Cwd, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get task id: %w", err)
	}

	for _, depID := range draft.DependsOn {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM tasks WHERE id = ?", depID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check dependency %d: %w", depID, err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("dependency %d: %w", depID, scheduler.ErrUnknownDependency)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id)
			VALUES (?, ?)`, id, depID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert dependency edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	task := &scheduler.Task{
		ID:        id,
		Title:     draft.Title,
		Prompt:    draft.Prompt,
		Cwd:       draft.Cwd,
		DependsOn: append([]int64(nil), draft.DependsOn...),
		Status:    scheduler.TaskPending,
		CreatedAt: now,
	}
	return task, nil
}

// Task returns a task by id, or scheduler.ErrTaskNotFound.
func (s *SQLiteStore) Task(ctx context.Context, id int64) (*scheduler.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, scheduler.ErrTaskNotFound
		}
		return nil, err
	}
	if err := s.loadDependencies(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// TaskBySession returns the task owning the given session id, or
// scheduler.ErrTaskNotFound.
func (s *SQLiteStore) TaskBySession(ctx context.Context, sessionID string) (*scheduler.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE session_id = ?", sessionID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, scheduler.ErrTaskNotFound
		}
		return nil, err
	}
	if err := s.loadDependencies(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns every task with its dependencies, oldest first.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*scheduler.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*scheduler.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	for _, task := range tasks {
		if err := s.loadDependencies(ctx, task); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// UpdateStatus applies a single atomic status transition. ClearRun resets
// the per-run fields so a resumed task starts clean.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, change scheduler.StatusChange) error {
	query := `
		UPDATE tasks SET
			status = ?,
			session_id = CASE WHEN ? != '' THEN ? ELSE session_id END,
			log_path = CASE WHEN ? != '' THEN ? ELSE log_path END,
			started_at = COALESCE(?, started_at),
			finished_at = CASE WHEN ? THEN NULL ELSE COALESCE(?, finished_at) END,
			exit_info = CASE WHEN ? THEN '' WHEN ? != '' THEN ? ELSE exit_info END,
			interrupted = CASE WHEN ? THEN 0 WHEN ? THEN 1 ELSE interrupted END
		WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query,
		change.Status.String(),
		change.SessionID, change.SessionID,
		change.LogPath, change.LogPath,
		formatTimePtr(change.StartedAt),
		change.ClearRun, formatTimePtr(change.FinishedAt),
		change.ClearRun, change.ExitInfo, change.ExitInfo,
		change.ClearRun, change.Interrupted,
		id)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return scheduler.ErrTaskNotFound
	}
	return nil
}

func (s *SQLiteStore) loadDependencies(ctx context.Context, task *scheduler.Task) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depends_on_id FROM task_dependencies
		WHERE task_id = ? ORDER BY depends_on_id ASC`, task.ID)
	if err != nil {
		return fmt.Errorf("failed to query dependencies for task %d: %w", task.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var depID int64
		if err := rows.Scan(&depID); err != nil {
			return fmt.Errorf("failed to scan dependency: %w", err)
		}
		task.DependsOn = append(task.DependsOn, depID)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*scheduler.Task, error) {
	var (
		task       scheduler.Task
		status     string
		createdAt  string
		startedAt  sql.NullString
		finishedAt sql.NullString
	)
	err := row.Scan(
		&task.ID, &task.Title, &task.Prompt, &task.Cwd, &status,
		&task.SessionID, &task.LogPath,
		&createdAt, &startedAt, &finishedAt,
		&task.ExitInfo, &task.Interrupted)
	if err != nil {
		return nil, err
	}

	task.Status, err = scheduler.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", task.ID, err)
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("task %d: bad created_at: %w", task.ID, err)
	}
	if task.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, fmt.Errorf("task %d: bad started_at: %w", task.ID, err)
	}
	if task.FinishedAt, err = parseTimePtr(finishedAt); err != nil {
		return nil, fmt.Errorf("task %d: bad finished_at: %w", task.ID, err)
	}
	return &task, nil
}
