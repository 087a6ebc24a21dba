package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pmartell/agentsched/internal/scheduler"
)

// SaveSession upserts the session record for a task. Each task has at most
// one session record: a resumed run replaces the previous one.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess scheduler.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (task_id, session_id, pid, log_path, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			session_id = excluded.session_id,
			pid = excluded.pid,
			log_path = excluded.log_path,
			created_at = excluded.created_at`,
		sess.TaskID, sess.SessionID, sess.Pid, sess.LogPath, formatTime(sess.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save session for task %d: %w", sess.TaskID, err)
	}
	return nil
}

// SessionByTask returns the session record for a task, or
// scheduler.ErrTaskNotFound if the task never started a run.
func (s *SQLiteStore) SessionByTask(ctx context.Context, taskID int64) (*scheduler.Session, error) {
	var (
		sess      scheduler.Session
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT task_id, session_id, pid, log_path, created_at
		FROM sessions WHERE task_id = ?`, taskID).
		Scan(&sess.TaskID, &sess.SessionID, &sess.Pid, &sess.LogPath, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, scheduler.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to query session for task %d: %w", taskID, err)
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("session for task %d: bad created_at: %w", taskID, err)
	}
	return &sess, nil
}
