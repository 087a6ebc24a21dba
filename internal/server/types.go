package server

import (
	"time"

	"github.com/pmartell/agentsched/internal/scheduler"
)

// SubmitRequest is the body of POST /tasks.
type SubmitRequest struct {
	Title     string  `json:"title" binding:"required"`
	Prompt    string  `json:"prompt" binding:"required"`
	Cwd       string  `json:"cwd" binding:"required"`
	DependsOn []int64 `json:"depends_on"`
}

// TaskView is the JSON shape of a task. The prompt is included only on
// single-task responses; list responses leave it empty.
type TaskView struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Prompt      string     `json:"prompt,omitempty"`
	Cwd         string     `json:"cwd"`
	DependsOn   []int64    `json:"depends_on"`
	Status      string     `json:"status"`
	SessionID   string     `json:"session_id,omitempty"`
	LogPath     string     `json:"log_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	ExitInfo    string     `json:"exit_info,omitempty"`
	Interrupted bool       `json:"interrupted,omitempty"`
}

// ListResponse is the body of GET /tasks.
type ListResponse struct {
	Tasks []TaskView `json:"tasks"`
}

// ResumeResponse is the body of POST /tasks/:id/resume.
type ResumeResponse struct {
	ID int64 `json:"id"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func taskView(t *scheduler.Task, includePrompt bool) TaskView {
	v := TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Cwd:         t.Cwd,
		DependsOn:   t.DependsOn,
		Status:      t.Status.String(),
		SessionID:   t.SessionID,
		LogPath:     t.LogPath,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		FinishedAt:  t.FinishedAt,
		ExitInfo:    t.ExitInfo,
		Interrupted: t.Interrupted,
	}
	if v.DependsOn == nil {
		v.DependsOn = []int64{}
	}
	if includePrompt {
		v.Prompt = t.Prompt
	}
	return v
}
