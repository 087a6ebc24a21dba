package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pmartell/agentsched/internal/scheduler"
)

// HandleSubmit handles POST /tasks.
//
// Response:
//
//	201 Created: TaskView
//	400 Bad Request: validation error, unknown dependency, or cycle
func (s *Server) HandleSubmit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("invalid submit body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	task, err := s.coord.Submit(c.Request.Context(), scheduler.Draft{
		Title:     req.Title,
		Prompt:    req.Prompt,
		Cwd:       req.Cwd,
		DependsOn: req.DependsOn,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("task submitted", "task_id", task.ID, "title", task.Title)
	c.JSON(http.StatusCreated, taskView(task, true))
}

// HandleList handles GET /tasks. Tasks come back in dependency order,
// submission order breaking ties.
func (s *Server) HandleList(c *gin.Context) {
	tasks, err := s.coord.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := ListResponse{Tasks: make([]TaskView, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, taskView(t, false))
	}
	c.JSON(http.StatusOK, resp)
}

// HandleShow handles GET /tasks/:id.
func (s *Server) HandleShow(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}
	task, err := s.coord.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskView(task, true))
}

// HandleShowBySession handles GET /tasks/session/:session_id.
func (s *Server) HandleShowBySession(c *gin.Context) {
	task, err := s.coord.GetBySession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskView(task, true))
}

// HandleCancel handles POST /tasks/:id/cancel.
//
// Response:
//
//	200 OK: TaskView after the cancellation took effect
//	404 Not Found: no such task
//	409 Conflict: task already terminal
func (s *Server) HandleCancel(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}
	if err := s.coord.Cancel(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	task, err := s.coord.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskView(task, false))
}

// HandleResume handles POST /tasks/:id/resume.
//
// Response:
//
//	202 Accepted: ResumeResponse
//	404 Not Found: no such task
//	409 Conflict: task is not an interrupted failure
func (s *Server) HandleResume(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}
	if err := s.coord.Resume(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ResumeResponse{ID: id})
}

// HandleResumeBySession handles POST /tasks/session/:session_id/resume.
// The response carries the id of the task owning the session.
func (s *Server) HandleResumeBySession(c *gin.Context) {
	id, err := s.coord.ResumeSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ResumeResponse{ID: id})
}

// HandleHealthz handles GET /healthz.
func (s *Server) HandleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid task id",
			Code:  "INVALID_ID",
		})
		return 0, false
	}
	return id, true
}

// writeError maps scheduler errors to HTTP statuses. Anything unrecognized
// is a 500.
func (s *Server) writeError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	errCode := "INTERNAL"

	switch {
	case errors.Is(err, scheduler.ErrCycleDetected):
		statusCode = http.StatusBadRequest
		errCode = "CYCLE_DETECTED"
	case errors.Is(err, scheduler.ErrUnknownDependency):
		statusCode = http.StatusBadRequest
		errCode = "UNKNOWN_DEPENDENCY"
	case errors.Is(err, scheduler.ErrTaskNotFound):
		statusCode = http.StatusNotFound
		errCode = "TASK_NOT_FOUND"
	case errors.Is(err, scheduler.ErrAlreadyTerminal):
		statusCode = http.StatusConflict
		errCode = "ALREADY_TERMINAL"
	case errors.Is(err, scheduler.ErrNotResumable):
		statusCode = http.StatusConflict
		errCode = "NOT_RESUMABLE"
	}

	if statusCode == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	c.JSON(statusCode, ErrorResponse{Error: err.Error(), Code: errCode})
}
