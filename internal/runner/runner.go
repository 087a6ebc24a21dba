package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pmartell/agentsched/internal/scheduler"
)

const (
	// Stream lines carry full message payloads and can get large.
	maxStreamLine = 10 * 1024 * 1024

	defaultWatchInterval = 2 * time.Second
)

// Options configures the claude CLI invocation.
type Options struct {
	// ClaudePath is the executable to invoke. Defaults to "claude",
	// resolved via PATH.
	ClaudePath string

	// Model overrides the CLI's default model when non-empty.
	Model string

	// LogMode is "append" (default) or "truncate". Append preserves prior
	// run output in the task log across resumes.
	LogMode string

	// WatchInterval is the poll cadence for re-attached processes.
	WatchInterval time.Duration
}

// ClaudeRunner spawns claude CLI processes in stream-json mode, mirrors
// their stdout to a per-task JSONL log, and reports exits.
type ClaudeRunner struct {
	claudePath    string
	model         string
	truncateLogs  bool
	watchInterval time.Duration
	logger        *slog.Logger
}

// NewClaudeRunner creates a runner. A nil logger falls back to slog.Default.
func NewClaudeRunner(opts Options, logger *slog.Logger) *ClaudeRunner {
	if opts.ClaudePath == "" {
		opts.ClaudePath = "claude"
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = defaultWatchInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaudeRunner{
		claudePath:    opts.ClaudePath,
		model:         opts.Model,
		truncateLogs:  opts.LogMode == "truncate",
		watchInterval: opts.WatchInterval,
		logger:        logger,
	}
}

// buildArgs constructs the CLI arguments. A fresh run pins the session id so
// it is known before the process produces output; a resume re-opens the
// prior session.
func (r *ClaudeRunner) buildArgs(spec scheduler.RunSpec) []string {
	args := []string{
		"-p",
		"--output-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
	}
	if spec.Resume {
		args = append(args, "--resume", spec.SessionID)
	} else {
		args = append(args, "--session-id", spec.SessionID)
	}
	if r.model != "" {
		args = append(args, "--model", r.model)
	}
	return args
}

// Spawn starts a claude process for the spec. The prompt goes in on stdin;
// stdout is streamed line by line into the task log.
func (r *ClaudeRunner) Spawn(ctx context.Context, spec scheduler.RunSpec) (scheduler.RunHandle, error) {
	if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFlags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if r.truncateLogs {
		logFlags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	logFile, err := os.OpenFile(spec.LogPath, logFlags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open task log: %w", err)
	}

	if err := ctx.Err(); err != nil {
		logFile.Close()
		return nil, err
	}
	cmd := newCommand(r.claudePath, r.buildArgs(spec)...)
	cmd.Dir = spec.Cwd
	cmd.Stdin = strings.NewReader(spec.Prompt)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to start %s: %w", r.claudePath, err)
	}

	h := &processHandle{
		sessionID: spec.SessionID,
		pid:       cmd.Process.Pid,
		done:      make(chan scheduler.ExitResult, 1),
	}

	go r.supervise(cmd, h, logFile, stdoutPipe, stderrPipe, spec.TaskID)
	return h, nil
}

// supervise drains both pipes concurrently before calling cmd.Wait, so a
// chatty agent can never deadlock on a full pipe buffer.
func (r *ClaudeRunner) supervise(cmd *exec.Cmd, h *processHandle, logFile *os.File, stdout, stderr io.Reader, taskID int64) {
	var wg sync.WaitGroup
	var result streamResult
	var stderrBuf bytes.Buffer

	wg.Add(2)
	go func() {
		defer wg.Done()
		result = drainStream(stdout, logFile)
	}()
	go func() {
		defer wg.Done()
		io.Copy(&stderrBuf, io.LimitReader(stderr, 64*1024))
		io.Copy(io.Discard, stderr)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	if err := logFile.Close(); err != nil {
		r.logger.Warn("failed to close task log", "task_id", taskID, "error", err)
	}

	h.done <- r.exitResult(waitErr, result, stderrBuf.String(), taskID)
}

func (r *ClaudeRunner) exitResult(waitErr error, result streamResult, stderrText string, taskID int64) scheduler.ExitResult {
	if waitErr == nil {
		if result.sawResult && result.success {
			return scheduler.ExitResult{Success: true, Detail: "completed"}
		}
		detail := "agent reported failure"
		if !result.sawResult {
			detail = "agent exited without a result"
		} else if result.errorText != "" {
			detail = result.errorText
		}
		return scheduler.ExitResult{Detail: detail}
	}

	exitCode := -1
	signalled := false
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
		if ws, isWait := exitErr.Sys().(syscall.WaitStatus); isWait && ws.Signaled() {
			signalled = true
		}
	}

	// A signalled exit with no result line is an interruption, not a
	// verdict on the task itself. Everything else is a genuine failure.
	if signalled && !result.sawResult {
		return scheduler.ExitResult{
			ExitCode:    exitCode,
			Detail:      "interrupted: " + waitErr.Error(),
			Interrupted: true,
		}
	}

	detail := fmt.Sprintf("exit status %d", exitCode)
	if stderrText != "" {
		detail = fmt.Sprintf("%s: %s", detail, firstLine(stderrText))
	}
	r.logger.Debug("agent process failed", "task_id", taskID, "exit_code", exitCode)
	return scheduler.ExitResult{ExitCode: exitCode, Detail: detail}
}

// IsAlive reports whether a process recorded in a prior run still exists.
func (r *ClaudeRunner) IsAlive(pid int) bool {
	return processAlive(pid)
}

// Watch re-attaches supervision to a process that outlived a previous
// scheduler instance. The exit status of such a process is unknowable (it
// is not our child), so its eventual disappearance is reported as an
// interruption.
func (r *ClaudeRunner) Watch(sessionID string, pid int) scheduler.RunHandle {
	h := &watchHandle{
		sessionID: sessionID,
		pid:       pid,
		done:      make(chan scheduler.ExitResult, 1),
		stop:      make(chan struct{}),
	}
	go func() {
		ticker := time.NewTicker(r.watchInterval)
		defer ticker.Stop()
		stop := h.stop
		for processAlive(pid) {
			select {
			case <-ticker.C:
			case <-stop:
				// Poll once right away, then let the ticker pace the
				// remaining checks. A closed channel would otherwise win
				// every select.
				stop = nil
			}
		}
		h.done <- scheduler.ExitResult{
			Detail:      "interrupted: re-attached process exited",
			Interrupted: true,
		}
	}()
	return h
}

type processHandle struct {
	sessionID string
	pid       int
	done      chan scheduler.ExitResult

	terminateOnce sync.Once
}

func (h *processHandle) SessionID() string { return h.sessionID }
func (h *processHandle) Pid() int          { return h.pid }

func (h *processHandle) Terminate(grace time.Duration) {
	h.terminateOnce.Do(func() {
		terminateProcessGroup(h.pid, grace)
	})
}

func (h *processHandle) Done() <-chan scheduler.ExitResult { return h.done }

type watchHandle struct {
	sessionID string
	pid       int
	done      chan scheduler.ExitResult

	terminateOnce sync.Once
	stop          chan struct{}
}

func (h *watchHandle) SessionID() string { return h.sessionID }
func (h *watchHandle) Pid() int          { return h.pid }

func (h *watchHandle) Terminate(grace time.Duration) {
	h.terminateOnce.Do(func() {
		terminateProcessGroup(h.pid, grace)
		close(h.stop)
	})
}

func (h *watchHandle) Done() <-chan scheduler.ExitResult { return h.done }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxStreamLine)
	return sc
}
