package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pmartell/agentsched/internal/server"
)

// Client talks JSON over HTTP to a running scheduler daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon at baseURL (e.g. http://127.0.0.1:39512).
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("daemon returned status %d", e.StatusCode)
}

// Submit creates a task and returns its full view.
func (c *Client) Submit(ctx context.Context, req server.SubmitRequest) (*server.TaskView, error) {
	var task server.TaskView
	if err := c.do(ctx, http.MethodPost, "/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns every task in dependency order.
func (c *Client) List(ctx context.Context) ([]server.TaskView, error) {
	var resp server.ListResponse
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Show returns one task, prompt included.
func (c *Client) Show(ctx context.Context, id int64) (*server.TaskView, error) {
	var task server.TaskView
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d", id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ShowBySession returns the task owning a session id.
func (c *Client) ShowBySession(ctx context.Context, sessionID string) (*server.TaskView, error) {
	var task server.TaskView
	if err := c.do(ctx, http.MethodGet, "/tasks/session/"+sessionID, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Cancel cancels a task and returns its state after the cancellation.
func (c *Client) Cancel(ctx context.Context, id int64) (*server.TaskView, error) {
	var task server.TaskView
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/cancel", id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Resume re-admits an interrupted task.
func (c *Client) Resume(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/resume", id), nil, nil)
}

// ResumeSession re-admits the interrupted task owning a session id and
// returns the task id.
func (c *Client) ResumeSession(ctx context.Context, sessionID string) (int64, error) {
	var resp server.ResumeResponse
	if err := c.do(ctx, http.MethodPost, "/tasks/session/"+sessionID+"/resume", nil, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Healthz reports whether the daemon is up.
func (c *Client) Healthz(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body server.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			apiErr.Code = body.Code
			apiErr.Message = body.Error
		}
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
