package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pmartell/agentsched/internal/server"
)

func newStubDaemon(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestSubmitRoundTrip(t *testing.T) {
	var gotReq server.SubmitRequest
	cli := newStubDaemon(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(server.TaskView{ID: 7, Title: gotReq.Title, Status: "pending"})
	}))

	task, err := cli.Submit(context.Background(), server.SubmitRequest{
		Title: "build", Prompt: "p", Cwd: "/tmp", DependsOn: []int64{1, 2},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if task.ID != 7 || task.Title != "build" {
		t.Fatalf("task view %+v", task)
	}
	if len(gotReq.DependsOn) != 2 {
		t.Fatalf("request deps %v", gotReq.DependsOn)
	}
}

func TestListRoundTrip(t *testing.T) {
	cli := newStubDaemon(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks" {
			t.Errorf("path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(server.ListResponse{
			Tasks: []server.TaskView{{ID: 1, Status: "completed"}, {ID: 2, Status: "pending"}},
		})
	}))

	tasks, err := cli.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != 1 {
		t.Fatalf("tasks %+v", tasks)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	cli := newStubDaemon(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(server.ErrorResponse{
			Error: "task 3 is completed", Code: "ALREADY_TERMINAL",
		})
	}))

	_, err := cli.Cancel(context.Background(), 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "ALREADY_TERMINAL" {
		t.Fatalf("api error %+v", apiErr)
	}
}

func TestAPIErrorWithoutBody(t *testing.T) {
	cli := newStubDaemon(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := cli.Healthz(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d", apiErr.StatusCode)
	}
}

func TestResumePath(t *testing.T) {
	var gotPath string
	cli := newStubDaemon(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(server.ResumeResponse{ID: 9})
	}))

	if err := cli.Resume(context.Background(), 9); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if gotPath != "/tasks/9/resume" {
		t.Fatalf("path %q", gotPath)
	}
}

func TestResumeSessionPath(t *testing.T) {
	var gotPath string
	cli := newStubDaemon(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(server.ResumeResponse{ID: 4})
	}))

	id, err := cli.ResumeSession(context.Background(), "sess-abc")
	if err != nil {
		t.Fatalf("resume by session: %v", err)
	}
	if id != 4 {
		t.Fatalf("task id %d, want 4", id)
	}
	if gotPath != "/tasks/session/sess-abc/resume" {
		t.Fatalf("path %q", gotPath)
	}
}
