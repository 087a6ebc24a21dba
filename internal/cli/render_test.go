package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/pmartell/agentsched/internal/server"
)

func TestRenderDeps(t *testing.T) {
	tests := []struct {
		deps []int64
		want string
	}{
		{nil, "-"},
		{[]int64{3}, "3"},
		{[]int64{1, 2, 5}, "1,2,5"},
	}
	for _, tt := range tests {
		if got := renderDeps(tt.deps); got != tt.want {
			t.Errorf("renderDeps(%v) = %q, want %q", tt.deps, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a very long title that overflows", 10, "a very ..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestRenderTaskTable(t *testing.T) {
	out := renderTaskTable([]server.TaskView{
		{ID: 1, Title: "build", Status: "completed", CreatedAt: time.Now()},
		{ID: 2, Title: "test", Status: "failed", Interrupted: true, DependsOn: []int64{1}, SessionID: "0123456789abcdef"},
	})

	if !strings.Contains(out, "build") || !strings.Contains(out, "test") {
		t.Fatalf("table missing rows:\n%s", out)
	}
	// An interrupted failure is shown as such, not as a plain failure.
	if !strings.Contains(out, "interrupted") {
		t.Fatalf("interrupted failure not surfaced:\n%s", out)
	}
	// Session ids are shortened for the table.
	if strings.Contains(out, "0123456789abcdef") {
		t.Fatalf("full session id leaked into table:\n%s", out)
	}
	if !strings.Contains(out, "01234567") {
		t.Fatalf("short session id missing:\n%s", out)
	}
}

func TestRenderTaskDetail(t *testing.T) {
	now := time.Now()
	out := renderTaskDetail(&server.TaskView{
		ID:        4,
		Title:     "deploy",
		Status:    "pending",
		DependsOn: []int64{1, 2},
		Cwd:       "/srv/app",
		CreatedAt: now,
		Prompt:    "roll it out",
	})

	for _, want := range []string{"deploy", "1,2", "/srv/app", "roll it out"} {
		if !strings.Contains(out, want) {
			t.Fatalf("detail missing %q:\n%s", want, out)
		}
	}
}
