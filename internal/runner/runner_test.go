package runner

import (
	"bytes"
	"os"
	"reflect"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/pmartell/agentsched/internal/scheduler"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		spec scheduler.RunSpec
		want []string
	}{
		{
			name: "fresh run pins session id",
			opts: Options{},
			spec: scheduler.RunSpec{SessionID: "sess-1"},
			want: []string{
				"-p", "--output-format", "stream-json", "--verbose",
				"--dangerously-skip-permissions", "--session-id", "sess-1",
			},
		},
		{
			name: "resume re-opens prior session",
			opts: Options{},
			spec: scheduler.RunSpec{SessionID: "sess-1", Resume: true},
			want: []string{
				"-p", "--output-format", "stream-json", "--verbose",
				"--dangerously-skip-permissions", "--resume", "sess-1",
			},
		},
		{
			name: "model override appended",
			opts: Options{Model: "sonnet"},
			spec: scheduler.RunSpec{SessionID: "sess-1"},
			want: []string{
				"-p", "--output-format", "stream-json", "--verbose",
				"--dangerously-skip-permissions", "--session-id", "sess-1",
				"--model", "sonnet",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewClaudeRunner(tt.opts, nil)
			got := r.buildArgs(tt.spec)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("args %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDrainStream(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantSawResult bool
		wantSuccess   bool
		wantErrorText string
	}{
		{
			name: "successful run",
			input: `{"type":"system","subtype":"init","session_id":"abc"}
{"type":"assistant","message":{}}
{"type":"result","subtype":"success","is_error":false,"result":"done"}
`,
			wantSawResult: true,
			wantSuccess:   true,
		},
		{
			name: "agent reported error",
			input: `{"type":"result","subtype":"error_during_execution","is_error":true,"result":"tool crashed"}
`,
			wantSawResult: true,
			wantSuccess:   false,
			wantErrorText: "tool crashed",
		},
		{
			name: "error without message falls back to subtype",
			input: `{"type":"result","subtype":"error_max_turns","is_error":true}
`,
			wantSawResult: true,
			wantSuccess:   false,
			wantErrorText: "agent reported error_max_turns",
		},
		{
			name: "success subtype but error flag set",
			input: `{"type":"result","subtype":"success","is_error":true,"result":"partial"}
`,
			wantSawResult: true,
			wantSuccess:   false,
			wantErrorText: "partial",
		},
		{
			name:          "no result line",
			input:         `{"type":"system","subtype":"init"}` + "\n",
			wantSawResult: false,
		},
		{
			name: "garbage lines are ignored",
			input: `not json at all
{"type":"result","subtype":"success","is_error":false}
`,
			wantSawResult: true,
			wantSuccess:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log bytes.Buffer
			got := drainStream(strings.NewReader(tt.input), &log)
			if got.sawResult != tt.wantSawResult {
				t.Fatalf("sawResult %v, want %v", got.sawResult, tt.wantSawResult)
			}
			if got.success != tt.wantSuccess {
				t.Fatalf("success %v, want %v", got.success, tt.wantSuccess)
			}
			if got.errorText != tt.wantErrorText {
				t.Fatalf("errorText %q, want %q", got.errorText, tt.wantErrorText)
			}
			// Every line lands in the log verbatim.
			if log.String() != tt.input {
				t.Fatalf("log %q, want %q", log.String(), tt.input)
			}
		})
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Fatal("our own pid reported dead")
	}
	if processAlive(0) {
		t.Fatal("pid 0 reported alive")
	}
	if processAlive(-5) {
		t.Fatal("negative pid reported alive")
	}
}

// TestWatchTerminateSleepsBetweenPolls pins down the watcher's behavior
// after Terminate: while waiting out the kill grace for a process that
// ignores SIGTERM, the watcher must keep sleeping on its poll interval
// instead of spinning.
func TestWatchTerminateSleepsBetweenPolls(t *testing.T) {
	// The shell ignores SIGTERM and survives until SIGKILL ends the grace.
	cmd := newCommand("sh", "-c", "trap '' TERM; while :; do sleep 0.05; done")
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting child: %v", err)
	}
	pid := cmd.Process.Pid
	reaped := make(chan struct{})
	go func() {
		cmd.Wait()
		close(reaped)
	}()

	r := NewClaudeRunner(Options{WatchInterval: 20 * time.Millisecond}, nil)
	h := r.Watch("sess-watch", pid)

	var before syscall.Rusage
	syscall.Getrusage(syscall.RUSAGE_SELF, &before)
	h.Terminate(500 * time.Millisecond)

	select {
	case res := <-h.Done():
		if !res.Interrupted {
			t.Fatalf("watched exit %+v, want interrupted", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the exit")
	}

	var after syscall.Rusage
	syscall.Getrusage(syscall.RUSAGE_SELF, &after)
	cpu := time.Duration(after.Utime.Nano()-before.Utime.Nano()) +
		time.Duration(after.Stime.Nano()-before.Stime.Nano())
	if cpu > 250*time.Millisecond {
		t.Fatalf("watcher burned %v of CPU waiting out the grace period", cpu)
	}
	<-reaped
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"one line", "one line"},
		{"first\nsecond", "first"},
		{"  padded  \nrest", "padded"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Fatalf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
