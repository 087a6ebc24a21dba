package scheduler

import (
	"errors"
	"reflect"
	"testing"
)

func task(id int64, status TaskStatus, deps ...int64) *Task {
	return &Task{ID: id, Title: "t", Status: status, DependsOn: deps}
}

func TestValidateAdmission(t *testing.T) {
	tests := []struct {
		name      string
		existing  []*Task
		dependsOn []int64
		wantErr   error
	}{
		{
			name:      "no dependencies",
			existing:  nil,
			dependsOn: nil,
			wantErr:   nil,
		},
		{
			name:      "existing dependency",
			existing:  []*Task{task(1, TaskPending)},
			dependsOn: []int64{1},
			wantErr:   nil,
		},
		{
			name:      "multiple dependencies",
			existing:  []*Task{task(1, TaskCompleted), task(2, TaskPending, 1)},
			dependsOn: []int64{1, 2},
			wantErr:   nil,
		},
		{
			name:      "unknown dependency",
			existing:  []*Task{task(1, TaskPending)},
			dependsOn: []int64{7},
			wantErr:   ErrUnknownDependency,
		},
		{
			name:      "duplicate dependency",
			existing:  []*Task{task(1, TaskPending)},
			dependsOn: []int64{1, 1},
			wantErr:   ErrUnknownDependency,
		},
		{
			name:      "terminal dependency is still referenceable",
			existing:  []*Task{task(1, TaskCancelled)},
			dependsOn: []int64{1},
			wantErr:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph(tt.existing)
			err := g.ValidateAdmission(tt.dependsOn)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDetectsCycles(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []*Task
		wantErr bool
	}{
		{
			name:  "linear chain",
			tasks: []*Task{task(1, TaskPending), task(2, TaskPending, 1), task(3, TaskPending, 2)},
		},
		{
			name:  "diamond",
			tasks: []*Task{task(1, TaskPending), task(2, TaskPending, 1), task(3, TaskPending, 1), task(4, TaskPending, 2, 3)},
		},
		{
			name:    "direct cycle",
			tasks:   []*Task{task(1, TaskPending, 2), task(2, TaskPending, 1)},
			wantErr: true,
		},
		{
			name:    "transitive cycle",
			tasks:   []*Task{task(1, TaskPending, 3), task(2, TaskPending, 1), task(3, TaskPending, 2)},
			wantErr: true,
		},
		{
			name:    "self loop",
			tasks:   []*Task{task(1, TaskPending, 1)},
			wantErr: true,
		},
		{
			name:    "edge to missing task",
			tasks:   []*Task{task(1, TaskPending, 99)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGraph(tt.tasks).Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestReadySet(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*Task
		want  []int64
	}{
		{
			name:  "no dependencies all ready",
			tasks: []*Task{task(2, TaskPending), task(1, TaskPending)},
			want:  []int64{1, 2},
		},
		{
			name:  "pending gated on incomplete dep",
			tasks: []*Task{task(1, TaskRunning), task(2, TaskPending, 1)},
			want:  []int64{},
		},
		{
			name:  "dep completed unlocks dependent",
			tasks: []*Task{task(1, TaskCompleted), task(2, TaskPending, 1)},
			want:  []int64{2},
		},
		{
			name:  "failed dep never unlocks",
			tasks: []*Task{task(1, TaskFailed), task(2, TaskPending, 1)},
			want:  []int64{},
		},
		{
			name: "partial deps not enough",
			tasks: []*Task{
				task(1, TaskCompleted), task(2, TaskRunning), task(3, TaskPending, 1, 2),
			},
			want: []int64{},
		},
		{
			name:  "running task is not ready again",
			tasks: []*Task{task(1, TaskRunning)},
			want:  []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewGraph(tt.tasks).ReadySet()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCancelCascade(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*Task
		want  []int64
	}{
		{
			name:  "nothing failed",
			tasks: []*Task{task(1, TaskCompleted), task(2, TaskPending, 1)},
			want:  nil,
		},
		{
			name:  "direct dependent of failure",
			tasks: []*Task{task(1, TaskFailed), task(2, TaskPending, 1)},
			want:  []int64{2},
		},
		{
			name: "transitive chain",
			tasks: []*Task{
				task(1, TaskFailed), task(2, TaskPending, 1), task(3, TaskPending, 2),
			},
			want: []int64{2, 3},
		},
		{
			name: "cancelled root cascades too",
			tasks: []*Task{
				task(1, TaskCancelled), task(2, TaskPending, 1),
			},
			want: []int64{2},
		},
		{
			name: "unrelated branch untouched",
			tasks: []*Task{
				task(1, TaskFailed), task(2, TaskPending, 1),
				task(3, TaskCompleted), task(4, TaskPending, 3),
			},
			want: []int64{2},
		},
		{
			name: "running dependent is not cascaded",
			tasks: []*Task{
				task(1, TaskCompleted), task(2, TaskFailed, 1),
				task(3, TaskRunning, 1), task(4, TaskPending, 2, 3),
			},
			want: []int64{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewGraph(tt.tasks).CancelCascade()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopologicalOrder(t *testing.T) {
	g := NewGraph([]*Task{
		task(4, TaskPending, 2, 3),
		task(3, TaskPending, 1),
		task(2, TaskPending, 1),
		task(1, TaskPending),
		task(5, TaskPending),
	})

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int64{1, 5, 2, 3, 4}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("got %v, want %v", order, want)
	}

	// Same snapshot, same order.
	again, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(order, again) {
		t.Fatalf("order not deterministic: %v vs %v", order, again)
	}
}

func TestTopologicalOrderCycle(t *testing.T) {
	g := NewGraph([]*Task{task(1, TaskPending, 2), task(2, TaskPending, 1)})
	if _, err := g.TopologicalOrder(); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("got %v, want ErrCycleDetected", err)
	}
}

func TestResumable(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"interrupted failure", Task{Status: TaskFailed, Interrupted: true}, true},
		{"genuine failure", Task{Status: TaskFailed}, false},
		{"completed", Task{Status: TaskCompleted, Interrupted: true}, false},
		{"cancelled", Task{Status: TaskCancelled}, false},
		{"pending", Task{Status: TaskPending}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.Resumable(); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
