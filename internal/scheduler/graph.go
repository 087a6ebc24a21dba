package scheduler

import (
	"fmt"
	"sort"

	"github.com/gammazero/toposort"
)

// Graph is an in-memory view of the dependency graph derived from a store
// snapshot. It is rebuilt from persisted state on every scheduling tick, so
// readiness is never computed from a stale view.
type Graph struct {
	tasks      map[int64]*Task
	dependents map[int64][]int64 // depends_on id -> ids of tasks that depend on it
}

// NewGraph builds a graph from a snapshot of tasks.
func NewGraph(tasks []*Task) *Graph {
	g := &Graph{
		tasks:      make(map[int64]*Task, len(tasks)),
		dependents: make(map[int64][]int64),
	}
	for _, t := range tasks {
		g.tasks[t.ID] = t
	}
	for _, t := range tasks {
		for _, depID := range t.DependsOn {
			g.dependents[depID] = append(g.dependents[depID], t.ID)
		}
	}
	for _, ids := range g.dependents {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return g
}

// Task returns the snapshot task for the given id.
func (g *Graph) Task(id int64) (*Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Len returns the number of tasks in the snapshot.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// ValidateAdmission checks a prospective task's dependency set against the
// entire existing graph. Every referenced id must already exist, and adding
// the new edges must keep the whole graph acyclic. Nothing is persisted
// before this passes.
func (g *Graph) ValidateAdmission(dependsOn []int64) error {
	seen := make(map[int64]bool, len(dependsOn))
	for _, depID := range dependsOn {
		if seen[depID] {
			return fmt.Errorf("%w: duplicate dependency %d", ErrUnknownDependency, depID)
		}
		seen[depID] = true
		if _, ok := g.tasks[depID]; !ok {
			return fmt.Errorf("%w: task %d does not exist", ErrUnknownDependency, depID)
		}
	}

	// The admission node has no dependents yet, so the check runs over the
	// full existing edge set plus the new edges. Sentinel id -1 stands in
	// for the task being admitted (real ids start at 1).
	edges := g.edges()
	for depID := range seen {
		edges = append(edges, toposort.Edge{depID, int64(-1)})
	}
	if _, err := toposort.Toposort(edges); err != nil {
		return fmt.Errorf("%w: %v", ErrCycleDetected, err)
	}
	return nil
}

// Validate checks that the whole persisted graph is acyclic and that every
// dependency edge points at a known task. A failure here means the store
// contents violate the scheduler's invariants and the process must stop.
func (g *Graph) Validate() error {
	for _, t := range g.tasks {
		for _, depID := range t.DependsOn {
			if _, ok := g.tasks[depID]; !ok {
				return fmt.Errorf("task %d depends on non-existent task %d", t.ID, depID)
			}
		}
	}
	if _, err := toposort.Toposort(g.edges()); err != nil {
		return fmt.Errorf("%w: %v", ErrCycleDetected, err)
	}
	return nil
}

// ReadySet returns the ids of tasks eligible to run: pending, with every
// dependency completed. Ids come back ascending, which is FIFO submission
// order, so dispatch order follows directly.
func (g *Graph) ReadySet() []int64 {
	ready := []int64{}
	for id, t := range g.tasks {
		if t.Status != TaskPending {
			continue
		}
		eligible := true
		for _, depID := range t.DependsOn {
			dep, ok := g.tasks[depID]
			if !ok || dep.Status != TaskCompleted {
				eligible = false
				break
			}
		}
		if eligible {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
	return ready
}

// CancelCascade returns the ids of pending tasks that can never become ready
// because a transitive ancestor is failed or cancelled. Traversal is
// breadth-first over dependent edges with an explicit queue; results come
// back in traversal order with no duplicates.
func (g *Graph) CancelCascade() []int64 {
	var queue []int64
	for id, t := range g.tasks {
		if t.Status == TaskFailed || t.Status == TaskCancelled {
			queue = append(queue, id)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })

	visited := make(map[int64]bool, len(queue))
	for _, id := range queue {
		visited[id] = true
	}

	var doomed []int64
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, depID := range g.dependents[id] {
			if visited[depID] {
				continue
			}
			visited[depID] = true
			dep := g.tasks[depID]
			if dep.Status == TaskPending {
				doomed = append(doomed, depID)
			}
			queue = append(queue, depID)
		}
	}
	return doomed
}

// TopologicalOrder returns all task ids ordered by dependency depth, ties
// broken by ascending id (submission order). The result is deterministic
// for identical snapshots. Depths are computed with an iterative Kahn pass.
func (g *Graph) TopologicalOrder() ([]int64, error) {
	indegree := make(map[int64]int, len(g.tasks))
	depth := make(map[int64]int, len(g.tasks))
	for id, t := range g.tasks {
		indegree[id] = len(t.DependsOn)
	}

	var queue []int64
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, depID := range g.dependents[id] {
			if d := depth[id] + 1; d > depth[depID] {
				depth[depID] = d
			}
			indegree[depID]--
			if indegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}
	if processed != len(g.tasks) {
		return nil, fmt.Errorf("%w: %d tasks unreachable in topological order", ErrCycleDetected, len(g.tasks)-processed)
	}

	order := make([]int64, 0, len(g.tasks))
	for id := range g.tasks {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		if depth[order[i]] != depth[order[j]] {
			return depth[order[i]] < depth[order[j]]
		}
		return order[i] < order[j]
	})
	return order, nil
}

// edges builds the toposort edge list for the whole graph. Tasks without
// dependencies get a nil-origin edge so isolated tasks are still included.
func (g *Graph) edges() []toposort.Edge {
	var edges []toposort.Edge
	for id, t := range g.tasks {
		if len(t.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range t.DependsOn {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}
	return edges
}
