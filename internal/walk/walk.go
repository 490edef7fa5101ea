// Package walk executes the nodes of a dependency graph concurrently. A
// bounded worker pool picks up nodes as their dependencies complete, so
// independent branches run in parallel while every node still starts after
// everything it depends on. A failed node takes its entire downstream with
// it; what happens to unrelated branches is configurable.
package walk

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vk/stackgraphgo/internal/ctxlog"
	"github.com/vk/stackgraphgo/internal/dag"
)

// Status describes the final state of one node after a walk.
type Status int32

const (
	Pending Status = iota
	Running
	Done
	Failed
	// Skipped marks a node that never ran because an upstream dependency
	// failed or the walk was canceled first.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Func is the work performed for a single node.
type Func func(ctx context.Context, id string) error

// Options tunes a walk.
type Options struct {
	// Workers bounds the number of nodes running at once. Zero or negative
	// means one worker per CPU.
	Workers int
	// KeepGoing leaves unrelated branches running after a node fails. The
	// default cancels the whole walk on the first failure; downstream
	// nodes of the failed one are skipped either way.
	KeepGoing bool
}

// NodeResult is the outcome of one node.
type NodeResult struct {
	Status Status
	Err    error
}

// Result is the outcome of a whole walk, keyed by node ID.
type Result struct {
	RunID string
	Nodes map[string]*NodeResult
}

type nodeState struct {
	id         string
	dependents []string
	depCount   atomic.Int32
	status     atomic.Int32
	err        error
	skipOnce   sync.Once
}

type walker struct {
	fn     Func
	nodes  map[string]*nodeState
	wg     sync.WaitGroup
	ready  chan *nodeState
	cancel context.CancelFunc
	stop   bool
}

// Walk runs fn for every node of g, dependencies first. It returns a
// per-node result even when the walk fails; the error summarizes which
// nodes caused the failure. The graph must be acyclic.
func Walk(ctx context.Context, g *dag.Graph, fn Func, opts Options) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	// A cyclic graph would leave its members waiting on each other
	// forever, so reject it before starting the pool.
	if _, err := g.TopologicalSort(); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ids := g.Nodes()
	w := &walker{
		fn:    fn,
		nodes: make(map[string]*nodeState, len(ids)),
		ready: make(chan *nodeState, len(ids)),
		stop:  !opts.KeepGoing,
	}
	for _, id := range ids {
		deps, err := g.Dependencies(id)
		if err != nil {
			return nil, err
		}
		dependents, err := g.Dependents(id)
		if err != nil {
			return nil, err
		}
		state := &nodeState{id: id, dependents: dependents}
		state.depCount.Store(int32(len(deps)))
		w.nodes[id] = state
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.cancel = cancel

	runID := uuid.NewString()
	logger.Debug("Walk: Starting run.", "run_id", runID, "node_count", len(ids), "workers", workers)

	rootCount := 0
	for _, id := range ids {
		state := w.nodes[id]
		if state.depCount.Load() == 0 {
			logger.Debug("Walk: Found root node.", "node_id", id)
			w.ready <- state
			rootCount++
		}
	}
	logger.Debug("Walk: Found all root nodes.", "count", rootCount)

	w.wg.Add(len(ids))
	for i := 0; i < workers; i++ {
		go w.worker(runCtx, i)
	}

	w.wg.Wait()
	close(w.ready)

	result := &Result{
		RunID: runID,
		Nodes: make(map[string]*NodeResult, len(ids)),
	}
	var failed []string
	var rootCause error
	for _, id := range ids {
		state := w.nodes[id]
		result.Nodes[id] = &NodeResult{
			Status: Status(state.status.Load()),
			Err:    state.err,
		}
		// A skipped node is a symptom; only nodes that actually failed
		// name the walk error.
		if Status(state.status.Load()) == Failed {
			failed = append(failed, id)
			if rootCause == nil {
				rootCause = state.err
			}
		}
	}

	if rootCause != nil {
		return result, fmt.Errorf("walk failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("walk canceled: %w", context.Cause(ctx))
	}
	logger.Debug("Walk: Run complete.", "run_id", runID)
	return result, nil
}

// worker is the processing loop of one pool member.
func (w *walker) worker(ctx context.Context, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Walk: Worker started.", "worker_id", workerID)

	for state := range w.ready {
		workerLogger := logger.With("worker_id", workerID, "node_id", state.id)

		if ctx.Err() != nil {
			// The node was unlocked but never ran. Its dependents can
			// never be unlocked through the ready channel now, so they
			// are skipped here.
			state.skipOnce.Do(func() {
				workerLogger.Warn("Walk: Context canceled, skipping node.")
				state.status.Store(int32(Skipped))
				state.err = context.Cause(ctx)
				w.wg.Done()
				w.skipDependents(ctx, state)
			})
			continue
		}

		workerLogger.Debug("Walk: Worker picked up node.")
		state.status.Store(int32(Running))
		err := w.fn(ctx, state.id)

		if err != nil {
			workerLogger.Error("Walk: Node failed.", "error", err)
			state.status.Store(int32(Failed))
			state.err = err
			if w.stop {
				w.cancel()
			}
			w.skipDependents(ctx, state)
			w.wg.Done()
			continue
		}

		workerLogger.Debug("Walk: Node complete.")
		state.status.Store(int32(Done))
		for _, depID := range state.dependents {
			if dep := w.nodes[depID]; dep.depCount.Add(-1) == 0 {
				workerLogger.Debug("Walk: Unlocking dependent node.", "dependent_id", depID)
				w.ready <- dep
			}
		}
		w.wg.Done()
	}
	logger.Debug("Walk: Worker finished.", "worker_id", workerID)
}

// skipDependents recursively marks everything downstream of a node that
// did not complete.
func (w *walker) skipDependents(ctx context.Context, state *nodeState) {
	logger := ctxlog.FromContext(ctx)
	for _, depID := range state.dependents {
		dep := w.nodes[depID]
		dep.skipOnce.Do(func() {
			logger.Warn("Walk: Skipping node after upstream failure.",
				"node_id", depID, "dependency", state.id)
			dep.status.Store(int32(Skipped))
			dep.err = fmt.Errorf("skipped: dependency %q did not complete", state.id)
			w.wg.Done()
			w.skipDependents(ctx, dep)
		})
	}
}
