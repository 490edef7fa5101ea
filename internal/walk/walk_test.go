package walk_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stackgraphgo/internal/dag"
	"github.com/vk/stackgraphgo/internal/walk"
)

// buildGraph assembles a graph from node IDs and "source->target" edge
// declarations, where the source depends on the target.
func buildGraph(t *testing.T, ids []string, edges []string) *dag.Graph {
	t.Helper()
	g := dag.New()
	for _, id := range ids {
		require.NoError(t, g.AddNode(id))
	}
	for _, e := range edges {
		var src, dst string
		for i := 0; i < len(e)-1; i++ {
			if e[i] == '-' && e[i+1] == '>' {
				src, dst = e[:i], e[i+2:]
			}
		}
		require.NoError(t, g.AddEdge(src, dst, ""))
	}
	return g
}

// recorder captures fn invocations in completion order.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) visit(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, id)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func TestWalk_DependenciesRunFirst(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, []string{"c", "b", "a"}, []string{"c->b", "b->a"})
	rec := &recorder{}

	result, err := walk.Walk(context.Background(), g, rec.visit, walk.Options{Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, rec.snapshot())
	assert.NotEmpty(t, result.RunID)
	for id, node := range result.Nodes {
		assert.Equal(t, walk.Done, node.Status, "node %s", id)
		assert.NoError(t, node.Err)
	}
}

func TestWalk_EveryNodeRunsExactlyOnce(t *testing.T) {
	t.Parallel()

	g := buildGraph(t,
		[]string{"db", "cache", "app", "lb"},
		[]string{"app->db", "app->cache", "lb->app"})

	var mu sync.Mutex
	counts := map[string]int{}
	fn := func(_ context.Context, id string) error {
		mu.Lock()
		defer mu.Unlock()
		counts[id]++
		return nil
	}

	_, err := walk.Walk(context.Background(), g, fn, walk.Options{Workers: 3})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, counts, 4)
	for id, n := range counts {
		assert.Equal(t, 1, n, "node %s", id)
	}
}

func TestWalk_FailureSkipsDownstream(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, []string{"b", "a"}, []string{"a->b"})
	sentinel := errors.New("exec failed")
	rec := &recorder{}
	fn := func(ctx context.Context, id string) error {
		if err := rec.visit(ctx, id); err != nil {
			return err
		}
		if id == "b" {
			return sentinel
		}
		return nil
	}

	result, err := walk.Walk(context.Background(), g, fn, walk.Options{Workers: 2})
	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "walk failed for b")

	assert.Equal(t, []string{"b"}, rec.snapshot(), "downstream node must never run")
	assert.Equal(t, walk.Failed, result.Nodes["b"].Status)
	assert.Equal(t, walk.Skipped, result.Nodes["a"].Status)
	assert.ErrorContains(t, result.Nodes["a"].Err, `dependency "b" did not complete`)
}

func TestWalk_SkipCascadesThroughChain(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, []string{"base", "mid", "top"}, []string{"mid->base", "top->mid"})
	fn := func(_ context.Context, id string) error {
		if id == "base" {
			return errors.New("boom")
		}
		return nil
	}

	result, err := walk.Walk(context.Background(), g, fn, walk.Options{Workers: 2})
	require.Error(t, err)

	assert.Equal(t, walk.Failed, result.Nodes["base"].Status)
	assert.Equal(t, walk.Skipped, result.Nodes["mid"].Status)
	assert.Equal(t, walk.Skipped, result.Nodes["top"].Status)
}

func TestWalk_KeepGoingRunsIndependentBranches(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, []string{"base", "app", "other"}, []string{"app->base"})
	rec := &recorder{}
	fn := func(ctx context.Context, id string) error {
		if err := rec.visit(ctx, id); err != nil {
			return err
		}
		if id == "base" {
			return errors.New("boom")
		}
		return nil
	}

	result, err := walk.Walk(context.Background(), g, fn, walk.Options{Workers: 1, KeepGoing: true})
	require.Error(t, err)

	assert.Equal(t, walk.Failed, result.Nodes["base"].Status)
	assert.Equal(t, walk.Skipped, result.Nodes["app"].Status)
	assert.Equal(t, walk.Done, result.Nodes["other"].Status)
	assert.Contains(t, rec.snapshot(), "other")
}

func TestWalk_CanceledContextSkipsEverything(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, []string{"a", "b"}, []string{"b->a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn := func(context.Context, string) error {
		t.Error("node ran despite canceled context")
		return nil
	}

	result, err := walk.Walk(ctx, g, fn, walk.Options{Workers: 2})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, walk.Skipped, result.Nodes["a"].Status)
	assert.Equal(t, walk.Skipped, result.Nodes["b"].Status)
}

func TestWalk_CyclicGraphFails(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, []string{"a", "b"}, []string{"a->b", "b->a"})

	result, err := walk.Walk(context.Background(), g, func(context.Context, string) error {
		return nil
	}, walk.Options{})
	require.Error(t, err)
	assert.Nil(t, result)

	var cerr *dag.CycleError
	require.ErrorAs(t, err, &cerr)
}

func TestWalk_EmptyGraph(t *testing.T) {
	t.Parallel()

	result, err := walk.Walk(context.Background(), dag.New(), func(context.Context, string) error {
		return nil
	}, walk.Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, result.Nodes)
}
