package dag_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stackgraphgo/internal/dag"
)

// buildGraph assembles a graph from declaration-ordered IDs and compact
// "source->target" edge declarations.
func buildGraph(t *testing.T, ids []string, edges ...string) *dag.Graph {
	t.Helper()
	g := dag.New()
	for _, id := range ids {
		require.NoError(t, g.AddNode(id))
	}
	for _, e := range edges {
		parts := strings.Split(e, "->")
		require.Len(t, parts, 2, "bad edge declaration %q", e)
		require.NoError(t, g.AddEdge(parts[0], parts[1], ""))
	}
	return g
}

func TestGraph_AddNode_RejectsDuplicate(t *testing.T) {
	t.Parallel()

	g := dag.New()
	require.NoError(t, g.AddNode("app"))
	err := g.AddNode("app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app")
}

func TestGraph_AddEdge_RequiresBothNodes(t *testing.T) {
	t.Parallel()

	g := dag.New()
	require.NoError(t, g.AddNode("app"))

	require.Error(t, g.AddEdge("app", "ghost", "properties.host"))
	require.Error(t, g.AddEdge("ghost", "app", "properties.host"))
}

func TestGraph_DependenciesAndDependentsFollowDeclarationOrder(t *testing.T) {
	t.Parallel()

	g := buildGraph(t,
		[]string{"resourceGroup", "workspace", "registry", "app"},
		"app->registry",
		"app->resourceGroup",
		"workspace->resourceGroup",
	)

	deps, err := g.Dependencies("app")
	require.NoError(t, err)
	assert.Equal(t, []string{"resourceGroup", "registry"}, deps)

	dependents, err := g.Dependents("resourceGroup")
	require.NoError(t, err)
	assert.Equal(t, []string{"workspace", "app"}, dependents)

	_, err = g.Dependencies("ghost")
	require.Error(t, err)
}

func TestTopologicalSort(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		ids   []string
		edges []string
		want  []string
	}{
		{
			name: "empty graph",
			want: []string{},
		},
		{
			name: "no edges keeps declaration order",
			ids:  []string{"c", "a", "b"},
			want: []string{"c", "a", "b"},
		},
		{
			name:  "chain",
			ids:   []string{"a", "b", "c"},
			edges: []string{"c->b", "b->a"},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "chain declared in reverse",
			ids:   []string{"c", "b", "a"},
			edges: []string{"c->b", "b->a"},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "diamond",
			ids:   []string{"app", "db", "cache", "lb"},
			edges: []string{"app->db", "app->cache", "lb->app"},
			want:  []string{"db", "cache", "app", "lb"},
		},
		{
			name:  "independent nodes keep declaration order",
			ids:   []string{"a", "b", "c", "d", "e", "f"},
			edges: []string{"c->d"},
			want:  []string{"a", "b", "d", "c", "e", "f"},
		},
		{
			name: "template evaluation order",
			ids:  []string{"resourceGroup", "workspace", "workspaceSharedKeys"},
			edges: []string{
				"workspace->resourceGroup",
				"workspaceSharedKeys->resourceGroup",
				"workspaceSharedKeys->workspace",
			},
			want: []string{"resourceGroup", "workspace", "workspaceSharedKeys"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := buildGraph(t, tc.ids, tc.edges...)
			got, err := g.TopologicalSort()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			// Deterministic: sorting again yields the same order.
			again, err := g.TopologicalSort()
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestTopologicalSort_DependenciesAlwaysPrecedeDependents(t *testing.T) {
	t.Parallel()

	g := buildGraph(t,
		[]string{"app", "db", "migrations", "cache"},
		"app->db",
		"app->cache",
		"migrations->db",
		"app->migrations",
	)

	order, err := g.TopologicalSort()
	require.NoError(t, err)

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	for _, e := range g.Edges() {
		assert.Less(t, position[e.Target], position[e.Source],
			"%s must come before %s", e.Target, e.Source)
	}
}

func TestTopologicalSort_ReportsCyclePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		ids      []string
		edges    []string
		wantPath []string
		wantMsg  string
	}{
		{
			name:     "three node cycle",
			ids:      []string{"a", "b", "c"},
			edges:    []string{"a->b", "b->c", "c->a"},
			wantPath: []string{"a", "b", "c"},
			wantMsg:  "dependency cycle: a -> b -> c -> a",
		},
		{
			name:     "two node cycle",
			ids:      []string{"x", "y"},
			edges:    []string{"x->y", "y->x"},
			wantPath: []string{"x", "y"},
			wantMsg:  "dependency cycle: x -> y -> x",
		},
		{
			name:     "self reference",
			ids:      []string{"a"},
			edges:    []string{"a->a"},
			wantPath: []string{"a"},
			wantMsg:  "dependency cycle: a -> a",
		},
		{
			name:     "cycle entered from outside is reported without the entry node",
			ids:      []string{"outside", "a", "b"},
			edges:    []string{"outside->a", "a->b", "b->a"},
			wantPath: []string{"a", "b"},
			wantMsg:  "dependency cycle: a -> b -> a",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := buildGraph(t, tc.ids, tc.edges...)
			_, err := g.TopologicalSort()
			require.Error(t, err)

			var cerr *dag.CycleError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.wantPath, cerr.Path)
			assert.Equal(t, tc.wantMsg, cerr.Error())

			_, err = g.TopologicalSortLevels()
			require.ErrorAs(t, err, &cerr)
		})
	}
}

func TestTopologicalSortLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		ids   []string
		edges []string
		want  [][]string
	}{
		{
			name: "no edges is a single level",
			ids:  []string{"a", "b", "c"},
			want: [][]string{{"a", "b", "c"}},
		},
		{
			name:  "diamond",
			ids:   []string{"app", "db", "cache", "lb"},
			edges: []string{"app->db", "app->cache", "lb->app"},
			want:  [][]string{{"db", "cache"}, {"app"}, {"lb"}},
		},
		{
			name:  "single dependency splits levels",
			ids:   []string{"a", "b", "c", "d", "e", "f"},
			edges: []string{"c->d"},
			want:  [][]string{{"a", "b", "d", "e", "f"}, {"c"}},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := buildGraph(t, tc.ids, tc.edges...)
			got, err := g.TopologicalSortLevels()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
