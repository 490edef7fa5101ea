package dag

import "slices"

// visit states for the depth-first traversal.
const (
	unvisited = iota // not yet reached
	visiting         // on the current traversal stack
	visited          // fully explored, known cycle-free
)

// TopologicalSort returns every node ID ordered so that each node appears
// after all of its dependencies. The traversal is depth-first with
// three-color marking, visiting nodes and their dependencies in declaration
// order, which makes the result deterministic and keeps unrelated nodes in
// declaration order.
//
// A cycle fails the sort with a CycleError listing the full cycle path.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	state := make(map[string]int, len(g.order))
	order := make([]string, 0, len(g.order))
	var path []string

	var visit func(id string) *CycleError
	visit = func(id string) *CycleError {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			// The node is already on the traversal stack: everything from
			// its first occurrence to the top of the stack is the cycle.
			start := slices.Index(path, id)
			return &CycleError{Path: slices.Clone(path[start:])}
		}

		state[id] = visiting
		path = append(path, id)

		for _, dep := range g.sortedIDs(g.nodes[id].deps) {
			if cerr := visit(dep); cerr != nil {
				return cerr
			}
		}

		path = path[:len(path)-1]
		state[id] = visited
		order = append(order, id)
		return nil
	}

	for _, id := range g.order {
		if cerr := visit(id); cerr != nil {
			return nil, cerr
		}
	}
	return order, nil
}

// TopologicalSortLevels groups the sorted nodes into levels: level zero holds
// the nodes with no dependencies, and each later level holds nodes whose
// dependencies all live in earlier levels. Nodes within a level are in
// declaration order. Levels are what a parallel walker executes batch by
// batch.
func (g *Graph) TopologicalSortLevels() ([][]string, error) {
	// Run the full sort first so a cycle is reported with its path.
	if _, err := g.TopologicalSort(); err != nil {
		return nil, err
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	remaining := make(map[string]int, len(g.order))
	for id, n := range g.nodes {
		remaining[id] = len(n.deps)
	}

	var levels [][]string
	var current []string
	for _, id := range g.order {
		if remaining[id] == 0 {
			current = append(current, id)
		}
	}

	for len(current) > 0 {
		levels = append(levels, current)

		var next []string
		for _, id := range current {
			delete(remaining, id)
			for _, dependent := range g.sortedIDs(g.nodes[id].dependents) {
				if count, ok := remaining[dependent]; ok {
					remaining[dependent] = count - 1
					if remaining[dependent] == 0 {
						next = append(next, dependent)
					}
				}
			}
		}

		slices.SortFunc(next, func(a, b string) int {
			return g.nodes[a].ord - g.nodes[b].ord
		})
		current = next
	}

	return levels, nil
}
