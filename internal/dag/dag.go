package dag

import (
	"fmt"
	"slices"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. Declaration order
// follows the order of AddNode calls. Adding the same ID twice is an error.
func (g *Graph) AddNode(id string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("node already exists: %s", id)
	}

	g.nodes[id] = &node{
		id:         id,
		ord:        len(g.order),
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.order = append(g.order, id)
	return nil
}

// AddEdge records that the source node depends on the target node, labeled
// with the document field the reference came from. Both nodes must exist.
// A self-referential edge is allowed here; TopologicalSort reports it as a
// one-element cycle.
func (g *Graph) AddEdge(source, target, field string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	sourceNode, ok := g.nodes[source]
	if !ok {
		return fmt.Errorf("source node not found: %s", source)
	}
	targetNode, ok := g.nodes[target]
	if !ok {
		return fmt.Errorf("target node not found: %s", target)
	}

	sourceNode.deps[target] = targetNode
	targetNode.dependents[source] = sourceNode
	g.edges = append(g.edges, Edge{Source: source, Target: target, Field: field})
	return nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.order)
}

// Has reports whether a node with the given ID exists.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all node IDs in declaration order.
func (g *Graph) Nodes() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return slices.Clone(g.order)
}

// Edges returns every labeled edge in insertion order.
func (g *Graph) Edges() []Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return slices.Clone(g.edges)
}

// Dependencies returns the IDs the given node depends on, in declaration
// order of the targets.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return g.sortedIDs(n.deps), nil
}

// Dependents returns the IDs that depend on the given node, in declaration
// order of the sources.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return g.sortedIDs(n.dependents), nil
}

// sortedIDs flattens a node set into declaration order. Callers hold the
// mutex.
func (g *Graph) sortedIDs(set map[string]*node) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return g.nodes[a].ord - g.nodes[b].ord
	})
	return ids
}
