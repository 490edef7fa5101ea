package dag

import "sync"

// Graph is a collection of nodes and their labeled dependencies, representing
// a DAG. All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the node structures during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
	// order holds node IDs in declaration order.
	order []string
	// edges holds every labeled edge in insertion order. Two nodes may be
	// connected by several edges when several fields reference the same
	// target; the dependency relation itself is recorded once per pair.
	edges []Edge
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using string IDs),
// not by direct struct manipulation.
type node struct {
	// id is the unique identifier for the node.
	id string
	// ord is the node's declaration index, used as the traversal tie-break.
	ord int
	// deps holds the set of nodes that this node depends on (predecessors).
	deps map[string]*node
	// dependents holds the set of nodes that depend on this node (successors).
	dependents map[string]*node
}

// Edge is one labeled dependency: Source depends on Target, and Field records
// the position inside Source's document where the reference occurred.
type Edge struct {
	Source string
	Target string
	Field  string
}

// Ref is one reference declaration handed to Build: the entity it was found
// in, the entity it names, and the document field it occupies.
type Ref struct {
	Source string
	Target string
	Field  string
}
