package dag

import (
	"context"
	"errors"

	"github.com/vk/stackgraphgo/internal/ctxlog"
)

// BuildOptions tunes graph construction.
type BuildOptions struct {
	// Builtin reports names that resolve outside the graph, such as the
	// "pulumi" namespace in stack templates. References to builtin names
	// create no edge and are never unknown.
	Builtin func(name string) bool
}

// Build constructs a dependency graph from declaration-ordered entity IDs
// and the references found in their documents.
//
// Every reference either targets a declared entity, producing a labeled
// edge, or is collected as an UnknownReferenceError. All dangling references
// are reported together in a single joined error, not just the first one.
func Build(ctx context.Context, ids []string, refs []Ref, opts BuildOptions) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")

	graph := New()

	// First pass: create one node per declared entity.
	for _, id := range ids {
		if err := graph.AddNode(id); err != nil {
			return nil, err
		}
	}
	logger.Debug("Build: Node creation complete.", "node_count", graph.Len())

	// Second pass: link references to their targets.
	var unknown []error
	for _, ref := range refs {
		if opts.Builtin != nil && opts.Builtin(ref.Target) {
			logger.Debug("Build: Skipping builtin reference.", "source", ref.Source, "target", ref.Target)
			continue
		}
		if !graph.Has(ref.Target) {
			unknown = append(unknown, &UnknownReferenceError{
				Name:   ref.Target,
				Entity: ref.Source,
				Field:  ref.Field,
			})
			continue
		}
		if err := graph.AddEdge(ref.Source, ref.Target, ref.Field); err != nil {
			return nil, err
		}
	}

	if len(unknown) > 0 {
		logger.Debug("Build: Linking failed.", "unknown_count", len(unknown))
		return nil, errors.Join(unknown...)
	}

	logger.Debug("Build: Node linking complete.", "edge_count", len(graph.Edges()))
	return graph, nil
}
