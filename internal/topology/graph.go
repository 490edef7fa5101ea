package topology

import (
	"context"
	"errors"
	"strings"

	"github.com/vk/stackgraphgo/internal/dag"
	"github.com/vk/stackgraphgo/internal/expr"
)

// Graph builds the startup-order graph over the topology. A service depends
// on every service in its depends_on list, on the service whose network
// namespace it joins through the network_mode "service:<name>" form, and on
// every network it attaches to. Names that resolve to nothing are collected
// and reported together, not one at a time.
func (d *Document) Graph(ctx context.Context) (*dag.Graph, error) {
	ids := make([]string, 0, len(d.Services)+len(d.Networks))
	for _, s := range d.Services {
		ids = append(ids, ServiceID(s.Name))
	}
	for _, n := range d.Networks {
		ids = append(ids, NetworkID(n.Name))
	}

	var refs []dag.Ref
	var unknown []error
	for _, s := range d.Services {
		source := ServiceID(s.Name)

		for i, dep := range s.DependsOn {
			field := expr.IndexPath("depends_on", i)
			if _, ok := d.Service(dep); !ok {
				unknown = append(unknown, &dag.UnknownReferenceError{
					Name: dep, Entity: source, Field: field,
				})
				continue
			}
			refs = append(refs, dag.Ref{Source: source, Target: ServiceID(dep), Field: field})
		}

		for i, net := range s.Networks {
			field := expr.IndexPath("networks", i)
			if _, ok := d.Network(net); !ok {
				unknown = append(unknown, &dag.UnknownReferenceError{
					Name: net, Entity: source, Field: field,
				})
				continue
			}
			refs = append(refs, dag.Ref{Source: source, Target: NetworkID(net), Field: field})
		}

		if peer, ok := strings.CutPrefix(s.NetworkMode, "service:"); ok {
			if _, exists := d.Service(peer); !exists {
				unknown = append(unknown, &dag.UnknownReferenceError{
					Name: peer, Entity: source, Field: "network_mode",
				})
			} else {
				refs = append(refs, dag.Ref{Source: source, Target: ServiceID(peer), Field: "network_mode"})
			}
		}
	}

	if len(unknown) > 0 {
		return nil, errors.Join(unknown...)
	}
	return dag.Build(ctx, ids, refs, dag.BuildOptions{})
}

// StartupOrder returns the graph's topological order: every service after
// its dependencies, networks before the services attached to them.
func (d *Document) StartupOrder(ctx context.Context) ([]string, error) {
	g, err := d.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return g.TopologicalSort()
}
