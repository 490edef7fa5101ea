// Package stack is the "Template Layer" of the application. It interprets a
// document tree as an infrastructure stack template: top-level metadata plus
// named variable and resource declarations, each one an entity the graph
// layer can order. Entities are created once at load time and are immutable
// afterwards; references are re-derived by scanning whenever a graph is
// built.
package stack

import (
	"context"
	"errors"
	"strings"

	"github.com/vk/stackgraphgo/internal/dag"
	"github.com/vk/stackgraphgo/internal/document"
	"github.com/vk/stackgraphgo/internal/expr"
)

// EntityKind discriminates the two declaration namespaces of a template.
type EntityKind int

const (
	// VariableEntity is a declaration under the variables block.
	VariableEntity EntityKind = iota
	// ResourceEntity is a declaration under the resources block.
	ResourceEntity
)

// String returns the lower-case name of the kind.
func (k EntityKind) String() string {
	if k == ResourceEntity {
		return "resource"
	}
	return "variable"
}

// Invoke is a variable computed by calling a provider function, the
// fn::invoke form. The result exists only after an external engine runs the
// call, so references into an invoke variable never resolve locally.
type Invoke struct {
	Function  string
	Arguments *document.Node
	Return    string
}

// Entity is one named top-level declaration: a variable or a resource.
type Entity struct {
	Name string
	Kind EntityKind
	// Type is the resource type token, such as
	// "azure-native:containerregistry:Registry". Empty for variables.
	Type string
	// Body is the full declaration body as it appeared in the document.
	Body *document.Node
	// Order is the entity's declaration index across the whole template.
	Order int

	invoke *Invoke
}

// Invoke returns the parsed fn::invoke form of a variable entity, if any.
func (e *Entity) Invoke() (*Invoke, bool) {
	if e.invoke == nil {
		return nil, false
	}
	return e.invoke, true
}

// Properties returns a resource entity's properties mapping, or nil when the
// entity has none.
func (e *Entity) Properties() *document.Node {
	if e.Kind != ResourceEntity {
		return nil
	}
	props, _ := e.Body.Get("properties")
	return props
}

// DeclaredValue returns the part of the entity whose fields can be resolved
// without running an external engine: a resource's declared properties, or a
// plain variable's value. Invoke variables return nil because their value is
// the result of the provider call.
func (e *Entity) DeclaredValue() *document.Node {
	switch {
	case e.Kind == ResourceEntity:
		return e.Properties()
	case e.invoke != nil:
		return nil
	default:
		return e.Body
	}
}

// Stack is a loaded template: metadata, declaration-ordered entities, and
// the optional outputs mapping.
type Stack struct {
	Name        string
	Description string
	Runtime     string
	// Outputs is the optional outputs mapping; nil when the template has
	// none. Output values may reference entities but are not entities
	// themselves.
	Outputs *document.Node

	doc      *document.Node
	entities []*Entity
	index    map[string]*Entity
}

// Document returns the underlying document tree the stack was loaded from.
func (s *Stack) Document() *document.Node {
	return s.doc
}

// Entities returns every declared entity in declaration order.
func (s *Stack) Entities() []*Entity {
	return s.entities
}

// Entity looks up a declared entity by name.
func (s *Stack) Entity(name string) (*Entity, bool) {
	e, ok := s.index[name]
	return e, ok
}

// IsBuiltin reports whether a name is provided by the engine rather than
// declared in the template, such as the pulumi namespace with its cwd and
// project values. Builtin references create no dependency edge.
func IsBuiltin(name string) bool {
	return name == "pulumi"
}

// References scans every entity body in declaration order and returns the
// dependency declarations found, one per reference occurrence. Explicit
// options.dependsOn entries given as plain names are included; entries
// written as ${...} references are already covered by the scan itself.
func (s *Stack) References() ([]dag.Ref, error) {
	var refs []dag.Ref
	for _, e := range s.entities {
		scanned, err := expr.Scan(e.Body)
		if err != nil {
			return nil, err
		}
		for _, fr := range scanned {
			refs = append(refs, dag.Ref{Source: e.Name, Target: fr.Ref.Entity, Field: fr.Field})
		}
		refs = append(refs, explicitDeps(e)...)
	}
	return refs, nil
}

// explicitDeps extracts plain-name entries from a resource's
// options.dependsOn list.
func explicitDeps(e *Entity) []dag.Ref {
	options, ok := e.Body.Get("options")
	if !ok {
		return nil
	}
	dependsOn, ok := options.Get("dependsOn")
	if !ok || dependsOn.Kind() != document.Sequence {
		return nil
	}
	var refs []dag.Ref
	for i, item := range dependsOn.Items() {
		name, ok := item.AsString()
		if !ok || strings.Contains(name, "${") {
			continue
		}
		refs = append(refs, dag.Ref{
			Source: e.Name,
			Target: name,
			Field:  expr.IndexPath("options.dependsOn", i),
		})
	}
	return refs
}

// Graph builds the dependency graph over the template's entities. Every
// reference must target a declared entity or a builtin name; all dangling
// references, including ones inside outputs, are reported together.
func (s *Stack) Graph(ctx context.Context) (*dag.Graph, error) {
	refs, err := s.References()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(s.entities))
	for _, e := range s.entities {
		ids = append(ids, e.Name)
	}

	g, buildErr := dag.Build(ctx, ids, refs, dag.BuildOptions{Builtin: IsBuiltin})

	outputErrs, err := s.checkOutputReferences()
	if err != nil {
		return nil, err
	}
	if buildErr != nil || len(outputErrs) > 0 {
		return nil, errors.Join(append([]error{buildErr}, outputErrs...)...)
	}
	return g, nil
}

// checkOutputReferences validates that outputs only reference declared
// entities. Outputs are not nodes, so they add no edges; a dangling
// reference is still an error.
func (s *Stack) checkOutputReferences() ([]error, error) {
	if s.Outputs == nil {
		return nil, nil
	}
	scanned, err := expr.Scan(s.Outputs)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, fr := range scanned {
		if IsBuiltin(fr.Ref.Entity) {
			continue
		}
		if _, ok := s.index[fr.Ref.Entity]; !ok {
			errs = append(errs, &dag.UnknownReferenceError{
				Name:   fr.Ref.Entity,
				Entity: "outputs",
				Field:  "outputs." + fr.Field,
			})
		}
	}
	return errs, nil
}
