// Package eval is the "Evaluation Layer" of the application. It walks a
// stack's entities in topological order and substitutes every reference
// whose target value is declared in the template itself. References into
// externally computed values, such as provider call results or cloud
// assigned attributes, stay in the document untouched, so a preview shows
// exactly what is knowable before an engine runs.
package eval

import (
	"context"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackgraphgo/internal/ctxlog"
	"github.com/vk/stackgraphgo/internal/document"
	"github.com/vk/stackgraphgo/internal/expr"
	"github.com/vk/stackgraphgo/internal/stack"
)

// Options tunes a preview run.
type Options struct {
	// WorkingDir is the value of the pulumi.cwd builtin. Empty means the
	// current directory, rendered as ".".
	WorkingDir string
}

// Result is a completed preview: the evaluation order and the resolved
// value of every entity. Entities whose value only exists after an external
// engine runs, such as fn::invoke variables, map to nil.
type Result struct {
	Order  []string
	Values map[string]*document.Node
}

// Value returns the resolved tree of one entity, nil when the entity's
// value is externally computed.
func (r *Result) Value(name string) *document.Node {
	return r.Values[name]
}

// Preview builds the stack's dependency graph, orders it, and resolves each
// entity's declared value against the entities evaluated before it. Since
// dependencies always come first in the order, every resolvable reference
// sees its target fully resolved.
func Preview(ctx context.Context, s *stack.Stack, opts Options) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	logger.Debug("Preview: Evaluation order computed.", "entity_count", len(order))

	r := &resolver{
		stack:      s,
		workingDir: opts.WorkingDir,
		values:     make(map[string]*document.Node, len(order)),
	}
	for _, name := range order {
		e, ok := s.Entity(name)
		if !ok {
			continue
		}
		base := e.DeclaredValue()
		if base == nil {
			r.values[name] = nil
			continue
		}
		r.values[name] = r.resolveNode(base)
	}

	return &Result{Order: order, Values: r.values}, nil
}

type resolver struct {
	stack      *stack.Stack
	workingDir string
	values     map[string]*document.Node
}

// resolveNode rebuilds a tree with every resolvable reference substituted.
// The input is never mutated.
func (r *resolver) resolveNode(n *document.Node) *document.Node {
	switch n.Kind() {
	case document.Mapping:
		entries := make([]document.Entry, 0, n.Len())
		for _, e := range n.Entries() {
			entries = append(entries, document.Entry{Key: e.Key, Value: r.resolveNode(e.Value)})
		}
		return document.NewMapping(entries...)
	case document.Sequence:
		items := make([]*document.Node, 0, n.Len())
		for _, item := range n.Items() {
			items = append(items, r.resolveNode(item))
		}
		return document.NewSequence(items...)
	default:
		return r.resolveScalar(n)
	}
}

func (r *resolver) resolveScalar(n *document.Node) *document.Node {
	v := n.Value()
	if v.IsNull() || v.Type() != cty.String || !strings.Contains(v.AsString(), "${") {
		return n
	}
	tmpl, err := expr.ParseTemplate(v.AsString())
	if err != nil {
		// Graph construction already validated every scalar; an error here
		// means the tree changed underneath us, so keep the original text.
		return n
	}

	// A scalar that is exactly one reference may resolve to a whole
	// subtree, not just a string.
	if ref, ok := tmpl.SingleReference(); ok {
		if resolved, ok := r.lookup(ref); ok {
			return resolved
		}
		return n
	}

	var b strings.Builder
	for _, part := range tmpl.Parts() {
		if !part.IsRef() {
			b.WriteString(part.Literal)
			continue
		}
		resolved, ok := r.lookup(*part.Ref)
		if !ok {
			b.WriteString(part.Raw)
			continue
		}
		s, ok := resolved.AsString()
		if !ok {
			// Non-scalar values cannot be spliced into text.
			b.WriteString(part.Raw)
			continue
		}
		b.WriteString(s)
	}
	return document.NewString(b.String())
}

// lookup resolves one reference against the values computed so far. The
// second result is false when the target's value is externally computed or
// the path leads nowhere; such references stay in the output as written.
func (r *resolver) lookup(ref expr.Reference) (*document.Node, bool) {
	if stack.IsBuiltin(ref.Entity) {
		return r.lookupBuiltin(ref)
	}

	current := r.values[ref.Entity]
	if current == nil {
		return nil, false
	}
	for _, seg := range ref.Path {
		var ok bool
		if seg.IsIndex() {
			current, ok = current.Index(seg.Index)
		} else {
			current, ok = current.Get(seg.Name)
		}
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func (r *resolver) lookupBuiltin(ref expr.Reference) (*document.Node, bool) {
	if ref.Entity != "pulumi" || len(ref.Path) != 1 || ref.Path[0].IsIndex() {
		return nil, false
	}
	switch ref.Path[0].Name {
	case "cwd":
		dir := r.workingDir
		if dir == "" {
			dir = "."
		}
		return document.NewString(dir), true
	case "project":
		if r.stack.Name == "" {
			return nil, false
		}
		return document.NewString(r.stack.Name), true
	default:
		return nil, false
	}
}
