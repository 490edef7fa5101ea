package hcl

import (
	"math/big"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackgraphgo/internal/document"
)

// exprNode translates one HCL expression into a document node without
// evaluating it. Literals keep their scalar type, bare traversals and
// template interpolations become the ${} reference strings the resolver
// understands, and object and tuple constructors recurse.
func exprNode(e hcl.Expression) (*document.Node, error) {
	switch ex := e.(type) {
	case *hclsyntax.LiteralValueExpr:
		return document.NewScalar(ex.Val), nil

	case *hclsyntax.ScopeTraversalExpr:
		s, err := traversalString(ex.Traversal)
		if err != nil {
			return nil, err
		}
		return document.NewString("${" + s + "}"), nil

	case *hclsyntax.TemplateExpr:
		return templateNode(ex)

	case *hclsyntax.TemplateWrapExpr:
		return exprNode(ex.Wrapped)

	case *hclsyntax.ParenthesesExpr:
		return exprNode(ex.Expression)

	case *hclsyntax.TupleConsExpr:
		items := make([]*document.Node, 0, len(ex.Exprs))
		for _, item := range ex.Exprs {
			node, err := exprNode(item)
			if err != nil {
				return nil, err
			}
			items = append(items, node)
		}
		return document.NewSequence(items...), nil

	case *hclsyntax.ObjectConsExpr:
		entries := make([]document.Entry, 0, len(ex.Items))
		seen := make(map[string]struct{}, len(ex.Items))
		for _, item := range ex.Items {
			keyVal, diags := item.KeyExpr.Value(nil)
			if diags.HasErrors() || keyVal.Type() != cty.String {
				return nil, rangeError("mapping keys must be static strings", item.KeyExpr.Range())
			}
			key := keyVal.AsString()
			if _, dup := seen[key]; dup {
				return nil, rangeError("duplicate mapping key "+key, item.KeyExpr.Range())
			}
			seen[key] = struct{}{}
			node, err := exprNode(item.ValueExpr)
			if err != nil {
				return nil, err
			}
			entries = append(entries, document.Entry{Key: key, Value: node})
		}
		return document.NewMapping(entries...), nil
	}

	// Expressions over literals only, such as a negated number, still
	// evaluate without an evaluation context.
	if v, diags := e.Value(nil); !diags.HasErrors() {
		return ctyNode(v, e.Range())
	}
	return nil, rangeError("unsupported expression", e.Range())
}

// templateNode renders a quoted template as a single string, keeping each
// interpolation in its ${} source form.
func templateNode(ex *hclsyntax.TemplateExpr) (*document.Node, error) {
	if ex.IsStringLiteral() {
		v, diags := ex.Value(nil)
		if diags.HasErrors() {
			return nil, rangeError("invalid string literal", ex.Range())
		}
		return document.NewScalar(v), nil
	}

	var b strings.Builder
	for _, part := range ex.Parts {
		switch p := part.(type) {
		case *hclsyntax.LiteralValueExpr:
			if p.Val.Type() != cty.String {
				return nil, rangeError("unsupported template part", p.Range())
			}
			b.WriteString(p.Val.AsString())
		case *hclsyntax.ScopeTraversalExpr:
			s, err := traversalString(p.Traversal)
			if err != nil {
				return nil, err
			}
			b.WriteString("${")
			b.WriteString(s)
			b.WriteString("}")
		default:
			return nil, rangeError("unsupported template part", part.Range())
		}
	}
	return document.NewString(b.String()), nil
}

// traversalString renders a traversal in the dotted reference syntax, so
// registry.loginServer and listKeys.keys[0].value read the same from both
// template surfaces. Index steps must be whole non-negative numbers; the
// reference grammar has no string subscripts.
func traversalString(t hcl.Traversal) (string, error) {
	for _, step := range t {
		s, ok := step.(hcl.TraverseIndex)
		if !ok {
			continue
		}
		if s.Key.Type() != cty.Number {
			return "", rangeError("references support numeric indexes only", s.SrcRange)
		}
		if i, acc := s.Key.AsBigFloat().Int64(); acc != big.Exact || i < 0 {
			return "", rangeError("reference index must be a whole non-negative number", s.SrcRange)
		}
	}
	return string(hclwrite.TokensForTraversal(t).Bytes()), nil
}

// ctyNode converts an already evaluated value into a document node.
func ctyNode(v cty.Value, rng hcl.Range) (*document.Node, error) {
	if v.IsNull() {
		return document.Null(), nil
	}
	t := v.Type()
	switch {
	case t == cty.String || t == cty.Number || t == cty.Bool:
		return document.NewScalar(v), nil

	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		var items []*document.Node
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			node, err := ctyNode(ev, rng)
			if err != nil {
				return nil, err
			}
			items = append(items, node)
		}
		return document.NewSequence(items...), nil

	case t.IsObjectType() || t.IsMapType():
		var entries []document.Entry
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			node, err := ctyNode(ev, rng)
			if err != nil {
				return nil, err
			}
			entries = append(entries, document.Entry{Key: k.AsString(), Value: node})
		}
		return document.NewMapping(entries...), nil
	}
	return nil, rangeError("unsupported value of type "+t.FriendlyName(), rng)
}

func rangeError(msg string, rng hcl.Range) error {
	return &document.ParseError{
		Msg:    msg,
		Line:   rng.Start.Line,
		Column: rng.Start.Column,
	}
}
