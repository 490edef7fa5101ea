// Package document is the "Document Layer" of the application. It models a
// configuration document as an ordered tree of mappings, sequences, and
// scalars, decoupled from any concrete syntax. The loaders in stack, topology,
// and hcl all produce this tree, and every layer above operates on it.
//
// Nodes are treated as immutable after construction: callers must not modify
// the slices returned by Entries or Items. Transformations build new trees.
package document

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Kind discriminates the three node shapes a document tree is built from.
type Kind int

const (
	// Mapping is an ordered set of unique string keys with node values.
	Mapping Kind = iota
	// Sequence is an ordered list of nodes.
	Sequence
	// Scalar is a leaf holding a single cty value.
	Scalar
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Mapping:
		return "mapping"
	case Sequence:
		return "sequence"
	case Scalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// Entry is a single key/value pair inside a mapping node.
type Entry struct {
	Key   string
	Value *Node
}

// Node is one vertex of a document tree. Exactly one of the three shapes is
// populated, selected by Kind.
type Node struct {
	kind    Kind
	entries []Entry
	items   []*Node
	value   cty.Value
}

// NewMapping builds a mapping node from the given entries, preserving order.
// Key uniqueness is the caller's responsibility; Parse enforces it for
// documents loaded from source text.
func NewMapping(entries ...Entry) *Node {
	return &Node{kind: Mapping, entries: entries}
}

// NewSequence builds a sequence node from the given items, preserving order.
func NewSequence(items ...*Node) *Node {
	return &Node{kind: Sequence, items: items}
}

// NewScalar builds a scalar node holding the given value.
func NewScalar(v cty.Value) *Node {
	return &Node{kind: Scalar, value: v}
}

// NewString builds a scalar node holding a string value.
func NewString(s string) *Node {
	return NewScalar(cty.StringVal(s))
}

// NewInt builds a scalar node holding a whole number value.
func NewInt(i int64) *Node {
	return NewScalar(cty.NumberIntVal(i))
}

// NewBool builds a scalar node holding a boolean value.
func NewBool(b bool) *Node {
	return NewScalar(cty.BoolVal(b))
}

// Null builds a scalar node holding the null value.
func Null() *Node {
	return NewScalar(cty.NullVal(cty.DynamicPseudoType))
}

// Kind reports the shape of the node.
func (n *Node) Kind() Kind {
	return n.kind
}

// Entries returns the key/value pairs of a mapping node in declaration order,
// or nil for other kinds.
func (n *Node) Entries() []Entry {
	return n.entries
}

// Items returns the elements of a sequence node in order, or nil for other
// kinds.
func (n *Node) Items() []*Node {
	return n.items
}

// Value returns the scalar value, or cty.NilVal for non-scalar nodes.
func (n *Node) Value() cty.Value {
	if n.kind != Scalar {
		return cty.NilVal
	}
	return n.value
}

// Len returns the number of entries or items, and 0 for scalars.
func (n *Node) Len() int {
	switch n.kind {
	case Mapping:
		return len(n.entries)
	case Sequence:
		return len(n.items)
	default:
		return 0
	}
}

// Get looks up a key in a mapping node. The second result is false when the
// key is absent or the node is not a mapping.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.kind != Mapping {
		return nil, false
	}
	for _, e := range n.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Index returns the i-th element of a sequence node. The second result is
// false when the index is out of range or the node is not a sequence.
func (n *Node) Index(i int) (*Node, bool) {
	if n == nil || n.kind != Sequence || i < 0 || i >= len(n.items) {
		return nil, false
	}
	return n.items[i], true
}

// AsString renders a scalar node as a string. Non-string scalars are
// converted through the cty conversion rules, so numbers and booleans
// stringify the way they were written. The second result is false for
// non-scalar nodes, null values, and inconvertible types.
func (n *Node) AsString() (string, bool) {
	if n == nil || n.kind != Scalar || n.value.IsNull() {
		return "", false
	}
	s, err := convert.Convert(n.value, cty.String)
	if err != nil {
		return "", false
	}
	return s.AsString(), true
}

// Equal reports structural equality: same kinds, same keys in the same order,
// same items, and raw-equal scalar values throughout.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.kind != o.kind {
		return false
	}
	switch n.kind {
	case Mapping:
		if len(n.entries) != len(o.entries) {
			return false
		}
		for i, e := range n.entries {
			if e.Key != o.entries[i].Key || !e.Value.Equal(o.entries[i].Value) {
				return false
			}
		}
		return true
	case Sequence:
		if len(n.items) != len(o.items) {
			return false
		}
		for i, item := range n.items {
			if !item.Equal(o.items[i]) {
				return false
			}
		}
		return true
	default:
		return n.value.RawEquals(o.value)
	}
}
