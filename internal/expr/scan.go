package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackgraphgo/internal/document"
)

// FieldRef locates one reference inside a document tree: the dotted path of
// the string scalar holding it, and the parsed reference itself.
type FieldRef struct {
	Field string
	Ref   Reference
}

// Scan walks a document tree in declaration order and collects every
// reference found in its string scalars. Paths are relative to the scanned
// root, such as "properties.containers[0].image". A scalar that opens a ${
// sequence it cannot finish fails the whole scan with a SyntaxError wrapped
// in the field position.
func Scan(root *document.Node) ([]FieldRef, error) {
	var refs []FieldRef
	err := walkScan(root, "", &refs)
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func walkScan(n *document.Node, path string, out *[]FieldRef) error {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case document.Mapping:
		for _, e := range n.Entries() {
			if err := walkScan(e.Value, JoinPath(path, e.Key), out); err != nil {
				return err
			}
		}
	case document.Sequence:
		for i, item := range n.Items() {
			if err := walkScan(item, IndexPath(path, i), out); err != nil {
				return err
			}
		}
	default:
		v := n.Value()
		if v.IsNull() || v.Type() != cty.String {
			return nil
		}
		s := v.AsString()
		if !strings.Contains(s, "${") {
			return nil
		}
		tmpl, err := ParseTemplate(s)
		if err != nil {
			return fmt.Errorf("at %s: %w", path, err)
		}
		for _, ref := range tmpl.References() {
			*out = append(*out, FieldRef{Field: path, Ref: ref})
		}
	}
	return nil
}

// JoinPath appends a mapping key to a dotted path. Keys that do not look
// like plain identifiers are bracket-quoted so the result stays parseable.
func JoinPath(base, key string) string {
	if plainKey(key) {
		if base == "" {
			return key
		}
		return base + "." + key
	}
	return base + `["` + key + `"]`
}

// IndexPath appends a sequence index to a dotted path.
func IndexPath(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}

// plainKey permits the characters that appear in template and topology keys
// without quoting: identifiers plus the dashes and colons of names like
// node-app and fn::invoke.
func plainKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isIdentChar(c) || c == '-' || c == ':' {
			continue
		}
		return false
	}
	return true
}
