package document

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// ParseError reports a malformed document: unreadable syntax, duplicate
// mapping keys, or nodes the tree model cannot represent.
type ParseError struct {
	Msg    string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads YAML source into a document tree. Mapping keys must be scalar
// strings and must be unique within their mapping; a duplicate key is a
// ParseError rather than a silent overwrite. Comments are not part of the
// model and do not survive a parse/serialize round trip. An empty document
// parses to an empty mapping.
func Parse(data []byte) (*Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Msg: err.Error(), Err: err}
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return NewMapping(), nil
	}
	return decodeYAML(root.Content[0])
}

func decodeYAML(yn *yaml.Node) (*Node, error) {
	switch yn.Kind {
	case yaml.MappingNode:
		node := &Node{kind: Mapping}
		seen := make(map[string]struct{}, len(yn.Content)/2)
		for i := 0; i+1 < len(yn.Content); i += 2 {
			keyNode, valNode := yn.Content[i], yn.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, &ParseError{
					Msg:    "mapping key must be a scalar",
					Line:   keyNode.Line,
					Column: keyNode.Column,
				}
			}
			key := keyNode.Value
			if _, dup := seen[key]; dup {
				return nil, &ParseError{
					Msg:    fmt.Sprintf("duplicate mapping key %q", key),
					Line:   keyNode.Line,
					Column: keyNode.Column,
				}
			}
			seen[key] = struct{}{}
			val, err := decodeYAML(valNode)
			if err != nil {
				return nil, err
			}
			node.entries = append(node.entries, Entry{Key: key, Value: val})
		}
		return node, nil
	case yaml.SequenceNode:
		node := &Node{kind: Sequence}
		for _, item := range yn.Content {
			val, err := decodeYAML(item)
			if err != nil {
				return nil, err
			}
			node.items = append(node.items, val)
		}
		return node, nil
	case yaml.ScalarNode:
		return decodeScalar(yn)
	case yaml.AliasNode:
		// yaml.v3 rejects self-containing anchors during unmarshal, so
		// following the alias target cannot recurse forever.
		return decodeYAML(yn.Alias)
	default:
		return nil, &ParseError{
			Msg:    fmt.Sprintf("unsupported document node kind %d", yn.Kind),
			Line:   yn.Line,
			Column: yn.Column,
		}
	}
}

func decodeScalar(yn *yaml.Node) (*Node, error) {
	switch yn.Tag {
	case "!!int", "!!float":
		num, err := cty.ParseNumberVal(yn.Value)
		if err != nil {
			return nil, &ParseError{
				Msg:    fmt.Sprintf("invalid number %q", yn.Value),
				Line:   yn.Line,
				Column: yn.Column,
				Err:    err,
			}
		}
		return NewScalar(num), nil
	case "!!bool":
		switch yn.Value {
		case "true", "True", "TRUE":
			return NewBool(true), nil
		case "false", "False", "FALSE":
			return NewBool(false), nil
		default:
			return nil, &ParseError{
				Msg:    fmt.Sprintf("invalid boolean %q", yn.Value),
				Line:   yn.Line,
				Column: yn.Column,
			}
		}
	case "!!null":
		return Null(), nil
	default:
		// Strings, timestamps, and unrecognized tags all become string
		// scalars; the interpolation grammar only applies to strings.
		return NewString(yn.Value), nil
	}
}
