package document

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Serialize renders a document tree back to YAML with two-space indentation.
// String scalars keep their explicit string tag, so a string that looks like
// a number or boolean is quoted and survives a round trip unchanged.
func Serialize(n *Node) ([]byte, error) {
	yn, err := encodeYAML(n)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(yn); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeYAML(n *Node) (*yaml.Node, error) {
	switch n.kind {
	case Mapping:
		yn := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range n.entries {
			val, err := encodeYAML(e.Value)
			if err != nil {
				return nil, err
			}
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key}
			yn.Content = append(yn.Content, key, val)
		}
		return yn, nil
	case Sequence:
		yn := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.items {
			val, err := encodeYAML(item)
			if err != nil {
				return nil, err
			}
			yn.Content = append(yn.Content, val)
		}
		return yn, nil
	default:
		return encodeScalar(n.value)
	}
}

func encodeScalar(v cty.Value) (*yaml.Node, error) {
	yn := &yaml.Node{Kind: yaml.ScalarNode}
	switch {
	case v == cty.NilVal:
		return nil, fmt.Errorf("cannot serialize uninitialized scalar")
	case v.IsNull():
		yn.Tag = "!!null"
		yn.Value = "null"
	case v.Type() == cty.String:
		yn.Tag = "!!str"
		yn.Value = v.AsString()
	case v.Type() == cty.Number:
		yn.Value = formatNumber(v)
		if strings.ContainsAny(yn.Value, ".eE") {
			yn.Tag = "!!float"
		} else {
			yn.Tag = "!!int"
		}
	case v.Type() == cty.Bool:
		yn.Tag = "!!bool"
		yn.Value = strconv.FormatBool(v.True())
	default:
		return nil, fmt.Errorf("cannot serialize scalar of type %s", v.Type().FriendlyName())
	}
	return yn, nil
}

func formatNumber(v cty.Value) string {
	bf := v.AsBigFloat()
	if bf.IsInt() {
		if i, acc := bf.Int64(); acc == big.Exact {
			return strconv.FormatInt(i, 10)
		}
	}
	return bf.Text('g', -1)
}
