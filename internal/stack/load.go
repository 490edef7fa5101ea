package stack

import (
	"fmt"

	"github.com/vk/stackgraphgo/internal/document"
)

// invokeKey is the single-key form marking a variable as a provider call.
const invokeKey = "fn::invoke"

// Load parses YAML source and interprets it as a stack template.
func Load(data []byte) (*Stack, error) {
	doc, err := document.Parse(data)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// FromDocument interprets an already parsed document tree as a stack
// template. The tree is validated against the template shape: known
// top-level keys only, string metadata, mapping declaration blocks, and a
// type token on every resource. Shape violations are ParseErrors.
func FromDocument(doc *document.Node) (*Stack, error) {
	if doc == nil || doc.Kind() != document.Mapping {
		return nil, &document.ParseError{Msg: "template must be a mapping"}
	}

	s := &Stack{
		doc:   doc,
		index: make(map[string]*Entity),
	}

	for _, e := range doc.Entries() {
		switch e.Key {
		case "name":
			v, err := stringValue(e.Key, e.Value)
			if err != nil {
				return nil, err
			}
			s.Name = v
		case "description":
			v, err := stringValue(e.Key, e.Value)
			if err != nil {
				return nil, err
			}
			s.Description = v
		case "runtime":
			v, err := stringValue(e.Key, e.Value)
			if err != nil {
				return nil, err
			}
			s.Runtime = v
		case "variables":
			if err := s.loadVariables(e.Value); err != nil {
				return nil, err
			}
		case "resources":
			if err := s.loadResources(e.Value); err != nil {
				return nil, err
			}
		case "outputs":
			if e.Value.Kind() != document.Mapping {
				return nil, &document.ParseError{Msg: "outputs must be a mapping"}
			}
			s.Outputs = e.Value
		default:
			return nil, &document.ParseError{Msg: fmt.Sprintf("unknown top-level key %q", e.Key)}
		}
	}

	return s, nil
}

func stringValue(key string, n *document.Node) (string, error) {
	if n.Kind() != document.Scalar {
		return "", &document.ParseError{Msg: fmt.Sprintf("%s must be a string", key)}
	}
	v, ok := n.AsString()
	if !ok {
		return "", &document.ParseError{Msg: fmt.Sprintf("%s must be a string", key)}
	}
	return v, nil
}

func (s *Stack) loadVariables(block *document.Node) error {
	if block.Kind() != document.Mapping {
		return &document.ParseError{Msg: "variables must be a mapping"}
	}
	for _, e := range block.Entries() {
		entity := &Entity{
			Name:  e.Key,
			Kind:  VariableEntity,
			Body:  e.Value,
			Order: len(s.entities),
		}
		if inv, ok, err := parseInvoke(e.Key, e.Value); err != nil {
			return err
		} else if ok {
			entity.invoke = inv
		}
		if err := s.addEntity(entity); err != nil {
			return err
		}
	}
	return nil
}

// parseInvoke recognizes the fn::invoke variable form. A variable body that
// is a mapping containing the fn::invoke key must contain nothing else, and
// the call itself must name a function.
func parseInvoke(name string, body *document.Node) (*Invoke, bool, error) {
	if body.Kind() != document.Mapping {
		return nil, false, nil
	}
	call, ok := body.Get(invokeKey)
	if !ok {
		return nil, false, nil
	}
	if body.Len() != 1 {
		return nil, false, &document.ParseError{
			Msg: fmt.Sprintf("variable %q: %s must be the only key in the body", name, invokeKey),
		}
	}
	if call.Kind() != document.Mapping {
		return nil, false, &document.ParseError{
			Msg: fmt.Sprintf("variable %q: %s must be a mapping", name, invokeKey),
		}
	}

	inv := &Invoke{}
	for _, e := range call.Entries() {
		switch e.Key {
		case "function":
			v, ok := e.Value.AsString()
			if !ok {
				return nil, false, &document.ParseError{
					Msg: fmt.Sprintf("variable %q: function must be a string", name),
				}
			}
			inv.Function = v
		case "arguments":
			if e.Value.Kind() != document.Mapping {
				return nil, false, &document.ParseError{
					Msg: fmt.Sprintf("variable %q: arguments must be a mapping", name),
				}
			}
			inv.Arguments = e.Value
		case "return":
			v, ok := e.Value.AsString()
			if !ok {
				return nil, false, &document.ParseError{
					Msg: fmt.Sprintf("variable %q: return must be a string", name),
				}
			}
			inv.Return = v
		default:
			return nil, false, &document.ParseError{
				Msg: fmt.Sprintf("variable %q: unknown %s key %q", name, invokeKey, e.Key),
			}
		}
	}
	if inv.Function == "" {
		return nil, false, &document.ParseError{
			Msg: fmt.Sprintf("variable %q: %s requires a function", name, invokeKey),
		}
	}
	return inv, true, nil
}

func (s *Stack) loadResources(block *document.Node) error {
	if block.Kind() != document.Mapping {
		return &document.ParseError{Msg: "resources must be a mapping"}
	}
	for _, e := range block.Entries() {
		body := e.Value
		if body.Kind() != document.Mapping {
			return &document.ParseError{Msg: fmt.Sprintf("resource %q must be a mapping", e.Key)}
		}

		entity := &Entity{
			Name:  e.Key,
			Kind:  ResourceEntity,
			Body:  body,
			Order: len(s.entities),
		}
		for _, field := range body.Entries() {
			switch field.Key {
			case "type":
				v, ok := field.Value.AsString()
				if !ok || v == "" {
					return &document.ParseError{
						Msg: fmt.Sprintf("resource %q: type must be a non-empty string", e.Key),
					}
				}
				entity.Type = v
			case "properties", "options":
				if field.Value.Kind() != document.Mapping {
					return &document.ParseError{
						Msg: fmt.Sprintf("resource %q: %s must be a mapping", e.Key, field.Key),
					}
				}
			default:
				return &document.ParseError{
					Msg: fmt.Sprintf("resource %q: unknown key %q", e.Key, field.Key),
				}
			}
		}
		if entity.Type == "" {
			return &document.ParseError{
				Msg: fmt.Sprintf("resource %q: missing required key \"type\"", e.Key),
			}
		}
		if err := s.addEntity(entity); err != nil {
			return err
		}
	}
	return nil
}

// addEntity registers an entity under the flat reference namespace. The
// interpolation syntax has no namespace qualifier, so a variable and a
// resource cannot share a name.
func (s *Stack) addEntity(e *Entity) error {
	if prev, ok := s.index[e.Name]; ok {
		return &document.ParseError{
			Msg: fmt.Sprintf("entity %q declared twice (as %s and %s)", e.Name, prev.Kind, e.Kind),
		}
	}
	if IsBuiltin(e.Name) {
		return &document.ParseError{
			Msg: fmt.Sprintf("entity %q shadows a builtin name", e.Name),
		}
	}
	s.entities = append(s.entities, e)
	s.index[e.Name] = e
	return nil
}
