package topology

import (
	"fmt"

	"github.com/vk/stackgraphgo/internal/document"
)

// Load parses YAML source and interprets it as a service topology.
func Load(data []byte) (*Document, error) {
	doc, err := document.Parse(data)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// FromDocument interprets a parsed document tree as a service topology.
// Shape violations are ParseErrors, in the same strict style the stack
// loader applies: known keys only, and list fields must hold strings.
func FromDocument(doc *document.Node) (*Document, error) {
	if doc == nil || doc.Kind() != document.Mapping {
		return nil, &document.ParseError{Msg: "topology must be a mapping"}
	}

	d := &Document{}
	for _, e := range doc.Entries() {
		switch e.Key {
		case "version":
			v, ok := e.Value.AsString()
			if !ok {
				return nil, &document.ParseError{Msg: "version must be a string"}
			}
			d.Version = v
		case "services":
			if err := d.loadServices(e.Value); err != nil {
				return nil, err
			}
		case "networks":
			if err := d.loadNetworks(e.Value); err != nil {
				return nil, err
			}
		default:
			return nil, &document.ParseError{Msg: fmt.Sprintf("unknown top-level key %q", e.Key)}
		}
	}
	return d, nil
}

func (d *Document) loadServices(block *document.Node) error {
	if block.Kind() != document.Mapping {
		return &document.ParseError{Msg: "services must be a mapping"}
	}
	for _, e := range block.Entries() {
		svc, err := loadService(e.Key, e.Value)
		if err != nil {
			return err
		}
		svc.Order = len(d.Services)
		d.Services = append(d.Services, svc)
	}
	return nil
}

func loadService(name string, body *document.Node) (*Service, error) {
	if body.Kind() != document.Mapping {
		return nil, &document.ParseError{Msg: fmt.Sprintf("service %q must be a mapping", name)}
	}

	svc := &Service{Name: name}
	for _, field := range body.Entries() {
		var err error
		switch field.Key {
		case "image":
			svc.Image, err = scalarField(name, field.Key, field.Value)
		case "build":
			svc.Build, err = loadBuild(name, field.Value)
		case "depends_on":
			svc.DependsOn, err = stringList(name, field.Key, field.Value)
		case "networks":
			svc.Networks, err = stringList(name, field.Key, field.Value)
		case "ports":
			svc.Ports, err = stringList(name, field.Key, field.Value)
		case "command":
			svc.Command, err = commandList(name, field.Value)
		case "environment":
			svc.Environment, err = stringList(name, field.Key, field.Value)
		case "network_mode":
			svc.NetworkMode, err = scalarField(name, field.Key, field.Value)
		default:
			err = &document.ParseError{
				Msg: fmt.Sprintf("service %q: unknown key %q", name, field.Key),
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if svc.Image == "" && svc.Build == nil {
		return nil, &document.ParseError{
			Msg: fmt.Sprintf("service %q: requires an image or a build context", name),
		}
	}
	return svc, nil
}

// loadBuild accepts both build forms: the string shorthand naming the
// context directory, and the mapping form with an explicit context key.
func loadBuild(service string, n *document.Node) (*Build, error) {
	switch n.Kind() {
	case document.Scalar:
		ctx, ok := n.AsString()
		if !ok {
			return nil, &document.ParseError{
				Msg: fmt.Sprintf("service %q: build must be a string or mapping", service),
			}
		}
		return &Build{Context: ctx}, nil
	case document.Mapping:
		b := &Build{}
		for _, e := range n.Entries() {
			if e.Key != "context" {
				return nil, &document.ParseError{
					Msg: fmt.Sprintf("service %q: unknown build key %q", service, e.Key),
				}
			}
			ctx, ok := e.Value.AsString()
			if !ok {
				return nil, &document.ParseError{
					Msg: fmt.Sprintf("service %q: build context must be a string", service),
				}
			}
			b.Context = ctx
		}
		if b.Context == "" {
			return nil, &document.ParseError{
				Msg: fmt.Sprintf("service %q: build requires a context", service),
			}
		}
		return b, nil
	default:
		return nil, &document.ParseError{
			Msg: fmt.Sprintf("service %q: build must be a string or mapping", service),
		}
	}
}

// commandList accepts the list form and the single-string form.
func commandList(service string, n *document.Node) ([]string, error) {
	if n.Kind() == document.Scalar {
		s, ok := n.AsString()
		if !ok {
			return nil, &document.ParseError{
				Msg: fmt.Sprintf("service %q: command must be a string or list", service),
			}
		}
		return []string{s}, nil
	}
	return stringList(service, "command", n)
}

func scalarField(service, key string, n *document.Node) (string, error) {
	s, ok := n.AsString()
	if !ok {
		return "", &document.ParseError{
			Msg: fmt.Sprintf("service %q: %s must be a string", service, key),
		}
	}
	return s, nil
}

func stringList(service, key string, n *document.Node) ([]string, error) {
	if n.Kind() != document.Sequence {
		return nil, &document.ParseError{
			Msg: fmt.Sprintf("service %q: %s must be a list", service, key),
		}
	}
	out := make([]string, 0, n.Len())
	for i, item := range n.Items() {
		s, ok := item.AsString()
		if !ok {
			return nil, &document.ParseError{
				Msg: fmt.Sprintf("service %q: %s[%d] must be a string", service, key, i),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *Document) loadNetworks(block *document.Node) error {
	if block.Kind() != document.Mapping {
		return &document.ParseError{Msg: "networks must be a mapping"}
	}
	for _, e := range block.Entries() {
		net := &Network{Name: e.Key, Order: len(d.Networks)}
		switch e.Value.Kind() {
		case document.Mapping:
			if e.Value.Len() > 0 {
				net.Config = e.Value
			}
		case document.Scalar:
			if !e.Value.Value().IsNull() {
				return &document.ParseError{
					Msg: fmt.Sprintf("network %q must be a mapping or empty", e.Key),
				}
			}
		default:
			return &document.ParseError{
				Msg: fmt.Sprintf("network %q must be a mapping or empty", e.Key),
			}
		}
		d.Networks = append(d.Networks, net)
	}
	return nil
}
