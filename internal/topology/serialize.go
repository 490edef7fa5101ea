package topology

import (
	"github.com/vk/stackgraphgo/internal/document"
)

// ToDocument renders the topology back into a document tree. Service fields
// come out in a canonical order regardless of how the source arranged them.
func (d *Document) ToDocument() *document.Node {
	var entries []document.Entry
	if d.Version != "" {
		entries = append(entries, document.Entry{Key: "version", Value: document.NewString(d.Version)})
	}
	if len(d.Services) > 0 {
		svcs := make([]document.Entry, 0, len(d.Services))
		for _, s := range d.Services {
			svcs = append(svcs, document.Entry{Key: s.Name, Value: s.toNode()})
		}
		entries = append(entries, document.Entry{Key: "services", Value: document.NewMapping(svcs...)})
	}
	if len(d.Networks) > 0 {
		nets := make([]document.Entry, 0, len(d.Networks))
		for _, n := range d.Networks {
			body := n.Config
			if body == nil {
				body = document.NewMapping()
			}
			nets = append(nets, document.Entry{Key: n.Name, Value: body})
		}
		entries = append(entries, document.Entry{Key: "networks", Value: document.NewMapping(nets...)})
	}
	return document.NewMapping(entries...)
}

// Serialize renders the topology as YAML.
func (d *Document) Serialize() ([]byte, error) {
	return document.Serialize(d.ToDocument())
}

func (s *Service) toNode() *document.Node {
	var entries []document.Entry
	add := func(key string, value *document.Node) {
		entries = append(entries, document.Entry{Key: key, Value: value})
	}

	if s.Image != "" {
		add("image", document.NewString(s.Image))
	}
	if s.Build != nil {
		add("build", document.NewMapping(
			document.Entry{Key: "context", Value: document.NewString(s.Build.Context)},
		))
	}
	if len(s.DependsOn) > 0 {
		add("depends_on", stringSequence(s.DependsOn))
	}
	if len(s.Networks) > 0 {
		add("networks", stringSequence(s.Networks))
	}
	if len(s.Ports) > 0 {
		add("ports", stringSequence(s.Ports))
	}
	if len(s.Command) > 0 {
		add("command", stringSequence(s.Command))
	}
	if len(s.Environment) > 0 {
		add("environment", stringSequence(s.Environment))
	}
	if s.NetworkMode != "" {
		add("network_mode", document.NewString(s.NetworkMode))
	}
	return document.NewMapping(entries...)
}

func stringSequence(values []string) *document.Node {
	items := make([]*document.Node, len(values))
	for i, v := range values {
		items[i] = document.NewString(v)
	}
	return document.NewSequence(items...)
}
