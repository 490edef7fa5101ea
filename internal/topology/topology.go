// Package topology is the "Service Topology Layer" of the application. It
// models the second document family the tool understands: a compose-shaped
// file with versioned services, their dependency declarations, and named
// networks. Services and networks live in separate namespaces, so their
// graph node IDs are prefixed the same way execution nodes are named
// elsewhere, service.app and network.backend.
package topology

import (
	"github.com/vk/stackgraphgo/internal/document"
)

// Document is a loaded service topology.
type Document struct {
	Version  string
	Services []*Service
	Networks []*Network
}

// Service is one entry of the services mapping.
type Service struct {
	Name string
	// Image is the service image reference; empty when the service is
	// built from a local context instead.
	Image string
	// Build points at a local build context. A service carries an image,
	// a build context, or both.
	Build *Build
	// DependsOn lists service names that must start first.
	DependsOn []string
	// Networks lists network names the service attaches to.
	Networks []string
	// Ports holds "host:container" publish declarations.
	Ports []string
	// Command overrides the image entrypoint arguments.
	Command []string
	// Environment holds KEY=value pairs.
	Environment []string
	// NetworkMode switches the network namespace; the "service:<name>"
	// form joins another service's namespace and orders this service
	// after it.
	NetworkMode string
	// Order is the declaration index within the services mapping.
	Order int
}

// Build is a service build declaration.
type Build struct {
	Context string
}

// Network is one entry of the top-level networks mapping.
type Network struct {
	Name string
	// Config holds the raw network configuration mapping; nil when the
	// network was declared with an empty body.
	Config *document.Node
	// Order is the declaration index within the networks mapping.
	Order int
}

// ServiceID returns the graph node ID of a service.
func ServiceID(name string) string {
	return "service." + name
}

// NetworkID returns the graph node ID of a network.
func NetworkID(name string) string {
	return "network." + name
}

// Service looks up a service by name.
func (d *Document) Service(name string) (*Service, bool) {
	for _, s := range d.Services {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Network looks up a network by name.
func (d *Document) Network(name string) (*Network, bool) {
	for _, n := range d.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}
