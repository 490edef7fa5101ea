// Package export converts a stack template into a service topology: every
// container app resource becomes one service per declared container, wired
// with the ports its ingress exposes, the build context of the image it
// references, and depends_on entries derived from the dependency graph.
//
// Conversion runs on top of a preview, so references that resolve inside
// the template are substituted before services are derived. References the
// template cannot resolve on its own, such as a registry's login server,
// stay in the emitted topology as written.
package export

import (
	"context"
	"fmt"
	"slices"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/stackgraphgo/internal/ctxlog"
	"github.com/vk/stackgraphgo/internal/document"
	"github.com/vk/stackgraphgo/internal/eval"
	"github.com/vk/stackgraphgo/internal/expr"
	"github.com/vk/stackgraphgo/internal/stack"
	"github.com/vk/stackgraphgo/internal/topology"
)

// DefaultVersion is the topology version emitted when none is configured.
const DefaultVersion = "3.9"

// Options tunes a conversion.
type Options struct {
	// WorkingDir replaces the pulumi.cwd builtin inside build contexts.
	// Empty means the current directory, rendered as ".".
	WorkingDir string
	// Version overrides the emitted topology version.
	Version string
}

// Topology converts a stack template into a service topology document.
func Topology(ctx context.Context, s *stack.Stack, opts Options) (*topology.Document, error) {
	logger := ctxlog.FromContext(ctx)

	result, err := eval.Preview(ctx, s, eval.Options{WorkingDir: opts.WorkingDir})
	if err != nil {
		return nil, err
	}
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}

	version := opts.Version
	if version == "" {
		version = DefaultVersion
	}
	doc := &topology.Document{Version: version}

	images := imageEntities(s)
	apps := containerApps(s)
	logger.Debug("Export: Conversion started.",
		"app_count", len(apps), "image_count", len(images))

	// serviceNames records which services each app entity produced, for
	// the depends_on pass below.
	serviceNames := make(map[string][]string, len(apps))

	for _, app := range apps {
		props := result.Value(app.Name)
		containers, err := appContainers(app, props)
		if err != nil {
			return nil, err
		}
		ports := ingressPorts(props)

		for _, c := range containers {
			svc := &topology.Service{
				Name:  c.name,
				Ports: ports,
				Order: len(doc.Services),
			}
			if err := resolveImage(svc, c.image, images, result); err != nil {
				return nil, err
			}
			doc.Services = append(doc.Services, svc)
			serviceNames[app.Name] = append(serviceNames[app.Name], c.name)
		}
	}

	// depends_on: a direct reference between two container apps becomes a
	// startup ordering between every pair of their services.
	appSet := make(map[string]bool, len(apps))
	for _, app := range apps {
		appSet[app.Name] = true
	}
	for _, e := range g.Edges() {
		if !appSet[e.Source] || !appSet[e.Target] || e.Source == e.Target {
			continue
		}
		for _, src := range serviceNames[e.Source] {
			svc, ok := doc.Service(src)
			if !ok {
				continue
			}
			for _, dep := range serviceNames[e.Target] {
				if !slices.Contains(svc.DependsOn, dep) {
					svc.DependsOn = append(svc.DependsOn, dep)
				}
			}
		}
	}

	logger.Debug("Export: Conversion complete.", "service_count", len(doc.Services))
	return doc, nil
}

// container is one entry of an app's template.containers list.
type container struct {
	name  string
	image string
}

func imageEntities(s *stack.Stack) map[string]*stack.Entity {
	images := make(map[string]*stack.Entity)
	for _, e := range s.Entities() {
		if e.Kind == stack.ResourceEntity && isImageType(e.Type) {
			images[e.Name] = e
		}
	}
	return images
}

func containerApps(s *stack.Stack) []*stack.Entity {
	var apps []*stack.Entity
	for _, e := range s.Entities() {
		if e.Kind == stack.ResourceEntity && isContainerAppType(e.Type) {
			apps = append(apps, e)
		}
	}
	return apps
}

func isImageType(t string) bool {
	switch typeToken(t) {
	case "Image", "RegistryImage":
		return true
	}
	return false
}

func isContainerAppType(t string) bool {
	return typeToken(t) == "ContainerApp"
}

// typeToken returns the resource kind, the last segment of a provider type
// such as "azure-native:app:ContainerApp".
func typeToken(t string) string {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i] == ':' {
			return t[i+1:]
		}
	}
	return t
}

func appContainers(app *stack.Entity, props *document.Node) ([]container, error) {
	if props == nil {
		return nil, nil
	}
	template, ok := props.Get("template")
	if !ok {
		return nil, nil
	}
	list, ok := template.Get("containers")
	if !ok || list.Kind() != document.Sequence {
		return nil, nil
	}

	containers := make([]container, 0, list.Len())
	for i, item := range list.Items() {
		nameNode, ok := item.Get("name")
		name, nameOK := nameNode.AsString()
		if !ok || !nameOK || name == "" {
			return nil, &document.ParseError{
				Msg: fmt.Sprintf("resource %q: containers[%d] requires a name", app.Name, i),
			}
		}
		imageNode, ok := item.Get("image")
		image, imageOK := imageNode.AsString()
		if !ok || !imageOK || image == "" {
			return nil, &document.ParseError{
				Msg: fmt.Sprintf("resource %q: containers[%d] requires an image", app.Name, i),
			}
		}
		containers = append(containers, container{name: name, image: image})
	}
	return containers, nil
}

// ingressPorts maps an externally exposed ingress to a single
// "target:target" publish declaration, mirroring how a local topology
// reaches a container the platform would route to.
func ingressPorts(props *document.Node) []string {
	if props == nil {
		return nil
	}
	cfg, ok := props.Get("configuration")
	if !ok {
		return nil
	}
	ingress, ok := cfg.Get("ingress")
	if !ok {
		return nil
	}
	external, ok := ingress.Get("external")
	if !ok || !external.Value().RawEquals(cty.True) {
		return nil
	}
	portNode, ok := ingress.Get("targetPort")
	if !ok {
		return nil
	}
	port, ok := portNode.AsString()
	if !ok {
		return nil
	}
	return []string{port + ":" + port}
}

// resolveImage decides between a build context and an image string. A
// container image that is exactly one reference to a declared image
// resource becomes a build context pointing at that image's source
// directory; anything else is carried as the image string, resolved as far
// as the template allows.
func resolveImage(svc *topology.Service, image string, images map[string]*stack.Entity, result *eval.Result) error {
	tmpl, err := expr.ParseTemplate(image)
	if err != nil {
		return err
	}
	ref, single := tmpl.SingleReference()
	if !single {
		svc.Image = image
		return nil
	}
	imageEntity, ok := images[ref.Entity]
	if !ok {
		svc.Image = image
		return nil
	}

	props := result.Value(imageEntity.Name)
	if props == nil {
		return &document.ParseError{
			Msg: fmt.Sprintf("resource %q: image has no declared properties", imageEntity.Name),
		}
	}
	build, ok := props.Get("build")
	if !ok {
		return &document.ParseError{
			Msg: fmt.Sprintf("resource %q: image requires a build context", imageEntity.Name),
		}
	}
	contextNode, ok := build.Get("context")
	context, contextOK := contextNode.AsString()
	if !ok || !contextOK || context == "" {
		return &document.ParseError{
			Msg: fmt.Sprintf("resource %q: image requires a build context", imageEntity.Name),
		}
	}
	svc.Build = &topology.Build{Context: context}
	return nil
}
