package hcl

import (
	"context"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/stackgraphgo/internal/ctxlog"
	"github.com/vk/stackgraphgo/internal/document"
	"github.com/vk/stackgraphgo/internal/stack"
)

// Loader parses HCL template files into stacks.
type Loader struct{}

// NewLoader creates a new HCL template loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes the top-level surface of a template file. Attributes
// carry the template header; variable, resource, and output blocks carry
// the entities.
type fileRoot struct {
	Name        *string          `hcl:"name,optional"`
	Description *string          `hcl:"description,optional"`
	Runtime     *string          `hcl:"runtime,optional"`
	Variables   []*variableBlock `hcl:"variable,block"`
	Resources   []*resourceBlock `hcl:"resource,block"`
	Outputs     []*outputBlock   `hcl:"output,block"`
}

// variableBlock is a named value, either declared directly or produced by
// an invoke.
type variableBlock struct {
	Name   string         `hcl:"name,label"`
	Value  hcl.Expression `hcl:"value,optional"`
	Invoke *invokeBlock   `hcl:"invoke,block"`
}

type invokeBlock struct {
	Function  string         `hcl:"function"`
	Arguments hcl.Expression `hcl:"arguments,optional"`
	Return    *string        `hcl:"return,optional"`
}

type resourceBlock struct {
	Name       string         `hcl:"name,label"`
	Type       string         `hcl:"type"`
	Properties hcl.Expression `hcl:"properties,optional"`
	Options    *optionsBlock  `hcl:"options,block"`
}

type optionsBlock struct {
	DependsOn hcl.Expression `hcl:"depends_on,optional"`
}

type outputBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

// Load reads and parses one HCL template file.
func (l *Loader) Load(ctx context.Context, path string) (*stack.Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return l.Parse(ctx, path, data)
}

// Parse translates HCL template source into a stack. The filename names
// the source in diagnostics only.
func (l *Loader) Parse(ctx context.Context, filename string, src []byte) (*stack.Stack, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "file", filename)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError("failed to parse template", diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, diagError("failed to decode template", diags)
	}

	doc, err := l.buildDocument(&root)
	if err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.",
		"variables", len(root.Variables), "resources", len(root.Resources), "outputs", len(root.Outputs))
	return stack.FromDocument(doc)
}

// buildDocument assembles the document tree the stack loader expects, in
// the order the blocks were written.
func (l *Loader) buildDocument(root *fileRoot) (*document.Node, error) {
	var entries []document.Entry
	if root.Name != nil {
		entries = append(entries, document.Entry{Key: "name", Value: document.NewString(*root.Name)})
	}
	if root.Description != nil {
		entries = append(entries, document.Entry{Key: "description", Value: document.NewString(*root.Description)})
	}
	if root.Runtime != nil {
		entries = append(entries, document.Entry{Key: "runtime", Value: document.NewString(*root.Runtime)})
	}

	if len(root.Variables) > 0 {
		var vars []document.Entry
		for _, v := range root.Variables {
			node, err := l.translateVariable(v)
			if err != nil {
				return nil, err
			}
			vars = append(vars, document.Entry{Key: v.Name, Value: node})
		}
		entries = append(entries, document.Entry{Key: "variables", Value: document.NewMapping(vars...)})
	}

	if len(root.Resources) > 0 {
		var resources []document.Entry
		for _, r := range root.Resources {
			node, err := l.translateResource(r)
			if err != nil {
				return nil, err
			}
			resources = append(resources, document.Entry{Key: r.Name, Value: node})
		}
		entries = append(entries, document.Entry{Key: "resources", Value: document.NewMapping(resources...)})
	}

	if len(root.Outputs) > 0 {
		var outputs []document.Entry
		for _, o := range root.Outputs {
			node, err := exprNode(o.Value)
			if err != nil {
				return nil, err
			}
			outputs = append(outputs, document.Entry{Key: o.Name, Value: node})
		}
		entries = append(entries, document.Entry{Key: "outputs", Value: document.NewMapping(outputs...)})
	}

	return document.NewMapping(entries...), nil
}

// translateVariable converts a variable block into the mapping shape of
// the YAML surface: an invoke block becomes an fn::invoke mapping, a
// direct value stays as written.
func (l *Loader) translateVariable(v *variableBlock) (*document.Node, error) {
	if v.Invoke != nil {
		if v.Value != nil {
			return nil, &document.ParseError{
				Msg: "variable " + v.Name + " declares both value and invoke",
			}
		}
		inner := []document.Entry{
			{Key: "function", Value: document.NewString(v.Invoke.Function)},
		}
		if v.Invoke.Arguments != nil {
			args, err := exprNode(v.Invoke.Arguments)
			if err != nil {
				return nil, err
			}
			inner = append(inner, document.Entry{Key: "arguments", Value: args})
		}
		if v.Invoke.Return != nil {
			inner = append(inner, document.Entry{Key: "return", Value: document.NewString(*v.Invoke.Return)})
		}
		invoke := document.NewMapping(inner...)
		return document.NewMapping(document.Entry{Key: "fn::invoke", Value: invoke}), nil
	}

	if v.Value == nil {
		return nil, &document.ParseError{Msg: "variable " + v.Name + " requires a value or an invoke block"}
	}
	return exprNode(v.Value)
}

// translateResource converts a resource block into the mapping shape of
// the YAML surface.
func (l *Loader) translateResource(r *resourceBlock) (*document.Node, error) {
	entries := []document.Entry{
		{Key: "type", Value: document.NewString(r.Type)},
	}
	if r.Properties != nil {
		props, err := exprNode(r.Properties)
		if err != nil {
			return nil, err
		}
		entries = append(entries, document.Entry{Key: "properties", Value: props})
	}
	if r.Options != nil && r.Options.DependsOn != nil {
		deps, err := exprNode(r.Options.DependsOn)
		if err != nil {
			return nil, err
		}
		options := document.NewMapping(document.Entry{Key: "dependsOn", Value: deps})
		entries = append(entries, document.Entry{Key: "options", Value: options})
	}
	return document.NewMapping(entries...), nil
}

// diagError folds HCL diagnostics into a ParseError positioned at the
// first diagnostic's subject.
func diagError(msg string, diags hcl.Diagnostics) error {
	perr := &document.ParseError{Msg: msg + ": " + diags.Error(), Err: diags}
	if len(diags) > 0 && diags[0].Subject != nil {
		perr.Line = diags[0].Subject.Start.Line
		perr.Column = diags[0].Subject.Start.Column
	}
	return perr
}
