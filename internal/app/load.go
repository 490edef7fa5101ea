package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/stackgraphgo/internal/ctxlog"
	"github.com/vk/stackgraphgo/internal/fsutil"
	"github.com/vk/stackgraphgo/internal/hcl"
	"github.com/vk/stackgraphgo/internal/stack"
	"github.com/vk/stackgraphgo/internal/topology"
)

// templateExtensions lists the file endings template discovery accepts.
var templateExtensions = []string{".yaml", ".yml", ".hcl"}

// resolveTemplatePath accepts a file or a directory. A directory must
// contain exactly one template file; refusing to guess between several
// keeps the graph unambiguous.
func resolveTemplatePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("error accessing path %s: %w", path, err)
	}
	if !info.IsDir() {
		return path, nil
	}

	files, err := fsutil.FindFilesByExtensions(path, templateExtensions...)
	if err != nil {
		return "", err
	}
	switch len(files) {
	case 0:
		return "", fmt.Errorf("no template found under %s", path)
	case 1:
		return files[0], nil
	}
	return "", fmt.Errorf("multiple templates found under %s: %s", path, strings.Join(files, ", "))
}

// loadTemplate reads one template in either surface syntax.
func (a *App) loadTemplate(ctx context.Context, path string) (*stack.Stack, error) {
	file, err := resolveTemplatePath(path)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Loading template.", "file", file)

	if filepath.Ext(file) == ".hcl" {
		return hcl.NewLoader().Load(ctx, file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return stack.Load(data)
}

// loadTopology reads a compose-shaped topology file.
func (a *App) loadTopology(ctx context.Context, path string) (*topology.Document, error) {
	ctxlog.FromContext(ctx).Debug("Loading topology.", "file", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return topology.Load(data)
}
