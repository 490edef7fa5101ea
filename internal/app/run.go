package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vk/stackgraphgo/internal/ctxlog"
	"github.com/vk/stackgraphgo/internal/dag"
	"github.com/vk/stackgraphgo/internal/document"
	"github.com/vk/stackgraphgo/internal/eval"
	"github.com/vk/stackgraphgo/internal/export"
	"github.com/vk/stackgraphgo/internal/stack"
	"github.com/vk/stackgraphgo/internal/walk"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp is the constructor for the main application. Results are written
// to outW; logs go to errW so the output stream stays parseable.
func NewApp(outW, errW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, errW)
	return &App{outW: outW, logger: logger, config: config}
}

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	var (
		s *stack.Stack
		g *dag.Graph
	)
	if a.config.TemplatePath != "" {
		var err error
		s, err = a.loadTemplate(ctx, a.config.TemplatePath)
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}
		if g, err = s.Graph(ctx); err != nil {
			return fmt.Errorf("failed to build dependency graph: %w", err)
		}
	} else {
		doc, err := a.loadTopology(ctx, a.config.TopologyPath)
		if err != nil {
			return fmt.Errorf("failed to load topology: %w", err)
		}
		if g, err = doc.Graph(ctx); err != nil {
			return fmt.Errorf("failed to build dependency graph: %w", err)
		}
	}
	a.logger.Debug("Dependency graph built.", "node_count", g.Len())

	switch a.config.Mode {
	case ModeCheck:
		fmt.Fprintf(a.outW, "ok: %d nodes, %d edges\n", g.Len(), len(g.Edges()))
		return nil
	case ModePlan:
		return a.renderPlan(g)
	case ModeLevels:
		return a.renderLevels(g)
	case ModePreview:
		return a.renderPreview(ctx, s)
	case ModeExport:
		return a.renderExport(ctx, s)
	case ModeWalk:
		return a.runWalk(ctx, g)
	}
	return fmt.Errorf("unknown mode %q", a.config.Mode)
}

// renderPlan prints the evaluation order, dependencies first.
func (a *App) renderPlan(g *dag.Graph) error {
	order, err := g.TopologicalSort()
	if err != nil {
		return fmt.Errorf("failed to order graph: %w", err)
	}
	if a.config.Output == "json" {
		return writeJSON(a.outW, map[string]any{"order": order})
	}
	for _, id := range order {
		fmt.Fprintln(a.outW, id)
	}
	return nil
}

// renderLevels prints the evaluation order grouped into batches whose
// members have no dependencies on each other.
func (a *App) renderLevels(g *dag.Graph) error {
	levels, err := g.TopologicalSortLevels()
	if err != nil {
		return fmt.Errorf("failed to order graph: %w", err)
	}
	if a.config.Output == "json" {
		return writeJSON(a.outW, map[string]any{"levels": levels})
	}
	for i, level := range levels {
		fmt.Fprintf(a.outW, "%d: %s\n", i, strings.Join(level, " "))
	}
	return nil
}

// renderPreview resolves every reference the template can satisfy on its
// own and prints the resolved entity values in evaluation order.
func (a *App) renderPreview(ctx context.Context, s *stack.Stack) error {
	result, err := eval.Preview(ctx, s, eval.Options{WorkingDir: a.config.WorkingDir})
	if err != nil {
		return fmt.Errorf("preview failed: %w", err)
	}

	entries := make([]document.Entry, 0, len(result.Order))
	for _, name := range result.Order {
		if v := result.Value(name); v != nil {
			entries = append(entries, document.Entry{Key: name, Value: v})
		}
	}
	data, err := document.Serialize(document.NewMapping(entries...))
	if err != nil {
		return err
	}
	_, err = a.outW.Write(data)
	return err
}

// renderExport converts the template into a service topology and writes it
// to the configured destination.
func (a *App) renderExport(ctx context.Context, s *stack.Stack) error {
	doc, err := export.Topology(ctx, s, export.Options{WorkingDir: a.config.WorkingDir})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	data, err := doc.Serialize()
	if err != nil {
		return err
	}

	if a.config.ExportPath == "-" {
		_, err = a.outW.Write(data)
		return err
	}
	if err := os.WriteFile(a.config.ExportPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write topology: %w", err)
	}
	a.logger.Info("Topology written.", "path", a.config.ExportPath)
	return nil
}

// runWalk pushes the graph through the concurrent walker and prints the
// final status of every node.
func (a *App) runWalk(ctx context.Context, g *dag.Graph) error {
	a.logger.Info("Starting concurrent walk...")
	result, err := walk.Walk(ctx, g, func(ctx context.Context, id string) error {
		ctxlog.FromContext(ctx).Info("Visited node.", "node_id", id)
		return nil
	}, walk.Options{Workers: a.config.WorkerCount})
	if err != nil {
		return fmt.Errorf("walk failed: %w", err)
	}
	a.logger.Info("Walk finished.", "run_id", result.RunID)

	for _, id := range g.Nodes() {
		fmt.Fprintf(a.outW, "%s: %s\n", id, result.Nodes[id].Status)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
