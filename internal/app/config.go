package app

import (
	"errors"
	"fmt"
)

// Mode selects what Run does with the loaded graph.
type Mode string

const (
	// ModePlan prints the evaluation order, one node per line.
	ModePlan Mode = "plan"
	// ModeLevels prints the evaluation order grouped into batches that
	// could run concurrently.
	ModeLevels Mode = "levels"
	// ModeCheck loads and validates, then reports a summary.
	ModeCheck Mode = "check"
	// ModePreview resolves template references and prints the resolved
	// entity values. Template input only.
	ModePreview Mode = "preview"
	// ModeExport converts a template into a service topology. Template
	// input only.
	ModeExport Mode = "export"
	// ModeWalk runs the graph through the concurrent walker.
	ModeWalk Mode = "walk"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	TemplatePath string // yaml or hcl template, file or directory
	TopologyPath string // compose-shaped topology file

	Mode       Mode
	ExportPath string // destination for ModeExport; "-" writes to the output stream
	Output     string // plan and levels rendering: "text" or "json"
	WorkingDir string // value of the pulumi.cwd builtin

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.TemplatePath == "" && cfg.TopologyPath == "" {
		return nil, errors.New("a template or topology path is required")
	}
	if cfg.TemplatePath != "" && cfg.TopologyPath != "" {
		return nil, errors.New("template and topology paths are mutually exclusive")
	}

	if cfg.Mode == "" {
		cfg.Mode = ModePlan
	}
	switch cfg.Mode {
	case ModePlan, ModeLevels, ModeCheck, ModeWalk:
	case ModePreview, ModeExport:
		if cfg.TopologyPath != "" {
			return nil, fmt.Errorf("%s requires a template, not a topology", cfg.Mode)
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.Mode == ModeExport && cfg.ExportPath == "" {
		return nil, errors.New("export requires a destination path")
	}

	if cfg.Output == "" {
		cfg.Output = "text"
	}
	if cfg.Output != "text" && cfg.Output != "json" {
		return nil, fmt.Errorf("invalid output format %q: must be 'text' or 'json'", cfg.Output)
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 10
	}

	return &cfg, nil
}
