package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/stackgraphgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("stackgraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
StackGraph - a dependency-graph evaluator for infrastructure templates.

Usage:
  stackgraph [options] [TEMPLATE_PATH]

Arguments:
  TEMPLATE_PATH
    Path to a template .yaml/.yml/.hcl file, or a directory containing one.

Options:
`)
		flagSet.PrintDefaults()
	}

	templateFlag := flagSet.String("template", "", "Path to the template file or directory.")
	tFlag := flagSet.String("t", "", "Path to the template file or directory (shorthand).")
	topologyFlag := flagSet.String("topology", "", "Path to a compose-shaped topology file.")
	checkFlag := flagSet.Bool("check", false, "Validate the input and print a summary.")
	levelsFlag := flagSet.Bool("levels", false, "Print the evaluation order as concurrent batches.")
	previewFlag := flagSet.Bool("preview", false, "Resolve template references and print the resolved values.")
	walkFlag := flagSet.Bool("walk", false, "Run the graph through the concurrent walker.")
	exportFlag := flagSet.String("export", "", "Convert the template to a service topology written to this path. '-' writes to stdout.")
	outputFlag := flagSet.String("output", "text", "Output format for plan and levels. Options: 'text' or 'json'.")
	workdirFlag := flagSet.String("workdir", "", "Directory substituted for the pulumi.cwd builtin.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 10, "Number of concurrent workers for the walker.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	templatePath := ""
	if *templateFlag != "" {
		templatePath = *templateFlag
	} else if *tFlag != "" {
		templatePath = *tFlag
	} else if flagSet.NArg() > 0 {
		templatePath = flagSet.Arg(0)
	}
	slog.Debug("Input path determined.", "template", templatePath, "topology", *topologyFlag)

	if templatePath == "" && *topologyFlag == "" {
		slog.Debug("No input path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	mode := app.ModePlan
	modeFlags := 0
	if *checkFlag {
		mode = app.ModeCheck
		modeFlags++
	}
	if *levelsFlag {
		mode = app.ModeLevels
		modeFlags++
	}
	if *previewFlag {
		mode = app.ModePreview
		modeFlags++
	}
	if *walkFlag {
		mode = app.ModeWalk
		modeFlags++
	}
	if *exportFlag != "" {
		mode = app.ModeExport
		modeFlags++
	}
	if modeFlags > 1 {
		return nil, false, &ExitError{
			Code:    2,
			Message: "at most one of -check, -levels, -preview, -walk, or -export may be given",
		}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		TemplatePath: templatePath,
		TopologyPath: *topologyFlag,
		Mode:         mode,
		ExportPath:   *exportFlag,
		Output:       strings.ToLower(*outputFlag),
		WorkingDir:   *workdirFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		WorkerCount:  *workersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}
