// pinforge-allocate runs one pin allocation from a project file and prints
// the result.
//
// Usage:
//
//	pinforge-allocate [flags] project.yaml
//
// The project file holds the same fields as a saved project (mcu_id,
// sensor_ids, custom_sensors, locks, constraints, use_default_constraints,
// disabled_constraints). Output is the raw allocation result as JSON, one
// report selected with -format, or a zip of every report with -bundle.
//
// The exit status is 0 on success, 1 on a usage, input or output error,
// and 2 when -strict is set and the allocation has conflicts.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/pinforge-core/internal/catalog"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/config"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/logging"
	"github.com/nerrad567/pinforge-core/internal/project"
	"github.com/nerrad567/pinforge-core/internal/report"
)

var version = "dev"

// formatResult prints the engine result without a report wrapper.
const formatResult = "result"

// Exit codes.
const (
	exitOK        = 0
	exitError     = 1
	exitConflicts = 2
)

// errConflicts is returned by run when -strict is set and the allocation
// has conflicts. Output has still been written.
var errConflicts = errors.New("allocation has conflicts")

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
		os.Exit(exitOK)
	case errors.Is(err, flag.ErrHelp):
		os.Exit(exitOK)
	case errors.Is(err, errConflicts):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConflicts)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}

// options are the parsed command line.
type options struct {
	projectPath  string
	format       string
	bundlePath   string
	outputPath   string
	catalogFiles []string
	strict       bool
	logLevel     string
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	var catalogs string

	fs := flag.NewFlagSet("pinforge-allocate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.format, "format", formatResult,
		"output format: result or one of "+kindList())
	fs.StringVar(&opts.bundlePath, "bundle", "", "write a zip of every report to this path instead of printing")
	fs.StringVar(&opts.outputPath, "o", "", "write output to this file instead of stdout")
	fs.StringVar(&catalogs, "catalog", "", "comma-separated catalog files merged over the built-in catalog")
	fs.BoolVar(&opts.strict, "strict", false, "exit with status 2 when the allocation has conflicts")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: pinforge-allocate [flags] project.yaml")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, fmt.Errorf("expected exactly one project file, got %d", fs.NArg())
	}
	opts.projectPath = fs.Arg(0)

	if opts.format != formatResult && !isKind(opts.format) {
		return opts, fmt.Errorf("unknown format %q (want result or one of %s)", opts.format, kindList())
	}
	if opts.bundlePath != "" && opts.outputPath != "" {
		return opts, errors.New("-bundle and -o cannot be combined")
	}

	for _, f := range strings.Split(catalogs, ",") {
		if f = strings.TrimSpace(f); f != "" {
			opts.catalogFiles = append(opts.catalogFiles, f)
		}
	}
	return opts, nil
}

// run is the whole command, separated from main for testability.
func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	log := logging.NewWithWriter(stderr, config.LoggingConfig{
		Level:  opts.logLevel,
		Format: "text",
	}, version)

	registry, err := catalog.NewRegistry()
	if err != nil {
		return fmt.Errorf("loading built-in catalog: %w", err)
	}
	registry.SetLogger(log)
	if err := registry.LoadFiles(opts.catalogFiles...); err != nil {
		return fmt.Errorf("loading catalog files: %w", err)
	}

	spec, err := loadSpec(opts.projectPath)
	if err != nil {
		return err
	}

	plan, err := project.NewPlanner(registry).Plan(spec)
	if err != nil {
		return fmt.Errorf("planning %s: %w", opts.projectPath, err)
	}

	start := time.Now()
	result := plan.Allocate()
	log.Info("allocation complete",
		"mcu", plan.MCU.ID,
		"allocated", len(result.Allocations),
		"conflicts", len(result.Conflicts),
		"warnings", len(result.Warnings),
		"took", time.Since(start),
	)
	for _, c := range result.Conflicts {
		log.Warn("conflict", "sensor", c.SensorID, "reason", c.Reason, "detail", c.Detail)
	}

	in := report.Input{
		MCU:         plan.MCU,
		Sensors:     plan.Sensors,
		Result:      result,
		GeneratedAt: time.Now().UTC(),
	}

	if opts.bundlePath != "" {
		if err := writeBundle(opts.bundlePath, in); err != nil {
			return err
		}
		log.Info("bundle written", "path", opts.bundlePath)
	} else {
		data, err := render(opts.format, in)
		if err != nil {
			return err
		}
		if err := writeOutput(opts.outputPath, data, stdout); err != nil {
			return err
		}
	}

	if opts.strict && !result.OK() {
		return fmt.Errorf("%w: %d of %d sensors unplaced", errConflicts, len(result.Conflicts), len(plan.Sensors))
	}
	return nil
}

// loadSpec reads a project file. Unlike the stored project schema, an
// omitted use_default_constraints means true.
func loadSpec(path string) (project.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return project.Spec{}, fmt.Errorf("reading project file: %w", err)
	}

	var p project.Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return project.Spec{}, fmt.Errorf("parsing project file %s: %w", path, err)
	}

	var flags struct {
		UseDefaultConstraints *bool `yaml:"use_default_constraints"`
	}
	if err := yaml.Unmarshal(data, &flags); err != nil {
		return project.Spec{}, fmt.Errorf("parsing project file %s: %w", path, err)
	}
	if flags.UseDefaultConstraints == nil {
		p.UseDefaultConstraints = true
	}
	return p.Spec, nil
}

func render(format string, in report.Input) ([]byte, error) {
	if format == formatResult {
		data, err := json.MarshalIndent(in.Result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding result: %w", err)
		}
		return append(data, '\n'), nil
	}
	_, data, err := report.Render(report.Kind(format), in)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", format, err)
	}
	return data, nil
}

func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // report files are not secret
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeBundle(path string, in report.Input) error {
	var buf bytes.Buffer
	if err := report.WriteBundle(&buf, in); err != nil {
		return fmt.Errorf("building bundle: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // report files are not secret
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func isKind(s string) bool {
	return slices.Contains(report.AllKinds(), report.Kind(s))
}

func kindList() string {
	kinds := report.AllKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
