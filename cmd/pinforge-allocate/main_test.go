package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

const weatherStation = `
name: Weather station
mcu_id: stm32f103c8
sensor_ids: [bme280, button]
locks:
  button:
    GPIO: PA0
`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write project: %v", err)
	}
	return path
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_ResultJSON(t *testing.T) {
	stdout, _, err := runCmd(t, writeProject(t, weatherStation))
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var result pinmap.Result
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("output is not a result: %v\n%s", err, stdout)
	}
	if !result.OK() {
		t.Fatalf("Conflicts = %+v, want none", result.Conflicts)
	}
	btn, ok := result.Allocation("button")
	if !ok {
		t.Fatal("no allocation for button")
	}
	if got := btn.AssignedPins[pinmap.SignalGPIO]; got != "PA0" {
		t.Errorf("button GPIO = %q, want PA0", got)
	}
	if _, ok := result.Allocation("bme280"); !ok {
		t.Error("no allocation for bme280")
	}
}

func TestRun_DefaultConstraints(t *testing.T) {
	locked := `
mcu_id: stm32f103c8
sensor_ids: [button]
locks:
  button:
    GPIO: PA13
`
	tests := []struct {
		name       string
		extra      string
		wantReason pinmap.Reason
	}{
		{"omitted means enabled", "", pinmap.ReasonConstraintReserved},
		{"explicitly disabled", "use_default_constraints: false\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := runCmd(t, writeProject(t, locked+tt.extra))
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}
			var result pinmap.Result
			if err := json.Unmarshal([]byte(stdout), &result); err != nil {
				t.Fatalf("decoding result: %v", err)
			}
			c, conflicted := result.Conflict("button")
			switch {
			case tt.wantReason == "" && conflicted:
				t.Errorf("unexpected conflict %+v", c)
			case tt.wantReason != "" && (!conflicted || c.Reason != tt.wantReason):
				t.Errorf("conflict = %+v (found %v), want reason %s", c, conflicted, tt.wantReason)
			}
		})
	}
}

func TestRun_ReportFormats(t *testing.T) {
	project := writeProject(t, weatherStation)

	tests := []struct {
		format     string
		wantPrefix string
		contains   string
	}{
		{"pinmap_csv", "pin,status,label\n", "PA0,"},
		{"hardware_pin_usage_csv", "pin_id,status,label\n", "PA0,"},
		{"hardware_wiring_csv", "sensor_name,interface,bus_id,signal,pin_id\n", "Push Button,GPIO,"},
		{"hardware_bom_csv", "name,interface,count\n", "BME280,I2C,1"},
		{"pinmap_json", "{", `"pinUsage"`},
		{"hardware_json", "{", `"wiringList"`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			stdout, _, err := runCmd(t, "-format", tt.format, project)
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if !strings.HasPrefix(stdout, tt.wantPrefix) {
				t.Errorf("output starts %q, want prefix %q", firstLine(stdout), tt.wantPrefix)
			}
			if !strings.Contains(stdout, tt.contains) {
				t.Errorf("output missing %q:\n%s", tt.contains, stdout)
			}
		})
	}
}

func TestRun_OutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bom.csv")
	stdout, _, err := runCmd(t, "-format", "hardware_bom_csv", "-o", out, writeProject(t, weatherStation))
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.HasPrefix(string(data), "name,interface,count") {
		t.Errorf("file = %q, want BOM csv", data)
	}
}

func TestRun_Bundle(t *testing.T) {
	out := filepath.Join(t.TempDir(), "export.zip")
	if _, _, err := runCmd(t, "-bundle", out, writeProject(t, weatherStation)); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("opening bundle: %v", err)
	}
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{
		"manifest.json",
		"stm32f103c8_pinmap.json",
		"stm32f103c8_pinmap.csv",
		"stm32f103c8_hardware.json",
		"stm32f103c8_hardware_pin_usage.csv",
		"stm32f103c8_hardware_wiring.csv",
		"stm32f103c8_hardware_bom.csv",
	} {
		if !names[want] {
			t.Errorf("bundle missing %s (have %v)", want, names)
		}
	}
}

func TestRun_Strict(t *testing.T) {
	conflicting := `
mcu_id: stm32f103c8
sensor_ids: [button]
locks:
  button:
    GPIO: PA13
`
	project := writeProject(t, conflicting)

	stdout, stderr, err := runCmd(t, "-strict", project)
	if !errors.Is(err, errConflicts) {
		t.Fatalf("run() error = %v, want errConflicts", err)
	}
	if stdout == "" {
		t.Error("result should still be printed")
	}
	if !strings.Contains(stderr, "conflict") {
		t.Errorf("stderr = %q, want conflict warning", stderr)
	}

	if _, _, err := runCmd(t, project); err != nil {
		t.Errorf("without -strict run() error = %v, want nil", err)
	}
}

func TestRun_CatalogFiles(t *testing.T) {
	catalogFile := filepath.Join(t.TempDir(), "extra.yaml")
	extra := `
schema_version: 1
sensors:
  - {id: relay, name: Relay Module, interface: GPIO}
`
	if err := os.WriteFile(catalogFile, []byte(extra), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	project := writeProject(t, "mcu_id: stm32f103c8\nsensor_ids: [relay]\n")

	if _, _, err := runCmd(t, project); err == nil {
		t.Error("unknown sensor should fail without the extra catalog")
	}

	stdout, _, err := runCmd(t, "-catalog", catalogFile, project)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stdout, "Relay Module") {
		t.Errorf("output missing relay allocation:\n%s", stdout)
	}
}

func TestRun_Errors(t *testing.T) {
	project := writeProject(t, weatherStation)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no project", nil, "expected exactly one project file"},
		{"two projects", []string{project, project}, "expected exactly one project file"},
		{"unknown format", []string{"-format", "xml", project}, "unknown format"},
		{"bundle and output", []string{"-bundle", "a.zip", "-o", "b.csv", project}, "cannot be combined"},
		{"missing file", []string{"/nonexistent/project.yaml"}, "reading project file"},
		{"bad yaml", []string{writeProject(t, "mcu_id: [unclosed")}, "parsing project file"},
		{"unknown mcu", []string{writeProject(t, "mcu_id: atmega328p\nsensor_ids: [button]\n")}, "planning"},
		{"missing catalog", []string{"-catalog", "/nonexistent.yaml", project}, "loading catalog files"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCmd(t, tt.args...)
			if err == nil {
				t.Fatal("run() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("run() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	_, stderr, err := runCmd(t, "-h")
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("run() error = %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(stderr, "Usage: pinforge-allocate") {
		t.Errorf("stderr = %q, want usage", stderr)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
