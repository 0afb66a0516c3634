package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/pinforge-core/internal/auth"
)

const testSecret = "test-secret-for-development-only-0123456789"

// writeConfig writes a minimal config with MQTT and InfluxDB disabled and
// points PINFORGE_CONFIG at it.
func writeConfig(t *testing.T, dbPath, extra string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	content := `
service:
  id: test-service

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18089
  timeouts:
    read: 5
    write: 5
    idle: 5

security:
  jwt:
    secret: "` + testSecret + `"
    access_token_ttl: 15
` + extra
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("PINFORGE_CONFIG", configPath)
	return configPath
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("PINFORGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingDatabasePath(t *testing.T) {
	writeConfig(t, "", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %v, want database.path validation failure", err)
	}
}

func TestRun_MissingCatalogFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	writeConfig(t, dbPath, `
catalog:
  files:
    - /nonexistent/catalog.yaml
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when a catalog file is missing")
	}
	if !strings.Contains(err.Error(), "loading catalog files") {
		t.Errorf("error = %v, want catalog load failure", err)
	}
}

func TestRun_StartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	writeConfig(t, dbPath, "")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("PINFORGE_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("PINFORGE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestIssueToken(t *testing.T) {
	configPath := writeConfig(t, filepath.Join(t.TempDir(), "test.db"), "")

	var buf bytes.Buffer
	if err := issueToken(configPath, "ci-bot", auth.RoleEditor, 0, &buf); err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(buf.String()), testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "ci-bot" {
		t.Errorf("Subject = %q, want ci-bot", claims.Subject)
	}
	if claims.Role != auth.RoleEditor {
		t.Errorf("Role = %q, want %q", claims.Role, auth.RoleEditor)
	}

	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != 15*time.Minute {
		t.Errorf("token lifetime = %v, want 15m from config", ttl)
	}
}

func TestIssueToken_Errors(t *testing.T) {
	configPath := writeConfig(t, filepath.Join(t.TempDir(), "test.db"), "")

	tests := []struct {
		name       string
		configPath string
		role       auth.Role
	}{
		{"missing config", "/nonexistent/config.yaml", auth.RoleViewer},
		{"unknown role", configPath, auth.Role("root")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := issueToken(tt.configPath, "someone", tt.role, 5, &buf); err == nil {
				t.Error("issueToken() should fail")
			}
			if buf.Len() != 0 {
				t.Errorf("output = %q, want empty", buf.String())
			}
		})
	}
}
