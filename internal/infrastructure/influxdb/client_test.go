package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/pinforge-core/internal/infrastructure/config"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/pinforge-core/internal/project"
)

// fakeInflux answers /ping and records line protocol sent to /api/v2/write.
type fakeInflux struct {
	mu     sync.Mutex
	lines  []string
	status int
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping", "/health":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
		f.mu.Lock()
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		status := f.status
		f.mu.Unlock()
		if status == 0 {
			status = http.StatusNoContent
		}
		w.WriteHeader(status)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "pinforge-test-token",
		Org:           "pinforge",
		Bucket:        "pinforge",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func connectFake(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client, fake
}

func waitForLines(t *testing.T, fake *fakeInflux, n int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if lines := fake.written(); len(lines) >= n {
			return lines
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines, got %v", n, fake.written())
	return nil
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := connectFake(t)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.Close() //nolint:errcheck // Closing early on purpose
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
}

func TestRecordAllocation(t *testing.T) {
	client, fake := connectFake(t)

	client.RecordAllocation(project.Event{
		Type:          project.EventAllocationCompleted,
		ProjectID:     "p-1",
		MCUID:         "stm32f103c8",
		OK:            true,
		Allocated:     4,
		Warnings:      1,
		PinsUsed:      5,
		PinsAvailable: 27,
		Duration:      1500 * time.Microsecond,
		Timestamp:     time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	})
	client.Flush()

	lines := waitForLines(t, fake, 1)
	line := lines[0]
	for _, want := range []string{
		"allocation_runs,",
		"kind=project",
		"mcu_id=stm32f103c8",
		"project_id=p-1",
		"allocated=4i",
		"pins_used=5i",
		"pins_available=27i",
		"ok=true",
		"duration_ms=1.5",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestRecordAllocation_AfterClose(t *testing.T) {
	client, fake := connectFake(t)
	client.Close() //nolint:errcheck // Closing early on purpose

	client.RecordAllocation(project.Event{MCUID: "stm32f103c8"})
	client.Flush()

	if lines := fake.written(); len(lines) != 0 {
		t.Errorf("lines after Close = %v, want none", lines)
	}
}

func TestSetOnError(t *testing.T) {
	client, fake := connectFake(t)
	fake.mu.Lock()
	fake.status = http.StatusBadRequest
	fake.mu.Unlock()

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.RecordCatalogLoad(influxdb.CatalogLoad{MCUs: 3})
	client.Flush()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("error callback received nil")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("error callback not invoked")
	}
}

func TestRecordCatalogLoad(t *testing.T) {
	client, fake := connectFake(t)

	client.RecordCatalogLoad(influxdb.CatalogLoad{MCUs: 4, Sensors: 12, Constraints: 4, Files: 1})
	client.Flush()

	lines := waitForLines(t, fake, 1)
	line := lines[0]
	for _, want := range []string{"catalog_loads ", "mcus=4i", "sensors=12i", "constraints=4i", "files=1i"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	client.Close() //nolint:errcheck // Test cleanup
	client.RecordCatalogLoad(influxdb.CatalogLoad{MCUs: 1})
}

func TestClose_Nil(t *testing.T) {
	var client influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
	client.Flush()
}
