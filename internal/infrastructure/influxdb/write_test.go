package influxdb

import (
	"testing"
	"time"

	"github.com/nerrad567/pinforge-core/internal/project"
)

func TestAllocationPoint(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		ev       project.Event
		wantTags map[string]string
	}{
		{
			name: "project run",
			ev:   project.Event{ProjectID: "p-1", MCUID: "stm32f103c8", Timestamp: at},
			wantTags: map[string]string{
				"kind": "project", "mcu_id": "stm32f103c8", "project_id": "p-1",
			},
		},
		{
			name:     "preview",
			ev:       project.Event{MCUID: "stm32g071rb", Timestamp: at},
			wantTags: map[string]string{"kind": "preview", "mcu_id": "stm32g071rb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := AllocationPoint(tt.ev)
			if p.Name() != MeasurementAllocationRuns {
				t.Errorf("Name() = %q, want %q", p.Name(), MeasurementAllocationRuns)
			}
			if !p.Time().Equal(at) {
				t.Errorf("Time() = %v, want %v", p.Time(), at)
			}
			got := make(map[string]string)
			for _, tag := range p.TagList() {
				got[tag.Key] = tag.Value
			}
			if len(got) != len(tt.wantTags) {
				t.Errorf("tags = %v, want %v", got, tt.wantTags)
			}
			for k, v := range tt.wantTags {
				if got[k] != v {
					t.Errorf("tag %s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestAllocationPoint_Fields(t *testing.T) {
	p := AllocationPoint(project.Event{
		MCUID:         "stm32f103c8",
		Allocated:     2,
		Conflicts:     1,
		Warnings:      3,
		PinsUsed:      4,
		PinsAvailable: 20,
		Duration:      2 * time.Millisecond,
	})

	want := map[string]interface{}{
		"allocated":      int64(2),
		"conflicts":      int64(1),
		"warnings":       int64(3),
		"pins_used":      int64(4),
		"pins_available": int64(20),
		"ok":             false,
		"duration_ms":    2.0,
	}
	fields := p.FieldList()
	if len(fields) != len(want) {
		t.Fatalf("len(fields) = %d, want %d", len(fields), len(want))
	}
	for _, f := range fields {
		if f.Value != want[f.Key] {
			t.Errorf("field %s = %v (%T), want %v", f.Key, f.Value, f.Value, want[f.Key])
		}
	}
	if p.Time().IsZero() {
		t.Error("zero event timestamp should be replaced with now")
	}
}
