package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/pinforge-core/internal/project"
)

// Measurements written by the client.
const (
	MeasurementAllocationRuns = "allocation_runs" // one point per allocation
	MeasurementCatalogLoads   = "catalog_loads"   // one point per service start
)

// RecordAllocation writes ev as an allocation_runs point. The write is
// non-blocking; failures surface through the SetOnError callback.
func (c *Client) RecordAllocation(ev project.Event) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(AllocationPoint(ev))
}

// AllocationPoint converts ev to a point.
//
// Tags are mcu_id, kind ("project" or "preview") and project_id when the
// event belongs to a saved project. Previews have no project, and tagging
// them with an empty id would merge them into one series.
func AllocationPoint(ev project.Event) *write.Point {
	tags := map[string]string{
		"mcu_id": ev.MCUID,
		"kind":   "preview",
	}
	if ev.ProjectID != "" {
		tags["project_id"] = ev.ProjectID
		tags["kind"] = "project"
	}

	fields := map[string]interface{}{
		"allocated":      ev.Allocated,
		"conflicts":      ev.Conflicts,
		"warnings":       ev.Warnings,
		"pins_used":      ev.PinsUsed,
		"pins_available": ev.PinsAvailable,
		"ok":             ev.OK,
		"duration_ms":    float64(ev.Duration) / float64(time.Millisecond),
	}

	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(MeasurementAllocationRuns, tags, fields, at)
}

// CatalogLoad is the size of the catalog after startup merging.
type CatalogLoad struct {
	MCUs        int
	Sensors     int
	Constraints int
	Files       int // extra catalog files merged over the built-in one
}

// RecordCatalogLoad writes load as a catalog_loads point stamped now.
func (c *Client) RecordCatalogLoad(load CatalogLoad) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(CatalogLoadPoint(load, time.Now()))
}

// CatalogLoadPoint converts load to a point at at.
func CatalogLoadPoint(load CatalogLoad, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"mcus":        load.MCUs,
		"sensors":     load.Sensors,
		"constraints": load.Constraints,
		"files":       load.Files,
	}
	return write.NewPoint(MeasurementCatalogLoads, map[string]string{}, fields, at)
}
