// Package metrics exposes pinforge allocation metrics in the Prometheus
// text format.
//
// Recorder implements project.MetricsRecorder and keeps:
//
//	pinforge_allocations_total{outcome="ok"|"conflicts"}
//	pinforge_conflicts_total{reason="no_i2c"|...}
//	pinforge_allocation_duration_seconds
//
// Collector reports point-in-time gauges (catalog sizes, WebSocket
// clients) read from a StatsFunc on every scrape. Both are registered on
// a private registry together with the Go runtime and process collectors;
// Handler serves it on /metrics.
package metrics
