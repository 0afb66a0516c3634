package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/pinforge-core/internal/project"
)

const namespace = "pinforge"

// Allocation outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeConflicts = "conflicts"
)

// Recorder counts allocations. It is safe for concurrent use.
type Recorder struct {
	allocations *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewRecorder creates a Recorder and registers its collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_total",
			Help:      "Allocations run, by outcome.",
		}, []string{"outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Sensors left unallocated, by conflict reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocation_duration_seconds",
			Help:      "Time spent in the allocation engine.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	reg.MustRegister(r.allocations, r.conflicts, r.duration)
	return r
}

// RecordAllocation implements project.MetricsRecorder.
func (r *Recorder) RecordAllocation(ev project.Event) {
	outcome := OutcomeOK
	if !ev.OK {
		outcome = OutcomeConflicts
	}
	r.allocations.WithLabelValues(outcome).Inc()
	for reason, n := range ev.Reasons {
		r.conflicts.WithLabelValues(string(reason)).Add(float64(n))
	}
	r.duration.Observe(ev.Duration.Seconds())
}

// Stats is a point-in-time snapshot reported by Collector.
type Stats struct {
	CatalogMCUs        int
	CatalogSensors     int
	CatalogConstraints int
	WebSocketClients   int
}

// StatsFunc returns the current Stats. It is called on every scrape.
type StatsFunc func() Stats

// Collector reports Stats as gauges.
type Collector struct {
	stats StatsFunc

	mcus, sensors, constraints, wsClients *prometheus.Desc
}

// NewCollector creates a Collector over stats.
func NewCollector(stats StatsFunc) *Collector {
	return &Collector{
		stats:       stats,
		mcus:        prometheus.NewDesc(namespace+"_catalog_mcus", "MCUs in the catalog.", nil, nil),
		sensors:     prometheus.NewDesc(namespace+"_catalog_sensors", "Sensors in the catalog.", nil, nil),
		constraints: prometheus.NewDesc(namespace+"_catalog_constraints", "Pin constraints in the catalog.", nil, nil),
		wsClients:   prometheus.NewDesc(namespace+"_websocket_clients", "Connected WebSocket clients.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(desc chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, desc)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(m chan<- prometheus.Metric) {
	st := c.stats()
	m <- prometheus.MustNewConstMetric(c.mcus, prometheus.GaugeValue, float64(st.CatalogMCUs))
	m <- prometheus.MustNewConstMetric(c.sensors, prometheus.GaugeValue, float64(st.CatalogSensors))
	m <- prometheus.MustNewConstMetric(c.constraints, prometheus.GaugeValue, float64(st.CatalogConstraints))
	m <- prometheus.MustNewConstMetric(c.wsClients, prometheus.GaugeValue, float64(st.WebSocketClients))
}

// NewRegistry returns a registry with the Go runtime and process
// collectors already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
