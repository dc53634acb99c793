// Package metrics exposes Prometheus collectors for the todo index.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the index collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	entries         *prometheus.GaugeVec
	rebuilds        prometheus.Counter
	pageUpdates     *prometheus.CounterVec
	rebuildDuration prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		entries: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "outline_todo_index_entries",
			Help: "Entries in the published todo index by state",
		}, []string{"state"}),
		rebuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "outline_index_rebuilds_total",
			Help: "Full todo index rebuilds",
		}),
		pageUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "outline_index_page_updates_total",
			Help: "Incremental page updates applied to the todo index by operation",
		}, []string{"op"}),
		rebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "outline_index_rebuild_duration_seconds",
			Help:    "Duration of full todo index rebuilds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetEntries records the size of the published index.
func (m *Metrics) SetEntries(open, done int) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues("open").Set(float64(open))
	m.entries.WithLabelValues("done").Set(float64(done))
}

// ObserveRebuild counts a full rebuild and its duration.
func (m *Metrics) ObserveRebuild(d time.Duration) {
	if m == nil {
		return
	}
	m.rebuilds.Inc()
	m.rebuildDuration.Observe(d.Seconds())
}

// PageUpdated counts an incremental update; op is "replace" or "remove".
func (m *Metrics) PageUpdated(op string) {
	if m == nil {
		return
	}
	m.pageUpdates.WithLabelValues(op).Inc()
}
