// Package metrics holds the Prometheus collectors of the snapshot engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	SkippedCycles   prometheus.Counter
	SiteFailures    *prometheus.CounterVec
	RowsWritten     *prometheus.CounterVec
	RowsPruned      *prometheus.CounterVec
	LastPollSeconds prometheus.Gauge
}

// New builds the collectors on a private registry so tests and multiple
// engines never collide on the global one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_poll_cycles_total",
				Help: "Number of completed poll cycles by outcome",
			},
			[]string{"outcome"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "atlas_poll_cycle_duration_seconds",
				Help:    "Wall time of a poll cycle",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
		SkippedCycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "atlas_poll_cycles_skipped_total",
				Help: "Number of cycles skipped because another one was running",
			},
		),
		SiteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_poll_site_failures_total",
				Help: "Number of failed site fetches",
			},
			[]string{"site"},
		),
		RowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_snapshot_rows_written_total",
				Help: "Number of snapshot rows written",
			},
			[]string{"table"},
		),
		RowsPruned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_snapshot_rows_pruned_total",
				Help: "Number of snapshot rows removed by retention",
			},
			[]string{"table"},
		),
		LastPollSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atlas_last_poll_timestamp_seconds",
				Help: "Unix time of the last poll cycle",
			},
		),
	}

	m.registry.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.SkippedCycles,
		m.SiteFailures,
		m.RowsWritten,
		m.RowsPruned,
		m.LastPollSeconds,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
