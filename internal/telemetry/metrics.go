// Package telemetry owns the prometheus collectors and the otel tracer of the
// service.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "disparos"

type Metrics struct {
	PipelineRuns     *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	RowsNormalized   *prometheus.CounterVec
	SchemaErrors     *prometheus.CounterVec
	ViewRows         *prometheus.GaugeVec
	DatasetLoaded    prometheus.Gauge
}

// New registers the collectors on reg. A nil reg leaves them unregistered,
// which is what tests and the CLI use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline stage executions by outcome.",
		}, []string{"stage", "outcome"}),
		PipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Pipeline stage latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
		RowsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_normalized_total",
			Help:      "Rows kept after normalization, by source.",
		}, []string{"source"}),
		SchemaErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_errors_total",
			Help:      "Files rejected by schema validation, by source.",
		}, []string{"source"}),
		ViewRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_rows",
			Help:      "Rows produced by the last computation of each view.",
		}, []string{"view"}),
		DatasetLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_loaded_timestamp_seconds",
			Help:      "Unix time of the last successful dataset load.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PipelineRuns, m.PipelineDuration, m.RowsNormalized, m.SchemaErrors, m.ViewRows, m.DatasetLoaded)
	}
	return m
}

// Observe records one stage execution.
func (m *Metrics) Observe(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.PipelineRuns.WithLabelValues(stage, outcome).Inc()
	m.PipelineDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
