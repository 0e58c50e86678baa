// Package metrics provides Prometheus instrumentation for the integrity engine.
//
// All methods are safe to call on a nil *Metrics, so components can be
// constructed without metrics in tests and CLI runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for validation runs and scans.
type Metrics struct {
	// Validation runs by outcome
	ValidationRuns *prometheus.CounterVec

	// Issues produced by validation runs by sheet and severity
	ValidationIssues *prometheus.CounterVec

	// Full validation run latency including reference reads
	ValidationLatency prometheus.Histogram

	// Scan latency by mode ("scan" or "search")
	ScanLatency *prometheus.HistogramVec

	// Scanner findings by kind ("duplicate", "anomaly") and type
	ScanFindings *prometheus.CounterVec

	// Record store read latency by read name
	StoreReadLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all collectors registered on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ValidationRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slojd_integrity_validation_runs_total",
			Help: "Total import validation runs by outcome",
		}, []string{"can_import"}),

		ValidationIssues: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slojd_integrity_validation_issues_total",
			Help: "Total validation issues by sheet and severity",
		}, []string{"sheet", "severity"}),

		ValidationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "slojd_integrity_validation_duration_seconds",
			Help:    "Duration of a full import validation run",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		ScanLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slojd_integrity_scan_duration_seconds",
			Help:    "Duration of duplicate and anomaly scans",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"mode"}),

		ScanFindings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slojd_integrity_scan_findings_total",
			Help: "Total scanner findings by kind and type",
		}, []string{"kind", "type"}),

		StoreReadLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slojd_integrity_store_read_duration_seconds",
			Help:    "Duration of record store reads",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"read"}),
	}
}

// ObserveValidation records the outcome and latency of a validation run.
func (m *Metrics) ObserveValidation(canImport bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "false"
	if canImport {
		outcome = "true"
	}
	m.ValidationRuns.WithLabelValues(outcome).Inc()
	m.ValidationLatency.Observe(d.Seconds())
}

// AddIssues records n issues of a sheet and severity.
func (m *Metrics) AddIssues(sheet, severity string, n int) {
	if m != nil && n > 0 {
		m.ValidationIssues.WithLabelValues(sheet, severity).Add(float64(n))
	}
}

// ObserveScan records the latency of a scan or search.
func (m *Metrics) ObserveScan(mode string, d time.Duration) {
	if m != nil {
		m.ScanLatency.WithLabelValues(mode).Observe(d.Seconds())
	}
}

// IncrementFinding records one scanner finding.
func (m *Metrics) IncrementFinding(kind, findingType string) {
	if m != nil {
		m.ScanFindings.WithLabelValues(kind, findingType).Inc()
	}
}

// ObserveStoreRead records the latency of one record store read.
func (m *Metrics) ObserveStoreRead(read string, d time.Duration) {
	if m != nil {
		m.StoreReadLatency.WithLabelValues(read).Observe(d.Seconds())
	}
}
