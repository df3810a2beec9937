// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "propextract"

// Metrics holds the counters for one pipeline run. Each Metrics owns its
// registry, so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// Papers counts finished papers, labeled by outcome (succeeded, failed).
	Papers *prometheus.CounterVec

	// RecordsAccepted counts candidates that passed validation.
	RecordsAccepted prometheus.Counter

	// RecordsRejected counts candidates that failed validation, labeled by reason code.
	RecordsRejected *prometheus.CounterVec

	// Retries counts retried attempts, labeled by operation.
	Retries *prometheus.CounterVec

	// StageDuration observes per-paper stage durations in seconds, labeled by stage.
	StageDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics with a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Papers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_total",
			Help:      "Papers processed, by outcome",
		}, []string{"outcome"}),
		RecordsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_accepted_total",
			Help:      "Candidate records accepted by validation",
		}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Candidate records rejected by validation, by reason",
		}, []string{"reason"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried attempts of external calls, by operation",
		}, []string{"operation"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
	}
	reg.MustRegister(m.Papers, m.RecordsAccepted, m.RecordsRejected, m.Retries, m.StageDuration)
	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordPaper counts a finished paper.
func (m *Metrics) RecordPaper(outcome string) {
	m.Papers.WithLabelValues(outcome).Inc()
}

// RecordValidation counts one paper's validation results. codes holds the
// rejection code of each rejected candidate.
func (m *Metrics) RecordValidation(accepted int, codes []string) {
	m.RecordsAccepted.Add(float64(accepted))
	for _, c := range codes {
		m.RecordsRejected.WithLabelValues(c).Inc()
	}
}

// RecordRetry counts one retried attempt of operation.
func (m *Metrics) RecordRetry(operation string) {
	m.Retries.WithLabelValues(operation).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes the registry in the node-exporter textfile
// collector format, creating the parent directory.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
