// Package metrics exports import pipeline counters to Prometheus. It is fed
// by pipeline checkpoint events and image download outcomes.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mrlokans/patterns/internal/images"
	"github.com/mrlokans/patterns/internal/importers"
)

// Import statuses used as the status label.
const (
	StatusSuccess       = "success"
	StatusFetchFailed   = "fetch_failed"
	StatusExtractFailed = "extract_failed"
	StatusPersistFailed = "persist_failed"
)

var (
	_ importers.Tracer = (*Metrics)(nil)
	_ images.Recorder  = (*Metrics)(nil)
)

// Metrics holds the registered collectors.
type Metrics struct {
	Imports           *prometheus.CounterVec
	ExtractorAttempts *prometheus.CounterVec
	Images            *prometheus.CounterVec
	ImportDuration    prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is useful in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pattern_imports_total",
				Help: "Total number of import runs by final status.",
			},
			[]string{"status"},
		),
		ExtractorAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pattern_extractor_attempts_total",
				Help: "Extractor attempts by extractor and outcome.",
			},
			[]string{"extractor", "outcome"},
		),
		Images: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pattern_images_total",
				Help: "Candidate images by outcome and skip reason.",
			},
			[]string{"outcome", "reason"},
		),
		ImportDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pattern_import_duration_seconds",
				Help:    "Wall time of import runs.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Imports, m.ExtractorAttempts, m.Images, m.ImportDuration)
	}
	return m
}

// Checkpoint implements importers.Tracer.
func (m *Metrics) Checkpoint(_ context.Context, event string, payload map[string]any) {
	switch event {
	case importers.EventExtractTry:
		extractor, _ := payload["extractor"].(string)
		outcome, _ := payload["outcome"].(string)
		m.ExtractorAttempts.WithLabelValues(extractor, outcome).Inc()
		return
	case importers.EventFetchFailed:
		m.Imports.WithLabelValues(StatusFetchFailed).Inc()
	case importers.EventExtractFailed:
		m.Imports.WithLabelValues(StatusExtractFailed).Inc()
	case importers.EventPersistFailed:
		m.Imports.WithLabelValues(StatusPersistFailed).Inc()
	case importers.EventPersistDone:
		m.Imports.WithLabelValues(StatusSuccess).Inc()
	default:
		return
	}
	if d, ok := payload["duration_seconds"].(float64); ok {
		m.ImportDuration.Observe(d)
	}
}

// ImageOutcome implements images.Recorder.
func (m *Metrics) ImageOutcome(outcome, reason string) {
	m.Images.WithLabelValues(outcome, reason).Inc()
}
