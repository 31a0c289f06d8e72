// Package metrics exposes Prometheus metrics for brain reset requests.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/brainreset/internal/apperr"
	"github.com/starford/brainreset/internal/brainreset"
)

// Metrics holds the collectors on a private registry.
//
// Metrics:
//   - brainreset_requests_total{outcome} - finished requests by outcome
//     ("success" or an error kind)
//   - brainreset_stage_duration_seconds{stage} - time spent per stage
//   - brainreset_notes_fetched - notes found per successful fetch
//   - brainreset_note_fetch_failures_total - skipped days
//   - brainreset_write_fallbacks_total - placements retried with "today"
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal       *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	NotesFetched        prometheus.Histogram
	NoteFetchFailures   prometheus.Counter
	WriteFallbacksTotal prometheus.Counter
}

// New creates and registers the collectors, plus Go runtime and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brainreset_requests_total",
				Help: "Total brain reset requests by outcome",
			},
			[]string{"outcome"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brainreset_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"stage"},
		),
		NotesFetched: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "brainreset_notes_fetched",
			Help:    "Daily notes found per request",
			Buckets: []float64{1, 3, 7, 14, 30},
		}),
		NoteFetchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "brainreset_note_fetch_failures_total",
			Help: "Daily note requests that failed and were skipped",
		}),
		WriteFallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "brainreset_write_fallbacks_total",
			Help: "Document placements retried with the today placeholder",
		}),
	}
}

// StageChanged implements brainreset.Observer.
func (m *Metrics) StageChanged(_ context.Context, t brainreset.Transition) {
	if t.From != brainreset.StageIdle {
		m.StageDuration.WithLabelValues(string(t.From)).Observe(t.Elapsed.Seconds())
	}
	switch t.To {
	case brainreset.StageGenerating:
		m.NotesFetched.Observe(float64(t.Notes))
	case brainreset.StageSucceeded:
		m.RequestsTotal.WithLabelValues("success").Inc()
	case brainreset.StageFailed:
		m.RequestsTotal.WithLabelValues(apperr.KindOf(t.Err).String()).Inc()
	}
}

// FetchFailed counts a skipped day.
func (m *Metrics) FetchFailed() { m.NoteFetchFailures.Inc() }

// WriteFallback counts a placement retried with "today".
func (m *Metrics) WriteFallback() { m.WriteFallbacksTotal.Inc() }

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
