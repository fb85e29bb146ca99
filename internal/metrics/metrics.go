// Package metrics holds the Prometheus collectors for price retrieval and
// report delivery. All Recorder methods are safe on a nil receiver so
// components can run without metrics wired in.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry and the digest collectors.
type Recorder struct {
	registry *prometheus.Registry

	PriceOutcomes   *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	RenderDuration  *prometheus.HistogramVec
	LastRunUnixTime prometheus.Gauge
}

// New creates a Recorder and registers its collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		PriceOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digest_price_fetch_outcomes_total",
				Help: "Per-symbol price retrieval outcomes",
			},
			[]string{"outcome"},
		),

		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digest_deliveries_total",
				Help: "Report deliveries by group and status",
			},
			[]string{"group", "status"},
		),

		RenderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "digest_render_duration_seconds",
				Help:    "Time spent rendering one group's body",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"group"},
		),

		LastRunUnixTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "digest_last_run_timestamp_seconds",
				Help: "Unix time at which the last distribution run finished",
			},
		),
	}

	r.registry.MustRegister(
		r.PriceOutcomes,
		r.Deliveries,
		r.RenderDuration,
		r.LastRunUnixTime,
	)
	return r
}

// Registry exposes the underlying registry for gathering in tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// PriceOutcome counts one symbol's final retrieval outcome.
func (r *Recorder) PriceOutcome(outcome string) {
	if r == nil {
		return
	}
	r.PriceOutcomes.WithLabelValues(outcome).Inc()
}

// Delivery counts one group delivery attempt.
func (r *Recorder) Delivery(group string, ok bool) {
	if r == nil {
		return
	}
	status := "sent"
	if !ok {
		status = "failed"
	}
	r.Deliveries.WithLabelValues(group, status).Inc()
}

// ObserveRender records how long a group's body took to build.
func (r *Recorder) ObserveRender(group string, d time.Duration) {
	if r == nil {
		return
	}
	r.RenderDuration.WithLabelValues(group).Observe(d.Seconds())
}

// RunFinished stamps the completion time of a distribution run.
func (r *Recorder) RunFinished(t time.Time) {
	if r == nil {
		return
	}
	r.LastRunUnixTime.Set(float64(t.Unix()))
}
