// Package metrics exposes Prometheus instrumentation for runs, tools and
// model calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on one registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Runs         *prometheus.CounterVec
	Hops         *prometheus.HistogramVec
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
	ModelLatency *prometheus.HistogramVec
	ActiveRuns   prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logpilot_runs_total",
				Help: "Total number of orchestrator runs",
			},
			[]string{"track", "outcome"},
		),
		Hops: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logpilot_run_hops",
				Help:    "Conversational steps taken per run",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 25},
			},
			[]string{"track"},
		),
		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logpilot_tool_calls_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool", "owner", "outcome"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "logpilot_tool_duration_seconds",
				Help: "Tool execution duration in seconds",
			},
			[]string{"tool"},
		),
		ModelLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "logpilot_model_latency_seconds",
				Help: "Model completion latency in seconds",
			},
			[]string{"provider"},
		),
		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "logpilot_active_runs",
				Help: "Number of runs in progress",
			},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunStarted increments the active run gauge.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.ActiveRuns.Inc()
}

// RunFinished records the outcome of a run.
func (m *Metrics) RunFinished(track, outcome string, hops int) {
	if m == nil {
		return
	}
	m.ActiveRuns.Dec()
	m.Runs.WithLabelValues(track, outcome).Inc()
	m.Hops.WithLabelValues(track).Observe(float64(hops))
}

// ObserveTool records one tool invocation.
func (m *Metrics) ObserveTool(tool, owner, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, owner, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveModel records the latency of one model completion.
func (m *Metrics) ObserveModel(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.ModelLatency.WithLabelValues(provider).Observe(d.Seconds())
}
