package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tool map. It satisfies
// toolmap.Recorder so registries can report without depending on prometheus.
type Metrics struct {
	registry *prometheus.Registry

	// Execution metrics
	ToolExecutionsTotal      *prometheus.CounterVec
	ToolExecutionDuration    *prometheus.HistogramVec
	ToolExecutionErrorsTotal *prometheus.CounterVec

	// Lifecycle metrics
	ToolsActive          *prometheus.GaugeVec
	ToolsRegisteredTotal *prometheus.CounterVec
	ToolsRemovedTotal    *prometheus.CounterVec
	ToolInitErrorsTotal  *prometheus.CounterVec
}

// New creates and registers all metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool_id", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_id"},
		),
		ToolExecutionErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_execution_errors_total",
				Help: "Total number of failed tool executions",
			},
			[]string{"tool_id"},
		),
		ToolsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tools_active",
				Help: "Number of tools currently registered",
			},
			[]string{"session_id"},
		),
		ToolsRegisteredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tools_registered_total",
				Help: "Total number of tools registered",
			},
			[]string{"session_id"},
		),
		ToolsRemovedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tools_removed_total",
				Help: "Total number of tools removed",
			},
			[]string{"session_id"},
		),
		ToolInitErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_init_errors_total",
				Help: "Total number of failed tool initializations",
			},
			[]string{"tool_id"},
		),
	}

	registry.MustRegister(
		m.ToolsActive,
		m.ToolExecutionsTotal,
		m.ToolExecutionDuration,
		m.ToolExecutionErrorsTotal,
		m.ToolsRegisteredTotal,
		m.ToolsRemovedTotal,
		m.ToolInitErrorsTotal,
	)

	return m
}

// ToolExecuted records one execution outcome
func (m *Metrics) ToolExecuted(toolID string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		m.ToolExecutionErrorsTotal.WithLabelValues(toolID).Inc()
	}
	m.ToolExecutionsTotal.WithLabelValues(toolID, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolID).Observe(duration.Seconds())
}

// ToolRegistered records one tool registration
func (m *Metrics) ToolRegistered(sessionID string) {
	m.ToolsRegisteredTotal.WithLabelValues(sessionID).Inc()
	m.ToolsActive.WithLabelValues(sessionID).Inc()
}

// ToolRemoved records one tool removal
func (m *Metrics) ToolRemoved(sessionID string) {
	m.ToolsRemovedTotal.WithLabelValues(sessionID).Inc()
	m.ToolsActive.WithLabelValues(sessionID).Dec()
}

// ToolInitFailed records one failed background initialization
func (m *Metrics) ToolInitFailed(toolID string) {
	m.ToolInitErrorsTotal.WithLabelValues(toolID).Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
