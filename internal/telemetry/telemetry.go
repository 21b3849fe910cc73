// Package telemetry holds the prometheus collectors shared by the HTTP
// surface and the fan-out coordinator.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service's prometheus collectors. A nil *Metrics is a
// valid no-op receiver so tests can run without a registry.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ToolCallsTotal  *prometheus.CounterVec
	ToolLatency     *prometheus.HistogramVec
}

// NewMetrics builds and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kf_requests_total",
			Help: "Total API requests",
		}, []string{"endpoint", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "kf_request_duration_seconds",
			Help: "Request duration",
		}, []string{"endpoint"}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kf_tool_calls_total",
			Help: "Total tool calls",
		}, []string{"tool"}),
		ToolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "kf_tool_latency_seconds",
			Help: "Tool call latency",
		}, []string{"tool"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.ToolCallsTotal, m.ToolLatency)
	return m
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(endpoint, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

// ObserveToolCall records one terminal tool call.
func (m *Metrics) ObserveToolCall(tool string, latency time.Duration) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool).Inc()
	m.ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}
