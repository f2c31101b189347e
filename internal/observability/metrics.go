package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the orchestration pipeline.
type Metrics struct {
	// RequestCounter counts handled requests.
	// Labels: status (ok|rate_limited|model_error|error)
	RequestCounter *prometheus.CounterVec

	// ModelRunDuration measures model run latency in seconds.
	// Labels: provider, model
	ModelRunDuration *prometheus.HistogramVec

	// ToolInvocationCounter counts tool invocations reported by runs.
	// Labels: tool_name, status (success|error)
	ToolInvocationCounter *prometheus.CounterVec

	// ChunksDelivered counts outbound message chunks.
	ChunksDelivered prometheus.Counter
}

// NewMetrics creates and registers the pipeline metrics with the given
// registerer. Passing nil uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discordai_requests_total",
				Help: "Requests handled by the engine, by outcome.",
			},
			[]string{"status"},
		),
		ModelRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "discordai_model_run_duration_seconds",
				Help:    "Latency of bounded model/tool runs.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		ToolInvocationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discordai_tool_invocations_total",
				Help: "Tool invocations reported by model runs.",
			},
			[]string{"tool_name", "status"},
		),
		ChunksDelivered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "discordai_chunks_delivered_total",
				Help: "Outbound message chunks delivered to the platform.",
			},
		),
	}
}

// RecordRequest increments the request counter for the given outcome.
func (m *Metrics) RecordRequest(status string) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(status).Inc()
}

// RecordToolInvocation increments the tool counter for one invocation.
func (m *Metrics) RecordToolInvocation(toolName string, failed bool) {
	if m == nil {
		return
	}
	status := "success"
	if failed {
		status = "error"
	}
	m.ToolInvocationCounter.WithLabelValues(toolName, status).Inc()
}

// ObserveModelRun records the latency of one model run.
func (m *Metrics) ObserveModelRun(provider, model string, seconds float64) {
	if m == nil {
		return
	}
	m.ModelRunDuration.WithLabelValues(provider, model).Observe(seconds)
}

// RecordChunks adds delivered chunk count.
func (m *Metrics) RecordChunks(n int) {
	if m == nil {
		return
	}
	m.ChunksDelivered.Add(float64(n))
}
