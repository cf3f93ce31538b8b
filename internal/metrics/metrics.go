package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "unraid_mcp"

// Outcome labels a tool call or upstream request.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Metrics manages Prometheus instrumentation for the MCP server.
type Metrics struct {
	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram
	healthStatus     prometheus.Gauge
	arrayHealth      prometheus.Gauge
	healthIssues     prometheus.Gauge
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton metrics instance, registering it with the
// default registerer on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total MCP tool calls by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "MCP tool call duration.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool"},
		),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total Unraid API requests by outcome.",
			},
			[]string{"outcome"},
		),
		upstreamLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_latency_seconds",
				Help:      "Unraid API round-trip latency.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		healthStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_status",
				Help:      "Last health check status (0=healthy, 1=warning, 2=degraded, 3=unhealthy).",
			},
		),
		arrayHealth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "array_health",
				Help:      "Last array health verdict (0=HEALTHY, 1=WARNING, 2=DEGRADED, 3=CRITICAL).",
			},
		),
		healthIssues: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_issues",
				Help:      "Number of issues reported by the last health check.",
			},
		),
	}

	prometheus.MustRegister(
		m.toolCalls,
		m.toolDuration,
		m.upstreamRequests,
		m.upstreamLatency,
		m.healthStatus,
		m.arrayHealth,
		m.healthIssues,
	)

	return m
}

// RecordToolCall counts one tool call and observes its duration.
func (m *Metrics) RecordToolCall(tool string, outcome Outcome, duration time.Duration) {
	tool = normalizeTool(tool)
	m.toolCalls.WithLabelValues(tool, string(normalizeOutcome(outcome))).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordUpstream counts one Unraid API request and observes its latency.
func (m *Metrics) RecordUpstream(outcome Outcome, latency time.Duration) {
	m.upstreamRequests.WithLabelValues(string(normalizeOutcome(outcome))).Inc()
	m.upstreamLatency.Observe(latency.Seconds())
}

// SetHealth publishes the rank and issue count of the last health report.
func (m *Metrics) SetHealth(status int, issues int) {
	m.healthStatus.Set(float64(status))
	m.healthIssues.Set(float64(issues))
}

// SetArrayHealth publishes the rank of the last array verdict.
func (m *Metrics) SetArrayHealth(rank int) {
	m.arrayHealth.Set(float64(rank))
}

// OutcomeFor maps an error to an outcome label.
func OutcomeFor(err error) Outcome {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

func normalizeOutcome(outcome Outcome) Outcome {
	switch Outcome(strings.ToLower(strings.TrimSpace(string(outcome)))) {
	case OutcomeSuccess:
		return OutcomeSuccess
	default:
		return OutcomeError
	}
}

func normalizeTool(tool string) string {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return "unknown"
	}
	return tool
}
