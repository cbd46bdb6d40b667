// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the agentbridge server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// AgentBuckets defines histogram buckets suited for agent run latencies,
// ranging from 50ms to 120s.
var AgentBuckets = []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Stream outcomes used as the "outcome" label of StreamsTotal.
const (
	OutcomeDrained   = "drained"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentbridge_request_duration_seconds",
			Help:    "Request duration",
			Buckets: AgentBuckets,
		},
		[]string{"method", "route"},
	)

	// ActiveStreams tracks the number of bridged streams currently emitting lines.
	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentbridge_streams_active",
			Help: "Active bridged streams",
		},
	)

	// StreamsTotal counts finished streams by runtime and outcome.
	StreamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_streams_total",
			Help: "Finished streams",
		},
		[]string{"runtime", "outcome"},
	)

	// ChunksTotal counts chat.completion.chunk lines written to clients.
	ChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_chunks_total",
			Help: "Chunks emitted",
		},
		[]string{"runtime", "model"},
	)

	// PrimingFailuresTotal counts streams that failed before the first line.
	PrimingFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_priming_failures_total",
			Help: "Priming failures",
		},
		[]string{"runtime", "reason"},
	)

	// FirstSnapshotLatency records the time from run start to the first snapshot.
	FirstSnapshotLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentbridge_agent_first_snapshot_seconds",
			Help:    "Agent first snapshot latency",
			Buckets: AgentBuckets,
		},
		[]string{"runtime", "model"},
	)

	// RateLimitedTotal counts requests refused by admission control.
	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ActiveStreams,
		StreamsTotal,
		ChunksTotal,
		PrimingFailuresTotal,
		FirstSnapshotLatency,
		RateLimitedTotal,
	)
}
