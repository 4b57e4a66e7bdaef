// Package metrics provides Prometheus instrumentation for the request
// pipeline: request and tool-call counters, gate rejections, and remote
// query latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	ToolCallsTotal       *prometheus.CounterVec
	RateLimitRejections  prometheus.Counter
	ValidationRejections *prometheus.CounterVec
	QueryDuration        *prometheus.HistogramVec
	SchemaCacheHits      prometheus.Counter
	SchemaCacheMisses    prometheus.Counter
}

// New creates the pipeline metric set.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graphgate",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graphgate",
				Subsystem: "tools",
				Name:      "calls_total",
				Help:      "Tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		RateLimitRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "graphgate",
				Subsystem: "ratelimit",
				Name:      "rejections_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
		ValidationRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graphgate",
				Subsystem: "validation",
				Name:      "rejections_total",
				Help:      "Queries rejected by the validator, by tool",
			},
			[]string{"tool"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "graphgate",
				Subsystem: "graph",
				Name:      "query_duration_seconds",
				Help:      "Remote graph query latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		SchemaCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "graphgate",
				Subsystem: "schema",
				Name:      "cache_hits_total",
				Help:      "Schema descriptions served from the KV cache",
			},
		),
		SchemaCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "graphgate",
				Subsystem: "schema",
				Name:      "cache_misses_total",
				Help:      "Schema descriptions extracted from the remote database",
			},
		),
	}
}

// Register adds all collectors to the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.RequestsTotal,
		m.ToolCallsTotal,
		m.RateLimitRejections,
		m.ValidationRejections,
		m.QueryDuration,
		m.SchemaCacheHits,
		m.SchemaCacheMisses,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveQuery records one remote query execution.
func (m *Metrics) ObserveQuery(tool string, d time.Duration) {
	m.QueryDuration.WithLabelValues(tool).Observe(d.Seconds())
}
