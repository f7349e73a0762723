// Package metrics holds the prometheus collectors shared by the API, the
// worker, the indexer and the CLI.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arc_invoice"

type Metrics struct {
	ChainCalls      *prometheus.CounterVec
	ChainLatency    *prometheus.HistogramVec
	FundingSteps    *prometheus.CounterVec
	FundingOutcomes *prometheus.CounterVec
	Signatures      *prometheus.CounterVec
	Proofs          *prometheus.CounterVec
	Disputes        *prometheus.CounterVec
	Rulings         *prometheus.CounterVec
	Arbitration     *prometheus.CounterVec
	IndexedEscrows  prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	WSConnections   prometheus.Gauge
}

var (
	once     sync.Once
	registry *Metrics
)

// Get returns the lazily-initialised collectors, registered with the default registerer.
func Get() *Metrics {
	once.Do(func() {
		registry = &Metrics{
			ChainCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "chain",
				Name:      "calls_total",
				Help:      "Contract reads and writes segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			ChainLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "chain",
				Name:      "batch_duration_seconds",
				Help:      "Latency of batched JSON-RPC round trips.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind"}),
			FundingSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "funding",
				Name:      "steps_total",
				Help:      "Funding orchestrator step entries.",
			}, []string{"step"}),
			FundingOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "funding",
				Name:      "attempts_total",
				Help:      "Funding attempts by outcome.",
			}, []string{"outcome"}),
			Signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "terms",
				Name:      "signatures_total",
				Help:      "Payer signature submissions by result (recorded, duplicate, rejected).",
			}, []string{"result"}),
			Proofs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "terms",
				Name:      "proofs_total",
				Help:      "Deliverable proof submissions by result.",
			}, []string{"result"}),
			Disputes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispute",
				Name:      "opened_total",
				Help:      "Disputes opened by contract version.",
			}, []string{"version"}),
			Rulings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispute",
				Name:      "rulings_total",
				Help:      "Arbitration rulings applied.",
			}, []string{"ruling"}),
			Arbitration: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispute",
				Name:      "arbitration_requests_total",
				Help:      "Arbitration API requests by HTTP status class.",
			}, []string{"class"}),
			IndexedEscrows: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "indexer",
				Name:      "escrows_bound_total",
				Help:      "Escrow addresses bound to invoices from factory logs.",
			}),
			HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status class.",
			}, []string{"route", "class"}),
			WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ws",
				Name:      "connections",
				Help:      "Open websocket connections.",
			}),
		}
		prometheus.MustRegister(
			registry.ChainCalls,
			registry.ChainLatency,
			registry.FundingSteps,
			registry.FundingOutcomes,
			registry.Signatures,
			registry.Proofs,
			registry.Disputes,
			registry.Rulings,
			registry.Arbitration,
			registry.IndexedEscrows,
			registry.HTTPRequests,
			registry.WSConnections,
		)
	})
	return registry
}

// ObserveChainCall records one contract call.
func (m *Metrics) ObserveChainCall(method string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ChainCalls.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) ObserveBatch(kind string, started time.Time) {
	if m == nil {
		return
	}
	m.ChainLatency.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// StatusClass maps an HTTP status to "2xx", "4xx" and so on.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
