package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus counters and histograms for graph execution,
// grounded on the teacher's PrometheusMetrics (graph/metrics.go) but
// rescoped to this runner's fixed node-kind model: node latency by kind
// and status, in-flight node gauges, and run outcomes.
type Metrics struct {
	nodeLatency   *prometheus.HistogramVec
	inflightNodes prometheus.Gauge
	runsTotal     *prometheus.CounterVec
	nodeErrors    *prometheus.CounterVec
}

// NewMetrics registers the graphrunner_* metric family with registry. A nil
// registry uses prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "graphrunner",
			Name:      "node_latency_ms",
			Help:      "Node executor duration in milliseconds, by kind and outcome.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000, 120000},
		}, []string{"kind", "status"}),
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "graphrunner",
			Name:      "inflight_nodes",
			Help:      "Number of node executors currently running across all runs.",
		}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphrunner",
			Name:      "runs_total",
			Help:      "Completed runs by terminal outcome.",
		}, []string{"outcome"}), // completed, error, cancelled
		nodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphrunner",
			Name:      "node_errors_total",
			Help:      "Node executor failures by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) recordNode(kind Kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeLatency.WithLabelValues(string(kind), status).Observe(float64(d.Milliseconds()))
	if status == "error" {
		m.nodeErrors.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) nodeStarted() {
	if m == nil {
		return
	}
	m.inflightNodes.Inc()
}

func (m *Metrics) nodeFinished() {
	if m == nil {
		return
	}
	m.inflightNodes.Dec()
}

func (m *Metrics) recordRun(outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
}
