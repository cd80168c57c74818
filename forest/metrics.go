package forest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds this DB's Prometheus instrumentation, modeled on
// pkg/api/metrics.go's Metrics: counters for operation outcomes,
// histograms for their latency, gauges for current forest shape.
type Metrics struct {
	batchTotal    *prometheus.CounterVec
	batchDuration prometheus.Histogram
	queryTotal    *prometheus.CounterVec
	queryDuration prometheus.Histogram
	mergeTotal    prometheus.Counter
	liveTrees     prometheus.Gauge
	liveItems     prometheus.Gauge
}

// newMetrics registers a DB's metrics against reg, falling back to a
// fresh private registry when reg is nil.
func newMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		batchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eyros_batch_total",
				Help: "Total number of batch operations.",
			},
			[]string{"status"},
		),
		batchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eyros_batch_duration_seconds",
				Help:    "Batch operation duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		queryTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eyros_query_total",
				Help: "Total number of queries started.",
			},
			[]string{"status"},
		),
		queryDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eyros_query_setup_duration_seconds",
				Help:    "Time to snapshot the forest and build a query stream.",
				Buckets: prometheus.DefBuckets,
			},
		),
		mergeTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "eyros_merge_total",
				Help: "Total number of merge cascades executed.",
			},
		),
		liveTrees: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "eyros_live_trees",
				Help: "Number of occupied forest slots.",
			},
		),
		liveItems: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "eyros_live_items",
				Help: "Total live item count across all trees.",
			},
		),
	}
}

func (m *Metrics) recordBatch(success bool, d time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.batchTotal.WithLabelValues(status).Inc()
	m.batchDuration.Observe(d.Seconds())
}

func (m *Metrics) recordQuery(success bool, d time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.queryTotal.WithLabelValues(status).Inc()
	m.queryDuration.Observe(d.Seconds())
}

func (m *Metrics) recordMerge() {
	m.mergeTotal.Inc()
}

func (m *Metrics) setShape(trees, items int) {
	m.liveTrees.Set(float64(trees))
	m.liveItems.Set(float64(items))
}
