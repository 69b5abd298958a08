package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exchangesTotal   *prometheus.CounterVec
	exchangeDuration prometheus.Histogram
	sweepRunsTotal   prometheus.Counter
	revocationsTotal *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// Metrics provides methods to record service metrics. Metrics are
// no-ops until Init has been called.
type Metrics struct{}

// New creates a Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// Init registers all Prometheus metrics. Called once at startup.
func Init() {
	metricsOnce.Do(func() {
		exchangesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbsts_exchanges_total",
				Help: "Total number of credential exchange calls",
			},
			[]string{"status"},
		)

		exchangeDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dbsts_exchange_duration_seconds",
				Help:    "Duration of credential exchange calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		)

		sweepRunsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dbsts_sweep_runs_total",
				Help: "Total number of expiry sweep runs",
			},
		)

		revocationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbsts_revocations_total",
				Help: "Total number of credential revocations attempted by the sweep",
			},
			[]string{"status"},
		)

		metricsRegistered = true
	})
}

// RecordExchange records one exchange call and its duration.
func (m *Metrics) RecordExchange(status string, duration time.Duration) {
	if !metricsRegistered {
		return
	}
	exchangesTotal.WithLabelValues(status).Inc()
	exchangeDuration.Observe(duration.Seconds())
}

// RecordSweepRun records one sweep run.
func (m *Metrics) RecordSweepRun() {
	if !metricsRegistered {
		return
	}
	sweepRunsTotal.Inc()
}

// RecordRevocation records one revocation attempt by status.
func (m *Metrics) RecordRevocation(status string) {
	if !metricsRegistered {
		return
	}
	revocationsTotal.WithLabelValues(status).Inc()
}
