package observability

import (
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rebaseMetricsOnce sync.Once
	rebaseRegistry    *RebaseMetrics
)

// RebaseMetrics tracks epoch scheduler activity. All methods are safe to call
// on a nil receiver so components can treat metrics as optional.
type RebaseMetrics struct {
	executions      *prometheus.CounterVec
	notReady        prometheus.Counter
	dispatchFailed  prometheus.Counter
	mintedTotal     prometheus.Counter
	aprGauge        prometheus.Gauge
	backingRatio    prometheus.Gauge
	executeDuration prometheus.Histogram
}

// Metrics returns the lazily-initialised rebase metrics registry, registering
// the collectors with the default prometheus registerer exactly once.
func Metrics() *RebaseMetrics {
	rebaseMetricsOnce.Do(func() {
		rebaseRegistry = &RebaseMetrics{
			executions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rezerve",
				Subsystem: "rebase",
				Name:      "executions_total",
				Help:      "Total executed epochs segmented by outcome.",
			}, []string{"outcome"}),
			notReady: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rezerve",
				Subsystem: "rebase",
				Name:      "not_ready_total",
				Help:      "Total executions rejected by the epoch readiness gate.",
			}),
			dispatchFailed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rezerve",
				Subsystem: "rebase",
				Name:      "dispatch_failures_total",
				Help:      "Total epoch executions aborted by a sink rejection.",
			}),
			mintedTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rezerve",
				Subsystem: "rebase",
				Name:      "minted_wei_total",
				Help:      "Cumulative minted amount across all epochs, in base units.",
			}),
			aprGauge: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rezerve",
				Subsystem: "rebase",
				Name:      "apr_basis_points",
				Help:      "APR applied by the most recent epoch, in basis points.",
			}),
			backingRatio: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rezerve",
				Subsystem: "rebase",
				Name:      "backing_ratio",
				Help:      "Backing ratio observed by the most recent epoch, scaled to 1.0 = 100%.",
			}),
			executeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "rezerve",
				Subsystem: "rebase",
				Name:      "execute_duration_seconds",
				Help:      "Latency distribution for epoch executions.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			rebaseRegistry.executions,
			rebaseRegistry.notReady,
			rebaseRegistry.dispatchFailed,
			rebaseRegistry.mintedTotal,
			rebaseRegistry.aprGauge,
			rebaseRegistry.backingRatio,
			rebaseRegistry.executeDuration,
		)
	})
	return rebaseRegistry
}

// RecordNotReady counts a readiness-gate rejection.
func (m *RebaseMetrics) RecordNotReady() {
	if m == nil {
		return
	}
	m.notReady.Inc()
}

// RecordDispatchFailure counts an aborted epoch dispatch.
func (m *RebaseMetrics) RecordDispatchFailure() {
	if m == nil {
		return
	}
	m.dispatchFailed.Inc()
}

// RecordExecution records the outcome of a completed epoch.
func (m *RebaseMetrics) RecordExecution(apr uint64, minted, ratio *big.Int, reserveGuard bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "minted"
	if reserveGuard {
		outcome = "reserve_guard"
	} else if minted == nil || minted.Sign() == 0 {
		outcome = "zero_mint"
	}
	m.executions.WithLabelValues(outcome).Inc()
	m.aprGauge.Set(float64(apr))
	if minted != nil {
		m.mintedTotal.Add(bigFloat(minted))
	}
	if ratio != nil {
		m.backingRatio.Set(bigFloat(ratio) / 1e18)
	}
	m.executeDuration.Observe(elapsed.Seconds())
}

func bigFloat(value *big.Int) float64 {
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
