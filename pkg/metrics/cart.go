package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart mutation and remote sync telemetry.
type CartMetrics struct {
	ops          *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	syncFailures *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart mutations accepted by the manager.",
	}, []string{"op"})
	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of remote snapshot operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	syncFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_failures_total",
		Help: "Remote snapshot operations that failed.",
	}, []string{"op"})
	reg.MustRegister(ops, syncDuration, syncFailures)
	return &CartMetrics{
		ops:          ops,
		syncDuration: syncDuration,
		syncFailures: syncFailures,
	}
}

// IncOp increments the mutation counter for the named operation.
func (c *CartMetrics) IncOp(op string) {
	if c == nil || c.ops == nil {
		return
	}
	c.ops.WithLabelValues(normalizeLabel(op)).Inc()
}

// ObserveSync records the duration of a remote snapshot operation.
func (c *CartMetrics) ObserveSync(op string, duration time.Duration) {
	if c == nil || c.syncDuration == nil {
		return
	}
	c.syncDuration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncSyncFailure increments the failure counter for a remote operation.
func (c *CartMetrics) IncSyncFailure(op string) {
	if c == nil || c.syncFailures == nil {
		return
	}
	c.syncFailures.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
