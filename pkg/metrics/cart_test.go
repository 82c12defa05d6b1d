package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCartMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartMetrics(reg)

	m.IncOp("add_to_cart")
	m.IncOp("add_to_cart")
	m.IncSyncFailure("upsert")
	m.ObserveSync("upsert", 25*time.Millisecond)

	if got := testutil.ToFloat64(m.ops.WithLabelValues("add_to_cart")); got != 2 {
		t.Fatalf("expected 2 add_to_cart ops, got %v", got)
	}
	if got := testutil.ToFloat64(m.syncFailures.WithLabelValues("upsert")); got != 1 {
		t.Fatalf("expected 1 upsert failure, got %v", got)
	}
}

func TestCartMetricsNilSafe(t *testing.T) {
	var m *CartMetrics
	m.IncOp("noop")
	m.IncSyncFailure("noop")
	m.ObserveSync("noop", time.Second)

	empty := NewCartMetrics(nil)
	empty.IncOp("noop")
}
