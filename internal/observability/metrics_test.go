package observability

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountersAndLatency(t *testing.T) {
	m := NewMetrics(fmt.Sprintf("test_observability_%d", time.Now().UnixNano()))

	m.MessagesRelayed.WithLabelValues("ok").Inc()
	m.MessagesRelayed.WithLabelValues("ok").Inc()
	m.MemoryEvictions.Inc()
	m.ObserveBackendLatency(120 * time.Millisecond)

	if got := testutil.ToFloat64(m.MessagesRelayed.WithLabelValues("ok")); got != 2 {
		t.Fatalf("messages_relayed_total{ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.MemoryEvictions); got != 1 {
		t.Fatalf("memory_evictions_total = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.BackendLatency); got != 1 {
		t.Fatalf("backend latency series = %d, want 1", got)
	}
}
