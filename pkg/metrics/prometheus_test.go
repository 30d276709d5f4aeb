package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordCandleStored("clickhouse", 1)
	r.RecordCandleStored("clickhouse", 1)
	r.RecordIngestionRun("completed")
	r.RecordLastClose(137, "WMATIC", 0.51)

	if got := testutil.ToFloat64(r.candlesStored.WithLabelValues("clickhouse", "1")); got != 2 {
		t.Fatalf("expected 2 stored candles, got %v", got)
	}
	if got := testutil.ToFloat64(r.ingestionRuns.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed run, got %v", got)
	}
	if got := testutil.ToFloat64(r.lastClose.WithLabelValues("137", "WMATIC")); got != 0.51 {
		t.Fatalf("expected last close 0.51, got %v", got)
	}
}
