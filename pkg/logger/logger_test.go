package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLoggerWritesTypedFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Config{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info("candle stored",
		String("chain", "Polygon"),
		Int64("chain_id", 137),
		Float64("close", 2000.5),
		Duration("duration_ms", 1500*time.Millisecond),
	)
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["message"] != "candle stored" || entry["chain"] != "Polygon" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["close"].(float64) != 2000.5 || entry["duration_ms"].(float64) != 1500 {
		t.Fatalf("unexpected numeric fields %v", entry)
	}
}

func TestLoggerRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(&Config{Level: "info", Writer: &buf})
	l.With(String("component", "ingestion")).Warn("skip asset")
	if !strings.Contains(buf.String(), `"component":"ingestion"`) {
		t.Fatalf("missing field in %q", buf.String())
	}
}

type fakePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *fakePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &fakePublisher{}
	c := NewLogCollector(&CollectionConfig{
		Service:        "aaverisk",
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "aaverisk.logs",
		Publisher:      pub,
	})
	fields := map[string]interface{}{"chain": "Base"}
	for i := 0; i < 3; i++ {
		c.AddLog("error", "fetch failed", fields, "usecase/ohlc_ingestion.go:10")
	}
	c.AddLog("error", "other failure", nil, "x.go:1")
	if c.Pending() != 2 {
		t.Fatalf("pending=%d", c.Pending())
	}
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || pub.topic != "aaverisk.logs" {
		t.Fatalf("expected one batch on topic, got %d on %q", len(pub.batches), pub.topic)
	}
	var counted bool
	for _, e := range pub.batches[0] {
		if e.Message == "fetch failed" && e.Count == 3 && e.Service == "aaverisk" {
			counted = true
		}
	}
	if !counted {
		t.Fatalf("duplicate count not aggregated: %+v", pub.batches[0])
	}
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &fakePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	c.AddLog("error", "a", nil, "")
	c.AddLog("error", "b", nil, "")
	if c.Pending() != 0 {
		t.Fatalf("expected flush at threshold, pending=%d", c.Pending())
	}
	c.Close()
}

func TestErrorFieldNil(t *testing.T) {
	f := Error(nil)
	if f.Key != "error" || f.Value != nil {
		t.Fatalf("unexpected %s=%v", f.Key, f.Value)
	}
	if f = Error(errors.New("boom")); f.Value != "boom" {
		t.Fatalf("unexpected %v", f.Value)
	}
}

func TestLevelFiltersPerLogger(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(&Config{Level: "warn", Writer: &buf})
	l.Info("hidden")
	l.Warn("shown", Time("at", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestCallerOfIsShort(t *testing.T) {
	got := callerOf(0)
	if !strings.HasPrefix(got, "logger/logger_test.go:") {
		t.Fatalf("caller %q", got)
	}
}
