package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"AaveRisk/internal/domain/models"
)

func TestCandleSinkRoutesByBackend(t *testing.T) {
	c := models.Candle{Address: "0xABC", ChainID: 1, Close: 1, Timestamp: time.Now()}

	store := &fakeStore{}
	m := newFakeMetrics()
	sink := NewCandleSink(nil, store, m, BackendClickHouse)
	if err := sink.Write(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.inserted) != 1 || store.inserted[0].Address != "0xabc" {
		t.Fatalf("expected normalized insert, got %+v", store.inserted)
	}
	if m.stored[BackendClickHouse] != 1 {
		t.Fatalf("expected stored metric")
	}

	pub := &fakePublisher{}
	sink = NewCandleSink(pub, store, m, BackendKafka)
	if err := sink.WriteBatch(context.Background(), []models.Candle{c, c}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 2 || len(store.inserted) != 1 {
		t.Fatalf("expected kafka routing, published=%d inserted=%d", len(pub.published), len(store.inserted))
	}
	sink.Close()
	if !pub.closed {
		t.Fatalf("expected publisher to be closed")
	}
}

func TestCandleSinkErrors(t *testing.T) {
	m := newFakeMetrics()
	sink := NewCandleSink(nil, &fakeStore{insertErr: errors.New("boom")}, m, BackendClickHouse)
	if err := sink.Write(context.Background(), models.Candle{Address: "0xabc", ChainID: 1}); err == nil {
		t.Fatalf("expected error")
	}
	if m.errors["candle_write"] != 1 {
		t.Fatalf("expected error metric")
	}

	sink = NewCandleSink(nil, nil, nil, "s3")
	if err := sink.Write(context.Background(), models.Candle{}); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	if err := sink.WriteBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch must be a no-op, got %v", err)
	}
}

func TestKafkaCandlesHandler(t *testing.T) {
	store := &fakeStore{}
	m := newFakeMetrics()
	h := NewKafkaCandlesHandler("aaverisk.candles", store, m)
	if h.Topic() != "aaverisk.candles" {
		t.Fatalf("unexpected topic %s", h.Topic())
	}

	msg := []byte(`{"address":"0xABC","chainId":137,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10,"timestamp":"2024-05-01T00:00:00Z"}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.inserted) != 1 || store.inserted[0].Address != "0xabc" || store.inserted[0].ChainID != 137 {
		t.Fatalf("unexpected insert %+v", store.inserted)
	}

	if err := h.Handle(context.Background(), []byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := h.Handle(context.Background(), []byte(`{"address":"0xabc"}`)); err == nil {
		t.Fatalf("expected validation error")
	}
	if m.errors["consumer_unmarshal"] != 1 || m.errors["consumer_invalid"] != 1 {
		t.Fatalf("unexpected error metrics %+v", m.errors)
	}
}
