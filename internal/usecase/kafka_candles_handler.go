package usecase

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	pkgkafka "AaveRisk/pkg/kafka"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// KafkaCandlesHandler consumes the candle topic and writes to the series store.
type KafkaCandlesHandler struct {
	topic   string
	store   domrepo.SeriesStore
	metrics domrepo.Metrics
}

func NewKafkaCandlesHandler(topic string, store domrepo.SeriesStore, metrics domrepo.Metrics) *KafkaCandlesHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &KafkaCandlesHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// Handle expects a JSON encoded models.Candle.
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	var c models.Candle
	if err := json.Unmarshal(b, &c); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode candle: %w", err)
	}
	if c.Address == "" || c.ChainID <= 0 || c.Timestamp.IsZero() {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("decode candle: missing address, chain id or timestamp")
	}
	c = c.Normalize()

	start := time.Now()
	err := h.store.InsertCandle(ctx, c)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return fmt.Errorf("store candle: %w", err)
	}
	h.metrics.RecordCandleStored(BackendClickHouse, c.ChainID)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
