package usecase

import (
	"context"
	"fmt"
	"time"

	"AaveRisk/internal/domain/models"
	drepo "AaveRisk/internal/domain/repository"
)

const (
	BackendClickHouse = "clickhouse"
	BackendKafka      = "kafka"
)

type batchPublisher interface {
	PublishCandles(ctx context.Context, candles []models.Candle) error
}

// CandleSink routes candles to the configured backend: straight into the
// series store, or onto the candle topic for the consumer to store.
type CandleSink struct {
	pub     drepo.CandlePublisher
	store   drepo.SeriesStore
	metrics drepo.Metrics
	backend string
}

func NewCandleSink(pub drepo.CandlePublisher, store drepo.SeriesStore, metrics drepo.Metrics, backend string) *CandleSink {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &CandleSink{pub: pub, store: store, metrics: metrics, backend: backend}
}

func (s *CandleSink) Backend() string { return s.backend }

// Write stores a single candle.
func (s *CandleSink) Write(ctx context.Context, c models.Candle) error {
	c = c.Normalize()
	start := time.Now()
	var err error

	switch s.backend {
	case BackendKafka:
		if s.pub == nil {
			err = fmt.Errorf("kafka backend without publisher")
			break
		}
		err = s.pub.PublishCandle(ctx, c)
	case BackendClickHouse:
		if s.store == nil {
			err = fmt.Errorf("clickhouse backend without store")
			break
		}
		err = s.store.InsertCandle(ctx, c)
	default:
		err = fmt.Errorf("unknown backend: %s", s.backend)
	}

	if err != nil {
		s.metrics.RecordError("candle_write")
		return fmt.Errorf("write candle: %w", err)
	}
	s.metrics.RecordCandleStored(s.backend, c.ChainID)
	s.metrics.RecordLatency("candle_write", time.Since(start).Seconds())
	return nil
}

// WriteBatch stores many candles with one round-trip where the backend allows it.
func (s *CandleSink) WriteBatch(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	norm := make([]models.Candle, len(candles))
	for i, c := range candles {
		norm[i] = c.Normalize()
	}
	start := time.Now()
	var err error

	switch s.backend {
	case BackendKafka:
		if s.pub == nil {
			err = fmt.Errorf("kafka backend without publisher")
			break
		}
		if bp, ok := s.pub.(batchPublisher); ok {
			err = bp.PublishCandles(ctx, norm)
			break
		}
		for _, c := range norm {
			if err = s.pub.PublishCandle(ctx, c); err != nil {
				break
			}
		}
	case BackendClickHouse:
		if s.store == nil {
			err = fmt.Errorf("clickhouse backend without store")
			break
		}
		err = s.store.InsertCandles(ctx, norm)
	default:
		err = fmt.Errorf("unknown backend: %s", s.backend)
	}

	if err != nil {
		s.metrics.RecordError("candle_write_batch")
		return fmt.Errorf("write candle batch: %w", err)
	}
	for _, c := range norm {
		s.metrics.RecordCandleStored(s.backend, c.ChainID)
	}
	s.metrics.RecordLatency("candle_write_batch", time.Since(start).Seconds())
	return nil
}

// Close releases the publisher.
func (s *CandleSink) Close() {
	if s.pub != nil {
		_ = s.pub.Close()
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordCandleStored(string, int64) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLastClose(int64, string, float64) {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordIngestionRun(string) {}
