package repository

import (
	"context"
	"fmt"
	"strconv"

	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	pkgkafka "AaveRisk/pkg/kafka"
)

// KafkaCandlePublisher publishes normalized candles to a topic keyed by
// "<chainID>:<address>" so one series always lands on one partition.
type KafkaCandlePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.CandlePublisher = (*KafkaCandlePublisher)(nil)

func NewKafkaCandlePublisher(producer *pkgkafka.Producer, topic string) *KafkaCandlePublisher {
	return &KafkaCandlePublisher{producer: producer, topic: topic}
}

func (p *KafkaCandlePublisher) PublishCandle(ctx context.Context, c models.Candle) error {
	if p.producer == nil {
		return fmt.Errorf("publish candle: kafka producer not configured")
	}
	c = c.Normalize()
	return p.producer.Publish(ctx, p.topic, CandleKey(c), c)
}

// PublishCandles sends a batch in one write.
func (p *KafkaCandlePublisher) PublishCandles(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	if p.producer == nil {
		return fmt.Errorf("publish candles: kafka producer not configured")
	}
	msgs := make([]pkgkafka.Message, len(candles))
	for i, c := range candles {
		c = c.Normalize()
		msgs[i] = pkgkafka.Message{Key: CandleKey(c), Value: c}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaCandlePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// CandleKey is the partition key of a candle.
func CandleKey(c models.Candle) []byte {
	return []byte(strconv.FormatInt(c.ChainID, 10) + ":" + c.Address)
}
