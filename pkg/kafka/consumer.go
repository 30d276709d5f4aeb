package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	applogger "AaveRisk/pkg/logger"
)

// MessageHandler handles the records of one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type delivery struct {
	topic  string
	reader *kafka.Reader
	km     kafka.Message
}

// Consumer reads registered topics within one group and hands records to a
// fixed pool of workers. A partition is always served by the same worker, so
// records of one series are stored in order.
type Consumer struct {
	cfg      *ConsumerConfig
	handlers map[string]MessageHandler
	readers  []*kafka.Reader
	lanes    []chan delivery
	dlq      *kafka.Writer
	hook     ConsumerHook
	logger   *applogger.Logger
	metrics  *clientMetrics

	ctx      context.Context
	cancel   context.CancelFunc
	readWG   sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: brokers are required")
	}
	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		hook:     NoopHook{},
		logger:   applogger.Nop(),
		metrics:  kafkaMetrics(),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	return c, nil
}

func (c *Consumer) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetHook installs lifecycle hooks. Use NewHookChain to combine several.
func (c *Consumer) SetHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler binds a handler to its topic. It must be called before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.logger.Warn("kafka consumer: handler already registered", applogger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// Start opens a reader per registered topic and launches the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.lanes = make([]chan delivery, c.cfg.Workers)
	for i := range c.lanes {
		c.lanes[i] = make(chan delivery, c.cfg.BufferSize)
		c.workWG.Add(1)
		go c.work(i, c.lanes[i])
	}
	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers = append(c.readers, r)
		c.readWG.Add(1)
		go c.read(topic, r)
	}
	c.logger.Info("kafka consumer: started",
		applogger.String("group_id", c.cfg.GroupID),
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.Workers),
	)
	return nil
}

// Stop halts the readers, drains what the workers already hold and closes
// the connections. Undelivered records are re-read after a restart.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()
		c.readWG.Wait()
		for _, lane := range c.lanes {
			close(lane)
		}

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer: stop: %w", ctx.Err())
		}

		for _, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.logger.Warn("kafka consumer: close reader", applogger.String("topic", r.Config().Topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.logger.Warn("kafka consumer: close dlq writer", applogger.Error(cerr))
			}
		}
		c.logger.Info("kafka consumer: stopped")
	})
	return err
}

func (c *Consumer) read(topic string, r *kafka.Reader) {
	defer c.readWG.Done()
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka consumer: fetch failed", applogger.String("topic", topic), applogger.Error(err))
			if !sleepCtx(c.ctx, c.cfg.BackoffMax) {
				return
			}
			continue
		}
		lane := laneFor(km.Partition, len(c.lanes))
		select {
		case c.lanes[lane] <- delivery{topic: topic, reader: r, km: km}:
			c.metrics.backlog.WithLabelValues(strconv.Itoa(lane)).Set(float64(len(c.lanes[lane])))
		case <-c.ctx.Done():
			return
		}
	}
}

func laneFor(partition, lanes int) int {
	if lanes <= 1 || partition < 0 {
		return 0
	}
	return partition % lanes
}

func (c *Consumer) work(id int, in <-chan delivery) {
	defer c.workWG.Done()
	for d := range in {
		c.deliver(d)
		c.metrics.backlog.WithLabelValues(strconv.Itoa(id)).Set(float64(len(in)))
	}
}

func (c *Consumer) deliver(d delivery) {
	start := time.Now()
	attempts, err := c.handleWithRetry(d)
	c.metrics.handleTime.WithLabelValues(d.topic).Observe(time.Since(start).Seconds())

	switch {
	case err != nil && c.ctx.Err() != nil:
		// stopping: the uncommitted record is redelivered on the next start
		c.metrics.handled.WithLabelValues(d.topic, "failed").Inc()
		return
	case err == nil && attempts == 1:
		c.metrics.handled.WithLabelValues(d.topic, "ok").Inc()
	case err == nil:
		c.metrics.handled.WithLabelValues(d.topic, "retried_ok").Inc()
	case c.dlq != nil && c.deadLetter(d, attempts, err) == nil:
		c.metrics.handled.WithLabelValues(d.topic, "dead_lettered").Inc()
	default:
		// leave the offset so the record is redelivered after a rebalance or restart
		c.metrics.handled.WithLabelValues(d.topic, "failed").Inc()
		c.logger.Error("kafka consumer: record not handled",
			applogger.String("topic", d.topic),
			applogger.Int("partition", d.km.Partition),
			applogger.Int64("offset", d.km.Offset),
			applogger.Int("attempts", attempts),
			applogger.Error(err),
		)
		return
	}
	c.commit(d)
}

func (c *Consumer) handleWithRetry(d delivery) (attempts int, err error) {
	h := c.handlers[d.topic]
	for {
		attempts++
		err = c.handleOnce(h, d)
		if err == nil || attempts > c.cfg.RetryMax {
			return attempts, err
		}
		if !sleepCtx(c.ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)) {
			return attempts, err
		}
	}
}

func (c *Consumer) handleOnce(h MessageHandler, d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("handler panic: %v", r)}
		}
	}()
	ctx, km, data, err := c.hook.BeforeHandle(context.Background(), d.topic, d.km, d.km.Value)
	if err != nil {
		return err
	}
	err = h.Handle(ctx, data)
	c.hook.AfterHandle(ctx, d.topic, km, data, err)
	if err != nil {
		c.hook.OnError(ctx, d.topic, km, data, err)
	}
	return err
}

func (c *Consumer) deadLetter(d delivery, attempts int, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	headers := make([]kafka.Header, 0, len(d.km.Headers)+5)
	headers = append(headers, d.km.Headers...)
	headers = append(headers,
		kafka.Header{Key: "source_topic", Value: []byte(d.topic)},
		kafka.Header{Key: "source_partition", Value: []byte(strconv.Itoa(d.km.Partition))},
		kafka.Header{Key: "source_offset", Value: []byte(strconv.FormatInt(d.km.Offset, 10))},
		kafka.Header{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	err := c.dlq.WriteMessages(ctx, kafka.Message{Key: d.km.Key, Value: d.km.Value, Headers: headers})
	if err != nil {
		c.logger.Error("kafka consumer: dlq write failed", applogger.String("dlq_topic", c.cfg.DLQTopic), applogger.Error(err))
		return err
	}
	c.logger.Warn("kafka consumer: record dead-lettered",
		applogger.String("topic", d.topic),
		applogger.Int64("offset", d.km.Offset),
		applogger.Error(cause),
	)
	return nil
}

func (c *Consumer) commit(d delivery) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = d.reader.CommitMessages(ctx, d.km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.logger.Error("kafka consumer: commit failed",
		applogger.String("topic", d.topic),
		applogger.Int64("offset", d.km.Offset),
		applogger.Error(err),
	)
}

// backoffWithJitter doubles min per attempt up to max and removes up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
