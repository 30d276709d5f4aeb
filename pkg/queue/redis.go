package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"AaveRisk/pkg/logger"
)

var (
	ErrNotRunning     = errors.New("queue not running")
	ErrUnknownJobType = errors.New("no job registered for type")
)

// RedisQueue is a list-backed work queue. Pending messages live in a list,
// delayed retries in a sorted set scored by due time, exhausted ones in a
// dead-letter list.
type RedisQueue struct {
	client    *redis.Client
	cfg       Config
	keyPrefix string
	logger    *logger.Logger
	now       func() time.Time

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var (
	_ Publisher = (*RedisQueue)(nil)
	_ Inspector = (*RedisQueue)(nil)
)

// Option configures RedisQueue.
type Option func(*RedisQueue)

// WithKeyPrefix namespaces the queue keys.
func WithKeyPrefix(prefix string) Option {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(r *RedisQueue) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRedisQueue(client *redis.Client, cfg Config, opts ...Option) *RedisQueue {
	cfg.setDefaults()
	r := &RedisQueue{
		client:    client,
		cfg:       cfg,
		keyPrefix: "aaverisk:queue",
		logger:    logger.Nop(),
		now:       time.Now,
		jobs:      make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a job to its message type. Types are unique.
func (r *RedisQueue) Register(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		return fmt.Errorf("job type %s already registered", job.Type())
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
	return nil
}

// Start checks the connection and launches the workers and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	r.wg.Add(1)
	go r.promoter(ctx)

	r.logger.Info("redis queue started",
		logger.String("queue", r.keyPrefix),
		logger.Int("workers", r.cfg.Workers),
		logger.Int("jobs", len(r.jobs)),
	)
	return nil
}

// Stop cancels the workers and waits for in-flight jobs up to ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("stop queue: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped", logger.String("queue", r.keyPrefix))
		return nil
	}
}

// Publish enqueues payload for the job registered under msgType.
func (r *RedisQueue) Publish(ctx context.Context, msgType string, payload interface{}) (string, error) {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !running {
		return "", ErrNotRunning
	}
	if !known {
		return "", fmt.Errorf("%w: %s", ErrUnknownJobType, msgType)
	}

	msg, err := newMessage(uuid.NewString(), msgType, payload, r.now())
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.pendingKey(), data).Err(); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}
	r.logger.Debug("message enqueued", logger.String("id", msg.ID), logger.String("type", msgType))
	return msg.ID, nil
}

// Depth reports the pending, retrying and dead-lettered message counts.
func (r *RedisQueue) Depth(ctx context.Context) (Depth, error) {
	pipe := r.client.Pipeline()
	pending := pipe.LLen(ctx, r.pendingKey())
	retrying := pipe.ZCard(ctx, r.retryKey())
	dead := pipe.LLen(ctx, r.deadKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return Depth{}, fmt.Errorf("queue depth: %w", err)
	}
	return Depth{Pending: pending.Val(), Retrying: retrying.Val(), Dead: dead.Val()}, nil
}

func (r *RedisQueue) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	r.logger.Debug("queue worker started", logger.Int("worker_id", id))
	for ctx.Err() == nil {
		res, err := r.client.BRPop(ctx, r.cfg.PollInterval, r.pendingKey()).Result()
		switch {
		case err == nil:
		case errors.Is(err, redis.Nil), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			continue
		default:
			r.logger.Error("brpop error", logger.String("queue", r.keyPrefix), logger.Error(err))
			sleep(ctx, r.cfg.PollInterval)
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.logger.Error("drop undecodable message", logger.Error(err))
			continue
		}
		r.process(ctx, msg)
	}
	r.logger.Debug("queue worker stopped", logger.Int("worker_id", id))
}

func (r *RedisQueue) process(ctx context.Context, msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job for message", logger.String("id", msg.ID), logger.String("type", msg.Type))
		r.bury(msg)
		return
	}

	start := time.Now()
	err := job.Handle(ctx, msg.Payload)
	elapsed := time.Since(start)
	if err == nil {
		r.logger.Info("message processed",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Duration("duration_ms", elapsed),
		)
		return
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// shutting down; hand the message back untouched
		r.requeue(msg)
		return
	}

	msg.Attempts++
	msg.LastError = err.Error()
	if msg.Attempts > r.cfg.RetryLimit {
		r.logger.Error("message exhausted retries",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempts", msg.Attempts),
			logger.Error(err),
		)
		r.bury(msg)
		return
	}
	due := r.now().Add(r.cfg.backoff(msg.Attempts))
	r.logger.Warn("message failed, retry scheduled",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.Time("retry_at", due),
		logger.Error(err),
	)
	r.schedule(msg, due)
}

func (r *RedisQueue) schedule(msg Message, due time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	if err := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{Score: float64(due.Unix()), Member: data}).Err(); err != nil {
		r.logger.Error("zadd retry", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) requeue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := r.client.RPush(context.Background(), r.pendingKey(), data).Err(); err != nil {
		r.logger.Error("requeue message", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) bury(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal dead letter", logger.Error(err))
		return
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(context.Background(), r.deadKey(), data)
	if r.cfg.DeadLetterMax > 0 {
		pipe.LTrim(context.Background(), r.deadKey(), 0, r.cfg.DeadLetterMax-1)
	}
	if _, err := pipe.Exec(context.Background()); err != nil {
		r.logger.Error("push dead letter", logger.String("id", msg.ID), logger.Error(err))
	}
}

// promoter moves due retries back onto the pending list. Only the instance
// whose ZREM succeeds pushes the message, so several replicas may run it.
func (r *RedisQueue) promoter(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.promoteDue(ctx)
		}
	}
}

func (r *RedisQueue) promoteDue(ctx context.Context) {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Error("fetch due retries", logger.Error(err))
		}
		return
	}
	for _, member := range due {
		removed, err := r.client.ZRem(ctx, r.retryKey(), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.pendingKey(), member).Err(); err != nil {
			r.logger.Error("promote retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) pendingKey() string { return r.keyPrefix + ":pending" }
func (r *RedisQueue) retryKey() string   { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadKey() string    { return r.keyPrefix + ":dead" }

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
