package queue

import (
	"context"
	stdjson "encoding/json"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher enqueues typed messages and returns their id.
type Publisher interface {
	Publish(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// Inspector reports the backlog of a queue.
type Inspector interface {
	Depth(ctx context.Context) (Depth, error)
}

// Depth counts messages per state.
type Depth struct {
	Pending  int64 `json:"pending"`
	Retrying int64 `json:"retrying"`
	Dead     int64 `json:"dead"`
}

// Config tunes workers and retries.
type Config struct {
	Workers    int
	RetryLimit int
	// RetryDelay is the first backoff step. Each further attempt doubles it up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// PollInterval bounds each blocking pop and paces retry promotion.
	PollInterval time.Duration
	// DeadLetterMax caps the dead-letter list. Zero keeps everything.
	DeadLetterMax int64
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = 10 * c.RetryDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
}

// backoff returns the delay before the given attempt (1-based) is retried.
func (c Config) backoff(attempt int) time.Duration {
	d := c.RetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.MaxRetryDelay {
			return c.MaxRetryDelay
		}
	}
	return d
}

// Message is the stored envelope. Payload stays raw JSON until a job parses it.
type Message struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Payload    stdjson.RawMessage `json:"payload"`
	Attempts   int                `json:"attempts"`
	EnqueuedAt time.Time          `json:"enqueuedAt"`
	LastError  string             `json:"lastError,omitempty"`
}

func newMessage(id, msgType string, payload interface{}, now time.Time) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Message{ID: id, Type: msgType, Payload: raw, EnqueuedAt: now.UTC()}, nil
}

// ParsePayload decodes what a Job receives into T. Typed values pass through,
// so jobs can be driven directly in tests.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var raw []byte
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case stdjson.RawMessage:
		raw = p
	case []byte:
		raw = p
	case string:
		raw = []byte(p)
	case map[string]interface{}:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload map: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &out, nil
}
