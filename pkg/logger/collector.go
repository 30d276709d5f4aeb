package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher ships a batch of aggregated entries to a topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	Service        string
	Environment    string
	TimeInterval   time.Duration // flush at least this often
	CountThreshold int           // flush once this many distinct entries are held
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry counts identical log lines between two flushes.
type AggregatedLogEntry struct {
	Service     string                 `json:"service"`
	Environment string                 `json:"environment,omitempty"`
	Level       string                 `json:"level"`
	Message     string                 `json:"message"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
	Caller      string                 `json:"caller"`
	Count       int                    `json:"count"`
	FirstSeen   time.Time              `json:"first_seen"`
	LastSeen    time.Time              `json:"last_seen"`
}

// LogCollector folds repeated log lines into counted entries and publishes
// them in batches from a single goroutine. Batches that cannot be queued
// while the publisher is slow are dropped.
type LogCollector struct {
	cfg CollectionConfig

	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry
	closed  bool

	batches chan []AggregatedLogEntry
	stop    chan struct{}
	done    sync.WaitGroup
	once    sync.Once
}

func NewLogCollector(cfg *CollectionConfig) *LogCollector {
	c := &LogCollector{
		cfg:     *cfg,
		entries: make(map[uint64]*AggregatedLogEntry),
		batches: make(chan []AggregatedLogEntry, 4),
		stop:    make(chan struct{}),
	}
	if c.cfg.TimeInterval <= 0 {
		c.cfg.TimeInterval = time.Minute
	}
	if c.cfg.CountThreshold <= 0 {
		c.cfg.CountThreshold = 100
	}
	c.done.Add(2)
	go c.tick()
	go c.publish()
	return c
}

// AddLog records one occurrence.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now().UTC()
	fp := fingerprint(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if e, ok := c.entries[fp]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	c.entries[fp] = &AggregatedLogEntry{
		Service:     c.cfg.Service,
		Environment: c.cfg.Environment,
		Level:       level,
		Message:     message,
		Fields:      fields,
		Caller:      caller,
		Count:       1,
		FirstSeen:   now,
		LastSeen:    now,
	}
	if len(c.entries) >= c.cfg.CountThreshold {
		c.enqueue(c.drainLocked())
	}
}

// Pending is the number of distinct entries not yet handed to the publisher.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close hands over what is pending and waits until every queued batch is published.
func (c *LogCollector) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.done.Wait()
	})
}

func (c *LogCollector) tick() {
	defer c.done.Done()
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.flush()
		case <-c.stop:
			c.mu.Lock()
			c.closed = true
			batch := c.drainLocked()
			c.mu.Unlock()
			c.enqueue(batch)
			close(c.batches)
			return
		}
	}
}

func (c *LogCollector) flush() {
	c.mu.Lock()
	batch := c.drainLocked()
	c.mu.Unlock()
	c.enqueue(batch)
}

func (c *LogCollector) drainLocked() []AggregatedLogEntry {
	if len(c.entries) == 0 {
		return nil
	}
	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, *e)
	}
	c.entries = make(map[uint64]*AggregatedLogEntry)
	sort.Slice(batch, func(i, j int) bool { return batch[i].FirstSeen.Before(batch[j].FirstSeen) })
	return batch
}

// enqueue never blocks. Callers hold mu or run on the tick goroutine, which
// closes batches only after marking the collector closed.
func (c *LogCollector) enqueue(batch []AggregatedLogEntry) {
	if len(batch) == 0 || c.cfg.Publisher == nil {
		return
	}
	select {
	case c.batches <- batch:
	default:
		fmt.Fprintf(os.Stderr, "log collector: dropped %d aggregated entries\n", len(batch))
	}
}

func (c *LogCollector) publish() {
	defer c.done.Done()
	for batch := range c.batches {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			// the logger cannot log its own shipping failures
			fmt.Fprintf(os.Stderr, "log collector: publish to %s: %v\n", c.cfg.Topic, err)
		}
		cancel()
	}
}

// fingerprint identifies a log line. Field maps are encoded with sorted keys.
func fingerprint(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	for _, part := range [...]string{level, caller, message} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	if len(fields) > 0 {
		b, _ := json.Marshal(fields)
		h.Write(b)
	}
	return h.Sum64()
}
