package queue

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"testing"
	"time"
)

type refreshPayload struct {
	Chain string `json:"chain"`
}

type noopJob struct{ typ string }

func (j noopJob) Name() string                              { return "noop" }
func (j noopJob) Type() string                              { return j.typ }
func (j noopJob) Handle(context.Context, interface{}) error { return nil }

func TestBackoffDoublesUpToCap(t *testing.T) {
	cfg := Config{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second}
	cfg.setDefaults()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := cfg.backoff(i + 1); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.setDefaults()
	if cfg.Workers != 1 || cfg.RetryDelay != 10*time.Second || cfg.MaxRetryDelay != 100*time.Second || cfg.PollInterval != time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestParsePayload(t *testing.T) {
	cases := []struct {
		name    string
		payload interface{}
	}{
		{"raw", stdjson.RawMessage(`{"chain":"Polygon"}`)},
		{"bytes", []byte(`{"chain":"Polygon"}`)},
		{"string", `{"chain":"Polygon"}`},
		{"map", map[string]interface{}{"chain": "Polygon"}},
		{"value", refreshPayload{Chain: "Polygon"}},
		{"pointer", &refreshPayload{Chain: "Polygon"}},
	}
	for _, tc := range cases {
		p, err := ParsePayload[refreshPayload](tc.payload)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if p.Chain != "Polygon" {
			t.Fatalf("%s: got %+v", tc.name, p)
		}
	}
	if _, err := ParsePayload[refreshPayload](42); err == nil {
		t.Fatalf("expected error for unsupported payload")
	}
	if _, err := ParsePayload[refreshPayload]([]byte(`{`)); err == nil {
		t.Fatalf("expected error for broken json")
	}
}

func TestNewMessageKeepsPayloadRaw(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	msg, err := newMessage("id-1", "ohlc.refresh_market", refreshPayload{Chain: "Base"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg.Payload) != `{"chain":"Base"}` || msg.EnqueuedAt.Location() != time.UTC {
		t.Fatalf("unexpected message %+v", msg)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p, err := ParsePayload[refreshPayload](back.Payload)
	if err != nil || p.Chain != "Base" {
		t.Fatalf("payload did not survive the envelope: %v %+v", err, p)
	}
}

func TestRegisterAndPublishGuards(t *testing.T) {
	q := NewRedisQueue(nil, Config{}, WithKeyPrefix("test:queue"))
	if err := q.Register(noopJob{typ: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Register(noopJob{typ: "a"}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if _, err := q.Publish(context.Background(), "a", nil); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if q.pendingKey() != "test:queue:pending" || q.retryKey() != "test:queue:retry" || q.deadKey() != "test:queue:dead" {
		t.Fatalf("unexpected keys")
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("stop on idle queue: %v", err)
	}
}
