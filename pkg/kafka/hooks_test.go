package kafka

import (
	"context"
	"errors"
	"testing"
	
	"github.com/segmentio/kafka-go"
)

func TestHookChainThreadsPayload(t *testing.T) {
	var order []string
	upper := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			order = append(order, "before-1")
			return ctx, km, append(data, '!'), nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "after-1") },
	}
	second := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			order = append(order, "before-2")
			if string(data) != "x!" {
				t.Fatalf("expected payload from first hook, got %q", data)
			}
			return ctx, km, data, nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "after-2") },
	}

	chain := NewHookChain(upper, nil, second)
	ctx, km, data, err := chain.BeforeHandle(context.Background(), "candles", kafka.Message{}, []byte("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chain.AfterHandle(ctx, "candles", km, data, nil)

	want := []string{"before-1", "before-2", "after-2", "after-1"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestHookChainRecoversPanic(t *testing.T) {
	var seen error
	chain := NewHookChain(
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		}},
		HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { seen = err }},
	)
	_, _, _, err := chain.BeforeHandle(context.Background(), "candles", kafka.Message{}, nil)
	var herr *HookError
	if !errors.As(err, &herr) || herr.Code != "ERR_PANIC" {
		t.Fatalf("expected ERR_PANIC hook error, got %v", err)
	}
	if seen == nil {
		t.Fatalf("expected OnError to be notified")
	}
}

func TestLoggingHookStampsContext(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, _, err := LoggingHook{}.BeforeHandle(context.Background(), "candles", km, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := TraceID(ctx); got != "abc" {
		t.Fatalf("expected trace id abc, got %q", got)
	}
	if _, ok := StartedAt(ctx); !ok {
		t.Fatalf("expected start time in context")
	}
}
