package usecase

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"testing"

	"AaveRisk/pkg/queue"
)

type fakeProcessor struct {
	chains []string
	err    error
}

func (p *fakeProcessor) ProcessMarket(_ context.Context, chain string) (MarketReport, error) {
	p.chains = append(p.chains, chain)
	return MarketReport{Chain: chain, Stored: 1}, p.err
}

type fakeQueue struct {
	msgType string
	payload interface{}
	depth   queue.Depth
}

func (q *fakeQueue) Publish(_ context.Context, msgType string, payload interface{}) (string, error) {
	q.msgType, q.payload = msgType, payload
	return "msg-1", nil
}

func (q *fakeQueue) Depth(context.Context) (queue.Depth, error) { return q.depth, nil }

type publishOnly struct{}

func (publishOnly) Publish(context.Context, string, interface{}) (string, error) { return "", nil }

func TestRefreshMarketJobHandlesQueuePayloads(t *testing.T) {
	proc := &fakeProcessor{}
	job := NewRefreshMarketJob(proc, nil)
	if job.Type() != RefreshMarketType {
		t.Fatalf("unexpected type %s", job.Type())
	}

	if err := job.Handle(context.Background(), map[string]interface{}{"chain": "Polygon"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// payloads arrive as raw json from the redis queue
	if err := job.Handle(context.Background(), stdjson.RawMessage(`{"chain":"Base"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proc.chains) != 2 || proc.chains[0] != "Polygon" || proc.chains[1] != "Base" {
		t.Fatalf("unexpected chains %v", proc.chains)
	}

	if err := job.Handle(context.Background(), map[string]interface{}{}); err == nil {
		t.Fatalf("expected error for missing chain")
	}
	proc.err = errors.New("boom")
	if err := job.Handle(context.Background(), RefreshMarketPayload{Chain: "Polygon"}); err == nil {
		t.Fatalf("expected processor error to propagate for retry")
	}
}

func TestMarketRefresherEnqueues(t *testing.T) {
	q := &fakeQueue{depth: queue.Depth{Pending: 2}}
	r := NewMarketRefresher(q)
	id, err := r.Enqueue(context.Background(), "Arbitrum", "api")
	if err != nil || id != "msg-1" {
		t.Fatalf("unexpected enqueue result %q %v", id, err)
	}
	p, ok := q.payload.(RefreshMarketPayload)
	if q.msgType != RefreshMarketType || !ok || p.Chain != "Arbitrum" {
		t.Fatalf("unexpected message %s %+v", q.msgType, q.payload)
	}
	if d, err := r.Backlog(context.Background()); err != nil || d == nil || d.Pending != 2 {
		t.Fatalf("unexpected backlog %+v %v", d, err)
	}
	if d, _ := NewMarketRefresher(publishOnly{}).Backlog(context.Background()); d != nil {
		t.Fatalf("expected no backlog from a plain publisher")
	}
	if _, err := NewMarketRefresher(nil).Enqueue(context.Background(), "Arbitrum", ""); err == nil {
		t.Fatalf("expected error without queue")
	}
}
