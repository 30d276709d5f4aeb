package usecase

import (
	"context"
	"fmt"

	"AaveRisk/internal/domain"
	applogger "AaveRisk/pkg/logger"
	"AaveRisk/pkg/queue"
)

// RefreshMarketType is the queue message type of a single market refresh.
const RefreshMarketType = "ohlc.refresh_market"

// RefreshMarketPayload is the queue payload of RefreshMarketType.
type RefreshMarketPayload struct {
	Chain       string `json:"chain"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

type marketProcessor interface {
	ProcessMarket(ctx context.Context, chain string) (MarketReport, error)
}

// RefreshMarketJob runs ProcessMarket for one chain off the Redis queue.
type RefreshMarketJob struct {
	ingestion marketProcessor
	l         *applogger.Logger
}

var _ queue.Job = (*RefreshMarketJob)(nil)

func NewRefreshMarketJob(ingestion marketProcessor, l *applogger.Logger) *RefreshMarketJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &RefreshMarketJob{ingestion: ingestion, l: l}
}

func (j *RefreshMarketJob) Name() string { return "refresh-market" }
func (j *RefreshMarketJob) Type() string { return RefreshMarketType }

func (j *RefreshMarketJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RefreshMarketPayload](payload)
	if err != nil {
		return fmt.Errorf("refresh market payload: %w", err)
	}
	if p.Chain == "" {
		return fmt.Errorf("refresh market payload: chain required")
	}
	report, err := j.ingestion.ProcessMarket(ctx, p.Chain)
	if err != nil {
		return fmt.Errorf("refresh market %s: %w", p.Chain, err)
	}
	j.l.Info("market refreshed",
		applogger.String("chain", p.Chain),
		applogger.Int("stored", report.Stored),
		applogger.Int("skipped", report.Skipped),
		applogger.Int("failed", report.Failed),
	)
	return nil
}

// MarketRefresher enqueues single market refreshes.
type MarketRefresher struct {
	q queue.Publisher
}

func NewMarketRefresher(q queue.Publisher) *MarketRefresher {
	return &MarketRefresher{q: q}
}

// Enqueue returns the queued message id.
func (r *MarketRefresher) Enqueue(ctx context.Context, chain, requestedBy string) (string, error) {
	if r.q == nil {
		return "", fmt.Errorf("enqueue refresh %s: %w", chain, domain.ErrQueueUnavailable)
	}
	id, err := r.q.Publish(ctx, RefreshMarketType, RefreshMarketPayload{Chain: chain, RequestedBy: requestedBy})
	if err != nil {
		return "", fmt.Errorf("enqueue refresh %s: %w", chain, err)
	}
	return id, nil
}

// Backlog reports the queue depth, or nil when the queue cannot report it.
func (r *MarketRefresher) Backlog(ctx context.Context) (*queue.Depth, error) {
	if r.q == nil {
		return nil, nil
	}
	in, ok := r.q.(queue.Inspector)
	if !ok {
		return nil, nil
	}
	d, err := in.Depth(ctx)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
