package usecase

import (
	"context"
	"fmt"
	"time"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
)

const maxSeriesLimit = 10000

// HistoricalPricesUseCase serves stored candles and accepts manual inserts.
type HistoricalPricesUseCase struct {
	store domrepo.SeriesStore
	sink  *CandleSink
	bands *BandUseCase
	now   func() time.Time
}

func NewHistoricalPricesUseCase(store domrepo.SeriesStore, sink *CandleSink, bands *BandUseCase) *HistoricalPricesUseCase {
	return &HistoricalPricesUseCase{store: store, sink: sink, bands: bands, now: time.Now}
}

type GetCandlesParams struct {
	Address string
	ChainID int64
	From    time.Time
	To      time.Time
	Order   domrepo.SortOrder
	Limit   int
}

type GetCandlesResult struct {
	Address  string          `json:"address"`
	ChainID  int64           `json:"chainId"`
	Interval string          `json:"interval,omitempty"`
	Count    int             `json:"count"`
	Candles  []models.Candle `json:"candles"`
}

func clampLimit(n int) int {
	if n <= 0 {
		return 100
	}
	if n > maxSeriesLimit {
		return maxSeriesLimit
	}
	return n
}

func (uc *HistoricalPricesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	q := domrepo.NewSeriesQuery(p.Address, p.ChainID).
		From(p.From).
		To(p.To).
		Order(p.Order).
		Limit(clampLimit(p.Limit))
	candles, err := uc.store.QueryCandles(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	return &GetCandlesResult{Address: q.Address, ChainID: q.ChainID, Count: len(candles), Candles: candles}, nil
}

func (uc *HistoricalPricesUseCase) Latest(ctx context.Context, address string, chainID int64) (*models.Candle, error) {
	c, err := uc.store.LatestCandle(ctx, address, chainID)
	if err != nil {
		return nil, fmt.Errorf("latest candle: %w", err)
	}
	return c, nil
}

type AggregateParams struct {
	GetCandlesParams
	Interval domrepo.Interval
}

// Aggregated returns resampled bars, newest first.
func (uc *HistoricalPricesUseCase) Aggregated(ctx context.Context, p AggregateParams) (*GetCandlesResult, error) {
	q := domrepo.NewSeriesQuery(p.Address, p.ChainID).Order(domrepo.Descending).Limit(clampLimit(p.Limit))
	if !p.From.IsZero() {
		q = q.From(p.From)
	}
	if !p.To.IsZero() {
		q = q.To(p.To)
	}
	candles, err := uc.store.AggregateCandles(ctx, q.Aggregate(p.Interval))
	if err != nil {
		return nil, fmt.Errorf("aggregate candles: %w", err)
	}
	return &GetCandlesResult{Address: q.Address, ChainID: q.ChainID, Interval: string(p.Interval), Count: len(candles), Candles: candles}, nil
}

// Stats returns nil when no bar falls in range.
func (uc *HistoricalPricesUseCase) Stats(ctx context.Context, address string, chainID int64, from, to time.Time) (*models.PriceStats, error) {
	if from.After(to) {
		return nil, fmt.Errorf("price stats: %w: from must be <= to", domain.ErrInvalidQuery)
	}
	st, err := uc.store.PriceStats(ctx, address, chainID, from, to)
	if err != nil {
		return nil, fmt.Errorf("price stats: %w", err)
	}
	return st, nil
}

// MonthlyBand returns ErrInsufficientData when fewer than window months are stored.
func (uc *HistoricalPricesUseCase) MonthlyBand(ctx context.Context, address string, chainID int64, window int, k float64) (*models.BollingerBand, error) {
	band, ok, err := uc.bands.MonthlyBandWith(ctx, address, chainID, window, k)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("monthly band: %w", domain.ErrInsufficientData)
	}
	return &band, nil
}

// CandleFromRequest fills missing open, high and low with close and a missing
// timestamp with now.
func (uc *HistoricalPricesUseCase) CandleFromRequest(r models.InsertCandleRequest, ts time.Time) models.Candle {
	c := models.Candle{
		Address:   r.Address,
		ChainID:   r.ChainID,
		Open:      r.Close,
		High:      r.Close,
		Low:       r.Close,
		Close:     r.Close,
		Timestamp: ts,
	}
	if r.Open != nil {
		c.Open = *r.Open
	}
	if r.High != nil {
		c.High = *r.High
	}
	if r.Low != nil {
		c.Low = *r.Low
	}
	if r.Volume != nil {
		c.Volume = *r.Volume
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = uc.now()
	}
	return c.Normalize()
}

func (uc *HistoricalPricesUseCase) Insert(ctx context.Context, c models.Candle) error {
	return uc.sink.Write(ctx, c)
}

func (uc *HistoricalPricesUseCase) InsertBatch(ctx context.Context, candles []models.Candle) error {
	return uc.sink.WriteBatch(ctx, candles)
}
