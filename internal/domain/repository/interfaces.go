package repository

import (
	"context"
	"time"

	"AaveRisk/internal/domain/models"
)

// ReserveReader reads reserve and account state of one market from chain.
type ReserveReader interface {
	GetReserves(ctx context.Context, market models.Market) (models.ReservesData, error)
	GetUserPositions(ctx context.Context, market models.Market, account models.Account) ([]models.RawUserPosition, error)
}

// SeriesStore persists and queries candles.
type SeriesStore interface {
	Init(ctx context.Context) error // ensure tables
	InsertCandle(ctx context.Context, c models.Candle) error
	InsertCandles(ctx context.Context, candles []models.Candle) error
	QueryCandles(ctx context.Context, q SeriesQuery) ([]models.Candle, error)
	AggregateCandles(ctx context.Context, q AggregateQuery) ([]models.Candle, error)
	LatestCandle(ctx context.Context, address string, chainID int64) (*models.Candle, error)
	PriceStats(ctx context.Context, address string, chainID int64, from, to time.Time) (*models.PriceStats, error)
	Health(ctx context.Context) error
}

// MarketRegistry lists markets known to the persisted registry.
type MarketRegistry interface {
	ListMarkets(ctx context.Context) ([]models.RegisteredMarket, error)
	FindMarket(ctx context.Context, chain string) (*models.RegisteredMarket, error)
}

// CoinCatalogue resolves contracts to market-data ids and fetches price windows.
type CoinCatalogue interface {
	ListCoins(ctx context.Context) ([]models.Coin, error)
	FindCoinByAddress(ctx context.Context, address, platform string) (*models.Coin, error)
	GetMarketChart(ctx context.Context, id string, p models.MarketChartParams) (*models.MarketChart, error)
}

// CandlePublisher hands a candle to a message broker.
type CandlePublisher interface {
	PublishCandle(ctx context.Context, c models.Candle) error
	Close() error
}

// Locker is a distributed mutual exclusion lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordCandleStored(backend string, chainID int64)
	RecordError(kind string)
	RecordLastClose(chainID int64, symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordIngestionRun(outcome string)
}

// AddressBook is the static, versioned catalogue of deployments.
type AddressBook interface {
	Market(chain string) (models.Market, bool)
	Markets() []models.Market
	Version() int
}
