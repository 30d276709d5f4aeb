package models

// Requests for the HTTP endpoints. Defined in domain so handlers and tests share them.

type MarketStatusRequest struct {
	Chain   string `param:"chain" json:"chain" validate:"required"`
	Account string `query:"account" json:"account" validate:"required,eth_addr"`
}

type OHLCRequest struct {
	Address   string `param:"address" json:"address" validate:"required,eth_addr"`
	ChainID   int64  `query:"chainId" json:"chainId" validate:"required,gt=0"`
	From      string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To        string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit     int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=10000"`
	Order     string `query:"order" json:"order" default:"DESC" validate:"oneof=ASC DESC"`
}

type LatestOHLCRequest struct {
	Address string `param:"address" json:"address" validate:"required,eth_addr"`
	ChainID int64  `query:"chainId" json:"chainId" validate:"required,gt=0"`
}

type AggregatedOHLCRequest struct {
	Address   string `param:"address" json:"address" validate:"required,eth_addr"`
	ChainID   int64  `query:"chainId" json:"chainId" validate:"required,gt=0"`
	Interval  string `query:"interval" json:"interval" default:"1d" validate:"oneof=1m 5m 15m 1h 4h 1d 1w 1M"`
	From      string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To        string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit     int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=10000"`
}

type PriceStatsRequest struct {
	Address   string `param:"address" json:"address" validate:"required,eth_addr"`
	ChainID   int64  `query:"chainId" json:"chainId" validate:"required,gt=0"`
	From      string `query:"from" json:"from" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	To        string `query:"to" json:"to" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

type BollingerRequest struct {
	Address    string  `param:"address" json:"address" validate:"required,eth_addr"`
	ChainID    int64   `query:"chainId" json:"chainId" validate:"required,gt=0"`
	Window     int     `query:"window" json:"window" default:"20" validate:"gte=2,lte=500"`
	Multiplier float64 `query:"multiplier" json:"multiplier" default:"2" validate:"gt=0,lte=10"`
}

// InsertCandleRequest mirrors the stored candle. Missing open/high/low fall back
// to close; a missing timestamp means now.
type InsertCandleRequest struct {
	Address   string   `json:"address" validate:"required,eth_addr"`
	ChainID   int64    `json:"chainId" validate:"required,gt=0"`
	Open      *float64 `json:"open" validate:"omitempty,gte=0"`
	High      *float64 `json:"high" validate:"omitempty,gte=0"`
	Low       *float64 `json:"low" validate:"omitempty,gte=0"`
	Close     float64  `json:"close" validate:"gte=0"`
	Volume    *float64 `json:"volume" validate:"omitempty,gte=0"`
	Timestamp string   `json:"timestamp" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type InsertCandleBatchRequest struct {
	Candles []InsertCandleRequest `json:"candles" validate:"required,min=1,max=5000,dive"`
}
