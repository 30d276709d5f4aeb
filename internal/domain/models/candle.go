package models

import (
	"time"

	"AaveRisk/pkg/util"
)

// Candle is one OHLCV bar of an asset on a chain.
type Candle struct {
	Address   string    `json:"address"`
	ChainID   int64     `json:"chainId"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Normalize lower-cases the address and moves the timestamp to UTC.
func (c Candle) Normalize() Candle {
	c.Address = util.NormalizeAddress(c.Address)
	c.Timestamp = c.Timestamp.UTC()
	return c
}

// Closes extracts close prices in the order given.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// PriceStats summarizes a price range.
type PriceStats struct {
	FirstPrice         float64 `json:"firstPrice"`
	LastPrice          float64 `json:"lastPrice"`
	HighPrice          float64 `json:"highPrice"`
	LowPrice           float64 `json:"lowPrice"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	TotalVolume        float64 `json:"totalVolume"`
	Count              int64   `json:"count"`
}
