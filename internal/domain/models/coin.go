package models

import "time"

// Coin is a market-data catalogue entry.
type Coin struct {
	ID        string            `json:"id"`
	Symbol    string            `json:"symbol"`
	Name      string            `json:"name"`
	Platforms map[string]string `json:"platforms,omitempty"`
}

// ChartPoint is a [timestampMs, value] pair.
type ChartPoint [2]float64

// Time returns the point timestamp in UTC.
func (p ChartPoint) Time() time.Time { return time.UnixMilli(int64(p[0])).UTC() }

// Value returns the point value.
func (p ChartPoint) Value() float64 { return p[1] }

// MarketChart holds parallel time-ordered series.
type MarketChart struct {
	Prices       []ChartPoint `json:"prices"`
	MarketCaps   []ChartPoint `json:"market_caps"`
	TotalVolumes []ChartPoint `json:"total_volumes"`
}

// MarketChartParams selects a chart window.
type MarketChartParams struct {
	VsCurrency string
	Days       int
	Interval   string
}
