package models

// RawReserve is a reserve as returned by the chain reserve reader. Numeric
// fields are decimal strings.
type RawReserve struct {
	ID                             string `json:"id"`
	UnderlyingAsset                string `json:"underlyingAsset"`
	Name                           string `json:"name"`
	Symbol                         string `json:"symbol"`
	Decimals                       int    `json:"decimals"`
	ReserveLiquidationThreshold    string `json:"reserveLiquidationThreshold"` // basis points
	PriceInMarketReferenceCurrency string `json:"priceInMarketReferenceCurrency"`
	UsageAsCollateralEnabled       bool   `json:"usageAsCollateralEnabled"`
}

// BaseCurrency carries the market reference currency metadata.
type BaseCurrency struct {
	MarketReferenceCurrencyDecimals   int    `json:"marketReferenceCurrencyDecimals"`
	MarketReferenceCurrencyPriceInUSD string `json:"marketReferenceCurrencyPriceInUsd"` // 8 decimals
}

// ReservesData is the reserve list of a market plus its base currency.
type ReservesData struct {
	Reserves     []RawReserve `json:"reservesData"`
	BaseCurrency BaseCurrency `json:"baseCurrencyData"`
}

// RawUserPosition is one account's humanized per-reserve state.
type RawUserPosition struct {
	UnderlyingAsset                string `json:"underlyingAsset"`
	UnderlyingBalance              string `json:"underlyingBalance"`
	VariableDebt                   string `json:"variableDebt"`
	StableDebt                     string `json:"stableDebt"`
	UsageAsCollateralEnabledOnUser bool   `json:"usageAsCollateralEnabledOnUser"`
}

// ReservePosition is the normalized per-asset snapshot used by the scenario.
type ReservePosition struct {
	ReserveID                      string  `json:"id"`
	UnderlyingAsset                string  `json:"underlyingAsset"`
	Name                           string  `json:"name"`
	Symbol                         string  `json:"symbol"`
	Decimals                       int     `json:"decimals"`
	PriceUSD                       float64 `json:"priceUSD"`
	UnderlyingBalance              float64 `json:"underlyingBalance"`
	UnderlyingBalanceUSD           float64 `json:"underlyingBalanceUSD"`
	TotalBorrows                   float64 `json:"totalBorrows"`
	TotalBorrowsUSD                float64 `json:"totalBorrowsUSD"`
	UsageAsCollateralEnabledOnUser bool    `json:"usageAsCollateralEnabledOnUser"`
	LiquidationThreshold           float64 `json:"liquidationThreshold"` // fraction, 0.825 for 82.5%
}

// PositionBuckets is the classifier output.
type PositionBuckets struct {
	Borrow          []ReservePosition `json:"borrow"`
	Collateral      []ReservePosition `json:"collateral"`
	TotalBorrowsUSD float64           `json:"totalBorrowsUSD"`
}

// ReserveSnapshot is the classifier input for one market/account pair.
type ReserveSnapshot struct {
	ReservesData
	Positions []RawUserPosition `json:"userReserves"`
}
