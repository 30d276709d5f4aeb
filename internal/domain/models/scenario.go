package models

import "time"

// BollingerBand is a volatility envelope at one point in time.
type BollingerBand struct {
	Lower  float64 `json:"lower"`
	Middle float64 `json:"middle"`
	Upper  float64 `json:"upper"`
}

// ReserveStatus is the per-collateral detail of a stress scenario. MonthlyBB
// is nil when no band could be computed for the asset.
type ReserveStatus struct {
	ID                   string         `json:"id"`
	UnderlyingAsset      string         `json:"underlyingAsset"`
	Name                 string         `json:"name"`
	Symbol               string         `json:"symbol"`
	Decimals             int            `json:"decimals"`
	UnderlyingBalance    float64        `json:"underlyingBalance"`
	LiquidationThreshold float64        `json:"liquidationThreshold"`
	MonthlyBB            *BollingerBand `json:"monthlyBB,omitempty"`
}

// ScenarioStatus tags the scenario variant.
type ScenarioStatus string

const (
	ScenarioEvaluated ScenarioStatus = "scenario"
	ScenarioNoDebt    ScenarioStatus = "no_debt"
)

// StressScenario values collateral at its lower monthly band. HealthFactor is
// nil for the no-debt variant.
type StressScenario struct {
	Status                 ScenarioStatus  `json:"status"`
	HealthFactor           *float64        `json:"healthFactor"`
	MaximumBorrowPower     float64         `json:"maximumBorrowPower"`
	LiquidationBorrowPower float64         `json:"liquidationBorrowPower"`
	ReserveStatusList      []ReserveStatus `json:"reserveStatusList"`
}

// HasDebt reports whether the health factor is defined.
func (s StressScenario) HasDebt() bool {
	return s.Status == ScenarioEvaluated && s.HealthFactor != nil
}

// StressScenarioResult is returned to the market status caller.
type StressScenarioResult struct {
	Chain             string         `json:"chain"`
	Account           string         `json:"account"`
	TotalBorrowsUSD   float64        `json:"totalBorrowsUSD"`
	MonthlyBBScenario StressScenario `json:"monthlyBBScenario"`
	ComputedAt        time.Time      `json:"computedAt"`
}

// BandedReserve pairs a collateral position with its monthly band, if any.
type BandedReserve struct {
	Position ReservePosition
	Band     *BollingerBand
}
