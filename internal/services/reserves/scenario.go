package reserves

import (
	"AaveRisk/internal/domain/models"
	domsvc "AaveRisk/internal/domain/service"
	"AaveRisk/internal/services/indicators"
)

// DefaultSafetyMultiplier divides liquidation borrow power into maximum borrow power.
const DefaultSafetyMultiplier = 1.2

// ScenarioCalculator values every banded collateral at its clamped lower band.
type ScenarioCalculator struct {
	safety float64
}

func NewScenarioCalculator(safetyMultiplier float64) *ScenarioCalculator {
	if safetyMultiplier <= 0 {
		safetyMultiplier = DefaultSafetyMultiplier
	}
	return &ScenarioCalculator{safety: safetyMultiplier}
}

func (c *ScenarioCalculator) StressScenario(collateral []models.BandedReserve, totalBorrowsUSD float64) models.StressScenario {
	return StressScenario(collateral, totalBorrowsUSD, c.safety)
}

// StressScenario computes liquidation borrow power as the sum of
// balance × clamped lower band × liquidation threshold over reserves with a
// band. Reserves without a band contribute nothing but are still listed.
func StressScenario(collateral []models.BandedReserve, totalBorrowsUSD, safetyMultiplier float64) models.StressScenario {
	if safetyMultiplier <= 0 {
		safetyMultiplier = DefaultSafetyMultiplier
	}
	statuses := make([]models.ReserveStatus, 0, len(collateral))
	lbp := 0.0
	for _, br := range collateral {
		p := br.Position
		st := models.ReserveStatus{
			ID:                   p.ReserveID,
			UnderlyingAsset:      p.UnderlyingAsset,
			Name:                 p.Name,
			Symbol:               p.Symbol,
			Decimals:             p.Decimals,
			UnderlyingBalance:    p.UnderlyingBalance,
			LiquidationThreshold: p.LiquidationThreshold,
		}
		if br.Band != nil {
			band := indicators.ClampLower(*br.Band)
			st.MonthlyBB = &band
			lbp += p.UnderlyingBalance * band.Lower * p.LiquidationThreshold
		}
		statuses = append(statuses, st)
	}

	out := models.StressScenario{
		Status:                 models.ScenarioNoDebt,
		MaximumBorrowPower:     lbp / safetyMultiplier,
		LiquidationBorrowPower: lbp,
		ReserveStatusList:      statuses,
	}
	if totalBorrowsUSD > 0 {
		hf := lbp / totalBorrowsUSD
		out.Status = models.ScenarioEvaluated
		out.HealthFactor = &hf
	}
	return out
}

var _ domsvc.ScenarioCalculator = (*ScenarioCalculator)(nil)
