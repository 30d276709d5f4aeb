package service

import (
	"context"

	"AaveRisk/internal/domain/models"
)

// ReserveClassifier splits an account's positions into borrow and collateral buckets.
type ReserveClassifier interface {
	Classify(snapshot models.ReserveSnapshot) (models.PositionBuckets, error)
}

// ScenarioCalculator values collateral at its band and derives the health factor.
type ScenarioCalculator interface {
	StressScenario(collateral []models.BandedReserve, totalBorrowsUSD float64) models.StressScenario
}

// BandProvider returns the monthly band of an asset. ok is false when data is insufficient.
type BandProvider interface {
	MonthlyBand(ctx context.Context, address string, chainID int64) (band models.BollingerBand, ok bool, err error)
}
