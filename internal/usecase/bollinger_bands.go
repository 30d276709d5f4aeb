package usecase

import (
	"context"
	"fmt"
	"time"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	domsvc "AaveRisk/internal/domain/service"
	"AaveRisk/internal/services/indicators"
	applogger "AaveRisk/pkg/logger"
)

// BandUseCase derives the monthly Bollinger band of an asset from stored candles.
type BandUseCase struct {
	store  domrepo.SeriesStore
	window int
	k      float64
	now    func() time.Time
	l      *applogger.Logger
}

var _ domsvc.BandProvider = (*BandUseCase)(nil)

func NewBandUseCase(store domrepo.SeriesStore, window int, k float64) *BandUseCase {
	if window <= 0 {
		window = indicators.DefaultWindow
	}
	if k <= 0 {
		k = indicators.DefaultMultiplier
	}
	return &BandUseCase{store: store, window: window, k: k, now: time.Now, l: applogger.Nop()}
}

func (uc *BandUseCase) SetLogger(l *applogger.Logger) {
	if l != nil {
		uc.l = l
	}
}

// SetClock overrides the time source used to anchor the monthly window.
func (uc *BandUseCase) SetClock(now func() time.Time) {
	if now != nil {
		uc.now = now
	}
}

// MonthlyBand uses the configured window and multiplier.
func (uc *BandUseCase) MonthlyBand(ctx context.Context, address string, chainID int64) (models.BollingerBand, bool, error) {
	return uc.MonthlyBandWith(ctx, address, chainID, uc.window, uc.k)
}

// MonthlyBandWith computes the band over the last window complete months.
// ok is false when fewer than window months are stored.
func (uc *BandUseCase) MonthlyBandWith(ctx context.Context, address string, chainID int64, window int, k float64) (models.BollingerBand, bool, error) {
	q := domrepo.MonthlyWindow(address, chainID, uc.now(), window)
	candles, err := uc.store.AggregateCandles(ctx, q)
	if err != nil {
		return models.BollingerBand{}, false, fmt.Errorf("monthly band %s: %w", q.Address, err)
	}
	if err := assertAscending(candles); err != nil {
		return models.BollingerBand{}, false, fmt.Errorf("monthly band %s: %w", q.Address, err)
	}
	band, ok := indicators.BollingerBands(models.Closes(candles), window, k)
	if !ok {
		uc.l.Debug("monthly band unavailable",
			applogger.String("address", q.Address),
			applogger.Int64("chain_id", chainID),
			applogger.Int("candles", len(candles)),
			applogger.Int("window", window),
		)
		return models.BollingerBand{}, false, nil
	}
	return band, true, nil
}

func assertAscending(candles []models.Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d at %s not after %s", domain.ErrUnorderedSeries, i,
				candles[i].Timestamp.Format(time.RFC3339), candles[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
