package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	domsvc "AaveRisk/internal/domain/service"
	applogger "AaveRisk/pkg/logger"
)

// MarketStatusUseCase computes the monthly Bollinger stress scenario of an account.
type MarketStatusUseCase struct {
	book        domrepo.AddressBook
	registry    domrepo.MarketRegistry
	reader      domrepo.ReserveReader
	classifier  domsvc.ReserveClassifier
	bands       domsvc.BandProvider
	calc        domsvc.ScenarioCalculator
	metrics     domrepo.Metrics
	timeout     time.Duration
	concurrency int
	now         func() time.Time
	l           *applogger.Logger
}

// MarketStatusOption configures MarketStatusUseCase.
type MarketStatusOption func(*MarketStatusUseCase)

func WithScenarioTimeout(d time.Duration) MarketStatusOption {
	return func(uc *MarketStatusUseCase) {
		if d > 0 {
			uc.timeout = d
		}
	}
}

func WithBandConcurrency(n int) MarketStatusOption {
	return func(uc *MarketStatusUseCase) {
		if n > 0 {
			uc.concurrency = n
		}
	}
}

func WithStatusRegistry(r domrepo.MarketRegistry) MarketStatusOption {
	return func(uc *MarketStatusUseCase) { uc.registry = r }
}

func WithStatusMetrics(m domrepo.Metrics) MarketStatusOption {
	return func(uc *MarketStatusUseCase) {
		if m != nil {
			uc.metrics = m
		}
	}
}

func WithStatusLogger(l *applogger.Logger) MarketStatusOption {
	return func(uc *MarketStatusUseCase) {
		if l != nil {
			uc.l = l
		}
	}
}

func WithStatusClock(now func() time.Time) MarketStatusOption {
	return func(uc *MarketStatusUseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

func NewMarketStatusUseCase(
	book domrepo.AddressBook,
	reader domrepo.ReserveReader,
	classifier domsvc.ReserveClassifier,
	bands domsvc.BandProvider,
	calc domsvc.ScenarioCalculator,
	opts ...MarketStatusOption,
) *MarketStatusUseCase {
	uc := &MarketStatusUseCase{
		book:        book,
		reader:      reader,
		classifier:  classifier,
		bands:       bands,
		calc:        calc,
		metrics:     nopMetrics{},
		timeout:     20 * time.Second,
		concurrency: 4,
		now:         time.Now,
		l:           applogger.Nop(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// GetMarketStatus reads the account's reserves on chain, values its collateral
// at the clamped lower monthly band and returns the stress health factor.
func (uc *MarketStatusUseCase) GetMarketStatus(ctx context.Context, account models.Account, chain string) (*models.StressScenarioResult, error) {
	market, ok := uc.book.Market(chain)
	if !ok {
		return nil, fmt.Errorf("market status %s: %w", chain, domain.ErrUnknownMarket)
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	start := time.Now()

	reserves, err := uc.reader.GetReserves(ctx, market)
	if err != nil {
		return nil, uc.readerError(ctx, "get reserves", err)
	}
	positions, err := uc.reader.GetUserPositions(ctx, market, account)
	if err != nil {
		return nil, uc.readerError(ctx, "get user positions", err)
	}

	buckets, err := uc.classifier.Classify(models.ReserveSnapshot{ReservesData: reserves, Positions: positions})
	if err != nil {
		uc.metrics.RecordError("classify")
		return nil, fmt.Errorf("classify: %w", err)
	}

	banded := uc.fetchBands(ctx, market, buckets.Collateral)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("market status %s: %w", chain, domain.ErrTimeout)
	}

	scenario := uc.calc.StressScenario(banded, buckets.TotalBorrowsUSD)
	uc.metrics.RecordLatency("market_status", time.Since(start).Seconds())
	uc.l.Info("market status computed",
		applogger.String("chain", chain),
		applogger.String("account", account.Address),
		applogger.String("status", string(scenario.Status)),
		applogger.Int("collateral", len(banded)),
		applogger.Float64("total_borrows_usd", buckets.TotalBorrowsUSD),
		applogger.Duration("duration_ms", time.Since(start)),
	)

	return &models.StressScenarioResult{
		Chain:             chain,
		Account:           account.Address,
		TotalBorrowsUSD:   buckets.TotalBorrowsUSD,
		MonthlyBBScenario: scenario,
		ComputedAt:        uc.now().UTC(),
	}, nil
}

// fetchBands queries bands with bounded concurrency. Results keep the order
// of collateral. A failed or insufficient band degrades to no band.
func (uc *MarketStatusUseCase) fetchBands(ctx context.Context, market models.Market, collateral []models.ReservePosition) []models.BandedReserve {
	out := make([]models.BandedReserve, len(collateral))
	sem := make(chan struct{}, uc.concurrency)
	var wg sync.WaitGroup

	for i, pos := range collateral {
		out[i].Position = pos
		wg.Add(1)
		go func(i int, pos models.ReservePosition) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			band, ok, err := uc.bands.MonthlyBand(ctx, pos.UnderlyingAsset, market.ChainID)
			switch {
			case err != nil:
				uc.metrics.RecordError("monthly_band")
				uc.l.Warn("monthly band query failed",
					applogger.String("chain", market.Chain),
					applogger.String("asset", pos.UnderlyingAsset),
					applogger.Error(err),
				)
			case !ok:
				uc.l.Warn("monthly band unavailable",
					applogger.String("chain", market.Chain),
					applogger.String("asset", pos.UnderlyingAsset),
					applogger.Error(domain.ErrInsufficientData),
				)
			default:
				b := band
				out[i].Band = &b
			}
		}(i, pos)
	}
	wg.Wait()
	return out
}

func (uc *MarketStatusUseCase) readerError(ctx context.Context, op string, err error) error {
	// a deadline or a caller that went away is not an upstream failure
	if errors.Is(err, domain.ErrTimeout) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, domain.ErrTimeout)
	}
	uc.metrics.RecordError("reserve_reader")
	if errors.Is(err, domain.ErrCollaborator) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrCollaborator, err)
}

// ListMarkets merges registry rows with the address book, registry order first.
// A registry failure degrades to the address book alone.
func (uc *MarketStatusUseCase) ListMarkets(ctx context.Context) ([]models.MarketSummary, error) {
	var registered []models.RegisteredMarket
	if uc.registry != nil {
		rows, err := uc.registry.ListMarkets(ctx)
		if err != nil {
			uc.l.Warn("market registry unavailable", applogger.Error(err))
		} else {
			registered = rows
		}
	}

	seen := make(map[string]int)
	var out []models.MarketSummary
	for _, r := range registered {
		if _, dup := seen[r.Chain]; dup {
			continue
		}
		s := models.MarketSummary{Chain: r.Chain, Registered: true, CoingeckoPlatform: r.CoingeckoName}
		if m, ok := uc.book.Market(r.Chain); ok {
			s.Configured = true
			s.ChainID = m.ChainID
			s.AssetCount = len(m.Assets)
		}
		if s.CoingeckoPlatform == "" {
			s.CoingeckoPlatform = PlatformFor(r.Chain, "")
		}
		seen[r.Chain] = len(out)
		out = append(out, s)
	}
	for _, m := range uc.book.Markets() {
		if _, dup := seen[m.Chain]; dup {
			continue
		}
		seen[m.Chain] = len(out)
		out = append(out, models.MarketSummary{
			Chain:             m.Chain,
			ChainID:           m.ChainID,
			CoingeckoPlatform: PlatformFor(m.Chain, m.CoingeckoPlatform),
			Configured:        true,
			AssetCount:        len(m.Assets),
		})
	}
	return out, nil
}

// Reserves returns the address book assets of a market.
func (uc *MarketStatusUseCase) Reserves(chain string) (models.AssetRegistry, error) {
	m, ok := uc.book.Market(chain)
	if !ok {
		return nil, fmt.Errorf("reserves %s: %w", chain, domain.ErrUnknownMarket)
	}
	return m.Assets, nil
}
