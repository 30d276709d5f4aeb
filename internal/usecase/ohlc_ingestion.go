package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	applogger "AaveRisk/pkg/logger"
	"AaveRisk/pkg/util"
)

// IngestionLockKey guards a daily run across replicas.
const IngestionLockKey = "ingestion:daily-ohlc"

const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
	OutcomeSkipped   = "skipped"
	OutcomeCancelled = "cancelled"
)

// platforms maps address book chain names to market-data platform ids.
var platforms = map[string]string{
	"Ethereum":  "ethereum",
	"Polygon":   "polygon-pos",
	"Arbitrum":  "arbitrum-one",
	"Optimism":  "optimistic-ethereum",
	"Avalanche": "avalanche",
	"ZkSync":    "zksync",
	"Base":      "base",
	"Gnosis":    "xdai",
	"BNB":       "binance-smart-chain",
	"Metis":     "metis-andromeda",
	"Scroll":    "scroll",
}

// PlatformFor resolves the market-data platform of a chain. A non-empty
// override wins over the fixed map; unknown chains fall back to the lower-cased name.
func PlatformFor(chain, override string) string {
	if override != "" {
		return override
	}
	if p, ok := platforms[chain]; ok {
		return p
	}
	return strings.ToLower(chain)
}

// CandleWriter is the write side used by ingestion.
type CandleWriter interface {
	Write(ctx context.Context, c models.Candle) error
}

// MarketReport summarizes one market of a run.
type MarketReport struct {
	Chain    string `json:"chain"`
	Platform string `json:"platform,omitempty"`
	Assets   int    `json:"assets"`
	Stored   int    `json:"stored"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

// RunReport summarizes a full ingestion run.
type RunReport struct {
	ID         string         `json:"id"`
	Outcome    string         `json:"outcome"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Markets    []MarketReport `json:"markets"`
	Stored     int            `json:"stored"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
}

func (r *RunReport) add(m MarketReport) {
	r.Markets = append(r.Markets, m)
	r.Stored += m.Stored
	r.Skipped += m.Skipped
	r.Failed += m.Failed
	if m.Error != "" {
		r.Failed++
	}
}

// OHLCIngestion fetches the previous day's bar of every configured asset and
// writes it through the candle sink.
type OHLCIngestion struct {
	book      domrepo.AddressBook
	registry  domrepo.MarketRegistry
	catalogue domrepo.CoinCatalogue
	sink      CandleWriter
	locker    domrepo.Locker
	metrics   domrepo.Metrics

	delay      time.Duration
	days       int
	vsCurrency string
	lockTTL    time.Duration
	now        func() time.Time

	running atomic.Bool
	mu      sync.RWMutex
	last    *RunReport
	l       *applogger.Logger
}

// IngestionOption configures OHLCIngestion.
type IngestionOption func(*OHLCIngestion)

func WithInterAssetDelay(d time.Duration) IngestionOption {
	return func(o *OHLCIngestion) {
		if d >= 0 {
			o.delay = d
		}
	}
}

func WithMarketChartDays(days int) IngestionOption {
	return func(o *OHLCIngestion) {
		if days >= 2 {
			o.days = days
		}
	}
}

func WithVsCurrency(vs string) IngestionOption {
	return func(o *OHLCIngestion) {
		if vs != "" {
			o.vsCurrency = vs
		}
	}
}

func WithLocker(l domrepo.Locker, ttl time.Duration) IngestionOption {
	return func(o *OHLCIngestion) {
		o.locker = l
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

func WithIngestionRegistry(r domrepo.MarketRegistry) IngestionOption {
	return func(o *OHLCIngestion) { o.registry = r }
}

func WithIngestionMetrics(m domrepo.Metrics) IngestionOption {
	return func(o *OHLCIngestion) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithIngestionClock(now func() time.Time) IngestionOption {
	return func(o *OHLCIngestion) {
		if now != nil {
			o.now = now
		}
	}
}

func WithIngestionLogger(l *applogger.Logger) IngestionOption {
	return func(o *OHLCIngestion) {
		if l != nil {
			o.l = l
		}
	}
}

func NewOHLCIngestion(book domrepo.AddressBook, catalogue domrepo.CoinCatalogue, sink CandleWriter, opts ...IngestionOption) *OHLCIngestion {
	o := &OHLCIngestion{
		book:       book,
		catalogue:  catalogue,
		sink:       sink,
		metrics:    nopMetrics{},
		delay:      500 * time.Millisecond,
		days:       2,
		vsCurrency: "usd",
		lockTTL:    2 * time.Hour,
		now:        time.Now,
		l:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Running reports whether a run is in progress in this process.
func (o *OHLCIngestion) Running() bool { return o.running.Load() }

// LastReport returns the report of the last finished run, if any.
func (o *OHLCIngestion) LastReport() *RunReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return nil
	}
	r := *o.last
	r.Markets = append([]MarketReport(nil), o.last.Markets...)
	return &r
}

// Run ingests every market. It returns ErrAlreadyRunning when a run is in
// progress; per-market and per-asset failures are logged and reported only.
func (o *OHLCIngestion) Run(ctx context.Context) (*RunReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.RecordIngestionRun(OutcomeSkipped)
		return nil, domain.ErrAlreadyRunning
	}
	defer o.running.Store(false)
	return o.run(ctx), nil
}

// RunAsync starts a run in the background. The running flag is taken before
// returning so a second call fails fast.
func (o *OHLCIngestion) RunAsync(ctx context.Context) (string, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.RecordIngestionRun(OutcomeSkipped)
		return "", domain.ErrAlreadyRunning
	}
	id := uuid.NewString()
	go func() {
		defer o.running.Store(false)
		o.runWithID(ctx, id)
	}()
	return id, nil
}

// Scheduled adapts Run to the scheduler task signature.
func (o *OHLCIngestion) Scheduled(ctx context.Context) {
	if _, err := o.Run(ctx); err != nil {
		o.l.Warn("scheduled ingestion skipped", applogger.Error(err))
	}
}

func (o *OHLCIngestion) run(ctx context.Context) *RunReport {
	return o.runWithID(ctx, uuid.NewString())
}

func (o *OHLCIngestion) runWithID(ctx context.Context, id string) *RunReport {
	report := &RunReport{ID: id, StartedAt: o.now().UTC()}
	l := o.l.With(applogger.String("run_id", id))

	if o.locker != nil {
		ok, err := o.locker.TryLock(ctx, IngestionLockKey, o.lockTTL)
		switch {
		case err != nil:
			l.Warn("ingestion lock unavailable, continuing with local guard", applogger.Error(err))
		case !ok:
			l.Info("ingestion already running elsewhere, skipping")
			report.Outcome = OutcomeSkipped
			report.FinishedAt = o.now().UTC()
			o.metrics.RecordIngestionRun(OutcomeSkipped)
			return report
		default:
			defer func() {
				if err := o.locker.Unlock(context.Background(), IngestionLockKey); err != nil {
					l.Warn("ingestion unlock failed", applogger.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	l.Info("ingestion started")
	for _, t := range o.targets(ctx) {
		if ctx.Err() != nil {
			break
		}
		mr, err := o.processMarket(ctx, t.chain, t.override)
		if err != nil {
			mr.Error = err.Error()
			l.Error("ingestion market failed", applogger.String("chain", t.chain), applogger.Error(err))
		}
		report.add(mr)
	}

	report.FinishedAt = o.now().UTC()
	switch {
	case ctx.Err() != nil:
		report.Outcome = OutcomeCancelled
	case report.Failed > 0:
		report.Outcome = OutcomePartial
	default:
		report.Outcome = OutcomeCompleted
	}
	o.metrics.RecordIngestionRun(report.Outcome)
	o.metrics.RecordLatency("ingestion_run", time.Since(start).Seconds())

	o.mu.Lock()
	o.last = report
	o.mu.Unlock()

	l.Info("ingestion finished",
		applogger.String("outcome", report.Outcome),
		applogger.Int("markets", len(report.Markets)),
		applogger.Int("stored", report.Stored),
		applogger.Int("skipped", report.Skipped),
		applogger.Int("failed", report.Failed),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return report
}

type ingestionTarget struct {
	chain    string
	override string
}

// targets is the union of registry and address book markets keyed by chain,
// registry order first. A registry failure degrades to the address book.
func (o *OHLCIngestion) targets(ctx context.Context) []ingestionTarget {
	seen := make(map[string]struct{})
	var out []ingestionTarget
	if o.registry != nil {
		rows, err := o.registry.ListMarkets(ctx)
		if err != nil {
			o.metrics.RecordError("market_registry")
			o.l.Warn("market registry unavailable, using address book only", applogger.Error(err))
		}
		for _, r := range rows {
			if _, dup := seen[r.Chain]; dup {
				continue
			}
			seen[r.Chain] = struct{}{}
			out = append(out, ingestionTarget{chain: r.Chain, override: r.CoingeckoName})
		}
	}
	for _, m := range o.book.Markets() {
		if _, dup := seen[m.Chain]; dup {
			continue
		}
		seen[m.Chain] = struct{}{}
		out = append(out, ingestionTarget{chain: m.Chain})
	}
	return out
}

// ProcessMarket ingests one market. The registry platform override is looked
// up when a registry is configured. It shares the run guard and the ingestion
// lock with Run and returns ErrAlreadyRunning while either is held.
func (o *OHLCIngestion) ProcessMarket(ctx context.Context, chain string) (MarketReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		return MarketReport{Chain: chain}, fmt.Errorf("process market %s: %w", chain, domain.ErrAlreadyRunning)
	}
	defer o.running.Store(false)

	if o.locker != nil {
		ok, err := o.locker.TryLock(ctx, IngestionLockKey, o.lockTTL)
		switch {
		case err != nil:
			o.l.Warn("ingestion lock unavailable, continuing with local guard", applogger.String("chain", chain), applogger.Error(err))
		case !ok:
			return MarketReport{Chain: chain}, fmt.Errorf("process market %s: %w elsewhere", chain, domain.ErrAlreadyRunning)
		default:
			defer func() {
				if err := o.locker.Unlock(context.Background(), IngestionLockKey); err != nil {
					o.l.Warn("ingestion unlock failed", applogger.String("chain", chain), applogger.Error(err))
				}
			}()
		}
	}

	override := ""
	if o.registry != nil {
		rm, err := o.registry.FindMarket(ctx, chain)
		if err != nil {
			o.l.Warn("market registry lookup failed", applogger.String("chain", chain), applogger.Error(err))
		} else if rm != nil {
			override = rm.CoingeckoName
		}
	}
	return o.processMarket(ctx, chain, override)
}

func (o *OHLCIngestion) processMarket(ctx context.Context, chain, override string) (MarketReport, error) {
	mr := MarketReport{Chain: chain}
	market, ok := o.book.Market(chain)
	if !ok {
		o.metrics.RecordError("configuration")
		return mr, fmt.Errorf("process market %s: %w: not in address book", chain, domain.ErrConfiguration)
	}
	if override == "" {
		override = market.CoingeckoPlatform
	}
	mr.Platform = PlatformFor(chain, override)
	mr.Assets = len(market.Assets)

	for i, asset := range market.Assets {
		if i > 0 {
			if err := sleepCtx(ctx, o.delay); err != nil {
				return mr, fmt.Errorf("process market %s: %w", chain, err)
			}
		}
		stored, err := o.FetchAndStore(ctx, market, asset, mr.Platform)
		switch {
		case err != nil:
			mr.Failed++
			o.l.Error("ingestion asset failed",
				applogger.String("chain", chain),
				applogger.String("asset", asset.Name),
				applogger.Error(err),
			)
		case stored:
			mr.Stored++
		default:
			mr.Skipped++
		}
	}
	return mr, nil
}

// FetchAndStore writes yesterday's bar of one asset. stored is false when the
// asset is unknown to the catalogue or its chart is too short.
func (o *OHLCIngestion) FetchAndStore(ctx context.Context, market models.Market, asset models.AssetDescriptor, platform string) (bool, error) {
	coin, err := o.catalogue.FindCoinByAddress(ctx, asset.Underlying, platform)
	if errors.Is(err, domain.ErrCoinNotFound) {
		o.l.Warn("no catalogue id for asset",
			applogger.String("chain", market.Chain),
			applogger.String("asset", asset.Name),
			applogger.String("platform", platform),
		)
		return false, nil
	}
	if err != nil {
		o.metrics.RecordError("coin_lookup")
		return false, fmt.Errorf("find coin %s: %w", asset.Underlying, err)
	}

	chart, err := o.catalogue.GetMarketChart(ctx, coin.ID, models.MarketChartParams{
		VsCurrency: o.vsCurrency,
		Days:       o.days,
		Interval:   "daily",
	})
	if err != nil {
		o.metrics.RecordError("market_chart")
		return false, fmt.Errorf("market chart %s: %w", coin.ID, err)
	}

	candle, ok := DeriveDailyCandle(market.ChainID, asset.Underlying, chart, o.now())
	if !ok {
		o.l.Warn("market chart too short",
			applogger.String("chain", market.Chain),
			applogger.String("coin", coin.ID),
		)
		return false, nil
	}
	if err := o.sink.Write(ctx, candle); err != nil {
		return false, err
	}
	o.metrics.RecordLastClose(market.ChainID, asset.Symbol, candle.Close)
	o.l.Debug("daily candle stored",
		applogger.String("chain", market.Chain),
		applogger.String("asset", asset.Name),
		applogger.Float64("close", candle.Close),
		applogger.Time("timestamp", candle.Timestamp),
	)
	return true, nil
}

// DeriveDailyCandle builds yesterday's bar from a daily market chart. The
// second to last price is the bar's open and close; high and low also consider
// the latest price. ok is false with fewer than two prices.
func DeriveDailyCandle(chainID int64, address string, chart *models.MarketChart, now time.Time) (models.Candle, bool) {
	if chart == nil || len(chart.Prices) < 2 {
		return models.Candle{}, false
	}
	last := len(chart.Prices) - 1
	i := last - 1
	p, latest := chart.Prices[i].Value(), chart.Prices[last].Value()

	c := models.Candle{
		Address:   address,
		ChainID:   chainID,
		Open:      p,
		Close:     p,
		High:      max(p, latest),
		Low:       min(p, latest),
		Timestamp: util.StartOfYesterday(now),
	}
	if len(chart.TotalVolumes) > i {
		c.Volume = chart.TotalVolumes[i].Value()
	}
	return c.Normalize(), true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
