package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
)

type fakeBook struct {
	markets []models.Market
}

func (b *fakeBook) Market(chain string) (models.Market, bool) {
	for _, m := range b.markets {
		if m.Chain == chain {
			return m, true
		}
	}
	return models.Market{}, false
}
func (b *fakeBook) Markets() []models.Market { return b.markets }
func (b *fakeBook) Version() int             { return 1 }

type fakeRegistry struct {
	rows []models.RegisteredMarket
	err  error
}

func (r *fakeRegistry) ListMarkets(context.Context) ([]models.RegisteredMarket, error) {
	return r.rows, r.err
}

func (r *fakeRegistry) FindMarket(_ context.Context, chain string) (*models.RegisteredMarket, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, m := range r.rows {
		if m.Chain == chain {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

type fakeCatalogue struct {
	mu      sync.Mutex
	coins   map[string]string // platform|lower(address) -> id
	charts  map[string]*models.MarketChart
	lookups []string
	params  []models.MarketChartParams
	findErr error
}

func (c *fakeCatalogue) ListCoins(context.Context) ([]models.Coin, error) { return nil, nil }

func (c *fakeCatalogue) FindCoinByAddress(_ context.Context, address, platform string) (*models.Coin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups = append(c.lookups, platform+"|"+strings.ToLower(address))
	if c.findErr != nil {
		return nil, c.findErr
	}
	id, ok := c.coins[platform+"|"+strings.ToLower(address)]
	if !ok {
		return nil, domain.ErrCoinNotFound
	}
	return &models.Coin{ID: id}, nil
}

func (c *fakeCatalogue) GetMarketChart(_ context.Context, id string, p models.MarketChartParams) (*models.MarketChart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = append(c.params, p)
	ch, ok := c.charts[id]
	if !ok {
		return nil, domain.ErrCoinNotFound
	}
	return ch, nil
}

type fakeWriter struct {
	mu      sync.Mutex
	candles []models.Candle
	err     error
}

func (w *fakeWriter) Write(_ context.Context, c models.Candle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.candles = append(w.candles, c)
	return nil
}

type fakeLocker struct {
	held     bool
	deny     bool
	unlocked int
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (bool, error) {
	if l.deny || l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLocker) Unlock(context.Context, string) error {
	l.held = false
	l.unlocked++
	return nil
}

type fakeStore struct {
	mu        sync.Mutex
	inserted  []models.Candle
	aggregate map[string][]models.Candle // lower(address) -> bars
	aggErr    error
	queries   []domrepo.AggregateQuery
	series    []models.Candle
	stats     *models.PriceStats
	insertErr error
}

func (s *fakeStore) Init(context.Context) error { return nil }

func (s *fakeStore) InsertCandle(ctx context.Context, c models.Candle) error {
	return s.InsertCandles(ctx, []models.Candle{c})
}

func (s *fakeStore) InsertCandles(_ context.Context, cs []models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, cs...)
	return nil
}

func (s *fakeStore) QueryCandles(_ context.Context, q domrepo.SeriesQuery) ([]models.Candle, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return s.series, nil
}

func (s *fakeStore) AggregateCandles(_ context.Context, q domrepo.AggregateQuery) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.aggErr != nil {
		return nil, s.aggErr
	}
	return s.aggregate[q.Address], nil
}

func (s *fakeStore) LatestCandle(context.Context, string, int64) (*models.Candle, error) {
	if len(s.series) == 0 {
		return nil, nil
	}
	return &s.series[0], nil
}

func (s *fakeStore) PriceStats(context.Context, string, int64, time.Time, time.Time) (*models.PriceStats, error) {
	return s.stats, nil
}

func (s *fakeStore) Health(context.Context) error { return nil }

type fakePublisher struct {
	published []models.Candle
	closed    bool
}

func (p *fakePublisher) PublishCandle(_ context.Context, c models.Candle) error {
	p.published = append(p.published, c)
	return nil
}

func (p *fakePublisher) Close() error { p.closed = true; return nil }

type fakeMetrics struct {
	mu     sync.Mutex
	stored map[string]int
	errors map[string]int
	runs   map[string]int
	closes map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{stored: map[string]int{}, errors: map[string]int{}, runs: map[string]int{}, closes: map[string]float64{}}
}

func (m *fakeMetrics) RecordCandleStored(backend string, _ int64) {
	m.mu.Lock()
	m.stored[backend]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLastClose(_ int64, symbol string, price float64) {
	m.mu.Lock()
	m.closes[symbol] = price
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) RecordIngestionRun(outcome string) {
	m.mu.Lock()
	m.runs[outcome]++
	m.mu.Unlock()
}

// monthlyBars returns n ascending monthly bars with the given closes.
func monthlyBars(address string, closes ...float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = models.Candle{Address: address, ChainID: 1, Open: c, High: c, Low: c, Close: c, Timestamp: start.AddDate(0, i, 0)}
	}
	return out
}
