package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	drepo "AaveRisk/internal/domain/repository"
	"AaveRisk/internal/service/ratelimit"
	"AaveRisk/pkg/cache"
	xhttp "AaveRisk/pkg/http"
	applogger "AaveRisk/pkg/logger"
	"AaveRisk/pkg/util"
)

const (
	limiterKey        = "coingecko"
	apiKeyParam       = "x_cg_demo_api_key"
	coinIDCachePrefix = "coingecko:coin"
)

// CoinsListCacheKey holds the full coin list with platforms.
var CoinsListCacheKey = cache.GenerateKey("coingecko", "coins-list")

// Client is a CoinGecko REST client implementing CoinCatalogue.
type Client struct {
	http    *xhttp.Client
	cache   cache.Service
	limiter *ratelimit.Limiter
	apiKey  string
	listTTL time.Duration
	rate    float64
	burst   float64
	logger  *applogger.Logger
}

var _ drepo.CoinCatalogue = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

// WithAPIKey sets the demo API key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithCoinsListTTL sets how long the coin list stays cached.
func WithCoinsListTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.listTTL = ttl
		}
	}
}

// WithRateLimit sets the client-side token bucket.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec > 0 {
			c.rate = perSec
		}
		if burst > 0 {
			c.burst = float64(burst)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client over an HTTP client configured with the base URL and retries.
// A nil cache falls back to an in-process memory cache.
func New(hc *xhttp.Client, svc cache.Service, limiter *ratelimit.Limiter, opts ...Option) *Client {
	c := &Client{
		http:    hc,
		cache:   svc,
		limiter: limiter,
		listTTL: 24 * time.Hour,
		rate:    0.5,
		burst:   5,
		logger:  applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.NewMemoryCache()
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New()
	}
	return c
}

// ListCoins returns every coin with its platform addresses, served from cache when fresh.
func (c *Client) ListCoins(ctx context.Context) ([]models.Coin, error) {
	return cache.GetOrLoad(ctx, c.cache, CoinsListCacheKey, c.listTTL, c.fetchCoins)
}

// RefreshCoins drops the cached list and resolved ids, then reloads the list.
func (c *Client) RefreshCoins(ctx context.Context) ([]models.Coin, error) {
	if err := c.cache.Delete(ctx, CoinsListCacheKey); err != nil {
		c.logger.Warn("coingecko: drop coins list cache failed", applogger.Error(err))
	}
	if err := c.cache.DeleteByPattern(ctx, cache.BuildPattern(coinIDCachePrefix+":")); err != nil {
		c.logger.Warn("coingecko: drop coin id cache failed", applogger.Error(err))
	}
	return c.ListCoins(ctx)
}

func (c *Client) fetchCoins(ctx context.Context) ([]models.Coin, error) {
	start := time.Now()
	var coins []models.Coin
	if err := c.get(ctx, "/coins/list", map[string][]string{"include_platform": {"true"}}, &coins); err != nil {
		c.logger.Error("coingecko coins_list error", applogger.Error(err))
		return nil, fmt.Errorf("coingecko coins list: %w", err)
	}
	c.logger.Info("coingecko coins_list ok",
		applogger.Int("coins", len(coins)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return coins, nil
}

// FindCoinByAddress matches a contract address on a platform, case-insensitively.
// Matches are cached as long as the list; misses are not. It returns
// domain.ErrCoinNotFound when nothing matches.
func (c *Client) FindCoinByAddress(ctx context.Context, address, platform string) (*models.Coin, error) {
	platform = strings.ToLower(platform)
	address = util.NormalizeAddress(address)
	key := cache.GenerateKeyWithParams(coinIDCachePrefix, platform, address)
	coin, err := cache.GetOrLoad(ctx, c.cache, key, c.listTTL, func(ctx context.Context) (models.Coin, error) {
		coins, err := c.ListCoins(ctx)
		if err != nil {
			return models.Coin{}, err
		}
		for i := range coins {
			if addr, ok := coins[i].Platforms[platform]; ok && addr != "" && strings.EqualFold(addr, address) {
				return coins[i], nil
			}
		}
		return models.Coin{}, fmt.Errorf("coin %s on %s: %w", address, platform, domain.ErrCoinNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &coin, nil
}

// GetMarketChart fetches price, market cap and volume series for a coin id.
func (c *Client) GetMarketChart(ctx context.Context, id string, p models.MarketChartParams) (*models.MarketChart, error) {
	if id == "" {
		return nil, fmt.Errorf("market chart: empty coin id")
	}
	if p.VsCurrency == "" {
		p.VsCurrency = "usd"
	}
	if p.Days <= 0 {
		p.Days = 2
	}
	q := map[string][]string{
		"vs_currency": {p.VsCurrency},
		"days":        {strconv.Itoa(p.Days)},
	}
	if p.Interval != "" {
		q["interval"] = []string{p.Interval}
	}

	start := time.Now()
	var chart models.MarketChart
	if err := c.get(ctx, "/coins/"+id+"/market_chart", q, &chart); err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("market chart %s: %w", id, domain.ErrCoinNotFound)
		}
		c.logger.Error("coingecko market_chart error", applogger.String("coin", id), applogger.Error(err))
		return nil, fmt.Errorf("market chart %s: %w", id, err)
	}
	c.logger.Debug("coingecko market_chart ok",
		applogger.String("coin", id),
		applogger.Int("prices", len(chart.Prices)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return &chart, nil
}

func (c *Client) get(ctx context.Context, path string, q map[string][]string, dest interface{}) error {
	if err := c.limiter.Wait(ctx, limiterKey, c.burst, c.rate); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if c.apiKey != "" {
		q[apiKeyParam] = []string{c.apiKey}
	}
	return c.http.GetJSON(ctx, path, q, dest)
}
