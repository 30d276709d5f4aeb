package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	"AaveRisk/pkg/cache"
	xhttp "AaveRisk/pkg/http"
)

const coinsListBody = `[
 {"id":"weth","symbol":"weth","name":"WETH","platforms":{"ethereum":"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"}},
 {"id":"usd-coin","symbol":"usdc","name":"USDC","platforms":{"polygon-pos":"0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"}}
]`

func newTestClient(t *testing.T, h http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := xhttp.NewClient(xhttp.WithBaseURL(srv.URL), xhttp.WithRetry(3, time.Millisecond))
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	opts = append([]Option{WithRateLimit(1000, 100)}, opts...)
	return New(hc, mem, nil, opts...), srv
}

func TestListCoinsIsCached(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/coins/list" || r.URL.Query().Get("include_platform") != "true" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(coinsListBody))
	}))

	for i := 0; i < 3; i++ {
		coins, err := c.ListCoins(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(coins) != 2 {
			t.Fatalf("expected 2 coins, got %d", len(coins))
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}

	if _, err := c.RefreshCoins(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected refresh to refetch, got %d calls", got)
	}
}

func TestFindCoinByAddressIsCaseInsensitive(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(coinsListBody))
	}))

	coin, err := c.FindCoinByAddress(context.Background(), "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", "Ethereum")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coin.ID != "weth" {
		t.Fatalf("expected weth, got %s", coin.ID)
	}

	_, err = c.FindCoinByAddress(context.Background(), "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", "polygon-pos")
	if !errors.Is(err, domain.ErrCoinNotFound) {
		t.Fatalf("expected ErrCoinNotFound, got %v", err)
	}
}

func TestFindCoinByAddressCachesMatches(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(coinsListBody))
	}))
	ctx := context.Background()
	addr := "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

	if _, err := c.FindCoinByAddress(ctx, addr, "ethereum"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// the list entry is gone but the resolved id is still served
	if err := c.cache.Delete(ctx, CoinsListCacheKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	coin, err := c.FindCoinByAddress(ctx, addr, "ethereum")
	if err != nil || coin.ID != "weth" {
		t.Fatalf("expected cached weth, got %+v (%v)", coin, err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}

	if _, err := c.RefreshCoins(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ok, _ := c.cache.Exists(ctx, "coingecko:coin:ethereum:0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"); ok {
		t.Fatalf("expected refresh to drop resolved ids")
	}
}

func TestGetMarketChartSendsParamsAndKey(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/coins/weth/market_chart" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q.Get("vs_currency") != "usd" || q.Get("days") != "2" || q.Get("interval") != "daily" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("x_cg_demo_api_key") != "demo" {
			t.Errorf("missing api key")
		}
		_, _ = w.Write([]byte(`{"prices":[[1700000000000,2000.5],[1700086400000,2100]],"market_caps":[],"total_volumes":[[1700000000000,1e9]]}`))
	}), WithAPIKey("demo"))

	chart, err := c.GetMarketChart(context.Background(), "weth", models.MarketChartParams{Days: 2, Interval: "daily"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chart.Prices) != 2 || chart.Prices[1].Value() != 2100 {
		t.Fatalf("unexpected prices: %+v", chart.Prices)
	}
	if chart.TotalVolumes[0].Value() != 1e9 {
		t.Fatalf("unexpected volume: %+v", chart.TotalVolumes)
	}
}

func TestGetMarketChartRetriesRateLimit(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"prices":[[1,1],[2,2]]}`))
	}))

	if _, err := c.GetMarketChart(context.Background(), "weth", models.MarketChartParams{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a retry, got %d calls", calls)
	}
}

func TestGetMarketChartNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	_, err := c.GetMarketChart(context.Background(), "nope", models.MarketChartParams{})
	if !errors.Is(err, domain.ErrCoinNotFound) {
		t.Fatalf("expected ErrCoinNotFound, got %v", err)
	}
}
