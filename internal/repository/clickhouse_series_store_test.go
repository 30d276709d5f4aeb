package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	pkgch "AaveRisk/pkg/clickhouse"
)

const weth = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"

var candleCols = []string{"address", "chain_id", "open", "high", "low", "close", "volume", "timestamp"}

func newMockStore(t *testing.T) (*CHSeriesStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCHSeriesStore(pkgch.NewClientFromDB(db), "aaverisk", "ohlc_prices"), mock
}

func TestBuildSeriesSQLDefaultsToDescending(t *testing.T) {
	q := domrepo.NewSeriesQuery(weth, 1).Limit(10)
	sqlText, args := buildSeriesSQL("aaverisk.ohlc_prices", q)
	if !strings.HasSuffix(sqlText, "ORDER BY timestamp DESC LIMIT ?") {
		t.Fatalf("unexpected sql: %s", sqlText)
	}
	if strings.Contains(sqlText, "SELECT * FROM (") {
		t.Fatalf("did not expect a subquery: %s", sqlText)
	}
	if len(args) != 3 || args[2] != 10 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuildSeriesSQLNewestAscendingUsesSubquery(t *testing.T) {
	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	q := domrepo.NewSeriesQuery(weth, 1).Before(cutoff).Order(domrepo.Ascending).Keeping(domrepo.KeepNewest).Limit(20)
	sqlText, args := buildSeriesSQL("aaverisk.ohlc_prices", q)
	want := "SELECT * FROM (SELECT address, chain_id, open, high, low, close, volume, timestamp FROM aaverisk.ohlc_prices FINAL " +
		"WHERE address = ? AND chain_id = ? AND timestamp < ? ORDER BY timestamp DESC LIMIT ?) ORDER BY timestamp ASC"
	if sqlText != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", sqlText, want)
	}
	if args[2] != cutoff || args[3] != 20 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuildAggregateSQLMonthlyWindow(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	q := domrepo.MonthlyWindow(weth, 137, now, 20)
	sqlText, args := buildAggregateSQL("aaverisk.ohlc_prices", q)
	for _, want := range []string{
		"toDateTime(toStartOfMonth(timestamp), 'UTC') AS bucket",
		"argMin(open, timestamp) AS o",
		"argMax(close, timestamp) AS c",
		"GROUP BY address, chain_id, bucket",
		"ORDER BY timestamp DESC LIMIT ?) ORDER BY timestamp ASC",
	} {
		if !strings.Contains(sqlText, want) {
			t.Fatalf("sql missing %q:\n%s", want, sqlText)
		}
	}
	if args[2] != time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("expected cutoff at start of month, got %v", args[2])
	}
}

func TestBucketExprCoversIntervals(t *testing.T) {
	seen := map[string]bool{}
	for _, iv := range []domrepo.Interval{
		domrepo.Interval1m, domrepo.Interval5m, domrepo.Interval15m, domrepo.Interval1h,
		domrepo.Interval4h, domrepo.Interval1d, domrepo.Interval1w, domrepo.Interval1M,
	} {
		e := bucketExpr(iv)
		if seen[e] {
			t.Fatalf("interval %s shares bucket expression %s", iv, e)
		}
		seen[e] = true
	}
}

func TestQueryCandles(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM aaverisk.ohlc_prices FINAL WHERE address = ? AND chain_id = ?")).
		WithArgs(weth, uint64(1), 5).
		WillReturnRows(sqlmock.NewRows(candleCols).
			AddRow(weth, int64(1), 1.0, 2.0, 0.5, 1.5, 10.0, ts))

	out, err := store.QueryCandles(context.Background(), domrepo.NewSeriesQuery(strings.ToUpper(weth[:2])+weth[2:], 1).Limit(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Close != 1.5 || out[0].ChainID != 1 || !out[0].Timestamp.Equal(ts) {
		t.Fatalf("unexpected candles: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQueryCandlesRejectsInvalidQuery(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.QueryCandles(context.Background(), domrepo.NewSeriesQuery("", 1))
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestLatestCandleEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("ORDER BY timestamp DESC LIMIT").
		WithArgs(weth, uint64(1), 1).
		WillReturnRows(sqlmock.NewRows(candleCols))

	c, err := store.LatestCandle(context.Background(), weth, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil candle, got %+v", c)
	}
}

func TestInsertCandlesNormalizes(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.FixedZone("UTC+2", 7200))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO aaverisk.ohlc_prices (address, chain_id, open, high, low, close, volume, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?),(?, ?, ?, ?, ?, ?, ?, ?)")).
		WithArgs(weth, uint64(1), 1.0, 1.0, 1.0, 1.0, 0.0, ts.UTC(),
			weth, uint64(1), 2.0, 2.0, 2.0, 2.0, 0.0, ts.UTC().Add(24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.InsertCandles(context.Background(), []models.Candle{
		{Address: strings.ToUpper(weth), ChainID: 1, Open: 1, High: 1, Low: 1, Close: 1, Timestamp: ts},
		{Address: weth, ChainID: 1, Open: 2, High: 2, Low: 2, Close: 2, Timestamp: ts.Add(24 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertCandlesError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("connection reset"))
	if err := store.InsertCandle(context.Background(), models.Candle{Address: weth, ChainID: 1, Close: 1}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPriceStats(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT argMin\\(open, timestamp\\)").
		WithArgs(weth, uint64(1), from, to).
		WillReturnRows(sqlmock.NewRows([]string{"f", "l", "h", "lo", "v", "n"}).
			AddRow(100.0, 110.0, 120.0, 90.0, 5000.0, int64(31)))

	st, err := store.PriceStats(context.Background(), weth, 1, from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.PriceChange != 10 || st.PriceChangePercent != 10 || st.Count != 31 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestPriceStatsEmptyRange(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT argMin").
		WillReturnRows(sqlmock.NewRows([]string{"f", "l", "h", "lo", "v", "n"}).
			AddRow(0.0, 0.0, 0.0, 0.0, 0.0, int64(0)))

	st, err := store.PriceStats(context.Background(), weth, 1, time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil stats, got %+v", st)
	}
}

func TestInitRunsSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS aaverisk").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS aaverisk.ohlc_prices").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
