package reserves

import (
	"errors"
	"math"
	"testing"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
)

const (
	weth = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdc = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	wbtc = "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"
)

// USD based market: reference currency has 8 decimals and is worth exactly 1 USD.
func snapshot(positions ...models.RawUserPosition) models.ReserveSnapshot {
	return models.ReserveSnapshot{
		ReservesData: models.ReservesData{
			Reserves: []models.RawReserve{
				{ID: "weth", UnderlyingAsset: weth, Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18,
					ReserveLiquidationThreshold: "8250", PriceInMarketReferenceCurrency: "200000000000", UsageAsCollateralEnabled: true},
				{ID: "usdc", UnderlyingAsset: usdc, Name: "USD Coin", Symbol: "USDC", Decimals: 6,
					ReserveLiquidationThreshold: "7800", PriceInMarketReferenceCurrency: "100000000", UsageAsCollateralEnabled: true},
				{ID: "wbtc", UnderlyingAsset: wbtc, Name: "Wrapped BTC", Symbol: "WBTC", Decimals: 8,
					ReserveLiquidationThreshold: "7800", PriceInMarketReferenceCurrency: "6000000000000", UsageAsCollateralEnabled: true},
			},
			BaseCurrency: models.BaseCurrency{
				MarketReferenceCurrencyDecimals:   8,
				MarketReferenceCurrencyPriceInUSD: "100000000",
			},
		},
		Positions: positions,
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestClassifyPartitions(t *testing.T) {
	s := snapshot(
		models.RawUserPosition{UnderlyingAsset: weth, UnderlyingBalance: "1.5", UsageAsCollateralEnabledOnUser: true},
		models.RawUserPosition{UnderlyingAsset: usdc, UnderlyingBalance: "0", VariableDebt: "900", StableDebt: "100"},
		// balance but collateral disabled: neither bucket
		models.RawUserPosition{UnderlyingAsset: wbtc, UnderlyingBalance: "0.1", UsageAsCollateralEnabledOnUser: false},
	)
	got, err := NewClassifier().Classify(s)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(got.Borrow) != 1 || got.Borrow[0].Symbol != "USDC" {
		t.Fatalf("unexpected borrow bucket %+v", got.Borrow)
	}
	if len(got.Collateral) != 1 || got.Collateral[0].Symbol != "WETH" {
		t.Fatalf("unexpected collateral bucket %+v", got.Collateral)
	}
	if !near(got.TotalBorrowsUSD, 1000) {
		t.Fatalf("total borrows usd=%v", got.TotalBorrowsUSD)
	}
	c := got.Collateral[0]
	if !near(c.PriceUSD, 2000) || !near(c.UnderlyingBalanceUSD, 3000) || !near(c.LiquidationThreshold, 0.825) {
		t.Fatalf("unexpected normalization %+v", c)
	}
	if got.Borrow[0].TotalBorrows != 1000 {
		t.Fatalf("total borrows=%v", got.Borrow[0].TotalBorrows)
	}
}

func TestClassifyDebtWinsOverCollateral(t *testing.T) {
	s := snapshot(models.RawUserPosition{
		UnderlyingAsset: weth, UnderlyingBalance: "2", VariableDebt: "0.5", UsageAsCollateralEnabledOnUser: true,
	})
	got, err := NewClassifier().Classify(s)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(got.Borrow) != 1 || len(got.Collateral) != 0 {
		t.Fatalf("position must be borrow only: borrow=%d collateral=%d", len(got.Borrow), len(got.Collateral))
	}
	if !near(got.TotalBorrowsUSD, 1000) {
		t.Fatalf("total borrows usd=%v", got.TotalBorrowsUSD)
	}
}

func TestClassifyEachPositionInAtMostOneBucket(t *testing.T) {
	cases := []models.RawUserPosition{
		{UnderlyingAsset: weth},
		{UnderlyingAsset: weth, UnderlyingBalance: "1"},
		{UnderlyingAsset: weth, UnderlyingBalance: "1", UsageAsCollateralEnabledOnUser: true},
		{UnderlyingAsset: weth, StableDebt: "1"},
		{UnderlyingAsset: weth, UnderlyingBalance: "1", StableDebt: "1", UsageAsCollateralEnabledOnUser: true},
	}
	for i, p := range cases {
		got, err := NewClassifier().Classify(snapshot(p))
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if n := len(got.Borrow) + len(got.Collateral); n > 1 {
			t.Fatalf("case %d: position in %d buckets", i, n)
		}
	}
}

func TestClassifyReferenceCurrencyConversion(t *testing.T) {
	// ETH based market: reference currency 18 decimals worth 2000 USD.
	s := models.ReserveSnapshot{
		ReservesData: models.ReservesData{
			Reserves: []models.RawReserve{{ID: "usdc", UnderlyingAsset: usdc, Symbol: "USDC",
				ReserveLiquidationThreshold: "8000", PriceInMarketReferenceCurrency: "500000000000000"}},
			BaseCurrency: models.BaseCurrency{MarketReferenceCurrencyDecimals: 18, MarketReferenceCurrencyPriceInUSD: "200000000000"},
		},
		Positions: []models.RawUserPosition{{UnderlyingAsset: usdc, VariableDebt: "10"}},
	}
	got, err := NewClassifier().Classify(s)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !near(got.Borrow[0].PriceUSD, 1) || !near(got.TotalBorrowsUSD, 10) {
		t.Fatalf("unexpected conversion %+v", got.Borrow[0])
	}
}

func TestClassifyAddressJoinIsCaseInsensitive(t *testing.T) {
	s := snapshot(models.RawUserPosition{UnderlyingAsset: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", UnderlyingBalance: "1", UsageAsCollateralEnabledOnUser: true})
	got, err := NewClassifier().Classify(s)
	if err != nil || len(got.Collateral) != 1 {
		t.Fatalf("expected one collateral, got %+v err=%v", got, err)
	}
}

func TestClassifyMalformedInput(t *testing.T) {
	cases := map[string]models.ReserveSnapshot{
		"unknown reserve": snapshot(models.RawUserPosition{UnderlyingAsset: "0xdead", UnderlyingBalance: "1"}),
		"bad number":      snapshot(models.RawUserPosition{UnderlyingAsset: weth, UnderlyingBalance: "1.2.3"}),
	}
	for name, s := range cases {
		_, err := NewClassifier().Classify(s)
		if !errors.Is(err, domain.ErrCollaborator) {
			t.Fatalf("%s: expected collaborator error, got %v", name, err)
		}
	}
}
