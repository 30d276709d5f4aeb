package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"AaveRisk/internal/domain"
	"AaveRisk/internal/domain/models"
)

var polygon = models.Market{
	Chain:       "Polygon",
	ChainID:     137,
	RPCProvider: "https://polygon.example",
	Contracts:   models.MarketContracts{PoolAddressesProvider: "0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb"},
}

func TestReserveGatewayGetReserves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/Polygon/reserves" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("poolAddressesProvider") != polygon.Contracts.PoolAddressesProvider {
			t.Fatalf("missing pool addresses provider: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("chainId") != "137" {
			t.Fatalf("unexpected chain id: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"reservesData":[{"id":"r1","underlyingAsset":"0xabc","symbol":"WETH","decimals":18,
			"reserveLiquidationThreshold":"8250","priceInMarketReferenceCurrency":"200000000000","usageAsCollateralEnabled":true}],
			"baseCurrencyData":{"marketReferenceCurrencyDecimals":8,"marketReferenceCurrencyPriceInUsd":"100000000"}}`))
	}))
	defer srv.Close()

	gw := NewReserveGatewayFromURL(srv.URL, time.Second, 1)
	data, err := gw.GetReserves(context.Background(), polygon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Reserves) != 1 || data.Reserves[0].ReserveLiquidationThreshold != "8250" {
		t.Fatalf("unexpected reserves: %+v", data.Reserves)
	}
	if data.BaseCurrency.MarketReferenceCurrencyDecimals != 8 {
		t.Fatalf("unexpected base currency: %+v", data.BaseCurrency)
	}
}

func TestReserveGatewayGetUserPositions(t *testing.T) {
	account := "0x1111111111111111111111111111111111111111"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/Polygon/users/"+account+"/reserves" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"userReserves":[{"underlyingAsset":"0xabc","underlyingBalance":"1.5","variableDebt":"0","stableDebt":"0","usageAsCollateralEnabledOnUser":true}]}`))
	}))
	defer srv.Close()

	gw := NewReserveGatewayFromURL(srv.URL, time.Second, 1)
	pos, err := gw.GetUserPositions(context.Background(), polygon, models.Account{Address: account})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pos) != 1 || pos[0].UnderlyingBalance != "1.5" || !pos[0].UsageAsCollateralEnabledOnUser {
		t.Fatalf("unexpected positions: %+v", pos)
	}
}

func TestReserveGatewayWrapsFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "rpc down", http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := NewReserveGatewayFromURL(srv.URL, time.Second, 2)
	_, err := gw.GetReserves(context.Background(), polygon)
	if !errors.Is(err, domain.ErrCollaborator) {
		t.Fatalf("expected ErrCollaborator, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestReserveGatewayUnconfigured(t *testing.T) {
	gw := NewReserveGatewayFromURL("", time.Second, 1)
	if _, err := gw.GetReserves(context.Background(), polygon); !errors.Is(err, domain.ErrCollaborator) {
		t.Fatalf("expected ErrCollaborator, got %v", err)
	}
}
