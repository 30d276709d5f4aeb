package repository

import (
	"testing"

	"AaveRisk/pkg/config"
)

func TestAddressBookFromConfig(t *testing.T) {
	cfg := &config.Config{MarketsVersion: 3}
	m := config.Market{Chain: "Polygon", ChainID: 137, CoingeckoPlatform: "polygon-pos"}
	m.Contracts.PoolAddressesProvider = "0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb"
	m.Assets = []config.Asset{
		{Name: "WETH", Underlying: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Symbol: "WETH", Decimals: 18},
		{Name: "USDC", Underlying: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Symbol: "USDC", Decimals: 6},
	}
	cfg.Markets = []config.Market{m}

	book := NewAddressBookFromConfig(cfg)
	if book.Version() != 3 {
		t.Fatalf("expected version 3, got %d", book.Version())
	}
	got, ok := book.Market("Polygon")
	if !ok {
		t.Fatalf("expected Polygon market")
	}
	if got.Contracts.PoolAddressesProvider != m.Contracts.PoolAddressesProvider || got.CoingeckoPlatform != "polygon-pos" {
		t.Fatalf("unexpected market: %+v", got)
	}
	if len(got.Assets) != 2 || got.Assets[0].Name != "WETH" || got.Assets[1].Decimals != 6 {
		t.Fatalf("unexpected assets: %+v", got.Assets)
	}
	if _, ok := got.Assets.ByUnderlying("0x7CEB23FD6BC0ADD59E62AC25578270CFF1B9F619"); !ok {
		t.Fatalf("expected case-insensitive underlying lookup")
	}
	if _, ok := book.Market("polygon"); ok {
		t.Fatalf("chain lookup must be case-sensitive")
	}
}

func TestAddressBookMarketsIsACopy(t *testing.T) {
	book := NewAddressBookFromConfig(&config.Config{Markets: []config.Market{{Chain: "Base", ChainID: 8453}}})
	ms := book.Markets()
	ms[0].Chain = "mutated"
	if _, ok := book.Market("Base"); !ok {
		t.Fatalf("address book must not be mutated through Markets()")
	}
	if book.Markets()[0].Chain != "Base" {
		t.Fatalf("expected original chain name")
	}
}
