package models

import (
	"strings"
	"time"
)

// Market identifies one Aave v3 deployment. Loaded once from the address book
// and never mutated afterwards.
type Market struct {
	Chain             string          `json:"chain" yaml:"chain"`
	ChainID           int64           `json:"chainId" yaml:"chain_id"`
	RPCProvider       string          `json:"rpcProvider" yaml:"rpc_provider"`
	CoingeckoPlatform string          `json:"coingeckoPlatform,omitempty" yaml:"coingecko_platform"`
	Contracts         MarketContracts `json:"contracts" yaml:"contracts"`
	Assets            AssetRegistry   `json:"assets" yaml:"assets"`
}

// MarketContracts is the contract address bundle of a deployment.
type MarketContracts struct {
	PoolAddressesProvider string `json:"poolAddressesProvider" yaml:"pool_addresses_provider"`
	UIPoolDataProvider    string `json:"uiPoolDataProvider,omitempty" yaml:"ui_pool_data_provider"`
}

// AssetDescriptor is one listed reserve of a market.
type AssetDescriptor struct {
	Name       string `json:"name" yaml:"name"`
	Underlying string `json:"underlying" yaml:"underlying"`
	Symbol     string `json:"symbol" yaml:"symbol"`
	Decimals   int    `json:"decimals" yaml:"decimals"`
}

// AssetRegistry keeps the address book order of a market's assets.
type AssetRegistry []AssetDescriptor

// ByName returns the descriptor registered under a symbolic name (e.g. "WETH").
func (r AssetRegistry) ByName(name string) (AssetDescriptor, bool) {
	for _, a := range r {
		if a.Name == name {
			return a, true
		}
	}
	return AssetDescriptor{}, false
}

// ByUnderlying matches the underlying address case-insensitively.
func (r AssetRegistry) ByUnderlying(address string) (AssetDescriptor, bool) {
	for _, a := range r {
		if strings.EqualFold(a.Underlying, address) {
			return a, true
		}
	}
	return AssetDescriptor{}, false
}

// RegisteredMarket is a row of the persisted market registry.
type RegisteredMarket struct {
	Chain         string    `json:"chain"`
	RPCProvider   string    `json:"rpcProvider,omitempty"`
	CoingeckoName string    `json:"coingeckoName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Account is an address under analysis.
type Account struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

// MarketSummary is one entry of the merged registry and address book listing.
type MarketSummary struct {
	Chain             string `json:"chain"`
	ChainID           int64  `json:"chainId,omitempty"`
	CoingeckoPlatform string `json:"coingeckoPlatform,omitempty"`
	Registered        bool   `json:"registered"`
	Configured        bool   `json:"configured"`
	AssetCount        int    `json:"assetCount"`
}
