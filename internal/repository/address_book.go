package repository

import (
	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	"AaveRisk/pkg/config"
)

// StaticAddressBook holds the markets loaded from configuration. It is built
// once and never mutated, so concurrent reads need no locking.
type StaticAddressBook struct {
	version int
	markets []models.Market
	byChain map[string]int
}

var _ domrepo.AddressBook = (*StaticAddressBook)(nil)

func NewStaticAddressBook(version int, markets []models.Market) *StaticAddressBook {
	b := &StaticAddressBook{
		version: version,
		markets: make([]models.Market, len(markets)),
		byChain: make(map[string]int, len(markets)),
	}
	copy(b.markets, markets)
	for i, m := range b.markets {
		b.byChain[m.Chain] = i
	}
	return b
}

// NewAddressBookFromConfig converts the markets section of the config.
func NewAddressBookFromConfig(cfg *config.Config) *StaticAddressBook {
	markets := make([]models.Market, 0, len(cfg.Markets))
	for _, cm := range cfg.Markets {
		m := models.Market{
			Chain:             cm.Chain,
			ChainID:           cm.ChainID,
			RPCProvider:       cm.RPCProvider,
			CoingeckoPlatform: cm.CoingeckoPlatform,
			Contracts: models.MarketContracts{
				PoolAddressesProvider: cm.Contracts.PoolAddressesProvider,
				UIPoolDataProvider:    cm.Contracts.UIPoolDataProvider,
			},
			Assets: make(models.AssetRegistry, 0, len(cm.Assets)),
		}
		for _, a := range cm.Assets {
			m.Assets = append(m.Assets, models.AssetDescriptor{
				Name:       a.Name,
				Underlying: a.Underlying,
				Symbol:     a.Symbol,
				Decimals:   a.Decimals,
			})
		}
		markets = append(markets, m)
	}
	return NewStaticAddressBook(cfg.MarketsVersion, markets)
}

// Market looks a deployment up by its exact chain name.
func (b *StaticAddressBook) Market(chain string) (models.Market, bool) {
	i, ok := b.byChain[chain]
	if !ok {
		return models.Market{}, false
	}
	return b.markets[i], true
}

// Markets returns the deployments in address book order.
func (b *StaticAddressBook) Markets() []models.Market {
	out := make([]models.Market, len(b.markets))
	copy(out, b.markets)
	return out
}

func (b *StaticAddressBook) Version() int { return b.version }
