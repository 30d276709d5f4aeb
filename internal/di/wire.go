//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"AaveRisk/pkg/config"
	"AaveRisk/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvidePostgresClient,
		ProvideRedisCache,
		ProvideLayeredCache,
		ProvideKafkaConsumer,

		// Repositories and collaborators
		ProvideSeriesStore,
		ProvideMarketRegistry,
		ProvideAddressBook,
		ProvideReserveGateway,
		ProvideCoinCatalogue,

		// Use cases
		ProvideCandleSink,
		ProvideKafkaCandlesHandler,
		ProvideBandUseCase,
		ProvideMarketStatusUseCase,
		ProvideOHLCIngestion,
		ProvideHistoricalPricesUseCase,
		ProvideRefreshQueue,
		ProvideMarketRefresher,
		ProvideScheduler,

		// HTTP
		ProvideAaveMarketsHandler,
		ProvideHistoricalPricesHandler,
		ProvideIngestionHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
