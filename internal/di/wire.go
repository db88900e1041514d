//go:build wireinject
// +build wireinject

package di

import (
	"FinEdge/pkg/config"
	"FinEdge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideCHStore,
		ProvideSignalStore,
		ProvideArmStore,
		ProvideAsyncGateway,
		ProvideEventPublisher,
		ProvideAnalyticsCache,

		// Engines and use cases
		ProvideFeatureEngine,
		ProvideOrchestrator,
		ProvidePositionEngine,
		ProvideTradingEngine,
		ProvidePipeline,
		ProvideMarketCollector,
		ProvideKafkaTicksHandler,

		// Transport
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
