//go:build wireinject
// +build wireinject

package di

import (
	"TradePulse/pkg/config"
	"TradePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCacheService,
		ProvideBytesCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideStateStore,
		ProvideKlineStore,
		ProvideSignalLog,
		ProvideEventPublisher,
		ProvideThresholdStore,

		// Exchange and notifications
		ProvideExchange,
		ProvideMarketStream,
		ProvideNotifier,

		// Engine
		ProvideThresholds,
		ProvideArbiter,
		ProvideAdminState,
		ProvideExecution,
		ProvideDecisionWorker,
		ProvideBarCloseHandler,
		ProvideBarCollector,

		// HTTP
		ProvideCandlesUseCase,
		ProvideEngineSnapshot,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
