//go:build wireinject
// +build wireinject

package di

import (
	"AlphaRadar/pkg/config"
	"AlphaRadar/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideClock,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideCoordinator,
		ProvideBlobStore,
		ProvideSignalSource,

		// Use cases
		ProvideHistoryStore,
		ProvideScanArchiver,
		ProvideArchivePipeline,
		ProvideFeedHub,
		ProvideScheduler,
		ProvideStatsService,

		// HTTP
		ProvideLimiter,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
