//go:build wireinject
// +build wireinject

package di

import (
	"MT5Pull/pkg/config"
	"MT5Pull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideClock,

		// Terminal session
		ProvideSessionProvider,
		ProvideSessionManager,

		// Delta
		ProvideEstimator,
		ProvideRefresher,

		// Infrastructure
		ProvideCache,
		ProvideArchiver,

		// Use cases
		ProvideCandleService,
		ProvideStatusReporter,
		ProvideFrontend,

		// HTTP
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
