//go:build wireinject
// +build wireinject

package di

import (
	"HotelRevenue/pkg/config"
	"HotelRevenue/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideStore,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideEventPublisher,
		ProvideOccupancyModel,

		// Domain services
		ProvideKPICalculator,
		ProvideForecastEngine,
		ProvidePricingEngine,
		ProvideExporter,

		// Use cases and transports
		ProvideRevenueUseCase,
		ProvideStatusConsumer,
		ProvideRunQueue,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
