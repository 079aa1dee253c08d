//go:build wireinject
// +build wireinject

package di

import (
	"FinLab/pkg/config"
	"FinLab/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvidePostgresClient,
		ProvideSetCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Pipeline
		ProvideSetLoader,
		ProvideRegistry,
		ProvideCalendar,
		ProvideBuilder,
		ProvideResolver,
		ProvideBarStore,
		ProvidePipeline,
		ProvideReportPublisher,
		ProvideBatchRunner,

		// Intake
		ProvideRunHandler,
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeBatch wires the pipeline and batch runner without the HTTP and
// consumer intake, for command-line sweeps.
func InitializeBatch(cfg *config.Config) (*Batch, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvidePostgresClient,
		ProvideSetCache,
		ProvideKafkaProducer,
		ProvideSetLoader,
		ProvideRegistry,
		ProvideCalendar,
		ProvideBuilder,
		ProvideResolver,
		ProvideBarStore,
		ProvidePipeline,
		ProvideReportPublisher,
		ProvideBatchRunner,
		ProvideBatch,
	)
	return &Batch{}, nil
}
