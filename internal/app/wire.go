//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"vmpool/internal/engine"
	"vmpool/internal/infra/mq"
	"vmpool/internal/infra/stats"
)

func InitializeApplication(ctx context.Context, cfg ServeConfig, logging LoggingConfig) (*Application, func(), error) {
	wire.Build(AppSet)
	return nil, nil, nil
}

func InitializeWorker(ctx context.Context, cfg ServeConfig, logging LoggingConfig) (*mq.Worker, func(), error) {
	wire.Build(WorkerSet)
	return nil, nil, nil
}

func InitializeEngine(ctx context.Context, cfg ServeConfig, logging LoggingConfig) (*engine.Engine, func(), error) {
	wire.Build(EngineSet)
	return nil, nil, nil
}

func InitializeReporter(ctx context.Context, cfg ServeConfig, logging LoggingConfig) (*stats.Reporter, func(), error) {
	wire.Build(ReporterSet)
	return nil, nil, nil
}
