//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
)

var CoreInfraSet = wire.NewSet(
	NewLogging,
	NewLogger,
	LoadConfig,
	NewRuntimeConfig,
	NewStore,
	NewMetricsRegistry,
	NewMetrics,
	NewHealthTracker,
)

var EngineSet = wire.NewSet(
	CoreInfraSet,
	NewEngine,
)

var ReporterSet = wire.NewSet(
	CoreInfraSet,
	NewReporter,
)

var WorkerSet = wire.NewSet(
	EngineSet,
	NewRetryPolicy,
	NewDispatcher,
	NewWorker,
)

var AppSet = wire.NewSet(
	WorkerSet,
	NewReporter,
	NewHTTPHandler,
	NewReloadManager,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)
