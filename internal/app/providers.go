package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/engine"
	"vmpool/internal/infra/catalog"
	"vmpool/internal/infra/httpapi"
	"vmpool/internal/infra/mq"
	"vmpool/internal/infra/stats"
	"vmpool/internal/infra/store/boltstore"
	"vmpool/internal/infra/store/memstore"
	"vmpool/internal/infra/telemetry"
)

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

func NewHealthTracker() *telemetry.HealthTracker {
	return telemetry.NewHealthTracker()
}

// LoadConfig reads and validates the config file named by cfg.
func LoadConfig(ctx context.Context, cfg ServeConfig, logger *zap.Logger) (domain.Config, error) {
	return catalog.NewLoader(logger).Load(ctx, cfg.ConfigPath)
}

func NewRuntimeConfig(cfg domain.Config) domain.RuntimeConfig {
	return cfg.Runtime
}

// NewStore opens the configured store. The cleanup closes it.
func NewStore(runtime domain.RuntimeConfig, logger *zap.Logger) (domain.Store, func(), error) {
	var (
		store domain.Store
		err   error
	)
	switch runtime.Storage.Driver {
	case domain.StorageDriverMemory:
		store = memstore.New()
	case domain.StorageDriverBolt, "":
		path := runtime.Storage.Path
		if path == "" {
			path = domain.DefaultStoragePath
		}
		store, err = boltstore.Open(path)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", runtime.Storage.Driver)
	}
	logger.Info("store opened",
		zap.String("driver", string(runtime.Storage.Driver)),
		zap.String("path", runtime.Storage.Path),
	)
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("store close failed", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

func NewEngine(store domain.Store, runtime domain.RuntimeConfig, metrics domain.Metrics, logger *zap.Logger) *engine.Engine {
	return engine.New(store, engine.Options{
		Logger:      logger,
		Metrics:     metrics,
		LockTimeout: runtime.LockTimeout(),
	})
}

func NewRetryPolicy(runtime domain.RuntimeConfig) engine.RetryPolicy {
	return engine.RetryPolicyFrom(runtime.Retry)
}

func NewReporter(store domain.Store, logger *zap.Logger) *stats.Reporter {
	return stats.NewReporter(store, stats.Options{Logger: logger})
}

func NewHTTPHandler(eng *engine.Engine, reporter *stats.Reporter, retry engine.RetryPolicy, logger *zap.Logger) http.Handler {
	return httpapi.NewHandler(httpapi.Options{
		Engine:   eng,
		Reporter: reporter,
		Retry:    retry,
		Logger:   logger,
	})
}

func NewDispatcher(eng *engine.Engine, retry engine.RetryPolicy, logger *zap.Logger) *mq.Dispatcher {
	return mq.NewDispatcher(eng, retry, logger)
}

func NewWorker(dispatcher *mq.Dispatcher, runtime domain.RuntimeConfig, health *telemetry.HealthTracker, logger *zap.Logger) *mq.Worker {
	return mq.NewWorker(dispatcher, mq.WorkerOptions{
		URL:            runtime.MQ.URL,
		Queue:          runtime.MQ.Queue,
		HandlerTimeout: runtime.MQ.HandlerTimeout(),
		Health:         health,
		Logger:         logger,
	})
}

func NewReloadManager(cfg ServeConfig, config domain.Config, eng *engine.Engine, logger *zap.Logger) *ReloadManager {
	return newReloadManager(cfg.ConfigPath, config, eng, catalog.NewLoader(logger), logger)
}
