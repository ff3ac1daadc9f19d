package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/engine"
	"vmpool/internal/infra/httpapi"
	"vmpool/internal/infra/mq"
	"vmpool/internal/infra/telemetry"
)

const defaultStoreProbeInterval = 10 * time.Second

// Application wires the serve runtime and its dependencies.
type Application struct {
	ctx        context.Context
	configPath string
	withWorker bool

	logger   *zap.Logger
	config   domain.Config
	registry *prometheus.Registry
	health   *telemetry.HealthTracker
	store    domain.Store
	engine   *engine.Engine
	api      http.Handler
	worker   *mq.Worker
	reload   *ReloadManager
}

// ApplicationOptions captures dependencies and settings for Application.
type ApplicationOptions struct {
	Context       context.Context
	ServeConfig   ServeConfig
	Logger        *zap.Logger
	Config        domain.Config
	Registry      *prometheus.Registry
	Health        *telemetry.HealthTracker
	Store         domain.Store
	Engine        *engine.Engine
	API           http.Handler
	Worker        *mq.Worker
	ReloadManager *ReloadManager
}

// NewApplication constructs the serve runtime.
func NewApplication(opts ApplicationOptions) *Application {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Application{
		ctx:        ctx,
		configPath: opts.ServeConfig.ConfigPath,
		withWorker: opts.ServeConfig.WithWorker,
		logger:     opts.Logger,
		config:     opts.Config,
		registry:   opts.Registry,
		health:     opts.Health,
		store:      opts.Store,
		engine:     opts.Engine,
		api:        opts.API,
		worker:     opts.Worker,
		reload:     opts.ReloadManager,
	}
}

// Run seeds the configured pools, starts every listener and blocks until the
// context is done or a listener fails.
func (a *Application) Run() error {
	runtime := a.config.Runtime
	a.logger.Info("configuration loaded",
		zap.String("config", a.configPath),
		zap.Int("pools", len(a.config.Pools)),
		zap.String("storage", string(runtime.Storage.Driver)),
	)

	summary, err := a.engine.UpsertPools(a.ctx, a.config.Pools)
	if err != nil {
		return err
	}
	a.logger.Info("pools seeded",
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("unchanged", summary.Unchanged),
	)

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()

	if a.reload != nil {
		if err := a.reload.Start(ctx); err != nil {
			a.logger.Warn("reload manager start failed", zap.Error(err))
		}
	}

	var (
		wg   sync.WaitGroup
		once sync.Once
		fail error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("component stopped", zap.String("component", name), zap.Error(err))
				once.Do(func() { fail = err })
				cancel()
			}
		}()
	}

	run("observability", func(ctx context.Context) error {
		return telemetry.StartHTTPServer(ctx, telemetry.HTTPServerOptions{
			Addr:          runtime.Observability.ListenAddress,
			EnableMetrics: runtime.Observability.Metrics,
			EnableHealthz: runtime.Observability.Healthz,
			Health:        a.health,
			Registry:      a.registry,
		}, a.logger)
	})
	run("store-probe", a.probeStore)
	if a.withWorker && a.worker != nil {
		run("mq-worker", a.worker.Run)
	}
	run("http", func(ctx context.Context) error {
		return httpapi.Serve(ctx, runtime.HTTP.ListenAddress, a.api, a.logger)
	})

	wg.Wait()
	return fail
}

// probeStore reports the store as healthy while a cheap read succeeds.
func (a *Application) probeStore(ctx context.Context) error {
	if a.health == nil {
		return nil
	}
	beat := a.health.Register("store", 3*defaultStoreProbeInterval)
	defer a.health.Unregister("store")

	probe := func() {
		if _, err := a.store.ListPools(ctx); err != nil {
			if ctx.Err() == nil {
				a.logger.Warn("store probe failed", zap.Error(err))
			}
			return
		}
		beat.Beat()
	}
	probe()
	ticker := time.NewTicker(defaultStoreProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			probe()
		}
	}
}
