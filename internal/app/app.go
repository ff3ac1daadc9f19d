// Package app wires configuration, storage, the engine and the transports
// into the vmpoold commands.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/engine"
	"vmpool/internal/infra/catalog"
	"vmpool/internal/infra/stats"
)

type App struct {
	logger *zap.Logger
}

type ServeConfig struct {
	ConfigPath string
	// WithWorker also consumes the MQ command queue inside the serve process,
	// sharing its pool locks.
	WithWorker bool
}

type ValidateConfig struct {
	ConfigPath string
}

type ImportConfig struct {
	ConfigPath string
	File       string
	// Format is csv, yaml or toml; empty selects it from the file extension.
	Format string
}

type ExportConfig struct {
	ConfigPath  string
	Format      catalog.ExportFormat
	OnlyEnabled bool
	Out         io.Writer
}

type StatsReport string

const (
	ReportPools       StatsReport = "pools"
	ReportUsers       StatsReport = "users"
	ReportBottlenecks StatsReport = "bottlenecks"
	ReportTop         StatsReport = "top"
	ReportMaxUsage    StatsReport = "max-usage"
)

type StatsConfig struct {
	ConfigPath string
	Report     StatsReport
	Start      time.Time
	End        time.Time
	Interval   time.Duration
	// Threshold is nil when the default applies.
	Threshold *float64
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger: logger,
	}
}

func (a *App) logging() LoggingConfig {
	return LoggingConfig{Logger: a.logger}
}

func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	application, cleanup, err := InitializeApplication(ctx, cfg, a.logging())
	if err != nil {
		return err
	}
	defer cleanup()
	return application.Run()
}

func (a *App) Worker(ctx context.Context, cfg ServeConfig) error {
	worker, cleanup, err := InitializeWorker(ctx, cfg, a.logging())
	if err != nil {
		return err
	}
	defer cleanup()
	return worker.Run(ctx)
}

func (a *App) ValidateConfig(ctx context.Context, cfg ValidateConfig) error {
	config, err := catalog.NewLoader(a.logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration validated",
		zap.String("config", cfg.ConfigPath),
		zap.Int("pools", len(config.Pools)),
		zap.String("storage", string(config.Runtime.Storage.Driver)),
	)
	return nil
}

// ImportPools reads pool definitions from a CSV, YAML or TOML file and
// upserts them into the configured store.
func (a *App) ImportPools(ctx context.Context, cfg ImportConfig) (engine.UpsertSummary, error) {
	pools, err := readPoolFile(cfg.File, cfg.Format)
	if err != nil {
		return engine.UpsertSummary{}, err
	}
	eng, cleanup, err := InitializeEngine(ctx, ServeConfig{ConfigPath: cfg.ConfigPath}, a.logging())
	if err != nil {
		return engine.UpsertSummary{}, err
	}
	defer cleanup()

	summary, err := eng.UpsertPools(ctx, pools)
	if err != nil {
		return summary, err
	}
	a.logger.Info("pools imported",
		zap.String("file", cfg.File),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("unchanged", summary.Unchanged),
	)
	return summary, nil
}

func readPoolFile(path, format string) ([]domain.Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pool file: %w", err)
	}
	defer f.Close()

	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	if strings.EqualFold(format, "csv") {
		return catalog.ParsePoolsCSV(f)
	}
	exportFormat, err := catalog.ParseExportFormat(format)
	if err != nil {
		return nil, err
	}
	return catalog.DecodePools(f, exportFormat)
}

func (a *App) ExportPools(ctx context.Context, cfg ExportConfig) error {
	eng, cleanup, err := InitializeEngine(ctx, ServeConfig{ConfigPath: cfg.ConfigPath}, a.logging())
	if err != nil {
		return err
	}
	defer cleanup()

	pools, err := eng.ListPools(ctx, cfg.OnlyEnabled)
	if err != nil {
		return err
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return catalog.ExportPools(out, pools, cfg.Format)
}

// Stats runs one report against the configured store.
func (a *App) Stats(ctx context.Context, cfg StatsConfig) (any, error) {
	reporter, cleanup, err := InitializeReporter(ctx, ServeConfig{ConfigPath: cfg.ConfigPath}, a.logging())
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return runReport(ctx, reporter, cfg)
}

func runReport(ctx context.Context, reporter *stats.Reporter, cfg StatsConfig) (any, error) {
	query := stats.BottleneckQuery{Start: cfg.Start, End: cfg.End, Interval: cfg.Interval, Threshold: cfg.Threshold}
	switch cfg.Report {
	case ReportPools:
		return reporter.MostReservedPools(ctx, cfg.Start, cfg.End)
	case ReportUsers:
		return reporter.UserReservationTime(ctx, cfg.Start, cfg.End)
	case ReportBottlenecks:
		return reporter.PoolBottlenecks(ctx, query)
	case ReportTop:
		return reporter.TopBottleneckedPools(ctx, query)
	case ReportMaxUsage:
		return reporter.MaximumUsage(ctx, cfg.Start, cfg.End)
	default:
		return nil, fmt.Errorf("unknown report %q (want pools, users, bottlenecks, top or max-usage)", cfg.Report)
	}
}
