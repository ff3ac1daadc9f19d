// Package catalog reads vmpool configuration files and converts pool
// definitions between the config, CSV and export formats.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"vmpool/internal/domain"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setRuntimeDefaults(v)
	return v
}

func setRuntimeDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", string(domain.DefaultStorageDriver))
	v.SetDefault("storage.path", domain.DefaultStoragePath)
	v.SetDefault("lockTimeoutMillis", domain.DefaultLockTimeoutMillis)
	v.SetDefault("retry.attempts", domain.DefaultRetryAttempts)
	v.SetDefault("retry.backoffMillis", domain.DefaultRetryBackoffMillis)
	v.SetDefault("http.listenAddress", domain.DefaultHTTPListenAddress)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("observability.metrics", true)
	v.SetDefault("observability.healthz", true)
	v.SetDefault("mq.url", domain.DefaultMQURL)
	v.SetDefault("mq.queue", domain.DefaultMQQueue)
	v.SetDefault("mq.handlerTimeoutSeconds", domain.DefaultMQHandlerTimeoutSeconds)
}

type rawConfig struct {
	Pools            []rawPool `mapstructure:"pools"`
	rawRuntimeConfig `mapstructure:",squash"`
}

type rawRuntimeConfig struct {
	Storage           rawStorageConfig       `mapstructure:"storage"`
	LockTimeoutMillis int                    `mapstructure:"lockTimeoutMillis"`
	Retry             rawRetryConfig         `mapstructure:"retry"`
	HTTP              rawHTTPConfig          `mapstructure:"http"`
	Observability     rawObservabilityConfig `mapstructure:"observability"`
	MQ                rawMQConfig            `mapstructure:"mq"`
}

type rawStorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type rawRetryConfig struct {
	Attempts      int `mapstructure:"attempts"`
	BackoffMillis int `mapstructure:"backoffMillis"`
}

type rawHTTPConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
	Metrics       bool   `mapstructure:"metrics"`
	Healthz       bool   `mapstructure:"healthz"`
}

type rawMQConfig struct {
	URL                   string `mapstructure:"url"`
	Queue                 string `mapstructure:"queue"`
	HandlerTimeoutSeconds int    `mapstructure:"handlerTimeoutSeconds"`
}

type rawPool struct {
	ID                string        `mapstructure:"id"`
	DisplayName       string        `mapstructure:"displayName"`
	MaximumCount      int           `mapstructure:"maximumCount"`
	Enabled           bool          `mapstructure:"enabled"`
	Description       string        `mapstructure:"description"`
	OSName            string        `mapstructure:"osName"`
	InstalledSoftware []rawSoftware `mapstructure:"installedSoftware"`
}

type rawSoftware struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Load reads the config file at path: runtime settings plus the seed pools.
// Every validation problem is reported in a single error.
func (l *Loader) Load(ctx context.Context, path string) (domain.Config, error) {
	raw, err := l.read(path)
	if err != nil {
		return domain.Config{}, err
	}

	v := newConfigViper()
	if err := v.ReadConfig(bytes.NewBufferString(raw)); err != nil {
		return domain.Config{}, fmt.Errorf("parse config: %w", err)
	}
	var cfg rawConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Config{}, err
	}

	runtime, validationErrors := normalizeRuntimeConfig(cfg.rawRuntimeConfig)
	pools, poolErrors := normalizePools(cfg.Pools)
	validationErrors = append(validationErrors, poolErrors...)
	if len(validationErrors) > 0 {
		return domain.Config{}, errors.New(strings.Join(validationErrors, "; "))
	}
	return domain.Config{Runtime: runtime, Pools: pools}, nil
}

func (l *Loader) read(path string) (string, error) {
	if path == "" {
		return "", errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	expanded, unset, err := expandConfigEnv(data)
	if err != nil {
		return "", err
	}
	for _, env := range unset {
		l.logger.Warn("config references unset environment variable",
			zap.String("path", path),
			zap.String("variable", env.Name),
			zap.Strings("keys", env.Keys),
		)
	}
	return string(expanded), nil
}

func normalizeRuntimeConfig(raw rawRuntimeConfig) (domain.RuntimeConfig, []string) {
	var errs []string

	driver := domain.StorageDriver(strings.ToLower(strings.TrimSpace(raw.Storage.Driver)))
	switch driver {
	case domain.StorageDriverBolt:
		if strings.TrimSpace(raw.Storage.Path) == "" {
			errs = append(errs, "storage.path is required for the bolt driver")
		}
	case domain.StorageDriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("storage.driver must be %s or %s", domain.StorageDriverBolt, domain.StorageDriverMemory))
	}
	if raw.LockTimeoutMillis <= 0 {
		errs = append(errs, "lockTimeoutMillis must be > 0")
	}
	if raw.Retry.Attempts < 1 {
		errs = append(errs, "retry.attempts must be >= 1")
	}
	if raw.Retry.BackoffMillis < 0 {
		errs = append(errs, "retry.backoffMillis must be >= 0")
	}
	if strings.TrimSpace(raw.HTTP.ListenAddress) == "" {
		errs = append(errs, "http.listenAddress is required")
	}
	if raw.MQ.HandlerTimeoutSeconds <= 0 {
		errs = append(errs, "mq.handlerTimeoutSeconds must be > 0")
	}

	return domain.RuntimeConfig{
		Storage: domain.StorageConfig{
			Driver: driver,
			Path:   strings.TrimSpace(raw.Storage.Path),
		},
		LockTimeoutMillis: raw.LockTimeoutMillis,
		Retry: domain.RetryConfig{
			Attempts:      raw.Retry.Attempts,
			BackoffMillis: raw.Retry.BackoffMillis,
		},
		HTTP: domain.HTTPConfig{ListenAddress: strings.TrimSpace(raw.HTTP.ListenAddress)},
		Observability: domain.ObservabilityConfig{
			ListenAddress: strings.TrimSpace(raw.Observability.ListenAddress),
			Metrics:       raw.Observability.Metrics,
			Healthz:       raw.Observability.Healthz,
		},
		MQ: domain.MQConfig{
			URL:                   strings.TrimSpace(raw.MQ.URL),
			Queue:                 strings.TrimSpace(raw.MQ.Queue),
			HandlerTimeoutSeconds: raw.MQ.HandlerTimeoutSeconds,
		},
	}, errs
}

func normalizePools(raw []rawPool) ([]domain.Pool, []string) {
	var errs []string
	seen := make(map[string]struct{}, len(raw))
	pools := make([]domain.Pool, 0, len(raw))
	for i, rp := range raw {
		pool := domain.Pool{
			ID:           strings.TrimSpace(rp.ID),
			DisplayName:  strings.TrimSpace(rp.DisplayName),
			MaximumCount: rp.MaximumCount,
			Enabled:      rp.Enabled,
			Description:  rp.Description,
			OSName:       strings.TrimSpace(rp.OSName),
		}
		if pool.DisplayName == "" {
			pool.DisplayName = pool.ID
		}
		for _, sw := range rp.InstalledSoftware {
			pool.InstalledSoftware = append(pool.InstalledSoftware, domain.Software{
				Name:    strings.TrimSpace(sw.Name),
				Version: strings.TrimSpace(sw.Version),
			})
		}

		if errs2 := validatePool(pool, fmt.Sprintf("pools[%d]", i)); len(errs2) > 0 {
			errs = append(errs, errs2...)
			continue
		}
		if _, dup := seen[pool.ID]; dup {
			errs = append(errs, fmt.Sprintf("pools[%d]: duplicate id %q", i, pool.ID))
			continue
		}
		seen[pool.ID] = struct{}{}
		pools = append(pools, pool)
	}
	return pools, errs
}

func validatePool(pool domain.Pool, where string) []string {
	var errs []string
	if pool.ID == "" {
		errs = append(errs, where+": id is required")
	}
	if pool.MaximumCount < 0 {
		errs = append(errs, where+": maximumCount must be >= 0")
	}
	for j, sw := range pool.InstalledSoftware {
		if sw.Name == "" {
			errs = append(errs, fmt.Sprintf("%s.installedSoftware[%d]: name is required", where, j))
		}
	}
	return errs
}
