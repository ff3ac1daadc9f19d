package domain

import "time"

type StorageDriver string

const (
	StorageDriverBolt   StorageDriver = "bolt"
	StorageDriverMemory StorageDriver = "memory"
)

type StorageConfig struct {
	Driver StorageDriver `json:"driver"`
	Path   string        `json:"path"`
}

type RetryConfig struct {
	Attempts      int `json:"attempts"`
	BackoffMillis int `json:"backoffMillis"`
}

func (c RetryConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMillis) * time.Millisecond
}

type HTTPConfig struct {
	ListenAddress string `json:"listenAddress"`
}

type ObservabilityConfig struct {
	ListenAddress string `json:"listenAddress"`
	Metrics       bool   `json:"metrics"`
	Healthz       bool   `json:"healthz"`
}

type MQConfig struct {
	URL                   string `json:"url"`
	Queue                 string `json:"queue"`
	HandlerTimeoutSeconds int    `json:"handlerTimeoutSeconds"`
}

func (c MQConfig) HandlerTimeout() time.Duration {
	return time.Duration(c.HandlerTimeoutSeconds) * time.Second
}

type RuntimeConfig struct {
	Storage           StorageConfig       `json:"storage"`
	LockTimeoutMillis int                 `json:"lockTimeoutMillis"`
	Retry             RetryConfig         `json:"retry"`
	HTTP              HTTPConfig          `json:"http"`
	Observability     ObservabilityConfig `json:"observability"`
	MQ                MQConfig            `json:"mq"`
}

func (c RuntimeConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMillis) * time.Millisecond
}

// Config is a loaded configuration file: runtime settings plus seed pools.
type Config struct {
	Runtime RuntimeConfig
	Pools   []Pool
}
