package telemetry

import (
	"time"

	"vmpool/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveOperation(_ domain.OperationMetric) {}

func (n *NoopMetrics) ObserveLockWait(_ string, _ time.Duration, _ domain.LockOutcome) {}

func (n *NoopMetrics) SetPoolCapacity(_ string, _ int) {}

func (n *NoopMetrics) ObserveAvailability(_ string, _ int) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
