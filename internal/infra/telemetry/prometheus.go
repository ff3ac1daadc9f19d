package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vmpool/internal/domain"
)

type PrometheusMetrics struct {
	operationDuration *prometheus.HistogramVec
	operations        *prometheus.CounterVec
	lockWait          *prometheus.HistogramVec
	contention        *prometheus.CounterVec
	poolCapacity      *prometheus.GaugeVec
	availability      *prometheus.GaugeVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vmpool_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op", "status"},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vmpool_operations_total",
				Help: "Total number of engine operations by outcome",
			},
			[]string{"op", "pool", "status", "reason"},
		),
		lockWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vmpool_pool_lock_wait_seconds",
				Help:    "Time spent waiting for a pool lock in seconds",
				Buckets: []float64{.0001, .001, .01, .05, .1, .5, 1, 2, 5},
			},
			[]string{"outcome"},
		),
		contention: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vmpool_pool_lock_contention_total",
				Help: "Total number of pool lock waits that timed out",
			},
			[]string{"pool"},
		),
		poolCapacity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vmpool_pool_capacity",
				Help: "Configured machine capacity per pool, zero when disabled",
			},
			[]string{"pool"},
		),
		availability: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vmpool_pool_last_available",
				Help: "Most recently computed availability per pool",
			},
			[]string{"pool"},
		),
	}
}

func (p *PrometheusMetrics) ObserveOperation(metric domain.OperationMetric) {
	status := string(metric.Status)
	if status == "" {
		status = string(domain.OperationStatusSuccess)
	}
	reason := string(metric.Reason)
	if reason == "" {
		reason = string(domain.ReasonNone)
	}
	p.operationDuration.WithLabelValues(metric.Op, status).Observe(metric.Duration.Seconds())
	p.operations.WithLabelValues(metric.Op, metric.PoolID, status, reason).Inc()
}

func (p *PrometheusMetrics) ObserveLockWait(poolID string, duration time.Duration, outcome domain.LockOutcome) {
	p.lockWait.WithLabelValues(string(outcome)).Observe(duration.Seconds())
	if outcome == domain.LockOutcomeTimeout {
		p.contention.WithLabelValues(poolID).Inc()
	}
}

func (p *PrometheusMetrics) SetPoolCapacity(poolID string, capacity int) {
	p.poolCapacity.WithLabelValues(poolID).Set(float64(capacity))
}

func (p *PrometheusMetrics) ObserveAvailability(poolID string, available int) {
	p.availability.WithLabelValues(poolID).Set(float64(available))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
