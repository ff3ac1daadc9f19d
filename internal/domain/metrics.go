package domain

import (
	"errors"
	"time"
)

// OperationStatus labels the outcome of an engine operation.
type OperationStatus string

const (
	// OperationStatusSuccess indicates the operation applied its effect.
	OperationStatusSuccess OperationStatus = "success"
	// OperationStatusRejected indicates a validation or capacity rejection.
	OperationStatusRejected OperationStatus = "rejected"
	// OperationStatusError indicates an infrastructure failure.
	OperationStatusError OperationStatus = "error"
)

// OperationReason describes why an operation ended with a status.
type OperationReason string

const (
	ReasonNone                 OperationReason = "none"
	ReasonInvalidCount         OperationReason = "invalid_count"
	ReasonInvalidWindow        OperationReason = "invalid_window"
	ReasonPastWindow           OperationReason = "past_window"
	ReasonPoolDisabled         OperationReason = "pool_disabled"
	ReasonInsufficientCapacity OperationReason = "insufficient_capacity"
	ReasonAlreadyCancelled     OperationReason = "already_cancelled"
	ReasonInvalidMode          OperationReason = "invalid_mode"
	ReasonNotFound             OperationReason = "not_found"
	ReasonAlreadyExists        OperationReason = "already_exists"
	ReasonContention           OperationReason = "contention"
	ReasonUnknown              OperationReason = "unknown"
)

// ReasonFromError classifies err into a metric reason.
func ReasonFromError(err error) OperationReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrInvalidCount):
		return ReasonInvalidCount
	case errors.Is(err, ErrInvalidWindow):
		return ReasonInvalidWindow
	case errors.Is(err, ErrPastWindow):
		return ReasonPastWindow
	case errors.Is(err, ErrPoolDisabled):
		return ReasonPoolDisabled
	case errors.Is(err, ErrInsufficientCapacity):
		return ReasonInsufficientCapacity
	case errors.Is(err, ErrAlreadyCancelled):
		return ReasonAlreadyCancelled
	case errors.Is(err, ErrInvalidMode):
		return ReasonInvalidMode
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrAlreadyExists):
		return ReasonAlreadyExists
	case errors.Is(err, ErrContention):
		return ReasonContention
	default:
		return ReasonUnknown
	}
}

// StatusFromError maps err to an operation status.
func StatusFromError(err error) OperationStatus {
	switch ReasonFromError(err) {
	case ReasonNone:
		return OperationStatusSuccess
	case ReasonUnknown, ReasonContention:
		return OperationStatusError
	default:
		return OperationStatusRejected
	}
}

// OperationMetric captures one engine operation.
type OperationMetric struct {
	Op       string
	PoolID   string
	Status   OperationStatus
	Reason   OperationReason
	Duration time.Duration
}

// LockOutcome describes how a pool lock wait ended.
type LockOutcome string

const (
	LockOutcomeAcquired LockOutcome = "acquired"
	LockOutcomeTimeout  LockOutcome = "timeout"
	LockOutcomeCanceled LockOutcome = "canceled"
)

type Metrics interface {
	ObserveOperation(metric OperationMetric)
	ObserveLockWait(poolID string, duration time.Duration, outcome LockOutcome)
	SetPoolCapacity(poolID string, capacity int)
	ObserveAvailability(poolID string, available int)
}
