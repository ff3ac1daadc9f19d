// Package engine admits, edits and cancels pool reservations while keeping the
// number of machines in use at any instant within each pool's capacity.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vmpool/internal/domain"
)

// Options configures the engine.
type Options struct {
	Clock       domain.Clock
	Logger      *zap.Logger
	Metrics     domain.Metrics
	LockTimeout time.Duration
	// NewID generates reservation ids; defaults to random UUIDs.
	NewID func() string
}

// Engine is the reservation/availability engine. Writes that depend on current
// availability run under a lock scoped to the pool.
type Engine struct {
	store   domain.Store
	clock   domain.Clock
	logger  *zap.Logger
	metrics domain.Metrics
	locks   *poolLocks
	newID   func() string
}

func New(store domain.Store, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultLockTimeoutMillis) * time.Millisecond
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Engine{
		store:   store,
		clock:   clock,
		logger:  logger.Named("engine"),
		metrics: opts.Metrics,
		locks:   newPoolLocks(timeout),
		newID:   newID,
	}
}

// Now exposes the engine clock so collaborators share one notion of time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

func wrapEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return domain.Wrap(domain.CodeCanceled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Wrap(domain.CodeDeadlineExceeded, op, err)
	}
	return domain.Wrap(domain.CodeInternal, op, err)
}

func reject(op string, sentinel error, msg string) error {
	code, ok := domain.CodeFrom(sentinel)
	if !ok {
		code = domain.CodeInternal
	}
	return domain.E(code, op, msg, sentinel)
}

func (e *Engine) observe(op, poolID string, started time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveOperation(domain.OperationMetric{
		Op:       op,
		PoolID:   poolID,
		Status:   domain.StatusFromError(err),
		Reason:   domain.ReasonFromError(err),
		Duration: time.Since(started),
	})
}

func (e *Engine) loadPool(ctx context.Context, op, poolID string) (domain.Pool, error) {
	pool, err := e.store.GetPool(ctx, poolID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Pool{}, domain.E(domain.CodeNotFound, op, "pool "+poolID+" not found", domain.ErrNotFound)
		}
		return domain.Pool{}, wrapEngineError(op, err)
	}
	return pool, nil
}

func (e *Engine) loadReservation(ctx context.Context, op, id string) (domain.Reservation, error) {
	r, err := e.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Reservation{}, domain.E(domain.CodeNotFound, op, "reservation "+id+" not found", domain.ErrNotFound)
		}
		return domain.Reservation{}, wrapEngineError(op, err)
	}
	return r, nil
}

// GetReservation returns a reservation by id, cancelled or not.
func (e *Engine) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	return e.loadReservation(ctx, "engine get reservation", id)
}

// ListReservations returns the reservations matching filter ordered by start.
func (e *Engine) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	const op = "engine list reservations"
	rs, err := e.store.ListReservations(ctx, filter)
	if err != nil {
		return nil, wrapEngineError(op, err)
	}
	return rs, nil
}
