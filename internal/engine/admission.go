package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/infra/telemetry"
)

// CreateRequest asks for MachineCount machines of a pool over [Start, End).
type CreateRequest struct {
	PoolID       string
	UserID       string
	MachineCount int
	Start        time.Time
	End          time.Time
}

// CreateReservation validates req and stores a new reservation. Checks run in a
// fixed order: count, user, pool state, window ordering, start in the future,
// then capacity.
func (e *Engine) CreateReservation(ctx context.Context, req CreateRequest) (created domain.Reservation, err error) {
	const op = "engine create reservation"
	started := time.Now()
	defer func() {
		e.observe("create", req.PoolID, started, err)
		if err != nil {
			e.logger.Debug("reservation rejected",
				append([]zap.Field{
					telemetry.EventField(telemetry.EventReservationRejected),
					telemetry.PoolIDField(req.PoolID),
					telemetry.UserIDField(req.UserID),
					telemetry.MachineCountField(req.MachineCount),
					zap.Error(err),
				}, telemetry.WindowFields(req.Start, req.End)...)...,
			)
		}
	}()

	if req.MachineCount <= 0 {
		return domain.Reservation{}, reject(op, domain.ErrInvalidCount, "machine count must be positive")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return domain.Reservation{}, domain.E(domain.CodeInvalidArgument, op, "user id is required", nil)
	}
	pool, err := e.loadPool(ctx, op, req.PoolID)
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := e.checkWindow(op, pool, req.Start, req.End); err != nil {
		return domain.Reservation{}, err
	}

	err = e.withPoolLock(ctx, op, pool.ID, func(ctx context.Context) error {
		// Capacity or the enabled flag may have changed while waiting for the lock.
		pool, err := e.loadPool(ctx, op, req.PoolID)
		if err != nil {
			return err
		}
		window := domain.Window{Start: req.Start, End: req.End}
		free, err := e.available(ctx, op, pool, window, "")
		if err != nil {
			return err
		}
		if free-req.MachineCount < 0 {
			return reject(op, domain.ErrInsufficientCapacity,
				fmt.Sprintf("requested %d machines, %d available", req.MachineCount, max(free, 0)))
		}

		created, err = e.store.InsertReservation(ctx, domain.Reservation{
			ID:           e.newID(),
			PoolID:       pool.ID,
			UserID:       req.UserID,
			Start:        req.Start,
			End:          req.End,
			MachineCount: req.MachineCount,
			CreatedAt:    e.clock.Now(),
		})
		if err != nil {
			return wrapEngineError(op, err)
		}
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	e.logger.Info("reservation created",
		append([]zap.Field{
			telemetry.EventField(telemetry.EventReservationCreated),
			telemetry.ReservationIDField(created.ID),
			telemetry.PoolIDField(created.PoolID),
			telemetry.UserIDField(created.UserID),
			telemetry.MachineCountField(created.MachineCount),
		}, telemetry.WindowFields(created.Start, created.End)...)...,
	)
	return created, nil
}

// checkWindow applies the pool-state, ordering and future-only checks shared by
// admission and mutation.
func (e *Engine) checkWindow(op string, pool domain.Pool, start, end time.Time) error {
	if !pool.Enabled {
		return reject(op, domain.ErrPoolDisabled, "pool "+pool.ID+" is disabled")
	}
	if !start.Before(end) {
		return reject(op, domain.ErrInvalidWindow, "window end must be after start")
	}
	if start.Before(e.clock.Now()) {
		return reject(op, domain.ErrPastWindow, "reservations must start in the future")
	}
	return nil
}
