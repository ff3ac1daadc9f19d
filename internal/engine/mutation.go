package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/infra/telemetry"
)

// EditRequest changes a reservation. Nil fields keep their current value.
type EditRequest struct {
	Start        *time.Time
	End          *time.Time
	MachineCount *int
}

// EditReservation moves or resizes a reservation in one step. The reservation
// being edited does not compete with itself for capacity, so the new shape only
// has to fit next to every other active reservation of the pool. Either every
// field changes or none does.
func (e *Engine) EditReservation(ctx context.Context, id string, req EditRequest) (updated domain.Reservation, err error) {
	const op = "engine edit reservation"
	started := time.Now()
	var poolID string
	defer func() {
		e.observe("edit", poolID, started, err)
		if err != nil {
			e.logger.Debug("reservation edit rejected",
				telemetry.EventField(telemetry.EventReservationRejected),
				telemetry.ReservationIDField(id),
				telemetry.PoolIDField(poolID),
				zap.Error(err),
			)
		}
	}()

	current, err := e.loadReservation(ctx, op, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	poolID = current.PoolID
	if poolID == "" {
		if current.Cancelled {
			return domain.Reservation{}, reject(op, domain.ErrAlreadyCancelled, "reservation "+id+" is cancelled")
		}
		return domain.Reservation{}, domain.E(domain.CodeNotFound, op, "reservation "+id+" has no pool", domain.ErrNotFound)
	}

	err = e.withPoolLock(ctx, op, poolID, func(ctx context.Context) error {
		current, err := e.loadReservation(ctx, op, id)
		if err != nil {
			return err
		}
		if current.Cancelled {
			return reject(op, domain.ErrAlreadyCancelled, "reservation "+id+" is cancelled")
		}

		next := current
		if req.Start != nil {
			next.Start = *req.Start
		}
		if req.End != nil {
			next.End = *req.End
		}
		if req.MachineCount != nil {
			next.MachineCount = *req.MachineCount
		}

		if next.MachineCount < 1 {
			return reject(op, domain.ErrInvalidCount, "machine count must be positive")
		}
		if !next.Start.Before(next.End) {
			return reject(op, domain.ErrInvalidWindow, "window end must be after start")
		}
		if next.Start.Before(e.clock.Now()) {
			return reject(op, domain.ErrPastWindow, "reservations must start in the future")
		}
		pool, err := e.loadPool(ctx, op, next.PoolID)
		if err != nil {
			return err
		}
		if !pool.Enabled {
			return reject(op, domain.ErrPoolDisabled, "pool "+pool.ID+" is disabled")
		}

		free, err := e.available(ctx, op, pool, next.Window(), next.ID)
		if err != nil {
			return err
		}
		if next.MachineCount > free {
			return reject(op, domain.ErrInsufficientCapacity,
				fmt.Sprintf("requested %d machines, %d available", next.MachineCount, max(free, 0)))
		}

		if err := e.store.UpdateReservation(ctx, next); err != nil {
			return wrapEngineError(op, err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	e.logger.Info("reservation edited",
		append([]zap.Field{
			telemetry.EventField(telemetry.EventReservationEdited),
			telemetry.ReservationIDField(updated.ID),
			telemetry.PoolIDField(updated.PoolID),
			telemetry.MachineCountField(updated.MachineCount),
		}, telemetry.WindowFields(updated.Start, updated.End)...)...,
	)
	return updated, nil
}
