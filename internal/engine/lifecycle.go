package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/infra/telemetry"
)

// CancelResult reports the outcome of cancelling one reservation of a batch.
type CancelResult struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// Cancel marks a reservation cancelled. Cancelling twice fails with
// ErrAlreadyCancelled and leaves the record untouched.
func (e *Engine) Cancel(ctx context.Context, id string) (cancelled domain.Reservation, err error) {
	const op = "engine cancel reservation"
	started := time.Now()
	var poolID string
	defer func() {
		e.observe("cancel", poolID, started, err)
	}()

	current, err := e.loadReservation(ctx, op, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	poolID = current.PoolID

	apply := func(ctx context.Context) error {
		current, err := e.loadReservation(ctx, op, id)
		if err != nil {
			return err
		}
		if current.Cancelled {
			return reject(op, domain.ErrAlreadyCancelled, "reservation "+id+" is already cancelled")
		}
		current.Cancelled = true
		if err := e.store.UpdateReservation(ctx, current); err != nil {
			return wrapEngineError(op, err)
		}
		cancelled = current
		return nil
	}

	// Reservations detached from a removed pool are already cancelled; there is
	// no pool lock to take for them.
	if poolID == "" {
		err = apply(ctx)
	} else {
		err = e.withPoolLock(ctx, op, poolID, apply)
	}
	if err != nil {
		return domain.Reservation{}, err
	}

	e.logger.Info("reservation cancelled",
		telemetry.EventField(telemetry.EventReservationCancelled),
		telemetry.ReservationIDField(cancelled.ID),
		telemetry.PoolIDField(cancelled.PoolID),
		telemetry.UserIDField(cancelled.UserID),
	)
	return cancelled, nil
}

// CancelMany cancels every id independently. A failure for one id is reported in
// its result and does not stop the batch.
func (e *Engine) CancelMany(ctx context.Context, ids []string) []CancelResult {
	results := make([]CancelResult, 0, len(ids))
	failed := 0
	for _, id := range ids {
		_, err := e.Cancel(ctx, id)
		if err != nil {
			failed++
		}
		results = append(results, CancelResult{ID: id, Err: err})
	}
	if failed > 0 {
		e.logger.Debug("bulk cancel finished with failures",
			zap.Int("requested", len(ids)),
			zap.Int("failed", failed),
		)
	}
	return results
}
