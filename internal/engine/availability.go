package engine

import (
	"context"
	"time"

	"vmpool/internal/domain"
)

// Available returns how many machines of the pool are free at every instant of
// [start, end). It takes no lock and is meant for display; writes gate on the
// locked variant.
func (e *Engine) Available(ctx context.Context, poolID string, start, end time.Time) (int, error) {
	const op = "engine available"
	pool, err := e.loadPool(ctx, op, poolID)
	if err != nil {
		return 0, err
	}
	free, err := e.available(ctx, op, pool, domain.Window{Start: start, End: end}, "")
	if err != nil {
		return 0, err
	}
	if e.metrics != nil {
		e.metrics.ObserveAvailability(pool.ID, free)
	}
	return free, nil
}

// available computes the free machine count of pool over w, ignoring the
// reservation with id excludeID when it is non-empty.
func (e *Engine) available(ctx context.Context, op string, pool domain.Pool, w domain.Window, excludeID string) (int, error) {
	if !pool.Enabled {
		return 0, reject(op, domain.ErrPoolDisabled, "pool "+pool.ID+" is disabled")
	}
	if !w.Valid() {
		return 0, reject(op, domain.ErrInvalidWindow, "window end must be after start")
	}
	found, err := e.store.FindOverlapping(ctx, pool.ID, w.Start, w.End, false)
	if err != nil {
		return 0, wrapEngineError(op, err)
	}
	active := found[:0]
	for _, r := range found {
		if r.Cancelled || r.ID == excludeID {
			continue
		}
		active = append(active, r)
	}
	return freeMachines(pool.MaximumCount, w, active), nil
}

// freeMachines returns capacity minus the peak usage inside w. When some
// reservation boundary falls strictly inside w, usage is not uniform, so the
// window is split there and the tighter half wins. Every split removes at least
// one interior boundary, which bounds the recursion by len(reservations).
func freeMachines(capacity int, w domain.Window, reservations []domain.Reservation) int {
	overlapping := make([]domain.Reservation, 0, len(reservations))
	taken := 0
	for _, r := range reservations {
		if !w.Overlaps(r.Window()) {
			continue
		}
		overlapping = append(overlapping, r)
		taken += r.MachineCount
	}
	if len(overlapping) == 0 {
		return capacity
	}
	for _, r := range overlapping {
		point, ok := domain.SplitPoint(w, r)
		if !ok {
			continue
		}
		left := freeMachines(capacity, domain.Window{Start: w.Start, End: point}, overlapping)
		right := freeMachines(capacity, domain.Window{Start: point, End: w.End}, overlapping)
		return min(left, right)
	}
	return capacity - taken
}

// PeakUsage returns the highest number of machines held by non-cancelled
// reservations at any instant of w.
func PeakUsage(w domain.Window, reservations []domain.Reservation) int {
	active := make([]domain.Reservation, 0, len(reservations))
	for _, r := range reservations {
		if !r.Cancelled {
			active = append(active, r)
		}
	}
	return -freeMachines(0, w, active)
}
