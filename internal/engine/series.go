package engine

import (
	"context"
	"time"

	"vmpool/internal/domain"
)

// Series returns the other non-cancelled reservations of the reference
// reservation's pool and user that lie fully inside [windowStart, windowEnd).
// In SeriesModeSeries a sibling must also start and end on the same weekday and
// wall-clock time as the reference, compared in the reference's location.
func (e *Engine) Series(ctx context.Context, id string, windowStart, windowEnd time.Time, mode domain.SeriesMode) ([]domain.Reservation, error) {
	const op = "engine series"
	if !mode.Valid() {
		return nil, reject(op, domain.ErrInvalidMode, "unknown series mode "+string(mode))
	}
	window := domain.Window{Start: windowStart, End: windowEnd}
	if !window.Valid() {
		return nil, reject(op, domain.ErrInvalidWindow, "window end must be after start")
	}
	ref, err := e.loadReservation(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if ref.PoolID == "" {
		return nil, nil
	}

	candidates, err := e.store.ListReservations(ctx, domain.ReservationFilter{
		PoolID: ref.PoolID,
		UserID: ref.UserID,
	})
	if err != nil {
		return nil, wrapEngineError(op, err)
	}

	var out []domain.Reservation
	for _, r := range candidates {
		if r.ID == ref.ID || r.Cancelled || !window.Contains(r.Window()) {
			continue
		}
		if mode == domain.SeriesModeSeries && !sameWeeklySlot(ref, r) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// CancelSeries cancels the reference reservation and every sibling Series
// finds. The reference is cancelled first; siblings are best-effort.
func (e *Engine) CancelSeries(ctx context.Context, id string, windowStart, windowEnd time.Time, mode domain.SeriesMode) ([]CancelResult, error) {
	siblings, err := e.Series(ctx, id, windowStart, windowEnd, mode)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(siblings)+1)
	ids = append(ids, id)
	for _, r := range siblings {
		ids = append(ids, r.ID)
	}
	return e.CancelMany(ctx, ids), nil
}

func sameWeeklySlot(ref, other domain.Reservation) bool {
	loc := ref.Start.Location()
	return sameWeekdayAndClock(ref.Start, other.Start.In(loc)) &&
		sameWeekdayAndClock(ref.End.In(loc), other.End.In(loc))
}

func sameWeekdayAndClock(a, b time.Time) bool {
	if a.Weekday() != b.Weekday() {
		return false
	}
	ah, am, as := a.Clock()
	bh, bm, bs := b.Clock()
	return ah == bh && am == bm && as == bs && a.Nanosecond() == b.Nanosecond()
}
