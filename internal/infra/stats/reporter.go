// Package stats aggregates reservation history into usage reports.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/engine"
)

// Source is the read side of the store the reports need.
type Source interface {
	ListPools(ctx context.Context) ([]domain.Pool, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error)
	FindOverlapping(ctx context.Context, poolID string, start, end time.Time, includeCancelled bool) ([]domain.Reservation, error)
}

type Options struct {
	Clock  domain.Clock
	Logger *zap.Logger
}

type Reporter struct {
	source Source
	clock  domain.Clock
	logger *zap.Logger
}

type PoolHours struct {
	PoolID       string  `json:"poolId"`
	MachineHours float64 `json:"machineHours"`
}

type UserHours struct {
	UserID       string  `json:"userId"`
	MachineHours float64 `json:"machineHours"`
}

type BottleneckHours struct {
	PoolID string `json:"poolId"`
	Hours  int    `json:"hours"`
}

type PoolUsage struct {
	PoolID      string `json:"poolId"`
	MaxMachines int    `json:"maxMachines"`
}

// BottleneckQuery describes a bottleneck scan. Zero bounds, a zero Interval
// and a nil Threshold fall back to the next seven days, 30 minute steps and a
// 0.9 usage threshold. Interval must be at least one minute.
type BottleneckQuery struct {
	Start     time.Time
	End       time.Time
	Interval  time.Duration
	Threshold *float64
}

func NewReporter(source Source, opts Options) *Reporter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Reporter{source: source, clock: clock, logger: logger.Named("stats")}
}

// window fills zero bounds with [now, now+7d) and validates the result.
func (r *Reporter) window(op string, start, end time.Time) (domain.Window, error) {
	if start.IsZero() {
		start = r.clock.Now()
	}
	if end.IsZero() {
		end = start.Add(domain.DefaultStatsLookahead)
	}
	w := domain.Window{Start: start, End: end}
	if !w.Valid() {
		return domain.Window{}, domain.E(domain.CodeInvalidArgument, op, "window end must be after start", domain.ErrInvalidWindow)
	}
	return w, nil
}

// MostReservedPools returns the machine-hours booked in every pool during the
// window, busiest first.
func (r *Reporter) MostReservedPools(ctx context.Context, start, end time.Time) ([]PoolHours, error) {
	const op = "stats most reserved pools"
	w, err := r.window(op, start, end)
	if err != nil {
		return nil, err
	}
	pools, err := r.source.ListPools(ctx)
	if err != nil {
		return nil, sourceError(op, err)
	}
	out := make([]PoolHours, 0, len(pools))
	for _, p := range pools {
		rs, err := r.source.FindOverlapping(ctx, p.ID, w.Start, w.End, false)
		if err != nil {
			return nil, sourceError(op, err)
		}
		out = append(out, PoolHours{PoolID: p.ID, MachineHours: machineHours(w, rs)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MachineHours != out[j].MachineHours {
			return out[i].MachineHours > out[j].MachineHours
		}
		return out[i].PoolID < out[j].PoolID
	})
	return out, nil
}

// UserReservationTime returns the machine-hours each user booked during the
// window, heaviest first. Users without bookings in the window are omitted.
func (r *Reporter) UserReservationTime(ctx context.Context, start, end time.Time) ([]UserHours, error) {
	const op = "stats user reservation time"
	w, err := r.window(op, start, end)
	if err != nil {
		return nil, err
	}
	rs, err := r.source.ListReservations(ctx, domain.ReservationFilter{})
	if err != nil {
		return nil, sourceError(op, err)
	}
	byUser := make(map[string][]domain.Reservation)
	for _, res := range rs {
		if !res.Cancelled && res.Window().Overlaps(w) {
			byUser[res.UserID] = append(byUser[res.UserID], res)
		}
	}
	out := make([]UserHours, 0, len(byUser))
	for user, list := range byUser {
		out = append(out, UserHours{UserID: user, MachineHours: machineHours(w, list)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MachineHours != out[j].MachineHours {
			return out[i].MachineHours > out[j].MachineHours
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// PoolBottlenecks walks every enabled pool through the window in Interval steps
// and counts the hours during which usage exceeded Threshold of capacity.
func (r *Reporter) PoolBottlenecks(ctx context.Context, q BottleneckQuery) ([]BottleneckHours, error) {
	const op = "stats pool bottlenecks"
	w, err := r.window(op, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	if w.Duration() > domain.MaxBottleneckWindow {
		return nil, domain.E(domain.CodeInvalidArgument, op,
			fmt.Sprintf("window is too long, maximum is %d days", int(domain.MaxBottleneckWindow/(24*time.Hour))), domain.ErrInvalidWindow)
	}
	interval := q.Interval
	if interval == 0 {
		interval = domain.DefaultBottleneckInterval
	}
	if interval < domain.MinBottleneckInterval {
		return nil, domain.E(domain.CodeInvalidArgument, op,
			fmt.Sprintf("interval must be at least %s", domain.MinBottleneckInterval), domain.ErrInvalidWindow)
	}
	threshold := domain.DefaultBottleneckThreshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, domain.E(domain.CodeInvalidArgument, op, "threshold must be between 0 and 1", nil)
	}

	pools, err := r.source.ListPools(ctx)
	if err != nil {
		return nil, sourceError(op, err)
	}
	out := make([]BottleneckHours, 0, len(pools))
	for _, p := range pools {
		if !p.Enabled {
			continue
		}
		rs, err := r.source.FindOverlapping(ctx, p.ID, w.Start, w.End, false)
		if err != nil {
			return nil, sourceError(op, err)
		}
		hours, err := bottleneckHours(ctx, p, w, rs, interval, threshold)
		if err != nil {
			return nil, sourceError(op, err)
		}
		out = append(out, BottleneckHours{PoolID: p.ID, Hours: hours})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PoolID < out[j].PoolID })
	return out, nil
}

// TopBottleneckedPools keeps the pools with non-zero bottleneck hours, worst
// first, at most five.
func (r *Reporter) TopBottleneckedPools(ctx context.Context, q BottleneckQuery) ([]BottleneckHours, error) {
	all, err := r.PoolBottlenecks(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]BottleneckHours, 0, len(all))
	for _, b := range all {
		if b.Hours > 0 {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hours > out[j].Hours })
	if len(out) > domain.TopBottleneckedPoolsLimit {
		out = out[:domain.TopBottleneckedPoolsLimit]
	}
	return out, nil
}

// MaximumUsage reports the peak number of machines in use in each enabled pool
// during the window.
func (r *Reporter) MaximumUsage(ctx context.Context, start, end time.Time) ([]PoolUsage, error) {
	const op = "stats maximum usage"
	w, err := r.window(op, start, end)
	if err != nil {
		return nil, err
	}
	pools, err := r.source.ListPools(ctx)
	if err != nil {
		return nil, sourceError(op, err)
	}
	out := make([]PoolUsage, 0, len(pools))
	for _, p := range pools {
		if !p.Enabled {
			continue
		}
		rs, err := r.source.FindOverlapping(ctx, p.ID, w.Start, w.End, false)
		if err != nil {
			return nil, sourceError(op, err)
		}
		out = append(out, PoolUsage{PoolID: p.ID, MaxMachines: engine.PeakUsage(w, rs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PoolID < out[j].PoolID })
	return out, nil
}

func sourceError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return domain.Wrap(domain.CodeCanceled, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Wrap(domain.CodeDeadlineExceeded, op, err)
	default:
		return domain.Wrap(domain.CodeInternal, op, err)
	}
}

// machineHours sums MachineCount times the hours each non-cancelled
// reservation overlaps w.
func machineHours(w domain.Window, rs []domain.Reservation) float64 {
	total := 0.0
	for _, res := range rs {
		if res.Cancelled {
			continue
		}
		part, ok := w.Intersect(res.Window())
		if !ok {
			continue
		}
		total += float64(res.MachineCount) * part.Duration().Hours()
	}
	return total
}

func bottleneckHours(ctx context.Context, p domain.Pool, w domain.Window, rs []domain.Reservation, interval time.Duration, threshold float64) (int, error) {
	if p.MaximumCount <= 0 {
		return 0, nil
	}
	var busy time.Duration
	for step := w.Start; step.Before(w.End); step = step.Add(interval) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		slot := domain.Window{Start: step, End: step.Add(interval)}
		if slot.End.After(w.End) {
			slot.End = w.End
		}
		usage := float64(engine.PeakUsage(slot, rs)) / float64(p.MaximumCount)
		if usage > threshold {
			busy += slot.Duration()
		}
	}
	return int(busy.Hours()), nil
}
