package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vmpool/internal/domain"
	"vmpool/internal/infra/store/memstore"
)

var now = time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time {
	return now.Add(time.Duration(h) * time.Hour)
}

func ratio(v float64) *float64 {
	return &v
}

func newReporter(t *testing.T, pools []domain.Pool, reservations []domain.Reservation) *Reporter {
	t.Helper()
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	for _, p := range pools {
		require.NoError(t, store.PutPool(ctx, p))
	}
	for _, r := range reservations {
		_, err := store.InsertReservation(ctx, r)
		require.NoError(t, err)
	}
	return NewReporter(store, Options{Clock: domain.FixedClock(now)})
}

func fixture() ([]domain.Pool, []domain.Reservation) {
	pools := []domain.Pool{
		{ID: "busy", MaximumCount: 10, Enabled: true},
		{ID: "quiet", MaximumCount: 4, Enabled: true},
		{ID: "off", MaximumCount: 4, Enabled: false},
		{ID: "empty", MaximumCount: 0, Enabled: true},
	}
	reservations := []domain.Reservation{
		{ID: "r1", PoolID: "busy", UserID: "alice", MachineCount: 10, Start: hour(0), End: hour(3)},
		{ID: "r2", PoolID: "busy", UserID: "bob", MachineCount: 5, Start: hour(3), End: hour(5)},
		{ID: "r3", PoolID: "quiet", UserID: "alice", MachineCount: 1, Start: hour(-2), End: hour(2)},
		{ID: "r4", PoolID: "quiet", UserID: "carol", MachineCount: 4, Start: hour(10), End: hour(11), Cancelled: true},
		{ID: "r5", PoolID: "off", UserID: "bob", MachineCount: 4, Start: hour(1), End: hour(2)},
	}
	return pools, reservations
}

func TestMostReservedPools(t *testing.T) {
	pools, rs := fixture()
	r := newReporter(t, pools, rs)

	got, err := r.MostReservedPools(context.Background(), hour(0), hour(24))
	require.NoError(t, err)
	require.Equal(t, []PoolHours{
		{PoolID: "busy", MachineHours: 40},
		{PoolID: "off", MachineHours: 4},
		{PoolID: "quiet", MachineHours: 2},
		{PoolID: "empty", MachineHours: 0},
	}, got)
}

func TestUserReservationTime(t *testing.T) {
	pools, rs := fixture()
	r := newReporter(t, pools, rs)

	got, err := r.UserReservationTime(context.Background(), hour(0), hour(24))
	require.NoError(t, err)
	require.Equal(t, []UserHours{
		{UserID: "alice", MachineHours: 32},
		{UserID: "bob", MachineHours: 14},
	}, got)
}

func TestPoolBottlenecks(t *testing.T) {
	pools, rs := fixture()
	r := newReporter(t, pools, rs)

	got, err := r.PoolBottlenecks(context.Background(), BottleneckQuery{Start: hour(0), End: hour(24)})
	require.NoError(t, err)
	require.Equal(t, []BottleneckHours{
		{PoolID: "busy", Hours: 3},
		{PoolID: "empty", Hours: 0},
		{PoolID: "quiet", Hours: 0},
	}, got)

	got, err = r.PoolBottlenecks(context.Background(), BottleneckQuery{Start: hour(0), End: hour(24), Threshold: ratio(0.4)})
	require.NoError(t, err)
	require.Equal(t, 5, got[0].Hours)
}

func TestTopBottleneckedPools(t *testing.T) {
	pools, rs := fixture()
	r := newReporter(t, pools, rs)

	got, err := r.TopBottleneckedPools(context.Background(), BottleneckQuery{Start: hour(0), End: hour(24)})
	require.NoError(t, err)
	require.Equal(t, []BottleneckHours{{PoolID: "busy", Hours: 3}}, got)
}

func TestTopBottleneckedPools_LimitsToFive(t *testing.T) {
	var pools []domain.Pool
	var rs []domain.Reservation
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		pools = append(pools, domain.Pool{ID: id, MaximumCount: 1, Enabled: true})
		rs = append(rs, domain.Reservation{ID: "r-" + id, PoolID: id, UserID: "u", MachineCount: 1, Start: hour(0), End: hour(i + 1)})
	}
	r := newReporter(t, pools, rs)

	got, err := r.TopBottleneckedPools(context.Background(), BottleneckQuery{Start: hour(0), End: hour(24)})
	require.NoError(t, err)
	require.Len(t, got, 5)
	require.Equal(t, "g", got[0].PoolID)
	require.Equal(t, 7, got[0].Hours)
	require.Equal(t, "c", got[4].PoolID)
}

func TestPoolBottlenecks_Validation(t *testing.T) {
	r := newReporter(t, nil, nil)
	ctx := context.Background()

	_, err := r.PoolBottlenecks(ctx, BottleneckQuery{Start: hour(0), End: hour(0).Add(401 * 24 * time.Hour)})
	require.ErrorIs(t, err, domain.ErrInvalidWindow)

	_, err = r.PoolBottlenecks(ctx, BottleneckQuery{Start: hour(5), End: hour(1)})
	require.ErrorIs(t, err, domain.ErrInvalidWindow)

	_, err = r.PoolBottlenecks(ctx, BottleneckQuery{Threshold: ratio(1.5)})
	code, _ := domain.CodeFrom(err)
	require.Equal(t, domain.CodeInvalidArgument, code)
}

func TestPoolBottlenecks_ZeroThresholdCountsAnyUsage(t *testing.T) {
	pools, rs := fixture()
	r := newReporter(t, pools, rs)

	got, err := r.PoolBottlenecks(context.Background(), BottleneckQuery{Start: hour(0), End: hour(24), Threshold: ratio(0)})
	require.NoError(t, err)
	require.Equal(t, []BottleneckHours{
		{PoolID: "busy", Hours: 5},
		{PoolID: "empty", Hours: 0},
		{PoolID: "quiet", Hours: 2},
	}, got)
}

func TestPoolBottlenecks_RejectsTinyInterval(t *testing.T) {
	pools, rs := fixture()
	r := newReporter(t, pools, rs)

	for _, interval := range []time.Duration{time.Nanosecond, time.Microsecond, 59 * time.Second, -time.Minute} {
		_, err := r.PoolBottlenecks(context.Background(), BottleneckQuery{Interval: interval})
		require.ErrorIs(t, err, domain.ErrInvalidWindow, "interval %s", interval)
		code, _ := domain.CodeFrom(err)
		require.Equal(t, domain.CodeInvalidArgument, code)
	}

	_, err := r.PoolBottlenecks(context.Background(), BottleneckQuery{Start: hour(0), End: hour(2), Interval: domain.MinBottleneckInterval})
	require.NoError(t, err)
}

// cancelAfterFetch cancels the scan context once the reservations are loaded,
// so only the slot loop can notice it.
type cancelAfterFetch struct {
	Source
	cancel context.CancelFunc
}

func (s cancelAfterFetch) FindOverlapping(ctx context.Context, poolID string, start, end time.Time, includeCancelled bool) ([]domain.Reservation, error) {
	rs, err := s.Source.FindOverlapping(ctx, poolID, start, end, includeCancelled)
	s.cancel()
	return rs, err
}

func TestPoolBottlenecks_StopsWhenContextEnds(t *testing.T) {
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.PutPool(ctx, domain.Pool{ID: "lab", MaximumCount: 2, Enabled: true}))

	r := NewReporter(cancelAfterFetch{Source: store, cancel: cancel}, Options{Clock: domain.FixedClock(now)})

	done := make(chan error, 1)
	go func() {
		_, err := r.PoolBottlenecks(ctx, BottleneckQuery{
			Start:    hour(0),
			End:      hour(0).Add(domain.MaxBottleneckWindow),
			Interval: domain.MinBottleneckInterval,
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		code, _ := domain.CodeFrom(err)
		require.Equal(t, domain.CodeCanceled, code)
	case <-time.After(3 * time.Second):
		t.Fatal("bottleneck scan ignored the cancelled context")
	}
}

func TestMaximumUsage(t *testing.T) {
	pools, rs := fixture()
	r := newReporter(t, pools, rs)

	// Zero bounds mean the next seven days from the reporter clock.
	got, err := r.MaximumUsage(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, []PoolUsage{
		{PoolID: "busy", MaxMachines: 10},
		{PoolID: "empty", MaxMachines: 0},
		{PoolID: "quiet", MaxMachines: 1},
	}, got)

	got, err = r.MaximumUsage(context.Background(), hour(3), hour(4))
	require.NoError(t, err)
	require.Equal(t, 5, got[0].MaxMachines)
}
