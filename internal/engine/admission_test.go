package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmpool/internal/domain"
)

func TestCreateReservation_CapacityBoundary(t *testing.T) {
	f := newFixture(t, pool("p", 10))
	ctx := context.Background()
	f.create(t, "p", 4, at(1, 0), at(2, 0))

	_, err := f.engine.CreateReservation(ctx, CreateRequest{PoolID: "p", UserID: "bob", MachineCount: 7, Start: at(1, 0), End: at(2, 0)})
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)
	code, _ := domain.CodeFrom(err)
	require.Equal(t, domain.CodeResourceExhausted, code)
	require.False(t, domain.IsRetryable(err))

	r, err := f.engine.CreateReservation(ctx, CreateRequest{PoolID: "p", UserID: "bob", MachineCount: 6, Start: at(1, 0), End: at(2, 0)})
	require.NoError(t, err)
	require.Equal(t, "p", r.PoolID)
	require.Equal(t, "bob", r.UserID)
	require.False(t, r.Cancelled)
	require.Equal(t, testNow, r.CreatedAt)

	stored, err := f.store.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, r, stored)
}

func TestCreateReservation_RejectsStaggeredOverbooking(t *testing.T) {
	f := newFixture(t, pool("p", 5))
	f.create(t, "p", 3, at(1, 10), at(1, 12))

	_, err := f.engine.CreateReservation(context.Background(), CreateRequest{
		PoolID: "p", UserID: "alice", MachineCount: 3, Start: at(1, 11), End: at(1, 13),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)

	free, err := f.engine.Available(context.Background(), "p", at(1, 10), at(1, 13))
	require.NoError(t, err)
	require.Equal(t, 2, free)
}

func TestCreateReservation_PastWindowRegardlessOfCapacity(t *testing.T) {
	f := newFixture(t, pool("p", 100))

	_, err := f.engine.CreateReservation(context.Background(), CreateRequest{
		PoolID: "p", UserID: "alice", MachineCount: 1, Start: testNow.Add(-time.Minute), End: testNow.Add(time.Hour),
	})
	require.ErrorIs(t, err, domain.ErrPastWindow)
	require.Equal(t, domain.ReasonPastWindow, f.metrics.lastOperation().Reason)
	require.Equal(t, domain.OperationStatusRejected, f.metrics.lastOperation().Status)
}

func TestCreateReservation_StartingNowIsAccepted(t *testing.T) {
	f := newFixture(t, pool("p", 1))

	_, err := f.engine.CreateReservation(context.Background(), CreateRequest{
		PoolID: "p", UserID: "alice", MachineCount: 1, Start: testNow, End: testNow.Add(time.Hour),
	})
	require.NoError(t, err)
}

func TestCreateReservation_ValidationOrder(t *testing.T) {
	disabled := pool("off", 5)
	disabled.Enabled = false
	f := newFixture(t, pool("p", 5), disabled)
	past := testNow.Add(-time.Hour)

	cases := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{
			name: "count before everything",
			req:  CreateRequest{PoolID: "off", UserID: "u", MachineCount: 0, Start: at(1, 2), End: at(1, 1)},
			want: domain.ErrInvalidCount,
		},
		{
			name: "negative count",
			req:  CreateRequest{PoolID: "p", UserID: "u", MachineCount: -1, Start: at(1, 1), End: at(1, 2)},
			want: domain.ErrInvalidCount,
		},
		{
			name: "unknown pool",
			req:  CreateRequest{PoolID: "missing", UserID: "u", MachineCount: 1, Start: at(1, 2), End: at(1, 1)},
			want: domain.ErrNotFound,
		},
		{
			name: "pool state before window",
			req:  CreateRequest{PoolID: "off", UserID: "u", MachineCount: 1, Start: at(1, 2), End: at(1, 1)},
			want: domain.ErrPoolDisabled,
		},
		{
			name: "window before past",
			req:  CreateRequest{PoolID: "p", UserID: "u", MachineCount: 1, Start: past, End: past},
			want: domain.ErrInvalidWindow,
		},
		{
			name: "past before capacity",
			req:  CreateRequest{PoolID: "p", UserID: "u", MachineCount: 50, Start: past, End: at(1, 1)},
			want: domain.ErrPastWindow,
		},
		{
			name: "capacity",
			req:  CreateRequest{PoolID: "p", UserID: "u", MachineCount: 6, Start: at(1, 1), End: at(1, 2)},
			want: domain.ErrInsufficientCapacity,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.CreateReservation(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	all, err := f.store.ListReservations(context.Background(), domain.ReservationFilter{IncludeCancelled: true})
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCreateReservation_RequiresUser(t *testing.T) {
	f := newFixture(t, pool("p", 5))

	_, err := f.engine.CreateReservation(context.Background(), CreateRequest{PoolID: "p", UserID: " ", MachineCount: 1, Start: at(1, 1), End: at(1, 2)})
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeInvalidArgument, code)
}

func TestCreateReservation_ConcurrentAdmissionsRespectCapacity(t *testing.T) {
	f := newFixture(t, pool("p", 5))
	f.engine.locks.timeout = 5 * time.Second

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.CreateReservation(context.Background(), CreateRequest{
				PoolID: "p", UserID: "u", MachineCount: 1, Start: at(1, 0), End: at(1, 4),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)
		}()
	}
	wg.Wait()

	require.Equal(t, 5, succeeded)
	free, err := f.engine.Available(context.Background(), "p", at(1, 0), at(1, 4))
	require.NoError(t, err)
	require.Equal(t, 0, free)
}
