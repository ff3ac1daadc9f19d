// Package storetest holds the behaviour every domain.Store implementation must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vmpool/internal/domain"
)

// Factory builds an empty store for one subtest.
type Factory func(t *testing.T) domain.Store

func at(day, hour int) time.Time {
	return time.Date(2031, 1, day, hour, 0, 0, 0, time.UTC)
}

// Run exercises store against the domain.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("PoolRoundTrip", func(t *testing.T) { testPoolRoundTrip(t, newStore(t)) })
	t.Run("ReservationNotFound", func(t *testing.T) { testReservationNotFound(t, newStore(t)) })
	t.Run("FindOverlapping", func(t *testing.T) { testFindOverlapping(t, newStore(t)) })
	t.Run("UpdateReservation", func(t *testing.T) { testUpdateReservation(t, newStore(t)) })
	t.Run("ListReservations", func(t *testing.T) { testListReservations(t, newStore(t)) })
	t.Run("RemovePoolCascades", func(t *testing.T) { testRemovePool(t, newStore(t)) })
	t.Run("DuplicateInsert", func(t *testing.T) { testDuplicateInsert(t, newStore(t)) })
}

func testPoolRoundTrip(t *testing.T, store domain.Store) {
	ctx := context.Background()
	pool := domain.Pool{
		ID:           "lab-linux",
		DisplayName:  "Lab Linux",
		MaximumCount: 12,
		Enabled:      true,
		OSName:       "Ubuntu",
		InstalledSoftware: []domain.Software{
			{Name: "gcc", Version: "13"},
		},
	}
	require.NoError(t, store.PutPool(ctx, pool))
	require.NoError(t, store.PutPool(ctx, domain.Pool{ID: "a-first", MaximumCount: 1}))

	got, err := store.GetPool(ctx, "lab-linux")
	require.NoError(t, err)
	require.Equal(t, pool, got)

	pools, err := store.ListPools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 2)
	require.Equal(t, "a-first", pools[0].ID)

	_, err = store.GetPool(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testReservationNotFound(t *testing.T, store domain.Store) {
	ctx := context.Background()
	_, err := store.GetReservation(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = store.UpdateReservation(ctx, domain.Reservation{ID: "nope"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testFindOverlapping(t *testing.T, store domain.Store) {
	ctx := context.Background()
	insert(t, store, domain.Reservation{ID: "r1", PoolID: "p", UserID: "u", Start: at(1, 10), End: at(1, 12), MachineCount: 1})
	insert(t, store, domain.Reservation{ID: "r2", PoolID: "p", UserID: "u", Start: at(1, 12), End: at(1, 14), MachineCount: 2})
	insert(t, store, domain.Reservation{ID: "r3", PoolID: "p", UserID: "u", Start: at(1, 11), End: at(1, 13), MachineCount: 3, Cancelled: true})
	insert(t, store, domain.Reservation{ID: "other", PoolID: "q", UserID: "u", Start: at(1, 10), End: at(1, 14), MachineCount: 4})

	got, err := store.FindOverlapping(ctx, "p", at(1, 11), at(1, 12), false)
	require.NoError(t, err)
	require.Equal(t, []string{"r1"}, ids(got))

	got, err = store.FindOverlapping(ctx, "p", at(1, 11), at(1, 12), true)
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r3"}, ids(got))

	got, err = store.FindOverlapping(ctx, "p", at(1, 9), at(1, 15), false)
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r2"}, ids(got))

	got, err = store.FindOverlapping(ctx, "p", at(1, 14), at(1, 16), false)
	require.NoError(t, err)
	require.Empty(t, got)
}

func testUpdateReservation(t *testing.T, store domain.Store) {
	ctx := context.Background()
	r := insert(t, store, domain.Reservation{ID: "r1", PoolID: "p", UserID: "u", Start: at(2, 8), End: at(2, 9), MachineCount: 1})

	r.Start = at(2, 10)
	r.End = at(2, 12)
	r.MachineCount = 5
	require.NoError(t, store.UpdateReservation(ctx, r))

	got, err := store.GetReservation(ctx, "r1")
	require.NoError(t, err)
	require.True(t, got.Start.Equal(at(2, 10)))
	require.True(t, got.End.Equal(at(2, 12)))
	require.Equal(t, 5, got.MachineCount)

	found, err := store.FindOverlapping(ctx, "p", at(2, 8), at(2, 9), false)
	require.NoError(t, err)
	require.Empty(t, found)
}

func testListReservations(t *testing.T, store domain.Store) {
	ctx := context.Background()
	insert(t, store, domain.Reservation{ID: "a", PoolID: "p", UserID: "alice", Start: at(3, 8), End: at(3, 9), MachineCount: 1})
	insert(t, store, domain.Reservation{ID: "b", PoolID: "p", UserID: "bob", Start: at(3, 9), End: at(3, 10), MachineCount: 1})
	insert(t, store, domain.Reservation{ID: "c", PoolID: "q", UserID: "alice", Start: at(3, 7), End: at(3, 8), MachineCount: 1, Cancelled: true})

	all, err := store.ListReservations(ctx, domain.ReservationFilter{IncludeCancelled: true})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, ids(all))

	alice, err := store.ListReservations(ctx, domain.ReservationFilter{UserID: "alice"})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids(alice))

	pool, err := store.ListReservations(ctx, domain.ReservationFilter{PoolID: "p", UserID: "bob"})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, ids(pool))
}

func testRemovePool(t *testing.T, store domain.Store) {
	ctx := context.Background()
	require.NoError(t, store.PutPool(ctx, domain.Pool{ID: "p", MaximumCount: 4, Enabled: true}))
	insert(t, store, domain.Reservation{ID: "live", PoolID: "p", UserID: "u", Start: at(4, 8), End: at(4, 9), MachineCount: 1})
	insert(t, store, domain.Reservation{ID: "old", PoolID: "p", UserID: "u", Start: at(4, 9), End: at(4, 10), MachineCount: 1, Cancelled: true})

	cancelled, err := store.RemovePool(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, 1, cancelled)

	_, err = store.GetPool(ctx, "p")
	require.ErrorIs(t, err, domain.ErrNotFound)

	for _, id := range []string{"live", "old"} {
		r, err := store.GetReservation(ctx, id)
		require.NoError(t, err, "reservations are kept for history")
		require.True(t, r.Cancelled)
		require.Empty(t, r.PoolID)
	}

	found, err := store.FindOverlapping(ctx, "p", at(4, 0), at(4, 23), true)
	require.NoError(t, err)
	require.Empty(t, found)

	_, err = store.RemovePool(ctx, "p")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testDuplicateInsert(t *testing.T, store domain.Store) {
	r := insert(t, store, domain.Reservation{ID: "dup", PoolID: "p", UserID: "u", Start: at(5, 8), End: at(5, 9), MachineCount: 1})
	_, err := store.InsertReservation(context.Background(), r)
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func insert(t *testing.T, store domain.Store, r domain.Reservation) domain.Reservation {
	t.Helper()
	out, err := store.InsertReservation(context.Background(), r)
	require.NoError(t, err)
	return out
}

func ids(list []domain.Reservation) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}
