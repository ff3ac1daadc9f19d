package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"vmpool/internal/domain"
)

func TestAvailable_EmptyPoolReturnsCapacity(t *testing.T) {
	f := newFixture(t, pool("p", 10))

	free, err := f.engine.Available(context.Background(), "p", at(1, 0), at(2, 0))
	require.NoError(t, err)
	require.Equal(t, 10, free)
}

func TestAvailable_FullCoverageSubtractsCount(t *testing.T) {
	f := newFixture(t, pool("p", 10))
	f.create(t, "p", 4, at(1, 0), at(2, 0))

	free, err := f.engine.Available(context.Background(), "p", at(1, 0), at(2, 0))
	require.NoError(t, err)
	require.Equal(t, 6, free)
}

func TestAvailable_PartialCoverageUsesTightestInstant(t *testing.T) {
	f := newFixture(t, pool("p", 10))
	f.create(t, "p", 4, at(1, 0), at(1, 12))

	free, err := f.engine.Available(context.Background(), "p", at(1, 0), at(2, 0))
	require.NoError(t, err)
	require.Equal(t, 6, free)
}

func TestAvailable_StaggeredReservations(t *testing.T) {
	f := newFixture(t, pool("p", 10))
	f.create(t, "p", 3, at(1, 10), at(1, 12))
	f.create(t, "p", 4, at(1, 11), at(1, 13))
	f.create(t, "p", 2, at(1, 12), at(1, 14))

	cases := []struct {
		name       string
		start, end int
		want       int
	}{
		{name: "before all", start: 8, end: 10, want: 10},
		{name: "first only", start: 10, end: 11, want: 7},
		{name: "peak overlap", start: 10, end: 14, want: 3},
		{name: "second and third", start: 12, end: 13, want: 4},
		{name: "tail", start: 13, end: 14, want: 8},
		{name: "after all", start: 14, end: 20, want: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			free, err := f.engine.Available(context.Background(), "p", at(1, tc.start), at(1, tc.end))
			require.NoError(t, err)
			require.Equal(t, tc.want, free)
		})
	}
}

func TestAvailable_TouchingWindowsDoNotOverlap(t *testing.T) {
	f := newFixture(t, pool("p", 5))
	f.create(t, "p", 5, at(1, 10), at(1, 12))

	free, err := f.engine.Available(context.Background(), "p", at(1, 12), at(1, 14))
	require.NoError(t, err)
	require.Equal(t, 5, free)

	free, err = f.engine.Available(context.Background(), "p", at(1, 8), at(1, 10))
	require.NoError(t, err)
	require.Equal(t, 5, free)
}

func TestAvailable_IgnoresCancelled(t *testing.T) {
	f := newFixture(t, pool("p", 5))
	r := f.create(t, "p", 5, at(1, 10), at(1, 12))
	_, err := f.engine.Cancel(context.Background(), r.ID)
	require.NoError(t, err)

	free, err := f.engine.Available(context.Background(), "p", at(1, 10), at(1, 12))
	require.NoError(t, err)
	require.Equal(t, 5, free)
}

func TestAvailable_ExposesInvariantViolation(t *testing.T) {
	f := newFixture(t, pool("p", 5))
	f.seed(t, domain.Reservation{ID: "r1", PoolID: "p", UserID: "u", MachineCount: 3, Start: at(1, 10), End: at(1, 12)})
	f.seed(t, domain.Reservation{ID: "r2", PoolID: "p", UserID: "u", MachineCount: 3, Start: at(1, 11), End: at(1, 13)})

	free, err := f.engine.Available(context.Background(), "p", at(1, 10), at(1, 13))
	require.NoError(t, err)
	require.Equal(t, -1, free)
}

func TestAvailable_Errors(t *testing.T) {
	disabled := pool("off", 5)
	disabled.Enabled = false
	f := newFixture(t, pool("p", 5), disabled)
	ctx := context.Background()

	_, err := f.engine.Available(ctx, "off", at(1, 0), at(1, 1))
	require.ErrorIs(t, err, domain.ErrPoolDisabled)

	_, err = f.engine.Available(ctx, "missing", at(1, 0), at(1, 1))
	require.ErrorIs(t, err, domain.ErrNotFound)
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.CodeNotFound, code)

	_, err = f.engine.Available(ctx, "p", at(1, 1), at(1, 1))
	require.ErrorIs(t, err, domain.ErrInvalidWindow)

	_, err = f.engine.Available(ctx, "p", at(1, 2), at(1, 1))
	require.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestPeakUsage(t *testing.T) {
	rs := []domain.Reservation{
		{ID: "a", MachineCount: 2, Start: at(1, 0), End: at(1, 4)},
		{ID: "b", MachineCount: 3, Start: at(1, 2), End: at(1, 6)},
		{ID: "c", MachineCount: 9, Start: at(1, 1), End: at(1, 5), Cancelled: true},
	}

	require.Equal(t, 5, PeakUsage(domain.Window{Start: at(1, 0), End: at(1, 6)}, rs))
	require.Equal(t, 3, PeakUsage(domain.Window{Start: at(1, 4), End: at(1, 6)}, rs))
	require.Equal(t, 0, PeakUsage(domain.Window{Start: at(1, 6), End: at(1, 8)}, rs))
}
