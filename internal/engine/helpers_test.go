package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/infra/store/memstore"
)

var testNow = time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC)

// at returns 2021-01-<day> <hour>:00 UTC.
func at(day, hour int) time.Time {
	return time.Date(2021, time.January, day, hour, 0, 0, 0, time.UTC)
}

type fixture struct {
	engine  *Engine
	store   *memstore.Store
	metrics *recordingMetrics
}

func newFixture(t *testing.T, pools ...domain.Pool) *fixture {
	t.Helper()
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	for _, p := range pools {
		require.NoError(t, store.PutPool(ctx, p))
	}
	metrics := &recordingMetrics{}
	var seq int
	var seqMu sync.Mutex
	eng := New(store, Options{
		Clock:       domain.FixedClock(testNow),
		Logger:      zap.NewNop(),
		Metrics:     metrics,
		LockTimeout: 50 * time.Millisecond,
		NewID: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("r-%d", seq)
		},
	})
	return &fixture{engine: eng, store: store, metrics: metrics}
}

func pool(id string, capacity int) domain.Pool {
	return domain.Pool{ID: id, DisplayName: id, MaximumCount: capacity, Enabled: true}
}

func (f *fixture) create(t *testing.T, poolID string, count int, start, end time.Time) domain.Reservation {
	t.Helper()
	r, err := f.engine.CreateReservation(context.Background(), CreateRequest{
		PoolID:       poolID,
		UserID:       "alice",
		MachineCount: count,
		Start:        start,
		End:          end,
	})
	require.NoError(t, err)
	return r
}

// seed stores a reservation without any admission check.
func (f *fixture) seed(t *testing.T, r domain.Reservation) domain.Reservation {
	t.Helper()
	stored, err := f.store.InsertReservation(context.Background(), r)
	require.NoError(t, err)
	return stored
}

type recordingMetrics struct {
	mu         sync.Mutex
	operations []domain.OperationMetric
	lockWaits  []domain.LockOutcome
	capacity   map[string]int
}

func (m *recordingMetrics) ObserveOperation(metric domain.OperationMetric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = append(m.operations, metric)
}

func (m *recordingMetrics) ObserveLockWait(_ string, _ time.Duration, outcome domain.LockOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockWaits = append(m.lockWaits, outcome)
}

func (m *recordingMetrics) SetPoolCapacity(poolID string, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capacity == nil {
		m.capacity = make(map[string]int)
	}
	m.capacity[poolID] = capacity
}

func (m *recordingMetrics) ObserveAvailability(string, int) {}

func (m *recordingMetrics) lastOperation() domain.OperationMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.operations) == 0 {
		return domain.OperationMetric{}
	}
	return m.operations[len(m.operations)-1]
}
