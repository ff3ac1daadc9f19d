package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/infra/telemetry"
)

// poolLocks hands out one exclusive slot per pool id. Waiting is bounded by
// timeout so a stuck holder surfaces as ErrContention instead of a hang.
// A slot lives only while some caller holds or waits for it, so the map is
// bounded by in-flight operations rather than by every pool id ever seen.
type poolLocks struct {
	mu      sync.Mutex
	slots   map[string]*poolSlot
	timeout time.Duration
}

type poolSlot struct {
	ch   chan struct{}
	refs int
}

func newPoolLocks(timeout time.Duration) *poolLocks {
	return &poolLocks{
		slots:   make(map[string]*poolSlot),
		timeout: timeout,
	}
}

func (l *poolLocks) join(poolID string) *poolSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[poolID]
	if !ok {
		slot = &poolSlot{ch: make(chan struct{}, 1)}
		l.slots[poolID] = slot
	}
	slot.refs++
	return slot
}

func (l *poolLocks) leave(poolID string, slot *poolSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, poolID)
	}
}

func (l *poolLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *poolLocks) acquire(ctx context.Context, poolID string) (func(), domain.LockOutcome, error) {
	slot := l.join(poolID)
	release := func() {
		<-slot.ch
		l.leave(poolID, slot)
	}

	select {
	case slot.ch <- struct{}{}:
		return release, domain.LockOutcomeAcquired, nil
	default:
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case slot.ch <- struct{}{}:
		return release, domain.LockOutcomeAcquired, nil
	case <-timer.C:
		l.leave(poolID, slot)
		return nil, domain.LockOutcomeTimeout, domain.ErrContention
	case <-ctx.Done():
		l.leave(poolID, slot)
		return nil, domain.LockOutcomeCanceled, ctx.Err()
	}
}

// withPoolLock runs fn while holding the lock of poolID.
func (e *Engine) withPoolLock(ctx context.Context, op, poolID string, fn func(context.Context) error) error {
	waitStart := time.Now()
	release, outcome, err := e.locks.acquire(ctx, poolID)
	if e.metrics != nil {
		e.metrics.ObserveLockWait(poolID, time.Since(waitStart), outcome)
	}
	if err != nil {
		if errors.Is(err, domain.ErrContention) {
			e.logger.Warn("pool lock wait timed out",
				telemetry.EventField(telemetry.EventLockContention),
				telemetry.PoolIDField(poolID),
				zap.String("op", op),
				telemetry.DurationField(time.Since(waitStart)),
			)
			return domain.E(domain.CodeUnavailable, op, "pool "+poolID+" is busy", domain.ErrContention)
		}
		return wrapEngineError(op, err)
	}
	defer release()
	return fn(ctx)
}
