package engine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/infra/telemetry"
)

// PoolUpdate changes the mutable fields of a pool. Nil fields are kept.
type PoolUpdate struct {
	MaximumCount *int
	Enabled      *bool
	DisplayName  *string
}

// UpsertSummary counts the pools touched by UpsertPools.
type UpsertSummary struct {
	Created   int
	Updated   int
	Unchanged int
}

func validatePool(op string, pool domain.Pool) error {
	if strings.TrimSpace(pool.ID) == "" {
		return domain.E(domain.CodeInvalidArgument, op, "pool id is required", nil)
	}
	if pool.MaximumCount < 0 {
		return reject(op, domain.ErrInvalidCount, "maximum count must not be negative")
	}
	return nil
}

// CreatePool registers a new pool. Pool ids are unique.
func (e *Engine) CreatePool(ctx context.Context, pool domain.Pool) (created domain.Pool, err error) {
	const op = "engine create pool"
	started := time.Now()
	defer func() { e.observe("create_pool", pool.ID, started, err) }()

	if err := validatePool(op, pool); err != nil {
		return domain.Pool{}, err
	}
	err = e.withPoolLock(ctx, op, pool.ID, func(ctx context.Context) error {
		_, err := e.store.GetPool(ctx, pool.ID)
		switch {
		case err == nil:
			return domain.E(domain.CodeAlreadyExists, op, "pool "+pool.ID+" already exists", domain.ErrAlreadyExists)
		case !errors.Is(err, domain.ErrNotFound):
			return wrapEngineError(op, err)
		}
		if err := e.store.PutPool(ctx, pool); err != nil {
			return wrapEngineError(op, err)
		}
		return nil
	})
	if err != nil {
		return domain.Pool{}, err
	}
	e.recordCapacity(pool)
	e.logger.Info("pool created",
		telemetry.EventField(telemetry.EventPoolCreated),
		telemetry.PoolIDField(pool.ID),
		zap.Int("maximumCount", pool.MaximumCount),
		zap.Bool("enabled", pool.Enabled),
	)
	return pool.Clone(), nil
}

func (e *Engine) GetPool(ctx context.Context, id string) (domain.Pool, error) {
	return e.loadPool(ctx, "engine get pool", id)
}

// ListPools returns pools ordered by id, optionally only the enabled ones.
func (e *Engine) ListPools(ctx context.Context, onlyEnabled bool) ([]domain.Pool, error) {
	const op = "engine list pools"
	pools, err := e.store.ListPools(ctx)
	if err != nil {
		return nil, wrapEngineError(op, err)
	}
	out := make([]domain.Pool, 0, len(pools))
	for _, p := range pools {
		if onlyEnabled && !p.Enabled {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdatePool changes capacity, enabled flag or display name. Lowering the
// capacity below current usage is allowed; existing reservations are kept.
func (e *Engine) UpdatePool(ctx context.Context, id string, update PoolUpdate) (updated domain.Pool, err error) {
	const op = "engine update pool"
	started := time.Now()
	defer func() { e.observe("update_pool", id, started, err) }()

	if update.MaximumCount != nil && *update.MaximumCount < 0 {
		return domain.Pool{}, reject(op, domain.ErrInvalidCount, "maximum count must not be negative")
	}
	err = e.withPoolLock(ctx, op, id, func(ctx context.Context) error {
		pool, err := e.loadPool(ctx, op, id)
		if err != nil {
			return err
		}
		if update.MaximumCount != nil {
			pool.MaximumCount = *update.MaximumCount
		}
		if update.Enabled != nil {
			pool.Enabled = *update.Enabled
		}
		if update.DisplayName != nil {
			pool.DisplayName = *update.DisplayName
		}
		if err := e.store.PutPool(ctx, pool); err != nil {
			return wrapEngineError(op, err)
		}
		updated = pool
		return nil
	})
	if err != nil {
		return domain.Pool{}, err
	}
	e.recordCapacity(updated)
	e.logger.Info("pool updated",
		telemetry.EventField(telemetry.EventPoolUpdated),
		telemetry.PoolIDField(updated.ID),
		zap.Int("maximumCount", updated.MaximumCount),
		zap.Bool("enabled", updated.Enabled),
	)
	return updated, nil
}

// DeletePool removes the pool. Its active reservations are cancelled and every
// reservation it owned loses its pool link but stays on record. It returns the
// number of reservations cancelled.
func (e *Engine) DeletePool(ctx context.Context, id string) (cancelled int, err error) {
	const op = "engine delete pool"
	started := time.Now()
	defer func() { e.observe("delete_pool", id, started, err) }()

	err = e.withPoolLock(ctx, op, id, func(ctx context.Context) error {
		if _, err := e.loadPool(ctx, op, id); err != nil {
			return err
		}
		n, err := e.store.RemovePool(ctx, id)
		if err != nil {
			return wrapEngineError(op, err)
		}
		cancelled = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if e.metrics != nil {
		e.metrics.SetPoolCapacity(id, 0)
	}
	e.logger.Info("pool removed",
		telemetry.EventField(telemetry.EventPoolRemoved),
		telemetry.PoolIDField(id),
		zap.Int("cancelledReservations", cancelled),
	)
	return cancelled, nil
}

// UpsertPools creates missing pools and overwrites existing ones with the given
// definitions. Pools absent from the input are left alone.
func (e *Engine) UpsertPools(ctx context.Context, pools []domain.Pool) (UpsertSummary, error) {
	const op = "engine upsert pools"
	var summary UpsertSummary
	for _, pool := range pools {
		if err := validatePool(op, pool); err != nil {
			return summary, err
		}
	}
	for _, pool := range pools {
		err := e.withPoolLock(ctx, op, pool.ID, func(ctx context.Context) error {
			existing, err := e.store.GetPool(ctx, pool.ID)
			switch {
			case err == nil:
				if samePool(existing, pool) {
					summary.Unchanged++
					return nil
				}
				summary.Updated++
			case errors.Is(err, domain.ErrNotFound):
				summary.Created++
			default:
				return wrapEngineError(op, err)
			}
			if err := e.store.PutPool(ctx, pool); err != nil {
				return wrapEngineError(op, err)
			}
			return nil
		})
		if err != nil {
			return summary, err
		}
		e.recordCapacity(pool)
	}
	e.logger.Info("pools applied",
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("unchanged", summary.Unchanged),
	)
	return summary, nil
}

func (e *Engine) recordCapacity(pool domain.Pool) {
	if e.metrics == nil {
		return
	}
	capacity := pool.MaximumCount
	if !pool.Enabled {
		capacity = 0
	}
	e.metrics.SetPoolCapacity(pool.ID, capacity)
}

func samePool(a, b domain.Pool) bool {
	if a.ID != b.ID || a.DisplayName != b.DisplayName || a.MaximumCount != b.MaximumCount ||
		a.Enabled != b.Enabled || a.Description != b.Description || a.OSName != b.OSName {
		return false
	}
	if len(a.InstalledSoftware) != len(b.InstalledSoftware) {
		return false
	}
	for i := range a.InstalledSoftware {
		if a.InstalledSoftware[i] != b.InstalledSoftware[i] {
			return false
		}
	}
	return true
}
