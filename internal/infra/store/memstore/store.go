package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"vmpool/internal/domain"
)

var ErrStoreClosed = errors.New("memory store is closed")

// Store keeps pools and reservations in process memory. Reservations are indexed
// by pool id so overlap queries never scan foreign pools.
type Store struct {
	mu           sync.RWMutex
	pools        map[string]domain.Pool
	reservations map[string]domain.Reservation
	byPool       map[string]map[string]struct{}
	closed       bool
}

func New() *Store {
	return &Store{
		pools:        make(map[string]domain.Pool),
		reservations: make(map[string]domain.Reservation),
		byPool:       make(map[string]map[string]struct{}),
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) FindOverlapping(ctx context.Context, poolID string, start, end time.Time, includeCancelled bool) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var out []domain.Reservation
	for id := range s.byPool[poolID] {
		r := s.reservations[id]
		if r.Cancelled && !includeCancelled {
			continue
		}
		if !domain.Overlaps(r.Start, r.End, start, end) {
			continue
		}
		out = append(out, r)
	}
	sortReservations(out)
	return out, nil
}

func (s *Store) InsertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	if strings.TrimSpace(r.ID) == "" {
		return domain.Reservation{}, errors.New("reservation id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Reservation{}, ErrStoreClosed
	}
	if _, exists := s.reservations[r.ID]; exists {
		return domain.Reservation{}, fmt.Errorf("reservation %s: %w", r.ID, domain.ErrAlreadyExists)
	}
	s.reservations[r.ID] = r
	s.indexLocked(r)
	return r, nil
}

func (s *Store) UpdateReservation(ctx context.Context, r domain.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	prev, ok := s.reservations[r.ID]
	if !ok {
		return fmt.Errorf("reservation %s: %w", r.ID, domain.ErrNotFound)
	}
	if prev.PoolID != r.PoolID {
		s.unindexLocked(prev)
	}
	s.reservations[r.ID] = r
	s.indexLocked(r)
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.Reservation{}, ErrStoreClosed
	}
	r, ok := s.reservations[id]
	if !ok {
		return domain.Reservation{}, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (s *Store) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var out []domain.Reservation
	if filter.PoolID != "" {
		for id := range s.byPool[filter.PoolID] {
			if r := s.reservations[id]; filter.Match(r) {
				out = append(out, r)
			}
		}
	} else {
		for _, r := range s.reservations {
			if filter.Match(r) {
				out = append(out, r)
			}
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *Store) GetPool(ctx context.Context, id string) (domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Pool{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.Pool{}, ErrStoreClosed
	}
	pool, ok := s.pools[id]
	if !ok {
		return domain.Pool{}, fmt.Errorf("pool %s: %w", id, domain.ErrNotFound)
	}
	return pool.Clone(), nil
}

func (s *Store) ListPools(ctx context.Context) ([]domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]domain.Pool, 0, len(s.pools))
	for _, pool := range s.pools {
		out = append(out, pool.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) PutPool(ctx context.Context, pool domain.Pool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(pool.ID) == "" {
		return errors.New("pool id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.pools[pool.ID] = pool.Clone()
	return nil
}

func (s *Store) RemovePool(ctx context.Context, id string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	if _, ok := s.pools[id]; !ok {
		return 0, fmt.Errorf("pool %s: %w", id, domain.ErrNotFound)
	}

	cancelled := 0
	for rid := range s.byPool[id] {
		r := s.reservations[rid]
		if !r.Cancelled {
			r.Cancelled = true
			cancelled++
		}
		r.PoolID = ""
		s.reservations[rid] = r
		s.indexLocked(r)
	}
	delete(s.byPool, id)
	delete(s.pools, id)
	return cancelled, nil
}

func (s *Store) indexLocked(r domain.Reservation) {
	ids, ok := s.byPool[r.PoolID]
	if !ok {
		ids = make(map[string]struct{})
		s.byPool[r.PoolID] = ids
	}
	ids[r.ID] = struct{}{}
}

func (s *Store) unindexLocked(r domain.Reservation) {
	ids, ok := s.byPool[r.PoolID]
	if !ok {
		return
	}
	delete(ids, r.ID)
	if len(ids) == 0 {
		delete(s.byPool, r.PoolID)
	}
}

func sortReservations(list []domain.Reservation) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Start.Equal(list[j].Start) {
			return list[i].Start.Before(list[j].Start)
		}
		return list[i].ID < list[j].ID
	})
}

var _ domain.Store = (*Store)(nil)
