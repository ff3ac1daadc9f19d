package boltstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"vmpool/internal/domain"
)

var ErrStoreClosed = errors.New("reservation store is closed")

// Store persists pools and reservations in a bbolt file. Values are JSON documents.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	closed bool
}

func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}
	options := &bolt.Options{Timeout: time.Second}
	base, err := bolt.Open(trimmed, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	if err := ensureSchema(base); err != nil {
		_ = base.Close()
		return nil, err
	}
	return &Store{db: base, path: trimmed}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) FindOverlapping(ctx context.Context, poolID string, start, end time.Time, includeCancelled bool) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Reservation
	err := s.view(func(tx *bolt.Tx) error {
		return forEachInPool(tx, poolID, func(r domain.Reservation) error {
			if r.Cancelled && !includeCancelled {
				return nil
			}
			if domain.Overlaps(r.Start, r.End, start, end) {
				out = append(out, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
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
	err := s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reservationsBucketName))
		if bucket.Get([]byte(r.ID)) != nil {
			return fmt.Errorf("reservation %s: %w", r.ID, domain.ErrAlreadyExists)
		}
		return putReservation(tx, r)
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return r, nil
}

func (s *Store) UpdateReservation(ctx context.Context, r domain.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		prev, err := getReservation(tx, r.ID)
		if err != nil {
			return err
		}
		if prev.PoolID != r.PoolID {
			if err := unindex(tx, prev); err != nil {
				return err
			}
		}
		return putReservation(tx, r)
	})
}

func (s *Store) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	var out domain.Reservation
	err := s.view(func(tx *bolt.Tx) error {
		r, err := getReservation(tx, id)
		out = r
		return err
	})
	return out, err
}

func (s *Store) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Reservation
	collect := func(r domain.Reservation) error {
		if filter.Match(r) {
			out = append(out, r)
		}
		return nil
	}
	err := s.view(func(tx *bolt.Tx) error {
		if filter.PoolID != "" {
			return forEachInPool(tx, filter.PoolID, collect)
		}
		return tx.Bucket([]byte(reservationsBucketName)).ForEach(func(_, value []byte) error {
			r, err := decodeReservation(value)
			if err != nil {
				return err
			}
			return collect(r)
		})
	})
	if err != nil {
		return nil, err
	}
	sortReservations(out)
	return out, nil
}

func (s *Store) GetPool(ctx context.Context, id string) (domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Pool{}, err
	}
	var out domain.Pool
	err := s.view(func(tx *bolt.Tx) error {
		value := tx.Bucket([]byte(poolsBucketName)).Get([]byte(id))
		if value == nil {
			return fmt.Errorf("pool %s: %w", id, domain.ErrNotFound)
		}
		return json.Unmarshal(value, &out)
	})
	return out, err
}

func (s *Store) ListPools(ctx context.Context) ([]domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Pool
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(poolsBucketName)).ForEach(func(_, value []byte) error {
			var pool domain.Pool
			if err := json.Unmarshal(value, &pool); err != nil {
				return fmt.Errorf("decode pool: %w", err)
			}
			out = append(out, pool)
			return nil
		})
	})
	if err != nil {
		return nil, err
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
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("encode pool %s: %w", pool.ID, err)
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(poolsBucketName)).Put([]byte(pool.ID), data)
	})
}

func (s *Store) RemovePool(ctx context.Context, id string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cancelled := 0
	err := s.update(func(tx *bolt.Tx) error {
		pools := tx.Bucket([]byte(poolsBucketName))
		if pools.Get([]byte(id)) == nil {
			return fmt.Errorf("pool %s: %w", id, domain.ErrNotFound)
		}

		var owned []domain.Reservation
		if err := forEachInPool(tx, id, func(r domain.Reservation) error {
			owned = append(owned, r)
			return nil
		}); err != nil {
			return err
		}
		for _, r := range owned {
			if !r.Cancelled {
				r.Cancelled = true
				cancelled++
			}
			r.PoolID = ""
			if err := putReservation(tx, r); err != nil {
				return err
			}
		}

		index := tx.Bucket([]byte(poolIndexBucketName))
		if index.Bucket(indexKey(id)) != nil {
			if err := index.DeleteBucket(indexKey(id)); err != nil {
				return fmt.Errorf("drop pool index %s: %w", id, err)
			}
		}
		return pools.Delete([]byte(id))
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.Update(fn)
}

func getReservation(tx *bolt.Tx, id string) (domain.Reservation, error) {
	value := tx.Bucket([]byte(reservationsBucketName)).Get([]byte(id))
	if value == nil {
		return domain.Reservation{}, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	return decodeReservation(value)
}

func putReservation(tx *bolt.Tx, r domain.Reservation) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reservation %s: %w", r.ID, err)
	}
	if err := tx.Bucket([]byte(reservationsBucketName)).Put([]byte(r.ID), data); err != nil {
		return fmt.Errorf("write reservation %s: %w", r.ID, err)
	}
	poolIndex, err := tx.Bucket([]byte(poolIndexBucketName)).CreateBucketIfNotExists(indexKey(r.PoolID))
	if err != nil {
		return fmt.Errorf("create pool index: %w", err)
	}
	return poolIndex.Put([]byte(r.ID), nil)
}

func unindex(tx *bolt.Tx, r domain.Reservation) error {
	poolIndex := tx.Bucket([]byte(poolIndexBucketName)).Bucket(indexKey(r.PoolID))
	if poolIndex == nil {
		return nil
	}
	return poolIndex.Delete([]byte(r.ID))
}

func forEachInPool(tx *bolt.Tx, poolID string, fn func(domain.Reservation) error) error {
	poolIndex := tx.Bucket([]byte(poolIndexBucketName)).Bucket(indexKey(poolID))
	if poolIndex == nil {
		return nil
	}
	reservations := tx.Bucket([]byte(reservationsBucketName))
	return poolIndex.ForEach(func(key, _ []byte) error {
		value := reservations.Get(key)
		if value == nil {
			return nil
		}
		r, err := decodeReservation(value)
		if err != nil {
			return err
		}
		return fn(r)
	})
}

func decodeReservation(value []byte) (domain.Reservation, error) {
	var r domain.Reservation
	if err := json.Unmarshal(value, &r); err != nil {
		return domain.Reservation{}, fmt.Errorf("decode reservation: %w", err)
	}
	return r, nil
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
