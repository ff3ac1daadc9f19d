package domain

import (
	"context"
	"time"
)

// ReservationStore persists reservation records. Lookups that miss return ErrNotFound.
type ReservationStore interface {
	// FindOverlapping returns reservations of poolID whose window overlaps [start, end).
	FindOverlapping(ctx context.Context, poolID string, start, end time.Time, includeCancelled bool) ([]Reservation, error)
	InsertReservation(ctx context.Context, r Reservation) (Reservation, error)
	UpdateReservation(ctx context.Context, r Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
}

// PoolStore persists pool definitions.
type PoolStore interface {
	GetPool(ctx context.Context, id string) (Pool, error)
	ListPools(ctx context.Context) ([]Pool, error)
	PutPool(ctx context.Context, pool Pool) error
	// RemovePool deletes the pool, cancels its active reservations and clears the
	// pool linkage of every reservation it owned, in one step. It returns the
	// number of reservations that were cancelled.
	RemovePool(ctx context.Context, id string) (int, error)
}

type Store interface {
	ReservationStore
	PoolStore
	Close() error
}
