package domain

import "time"

// Software is a package installed on every machine of a pool.
type Software struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Pool is a named capacity of interchangeable virtual machines.
type Pool struct {
	ID                string     `json:"id"`
	DisplayName       string     `json:"displayName"`
	MaximumCount      int        `json:"maximumCount"`
	Enabled           bool       `json:"enabled"`
	Description       string     `json:"description,omitempty"`
	OSName            string     `json:"osName,omitempty"`
	InstalledSoftware []Software `json:"installedSoftware,omitempty"`
}

// Clone returns a copy that shares no slices with p.
func (p Pool) Clone() Pool {
	if p.InstalledSoftware != nil {
		p.InstalledSoftware = append([]Software(nil), p.InstalledSoftware...)
	}
	return p
}

// Reservation is a claim on MachineCount machines of a pool for [Start, End).
// PoolID is empty once the owning pool has been removed.
type Reservation struct {
	ID           string    `json:"id"`
	PoolID       string    `json:"poolId"`
	UserID       string    `json:"userId"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	MachineCount int       `json:"machineCount"`
	Cancelled    bool      `json:"cancelled"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (r Reservation) Window() Window {
	return Window{Start: r.Start, End: r.End}
}

// Active reports whether r holds machines at instant t.
func (r Reservation) Active(t time.Time) bool {
	return !r.Cancelled && !t.Before(r.Start) && t.Before(r.End)
}

// ReservationFilter selects reservations for listing. Empty fields match everything.
type ReservationFilter struct {
	PoolID           string
	UserID           string
	IncludeCancelled bool
}

func (f ReservationFilter) Match(r Reservation) bool {
	if f.PoolID != "" && r.PoolID != f.PoolID {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if r.Cancelled && !f.IncludeCancelled {
		return false
	}
	return true
}

// SeriesMode selects how sibling reservations are matched.
type SeriesMode string

const (
	// SeriesModeSeries matches reservations on the same weekly slot.
	SeriesModeSeries SeriesMode = "series"
	// SeriesModeAll matches every reservation of the same pool and user.
	SeriesModeAll SeriesMode = "all"
)

func (m SeriesMode) Valid() bool {
	return m == SeriesModeSeries || m == SeriesModeAll
}
