package domain

import "time"

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the window has a positive length.
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

func (w Window) Overlaps(other Window) bool {
	return Overlaps(w.Start, w.End, other.Start, other.End)
}

// Contains reports whether other lies entirely inside w.
func (w Window) Contains(other Window) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

// Intersect returns the common part of w and other, or false when they do not overlap.
func (w Window) Intersect(other Window) (Window, bool) {
	if !w.Overlaps(other) {
		return Window{}, false
	}
	out := w
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share an instant.
// Windows that only touch at a boundary do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// SplitPoint returns the boundary of r lying strictly inside w: its start when
// r begins inside w, otherwise its end when r ends inside w.
func SplitPoint(w Window, r Reservation) (time.Time, bool) {
	if strictlyInside(w, r.Start) {
		return r.Start, true
	}
	if strictlyInside(w, r.End) {
		return r.End, true
	}
	return time.Time{}, false
}

func strictlyInside(w Window, t time.Time) bool {
	return w.Start.Before(t) && t.Before(w.End)
}
