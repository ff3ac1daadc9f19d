package telemetry

import (
	"sort"
	"sync"
	"time"
)

// HealthTracker collects heartbeats from long-running loops. A loop whose last
// beat is older than its staleness bound marks the process unhealthy.
type HealthTracker struct {
	mu     sync.Mutex
	now    func() time.Time
	checks map[string]*Heartbeat
}

type Heartbeat struct {
	tracker    *HealthTracker
	name       string
	staleAfter time.Duration
	last       time.Time
}

type HealthCheck struct {
	Name     string    `json:"name"`
	Healthy  bool      `json:"healthy"`
	LastBeat time.Time `json:"lastBeat,omitempty"`
}

type HealthReport struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks,omitempty"`
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		now:    time.Now,
		checks: make(map[string]*Heartbeat),
	}
}

// Register adds a named loop. Until its first Beat the loop counts as unhealthy.
func (h *HealthTracker) Register(name string, staleAfter time.Duration) *Heartbeat {
	h.mu.Lock()
	defer h.mu.Unlock()
	beat := &Heartbeat{tracker: h, name: name, staleAfter: staleAfter}
	h.checks[name] = beat
	return beat
}

func (h *HealthTracker) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.checks, name)
}

func (b *Heartbeat) Beat() {
	if b == nil || b.tracker == nil {
		return
	}
	b.tracker.mu.Lock()
	defer b.tracker.mu.Unlock()
	b.last = b.tracker.now()
}

func (h *HealthTracker) Report() HealthReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	report := HealthReport{Status: "ok"}
	for _, beat := range h.checks {
		healthy := !beat.last.IsZero() && now.Sub(beat.last) <= beat.staleAfter
		if !healthy {
			report.Status = "degraded"
		}
		report.Checks = append(report.Checks, HealthCheck{
			Name:     beat.name,
			Healthy:  healthy,
			LastBeat: beat.last,
		})
	}
	sort.Slice(report.Checks, func(i, j int) bool { return report.Checks[i].Name < report.Checks[j].Name })
	return report
}
