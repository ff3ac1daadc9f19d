package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"vmpool/internal/infra/stats"
)

func statsWindow(r *http.Request, op string) (time.Time, time.Time, error) {
	start, err := timeQuery(r, "start", false)
	if err != nil {
		return time.Time{}, time.Time{}, badRequest(op, err.Error())
	}
	end, err := timeQuery(r, "end", false)
	if err != nil {
		return time.Time{}, time.Time{}, badRequest(op, err.Error())
	}
	return start, end, nil
}

func (h *Handler) statsPools(w http.ResponseWriter, r *http.Request) {
	start, end, err := statsWindow(r, "stats pools")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.reporter.MostReservedPools(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) statsUsers(w http.ResponseWriter, r *http.Request) {
	start, end, err := statsWindow(r, "stats users")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.reporter.UserReservationTime(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// statsBottlenecks accepts interval (Go duration, at least 1m), threshold (0..1) and
// top=true to keep only the worst pools.
func (h *Handler) statsBottlenecks(w http.ResponseWriter, r *http.Request) {
	const op = "stats bottlenecks"
	start, end, err := statsWindow(r, op)
	if err != nil {
		writeError(w, err)
		return
	}
	q := stats.BottleneckQuery{Start: start, End: end}
	if raw := r.URL.Query().Get("interval"); raw != "" {
		q.Interval, err = time.ParseDuration(raw)
		if err != nil || q.Interval <= 0 {
			writeError(w, badRequest(op, "interval must be a positive duration"))
			return
		}
	}
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, badRequest(op, "threshold must be a number"))
			return
		}
		q.Threshold = &threshold
	}
	top, err := boolQuery(r, "top")
	if err != nil {
		writeError(w, badRequest(op, err.Error()))
		return
	}

	var out []stats.BottleneckHours
	if top {
		out, err = h.reporter.TopBottleneckedPools(r.Context(), q)
	} else {
		out, err = h.reporter.PoolBottlenecks(r.Context(), q)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) statsMaxUsage(w http.ResponseWriter, r *http.Request) {
	start, end, err := statsWindow(r, "stats max usage")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.reporter.MaximumUsage(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
