package httpapi

import (
	"net/http"
	"time"

	"vmpool/internal/domain"
	"vmpool/internal/engine"
)

type createReservationRequest struct {
	PoolID       string    `json:"poolId"`
	UserID       string    `json:"userId"`
	MachineCount int       `json:"machineCount"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

type editReservationRequest struct {
	Start        *time.Time `json:"start"`
	End          *time.Time `json:"end"`
	MachineCount *int       `json:"machineCount"`
}

type cancelManyRequest struct {
	IDs []string `json:"ids"`
}

// CancelOutcome is one entry of a bulk cancellation response.
type CancelOutcome struct {
	ID    string           `json:"id"`
	OK    bool             `json:"ok"`
	Error string           `json:"error,omitempty"`
	Code  domain.ErrorCode `json:"code,omitempty"`
}

func cancelOutcomes(results []engine.CancelResult) []CancelOutcome {
	out := make([]CancelOutcome, 0, len(results))
	for _, res := range results {
		o := CancelOutcome{ID: res.ID, OK: res.Err == nil}
		if res.Err != nil {
			o.Error = res.Err.Error()
			o.Code, _ = domain.CodeFrom(res.Err)
		}
		out = append(out, o)
	}
	return out
}

func (h *Handler) listReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeCancelled, err := boolQuery(r, "includeCancelled")
	if err != nil {
		writeError(w, badRequest("list reservations", err.Error()))
		return
	}
	rs, err := h.engine.ListReservations(r.Context(), domain.ReservationFilter{
		PoolID:           q.Get("pool"),
		UserID:           q.Get("user"),
		IncludeCancelled: includeCancelled,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if rs == nil {
		rs = []domain.Reservation{}
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *Handler) createReservation(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, badRequest("create reservation", err.Error()))
		return
	}
	var created domain.Reservation
	err := h.retryWrite(r.Context(), func() error {
		var err error
		created, err = h.engine.CreateReservation(r.Context(), engine.CreateRequest(req))
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.GetReservation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) editReservation(w http.ResponseWriter, r *http.Request) {
	var req editReservationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, badRequest("edit reservation", err.Error()))
		return
	}
	var updated domain.Reservation
	err := h.retryWrite(r.Context(), func() error {
		var err error
		updated, err = h.engine.EditReservation(r.Context(), r.PathValue("id"), engine.EditRequest(req))
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	var cancelled domain.Reservation
	err := h.retryWrite(r.Context(), func() error {
		var err error
		cancelled, err = h.engine.Cancel(r.Context(), r.PathValue("id"))
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

// cancelReservations answers 200 even when some ids fail; each entry carries
// its own outcome.
func (h *Handler) cancelReservations(w http.ResponseWriter, r *http.Request) {
	var req cancelManyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, badRequest("cancel reservations", err.Error()))
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, badRequest("cancel reservations", "ids is required"))
		return
	}
	results := make([]engine.CancelResult, 0, len(req.IDs))
	for _, id := range req.IDs {
		err := h.retryWrite(r.Context(), func() error {
			_, err := h.engine.Cancel(r.Context(), id)
			return err
		})
		results = append(results, engine.CancelResult{ID: id, Err: err})
	}
	writeJSON(w, http.StatusOK, cancelOutcomes(results))
}

func (h *Handler) series(w http.ResponseWriter, r *http.Request) {
	start, end, mode, err := seriesQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rs, err := h.engine.Series(r.Context(), r.PathValue("id"), start, end, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	if rs == nil {
		rs = []domain.Reservation{}
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *Handler) cancelSeries(w http.ResponseWriter, r *http.Request) {
	start, end, mode, err := seriesQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	results, err := h.engine.CancelSeries(r.Context(), r.PathValue("id"), start, end, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelOutcomes(results))
}

// seriesQuery reads start, end and mode; mode defaults to "series".
func seriesQuery(r *http.Request) (time.Time, time.Time, domain.SeriesMode, error) {
	const op = "series"
	start, err := timeQuery(r, "start", true)
	if err != nil {
		return time.Time{}, time.Time{}, "", badRequest(op, err.Error())
	}
	end, err := timeQuery(r, "end", true)
	if err != nil {
		return time.Time{}, time.Time{}, "", badRequest(op, err.Error())
	}
	mode := domain.SeriesMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = domain.SeriesModeSeries
	}
	return start, end, mode, nil
}
