package httpapi

import (
	"net/http"
	"strconv"

	"vmpool/internal/domain"
	"vmpool/internal/engine"
)

type poolPatch struct {
	MaximumCount *int    `json:"maximumCount"`
	Enabled      *bool   `json:"enabled"`
	DisplayName  *string `json:"displayName"`
}

type availabilityResponse struct {
	PoolID    string `json:"poolId"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Available int    `json:"available"`
}

func (h *Handler) listPools(w http.ResponseWriter, r *http.Request) {
	onlyEnabled, err := boolQuery(r, "enabled")
	if err != nil {
		writeError(w, badRequest("list pools", err.Error()))
		return
	}
	pools, err := h.engine.ListPools(r.Context(), onlyEnabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

func (h *Handler) createPool(w http.ResponseWriter, r *http.Request) {
	var pool domain.Pool
	if err := decodeBody(r, &pool); err != nil {
		writeError(w, badRequest("create pool", err.Error()))
		return
	}
	if pool.DisplayName == "" {
		pool.DisplayName = pool.ID
	}
	var created domain.Pool
	err := h.retryWrite(r.Context(), func() error {
		var err error
		created, err = h.engine.CreatePool(r.Context(), pool)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.engine.GetPool(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

func (h *Handler) updatePool(w http.ResponseWriter, r *http.Request) {
	var patch poolPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, badRequest("update pool", err.Error()))
		return
	}
	var updated domain.Pool
	err := h.retryWrite(r.Context(), func() error {
		var err error
		updated, err = h.engine.UpdatePool(r.Context(), r.PathValue("id"), engine.PoolUpdate{
			MaximumCount: patch.MaximumCount,
			Enabled:      patch.Enabled,
			DisplayName:  patch.DisplayName,
		})
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deletePool(w http.ResponseWriter, r *http.Request) {
	var cancelled int
	err := h.retryWrite(r.Context(), func() error {
		var err error
		cancelled, err = h.engine.DeletePool(r.Context(), r.PathValue("id"))
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelledReservations": cancelled})
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	const op = "availability"
	start, err := timeQuery(r, "start", true)
	if err != nil {
		writeError(w, badRequest(op, err.Error()))
		return
	}
	end, err := timeQuery(r, "end", true)
	if err != nil {
		writeError(w, badRequest(op, err.Error()))
		return
	}
	id := r.PathValue("id")
	free, err := h.engine.Available(r.Context(), id, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		PoolID:    id,
		Start:     r.URL.Query().Get("start"),
		End:       r.URL.Query().Get("end"),
		Available: free,
	})
}

func boolQuery(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
