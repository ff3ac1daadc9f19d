package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"vmpool/internal/domain"
)

// statusClientClosedRequest is the de facto status for requests the client
// abandoned before a response was written.
const statusClientClosedRequest = 499

type errorBody struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code,omitempty"`
}

// HTTPStatus maps an engine error to the response status.
func HTTPStatus(err error) int {
	code, ok := domain.CodeFrom(err)
	if !ok {
		switch {
		case errors.Is(err, context.Canceled):
			return statusClientClosedRequest
		case errors.Is(err, context.DeadlineExceeded):
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	}
	switch code {
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeAlreadyExists, domain.CodeFailedPrecond, domain.CodeResourceExhausted:
		return http.StatusConflict
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeCanceled:
		return statusClientClosedRequest
	case domain.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	body := errorBody{Error: err.Error()}
	if code, ok := domain.CodeFrom(err); ok {
		body.Code = code
	}
	writeJSON(w, status, body)
}

func badRequest(op, msg string) error {
	return domain.E(domain.CodeInvalidArgument, op, msg, nil)
}
