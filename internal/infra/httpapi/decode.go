package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// timeQuery parses an RFC3339 query parameter. A missing optional value is
// the zero time.
func timeQuery(r *http.Request, key string, required bool) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		if required {
			return time.Time{}, fmt.Errorf("%s is required", key)
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC3339 timestamp", key)
	}
	return t, nil
}
