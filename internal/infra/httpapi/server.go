// Package httpapi exposes the reservation engine as a JSON HTTP API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/engine"
	"vmpool/internal/infra/stats"
	"vmpool/internal/infra/telemetry"
)

const (
	retryAfterSeconds = 1
	maxBodyBytes      = 1 << 20
)

type Options struct {
	Engine   *engine.Engine
	Reporter *stats.Reporter
	Retry    engine.RetryPolicy
	Logger   *zap.Logger
}

type Handler struct {
	engine   *engine.Engine
	reporter *stats.Reporter
	retry    engine.RetryPolicy
	logger   *zap.Logger
	mux      *http.ServeMux
}

// NewHandler wires every route. Requests get request meta attached before
// they reach a route.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		engine:   opts.Engine,
		reporter: opts.Reporter,
		retry:    opts.Retry,
		logger:   logger.Named("httpapi"),
		mux:      http.NewServeMux(),
	}
	h.routes()
	return telemetry.RequestMetaMiddleware(h)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /pools", h.listPools)
	h.mux.HandleFunc("POST /pools", h.createPool)
	h.mux.HandleFunc("GET /pools/{id}", h.getPool)
	h.mux.HandleFunc("PATCH /pools/{id}", h.updatePool)
	h.mux.HandleFunc("DELETE /pools/{id}", h.deletePool)
	h.mux.HandleFunc("GET /pools/{id}/availability", h.availability)

	h.mux.HandleFunc("GET /reservations", h.listReservations)
	h.mux.HandleFunc("POST /reservations", h.createReservation)
	h.mux.HandleFunc("POST /reservations/cancel", h.cancelReservations)
	h.mux.HandleFunc("GET /reservations/{id}", h.getReservation)
	h.mux.HandleFunc("PATCH /reservations/{id}", h.editReservation)
	h.mux.HandleFunc("POST /reservations/{id}/cancel", h.cancelReservation)
	h.mux.HandleFunc("GET /reservations/{id}/series", h.series)
	h.mux.HandleFunc("POST /reservations/{id}/series/cancel", h.cancelSeries)

	h.mux.HandleFunc("GET /stats/pools", h.statsPools)
	h.mux.HandleFunc("GET /stats/users", h.statsUsers)
	h.mux.HandleFunc("GET /stats/bottlenecks", h.statsBottlenecks)
	h.mux.HandleFunc("GET /stats/max-usage", h.statsMaxUsage)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	h.mux.ServeHTTP(rec, r)

	logger := telemetry.LoggerWithRequest(r.Context(), h.logger)
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		telemetry.DurationField(time.Since(started)),
	}
	if rec.status >= http.StatusInternalServerError {
		logger.Warn("request failed", fields...)
		return
	}
	logger.Debug("request served", fields...)
}

// retryWrite runs a write under the configured contention retry policy.
func (h *Handler) retryWrite(ctx context.Context, fn func() error) error {
	return engine.Retry(ctx, h.retry, fn)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Serve runs the API on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		addr = domain.DefaultHTTPListenAddress
	}
	logger.Info("http api listening", zap.String("addr", addr))
	return telemetry.Serve(ctx, &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}, logger.Named("httpapi"))
}
