package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObservabilityHandler_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewPrometheusMetrics(registry).SetPoolCapacity("p", 3)

	handler := NewObservabilityHandler(HTTPServerOptions{EnableMetrics: true, Registry: registry})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "vmpool_pool_capacity")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestObservabilityHandler_Healthz(t *testing.T) {
	tracker := NewHealthTracker()
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }
	beat := tracker.Register("store", time.Minute)
	handler := NewObservabilityHandler(HTTPServerOptions{EnableHealthz: true, Health: tracker})

	report := getHealth(t, handler, http.StatusServiceUnavailable)
	assert.Equal(t, "degraded", report.Status)

	beat.Beat()
	report = getHealth(t, handler, http.StatusOK)
	require.Len(t, report.Checks, 1)
	assert.True(t, report.Checks[0].Healthy)

	now = now.Add(2 * time.Minute)
	getHealth(t, handler, http.StatusServiceUnavailable)

	tracker.Unregister("store")
	getHealth(t, handler, http.StatusOK)
}

func TestStartHTTPServer_DisabledReturnsImmediately(t *testing.T) {
	require.NoError(t, StartHTTPServer(context.Background(), HTTPServerOptions{}, nil))
}

func TestStartHTTPServer_GracefulShutdown(t *testing.T) {
	listener := mustListen(t)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, HTTPServerOptions{
			Addr:          fmt.Sprintf("127.0.0.1:%d", port),
			EnableMetrics: true,
			Registry:      prometheus.NewRegistry(),
		}, zap.NewNop())
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 25*time.Millisecond)

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestServe_PortInUse(t *testing.T) {
	listener := mustListen(t)
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := Serve(ctx, &http.Server{Addr: listener.Addr().String(), Handler: http.NotFoundHandler()}, nil)
	require.Error(t, err)
}

func getHealth(t *testing.T, handler http.Handler, status int) HealthReport {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, status, rec.Code)
	var report HealthReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	return report
}

func mustListen(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip test due to listen error: %v", err)
	}
	return listener
}
