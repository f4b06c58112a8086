package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabledog/tdog-cli-sub000/internal/metrics"
)

func setupMetrics(t *testing.T) *metrics.Registry {
	t.Helper()
	registry := metrics.New()
	original := metrics.Default()
	metrics.SetDefault(registry)
	t.Cleanup(func() { metrics.SetDefault(original) })
	return registry
}

func TestRequestMetricsRecordsRequests(t *testing.T) {
	registry := setupMetrics(t)

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	count, err := testutil.GatherAndCount(registry.Gatherer(), "tdog_"+metrics.HTTPRequestsTotalName)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRequestMetricsWithoutRegistry(t *testing.T) {
	original := metrics.Default()
	metrics.SetDefault(nil)
	t.Cleanup(func() { metrics.SetDefault(original) })

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health", "/health"},
		{"/version", "/version"},
		{"/stats", "/stats"},
		{"/metrics", "/metrics"},
		{"/v1/customers/cus_123", "/unknown"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expected, routeLabel(req))
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, rec.Header().Get(RequestIDHeader), seen)
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	registry := setupMetrics(t)

	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set(RequestIDHeader, "req-panic")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "req-panic", body.Error.RequestID)

	count, err := testutil.GatherAndCount(registry.Gatherer(), "tdog_"+metrics.PanicsTotalName)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
