package ops_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmetrics/defect-analytics/internal/adapter/ops"
)

func probe(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestHealthzReturns200(t *testing.T) {
	srv := ops.NewServer(":0", slog.Default())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenAllChecksPass(t *testing.T) {
	srv := ops.NewServer(":0", slog.Default(),
		ops.Check{Name: "pipeline", Probe: probe(nil)},
		ops.Check{Name: "database", Probe: probe(nil)},
	)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503AndNamesFailingCheck(t *testing.T) {
	srv := ops.NewServer(":0", slog.Default(),
		ops.Check{Name: "pipeline", Probe: probe(nil)},
		ops.Check{Name: "database", Probe: probe(fmt.Errorf("connection refused"))},
	)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "database", body["check"])
	assert.Equal(t, "connection refused", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := ops.NewServer(":0", slog.Default())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
