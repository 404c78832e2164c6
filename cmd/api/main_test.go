package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-shipment-tracker/internal/config"
	"github.com/imrishuroy/go-shipment-tracker/internal/handlers"
	"github.com/imrishuroy/go-shipment-tracker/internal/metrics"
	"github.com/imrishuroy/go-shipment-tracker/internal/shipments"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:        "0",
		RunLocal:    true,
		Storage:     config.StorageConfig{Backend: config.BackendSQLite, DatabasePath: filepath.Join(t.TempDir(), "nested", "shipments.db")},
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
		Metrics:     config.MetricsConfig{Backend: config.MetricsPrometheus},
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	ctx := context.Background()

	rec, reg, err := newRecorder(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, reg)

	st, err := openStores(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return setupRouter(handlers.HandlerConfig{
		Shipments:   st.Shipments,
		Idempotency: st.Idempotency,
		Metrics:     rec,
	}, reg)
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSetupRouter_Health(t *testing.T) {
	r := newTestRouter(t)

	w := get(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSetupRouter_ServesSeededShipments(t *testing.T) {
	r := newTestRouter(t)

	w := get(r, "/shipments")
	require.Equal(t, http.StatusOK, w.Code)

	var got []shipments.Shipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, len(shipments.SeedShipments))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetupRouter_LandingPageAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	w := get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	w = get(r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSetupRouter_NoMetricsWithoutRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := setupRouter(handlers.HandlerConfig{Metrics: metrics.Nop{}}, nil)

	assert.Equal(t, http.StatusNotFound, get(r, "/metrics").Code)
}

func TestOpenStores_ReopenKeepsData(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	require.NoError(t, err)
	_, err = st.Shipments.Create(ctx, shipments.NewShipment{
		TrackingID: "TRK100", Destination: "1 Elm St", Priority: "Low", Status: "Scheduled",
	})
	require.NoError(t, err)
	st.Close()
	st.Close()

	st, err = openStores(ctx, cfg)
	require.NoError(t, err)
	defer st.Close()

	list, err := st.Shipments.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(shipments.SeedShipments)+1)
}

func TestNewRecorder_None(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Backend = config.MetricsNone

	rec, reg, err := newRecorder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, reg)
	assert.IsType(t, metrics.Nop{}, rec)
}
