package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/disaster-prediction/internal/adapter/http"
	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/observability"
)

const predictURL = "/predict?lat=28.6&lng=77.2&temp=25&pressure=1013&humidity=80&wind_speed=5"

// --- mocks ---

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockPredictor struct {
	pred domain.Prediction
	err  error

	mu  sync.Mutex
	got []domain.Observation
}

func (m *mockPredictor) Predict(obs domain.Observation) (domain.Prediction, error) {
	m.mu.Lock()
	m.got = append(m.got, obs)
	m.mu.Unlock()
	if m.err != nil {
		return domain.Prediction{}, m.err
	}
	if _, err := obs.Features(); err != nil {
		return domain.Prediction{}, err
	}
	return m.pred, nil
}

func (m *mockPredictor) Version() string { return "bundle-1" }

type mockRecorder struct {
	records []domain.PredictionRecord
}

func (m *mockRecorder) Record(rec domain.PredictionRecord) bool {
	m.records = append(m.records, rec)
	return true
}

type mockHistory struct {
	records []domain.PredictionRecord
	err     error
	limit   int
}

func (m *mockHistory) Recent(_ context.Context, limit int) ([]domain.PredictionRecord, error) {
	m.limit = limit
	return m.records, m.err
}

var floodPrediction = domain.Prediction{
	DisasterType:       "Flood",
	TypeConfidence:     0.8,
	PossibleDeaths:     42,
	InfrastructureLoss: 2100,
	Severity:           0.21,
}

type testServer struct {
	*httpadapter.Server
	predictor *mockPredictor
	recorder  *mockRecorder
	history   *mockHistory
	metrics   *observability.ServingMetrics
}

func newTestServer(readyErr error) *testServer {
	ts := &testServer{
		predictor: &mockPredictor{pred: floodPrediction},
		recorder:  &mockRecorder{},
		history:   &mockHistory{},
		metrics:   observability.NewServingMetricsForTesting(),
	}
	ts.Server = httpadapter.NewServer(":0", ts.predictor, &mockReadiness{err: readyErr},
		httpadapter.Options{Recorder: ts.recorder, History: ts.history},
		ts.metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return ts
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// --- tests ---

func TestPredictReturns200(t *testing.T) {
	srv := newTestServer(nil)

	rec := get(srv, predictURL)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body domain.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, floodPrediction, body)

	require.Len(t, srv.predictor.got, 1)
	obs := srv.predictor.got[0]
	assert.Equal(t, 28.6, *obs.Latitude)
	assert.Equal(t, 77.2, *obs.Longitude)
	assert.Equal(t, 5.0, *obs.WindSpeed)
	assert.Nil(t, obs.Rainfall)

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.Predictions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.PredictedType.WithLabelValues("Flood")))
}

func TestPredictResponseFields(t *testing.T) {
	rec := get(newTestServer(nil), predictURL)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, field := range []string{"disaster_type", "type_confidence", "possible_deaths", "infrastructure_loss", "severity"} {
		assert.Contains(t, body, field)
	}
}

func TestPredictRecordsHistory(t *testing.T) {
	srv := newTestServer(nil)

	get(srv, predictURL+"&rainfall=12.5")

	require.Len(t, srv.recorder.records, 1)
	r := srv.recorder.records[0]
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 28.6, r.Latitude)
	assert.Equal(t, "bundle-1", r.BundleVersion)
	assert.Equal(t, floodPrediction, r.Prediction)
	assert.Equal(t, 12.5, r.Parameters["rainfall"])
}

func TestPredictMissingParameters(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"no params", "/predict", "lat, lng, temp, pressure, humidity, wind_speed"},
		{"missing wind", "/predict?lat=28.6&lng=77.2&temp=25&pressure=1013&humidity=80", "wind_speed"},
		{"non-numeric temp", "/predict?lat=28.6&lng=77.2&temp=hot&pressure=1013&humidity=80&wind_speed=5", "temp"},
		{"bad rainfall", predictURL + "&rainfall=lots", "rainfall"},
		{"NaN latitude", "/predict?lat=NaN&lng=77.2&temp=25&pressure=1013&humidity=80&wind_speed=5", "latitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(nil)

			rec := get(srv, tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.want)
			assert.Empty(t, srv.recorder.records)
			assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.Predictions.WithLabelValues("invalid")))
		})
	}
}

func TestPredictInternalError(t *testing.T) {
	srv := newTestServer(nil)
	srv.predictor.err = fmt.Errorf("scale features: %w", errors.New("width mismatch"))

	rec := get(srv, predictURL)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "prediction failed", body["error"])
	assert.Empty(t, srv.recorder.records)
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.Predictions.WithLabelValues("error")))
}

func TestLegacyDetailsRoute(t *testing.T) {
	rec := get(newTestServer(nil), "/details/?lat=28.6&lng=77.2&temp=25&pressure=1013&humidity=80&wind_speed=5")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHistoryDefaultLimit(t *testing.T) {
	srv := newTestServer(nil)
	srv.history.records = []domain.PredictionRecord{{ID: "a"}, {ID: "b"}}

	rec := get(srv, "/history")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, srv.history.limit)
	var body []domain.PredictionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 2)
}

func TestHistoryLimit(t *testing.T) {
	srv := newTestServer(nil)

	get(srv, "/history?limit=5")
	assert.Equal(t, 5, srv.history.limit)

	get(srv, "/history?limit=100000")
	assert.Equal(t, 500, srv.history.limit)

	rec := get(srv, "/history?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryError(t *testing.T) {
	srv := newTestServer(nil)
	srv.history.err = errors.New("database is locked")

	rec := get(srv, "/history")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistoryDisabled(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockPredictor{pred: floodPrediction}, &mockReadiness{},
		httpadapter.Options{}, observability.NewServingMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, http.StatusNotFound, get(srv, "/history").Code)
	assert.Equal(t, http.StatusOK, get(srv, predictURL).Code)
}

func TestPredictRejectsPost(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, predictURL, nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(nil)

	rec := get(srv, predictURL)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRecorder()
	srv.ServeHTTP(preflight, httptest.NewRequest(http.MethodOptions, "/predict", nil))
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Equal(t, "*", preflight.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthzReturns200(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(newTestServer(nil), "/healthz").Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(newTestServer(nil), "/readyz").Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(errors.New("model bundle not loaded")), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
