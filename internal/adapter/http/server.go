// Package http serves predictions, prediction history, health, and metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/observability"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Predictor answers one prediction.
type Predictor interface {
	Predict(obs domain.Observation) (domain.Prediction, error)
	Version() string
}

// Recorder accepts served predictions without blocking.
type Recorder interface {
	Record(rec domain.PredictionRecord) bool
}

// HistoryReader lists recent predictions, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]domain.PredictionRecord, error)
}

// Options enables the optional history features. Nil fields disable them.
type Options struct {
	Recorder Recorder
	History  HistoryReader
}

// Server exposes the prediction API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	predictor  Predictor
	opts       Options
	metrics    *observability.ServingMetrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /predict, /history, /healthz, /readyz,
// and /metrics routes.
func NewServer(
	addr string,
	predictor Predictor,
	ready sharedobs.ReadinessChecker,
	opts Options,
	metrics *observability.ServingMetrics,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      withCORS(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		predictor: predictor,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
	}

	mux.HandleFunc("GET /predict", s.handlePredict)
	// Legacy path still used by older web clients.
	mux.HandleFunc("GET /details/", s.handlePredict)
	if opts.History != nil {
		mux.HandleFunc("GET /history", s.handleHistory)
	}
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	obs, err := parseObservation(r)
	if err != nil {
		s.metrics.Predictions.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}

	start := time.Now()
	pred, err := s.predictor.Predict(obs)
	s.metrics.PredictionDuration.Observe(time.Since(start).Seconds())

	var paramErr *domain.MissingParameterError
	switch {
	case errors.As(err, &paramErr):
		s.metrics.Predictions.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	case err != nil:
		s.metrics.Predictions.WithLabelValues("error").Inc()
		s.logger.Error("prediction failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "prediction failed"})
		return
	}

	s.metrics.Predictions.WithLabelValues("success").Inc()
	s.metrics.PredictedSeverity.Observe(pred.Severity)
	s.metrics.PredictedType.WithLabelValues(pred.DisasterType).Inc()

	writeJSON(w, http.StatusOK, pred)

	if s.opts.Recorder != nil {
		s.opts.Recorder.Record(domain.NewPredictionRecord(obs, pred, s.predictor.Version()))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.opts.History.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// query parameter names, in feature order.
var requiredParams = []string{"lat", "lng", "temp", "pressure", "humidity", "wind_speed"}

// parseObservation reads the query string. Absent and non-numeric values are
// both reported as missing.
func parseObservation(r *http.Request) (domain.Observation, error) {
	q := r.URL.Query()
	values := make([]*float64, len(requiredParams))
	var missing []string
	for i, name := range requiredParams {
		v, ok := parseFloat(q.Get(name))
		if !ok {
			missing = append(missing, name)
			continue
		}
		values[i] = &v
	}

	var rainfall *float64
	if raw := q.Get("rainfall"); raw != "" {
		v, ok := parseFloat(raw)
		if !ok {
			missing = append(missing, "rainfall")
		}
		rainfall = &v
	}
	if len(missing) > 0 {
		return domain.Observation{}, &domain.MissingParameterError{Params: missing}
	}

	return domain.Observation{
		Latitude:    values[0],
		Longitude:   values[1],
		Temperature: values[2],
		Pressure:    values[3],
		Humidity:    values[4],
		WindSpeed:   values[5],
		Rainfall:    rainfall,
	}, nil
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// withCORS allows cross-origin GET requests from any origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
