package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, "info", "json").Info("hello", "rows", 3)
	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())
	assert.Contains(t, buf.String(), `"rows":3`)

	buf.Reset()
	newLogger(&buf, "info", "TEXT").Info("hello", "rows", 3)
	assert.Contains(t, buf.String(), "rows=3")
}

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.level))
		})
	}

	var buf bytes.Buffer
	newLogger(&buf, "warn", "json").Info("suppressed")
	assert.Empty(t, buf.String())
}

func TestServingMetrics_Register(t *testing.T) {
	m := NewServingMetricsForTesting()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.Predictions))

	m.Predictions.WithLabelValues("success").Inc()
	m.Predictions.WithLabelValues("success").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions.WithLabelValues("success")))
	for _, c := range m.collectors()[1:] {
		assert.NoError(t, reg.Register(c))
	}
}

func TestTrainingMetrics_Push(t *testing.T) {
	var (
		mu   sync.Mutex
		body string
		path string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		body, path = string(data), r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	m := NewTrainingMetricsForTesting()
	m.TrainingRows.Set(42)
	m.ModelScore.WithLabelValues("deaths", "r2").Set(0.8)

	require.NoError(t, m.Push(context.Background(), gateway.URL))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, path, TrainingJob)
	assert.NotEmpty(t, body)
}

func TestTrainingMetrics_PushFailure(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	err := NewTrainingMetricsForTesting().Push(context.Background(), gateway.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "push training metrics")
}
