package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memorySink struct {
	name string
	err  error

	mu      sync.Mutex
	records []domain.PredictionRecord
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Save(_ context.Context, rec domain.PredictionRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) saved() []domain.PredictionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PredictionRecord(nil), s.records...)
}

type staticResolver struct {
	place domain.Place
	err   error
}

func (r staticResolver) ReverseGeocode(context.Context, float64, float64) (domain.Place, error) {
	return r.place, r.err
}

// blockingSink holds every Save until release is closed.
type blockingSink struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Save(context.Context, domain.PredictionRecord) error {
	s.started <- struct{}{}
	<-s.release
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func record(id string) domain.PredictionRecord {
	return domain.PredictionRecord{
		ID:         id,
		Latitude:   28.6,
		Longitude:  77.2,
		Parameters: map[string]float64{"temperature": 25},
		Prediction: domain.Prediction{DisasterType: "Flood", Severity: 0.4},
	}
}

func TestRecorder_FansOutToSinks(t *testing.T) {
	db := &memorySink{name: "sqlite"}
	bus := &memorySink{name: "kafka"}
	metrics := observability.NewServingMetricsForTesting()

	r := NewRecorder([]Sink{db, bus}, staticResolver{place: domain.Place{FormattedAddress: "New Delhi, Delhi, India"}}, 2, 10, metrics, discard())
	r.Start(context.Background())
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, r.Record(record(id)))
	}
	r.Stop()

	require.Len(t, db.saved(), 3)
	require.Len(t, bus.saved(), 3)
	for _, rec := range db.saved() {
		assert.Equal(t, "New Delhi, Delhi, India", rec.Location)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.HistoryRecords.WithLabelValues("sqlite", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.HistoryRecords.WithLabelValues("kafka", "success")))
}

func TestRecorder_GeocodeFailureKeepsRecord(t *testing.T) {
	db := &memorySink{name: "sqlite"}

	r := NewRecorder([]Sink{db}, staticResolver{err: errors.New("mapbox down")}, 1, 1, observability.NewServingMetricsForTesting(), discard())
	r.Start(context.Background())
	require.True(t, r.Record(record("a")))
	r.Stop()

	require.Len(t, db.saved(), 1)
	assert.Empty(t, db.saved()[0].Location)
}

func TestRecorder_SinkErrorDoesNotStopOthers(t *testing.T) {
	broken := &memorySink{name: "kafka", err: errors.New("broker unavailable")}
	db := &memorySink{name: "sqlite"}
	metrics := observability.NewServingMetricsForTesting()

	r := NewRecorder([]Sink{broken, db}, nil, 1, 4, metrics, discard())
	r.Start(context.Background())
	require.True(t, r.Record(record("a")))
	r.Stop()

	assert.Len(t, db.saved(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HistoryRecords.WithLabelValues("kafka", "error")))
}

func TestRecorder_FullQueueDrops(t *testing.T) {
	sink := &blockingSink{started: make(chan struct{}, 1), release: make(chan struct{})}
	metrics := observability.NewServingMetricsForTesting()

	r := NewRecorder([]Sink{sink}, nil, 1, 1, metrics, discard())
	r.Start(context.Background())

	require.True(t, r.Record(record("in-flight")))
	<-sink.started
	require.True(t, r.Record(record("queued")))
	assert.False(t, r.Record(record("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordingsDropped))

	close(sink.release)
	r.Stop()
}

func TestRecorder_RecordAfterStop(t *testing.T) {
	metrics := observability.NewServingMetricsForTesting()
	r := NewRecorder(nil, nil, 1, 1, metrics, discard())
	r.Start(context.Background())
	r.Stop()

	assert.False(t, r.Record(record("late")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordingsDropped))
}
