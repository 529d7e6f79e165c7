package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock resolver ---

type mockResolver struct {
	place Place
	err   error
	calls int
}

func (m *mockResolver) ReverseGeocode(_ context.Context, _, _ float64) (Place, error) {
	m.calls++
	return m.place, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestResolveLocation_NilResolver(t *testing.T) {
	rec := PredictionRecord{ID: "rec-1", Latitude: 28.6, Longitude: 77.2}

	result := ResolveLocation(context.Background(), rec, nil, discardLogger())

	assert.Empty(t, result.Location)
}

func TestResolveLocation_FormattedAddress(t *testing.T) {
	res := &mockResolver{place: Place{FormattedAddress: "New Delhi, Delhi, India", PlaceName: "New Delhi", Confidence: 0.97}}
	rec := PredictionRecord{ID: "rec-2", Latitude: 28.6, Longitude: 77.2}

	result := ResolveLocation(context.Background(), rec, res, discardLogger())

	assert.Equal(t, "New Delhi, Delhi, India", result.Location)
	assert.Equal(t, 1, res.calls)
}

func TestResolveLocation_PlaceNameFallback(t *testing.T) {
	res := &mockResolver{place: Place{PlaceName: "New Delhi"}}
	rec := PredictionRecord{ID: "rec-3", Latitude: 28.6, Longitude: 77.2}

	result := ResolveLocation(context.Background(), rec, res, discardLogger())

	assert.Equal(t, "New Delhi", result.Location)
}

func TestResolveLocation_ErrorGracefulDegradation(t *testing.T) {
	res := &mockResolver{err: errors.New("rate limited")}
	rec := PredictionRecord{ID: "rec-4", Latitude: 28.6, Longitude: 77.2}

	result := ResolveLocation(context.Background(), rec, res, discardLogger())

	assert.Empty(t, result.Location)
	assert.Equal(t, 28.6, result.Latitude)
}

func TestResolveLocation_InvalidCoordinatesSkipLookup(t *testing.T) {
	res := &mockResolver{place: Place{FormattedAddress: "nowhere"}}
	rec := PredictionRecord{ID: "rec-5", Latitude: 123, Longitude: 77.2}

	result := ResolveLocation(context.Background(), rec, res, discardLogger())

	assert.Empty(t, result.Location)
	assert.Equal(t, 0, res.calls)
}

func TestResolveLocation_ExistingLocationKept(t *testing.T) {
	res := &mockResolver{place: Place{FormattedAddress: "other"}}
	rec := PredictionRecord{ID: "rec-6", Latitude: 28.6, Longitude: 77.2, Location: "Delhi"}

	result := ResolveLocation(context.Background(), rec, res, discardLogger())

	assert.Equal(t, "Delhi", result.Location)
	assert.Equal(t, 0, res.calls)
}
