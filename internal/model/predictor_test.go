package model

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
)

func TestPredictor_FloodEarthquakeBundle(t *testing.T) {
	p := NewPredictor(trainBundle(t, trainedAt), testLogger())

	pred, err := p.Predict(observation())

	require.NoError(t, err)
	assert.Contains(t, []string{"Flood", "Earthquake"}, pred.DisasterType)
	assert.GreaterOrEqual(t, pred.TypeConfidence, 0.0)
	assert.LessOrEqual(t, pred.TypeConfidence, 1.0)
	assert.GreaterOrEqual(t, pred.PossibleDeaths, 0.0)
	assert.GreaterOrEqual(t, pred.InfrastructureLoss, 0.0)
	assert.GreaterOrEqual(t, pred.Severity, 0.0)
	assert.LessOrEqual(t, pred.Severity, 1.0)
}

func TestPredictor_NearTrainingRegion(t *testing.T) {
	p := NewPredictor(trainBundle(t, trainedAt), testLogger())

	obs := observation()
	obs.Latitude, obs.Longitude = ptr(35.7), ptr(139.7)
	obs.Temperature, obs.Pressure, obs.Humidity, obs.WindSpeed = ptr(18), ptr(1015), ptr(50), ptr(4)

	pred, err := p.Predict(obs)

	require.NoError(t, err)
	assert.Equal(t, "Earthquake", pred.DisasterType)
}

func TestPredictor_MagnitudesAreNonNegative(t *testing.T) {
	p := NewPredictor(fixedBundle(t, []float64{0.25, 0.75}, -42, -1e6), testLogger())

	pred, err := p.Predict(observation())

	require.NoError(t, err)
	assert.Equal(t, "Flood", pred.DisasterType)
	assert.Equal(t, 0.75, pred.TypeConfidence)
	assert.Equal(t, 42.0, pred.PossibleDeaths)
	assert.Equal(t, 1e6, pred.InfrastructureLoss)
	assert.InDelta(t, domain.Severity("Flood", 42, 1e6), pred.Severity, 1e-12)
}

func TestPredictor_MissingParameters(t *testing.T) {
	p := NewPredictor(fixedBundle(t, []float64{0.5, 0.5}, 1, 1), testLogger())

	obs := observation()
	obs.WindSpeed = nil
	obs.Temperature = ptr(math.Inf(1))

	_, err := p.Predict(obs)

	var missing *domain.MissingParameterError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{domain.ColTemperature, domain.ColWindSpeed}, missing.Params)
}

func TestPredictor_ConcurrentUse(t *testing.T) {
	p := NewPredictor(trainBundle(t, trainedAt), testLogger())
	want, err := p.Predict(observation())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Predict(observation())
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestPredictor_CheckReadiness(t *testing.T) {
	assert.NoError(t, NewPredictor(fixedBundle(t, []float64{0.5, 0.5}, 1, 1), testLogger()).CheckReadiness(context.Background()))
	assert.Error(t, NewPredictor(nil, testLogger()).CheckReadiness(context.Background()))
}
