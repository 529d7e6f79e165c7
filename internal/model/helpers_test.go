package model

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/features"
	"github.com/couchcryptid/disaster-prediction/internal/forest"
)

var trainedAt = time.Date(2024, time.October, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(v float64) *float64 { return &v }

func smallConfig() TrainerConfig {
	p := forest.Params{Estimators: 8, MaxDepth: 6, MinSamplesSplit: 2, MinSamplesLeaf: 1, Bootstrap: true, Seed: 42, Jobs: 1}
	return TrainerConfig{Classifier: p, ClassifierBalanced: true, Deaths: p, InfraLoss: p}
}

// floodQuakeMatches returns matched rows for two regions: humid low-pressure
// floods around Delhi and dry earthquakes around Tokyo.
func floodQuakeMatches(n int) []domain.MatchedRecord {
	rng := rand.New(rand.NewPCG(1, 2))
	jitter := func(scale float64) float64 { return (rng.Float64() - 0.5) * scale }

	out := make([]domain.MatchedRecord, 0, 2*n)
	for range n {
		lat, lon := 28.6+jitter(1), 77.2+jitter(1)
		out = append(out, domain.MatchedRecord{
			Disaster: domain.DisasterRecord{Latitude: lat, Longitude: lon, DisasterType: "Flood",
				TotalDeaths: 40 + jitter(20), InfrastructureLoss: 2000 + jitter(500)},
			Weather: domain.WeatherRecord{Latitude: lat, Longitude: lon,
				Temperature: 30 + jitter(4), Pressure: 1000 + jitter(6), Humidity: 85 + jitter(8), WindSpeed: 12 + jitter(4)},
			DistanceKm: 1,
		})
	}
	for range n {
		lat, lon := 35.7+jitter(1), 139.7+jitter(1)
		out = append(out, domain.MatchedRecord{
			Disaster: domain.DisasterRecord{Latitude: lat, Longitude: lon, DisasterType: "Earthquake",
				TotalDeaths: 300 + jitter(100), InfrastructureLoss: 90000 + jitter(10000)},
			Weather: domain.WeatherRecord{Latitude: lat, Longitude: lon,
				Temperature: 18 + jitter(4), Pressure: 1015 + jitter(6), Humidity: 50 + jitter(8), WindSpeed: 4 + jitter(2)},
			DistanceKm: 1,
		})
	}
	return out
}

func buildDataset(t *testing.T) *features.Dataset {
	t.Helper()
	ds, _, err := features.NewBuilder(testLogger()).Build(floodQuakeMatches(20))
	require.NoError(t, err)
	return ds
}

func trainBundle(t *testing.T, at time.Time) *Bundle {
	t.Helper()
	trainer := NewTrainer(smallConfig(), clockwork.NewFakeClockAt(at), testLogger())
	b, err := trainer.Train(context.Background(), buildDataset(t))
	require.NoError(t, err)
	return b
}

func leaf(values ...float64) forest.Tree {
	return forest.Tree{Nodes: []forest.Node{{Left: -1, Right: -1, Value: values}}}
}

// fixedBundle returns a hand-built bundle whose models ignore their input.
func fixedBundle(t *testing.T, proba []float64, deaths, infra float64) *Bundle {
	t.Helper()
	width := len(domain.FeatureColumns)
	b, err := NewBundle(
		&forest.Classifier{NumClasses: len(proba), NumFeatures: width, Trees: []forest.Tree{leaf(proba...)}},
		&forest.Regressor{NumFeatures: width, Trees: []forest.Tree{leaf(deaths)}},
		&forest.Regressor{NumFeatures: width, Trees: []forest.Tree{leaf(infra)}},
		&features.StandardScaler{Mean: make([]float64, width), Scale: ones(width)},
		&features.LabelEncoder{Classes: []string{"Earthquake", "Flood"}},
		Manifest{Version: "fixed", FeatureColumns: domain.FeatureColumns},
	)
	require.NoError(t, err)
	return b
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func observation() domain.Observation {
	return domain.Observation{
		Latitude:    ptr(28.6),
		Longitude:   ptr(77.2),
		Temperature: ptr(25),
		Pressure:    ptr(1013),
		Humidity:    ptr(80),
		WindSpeed:   ptr(5),
	}
}
