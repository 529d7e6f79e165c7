// Package geo links disaster records to weather observations by coordinate
// proximity.
//
// The weather collection is indexed once in a vantage-point tree under the
// haversine metric; each disaster record then takes its single nearest
// observation, kept only when the great-circle distance is within the
// configured threshold.
package geo

import (
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
)

// DefaultMaxDistanceKm is the matching threshold used when none is configured.
const DefaultMaxDistanceKm = 100.0

// Report summarizes one matching run.
type Report struct {
	DisasterInput   int
	WeatherInput    int
	DisasterDropped int // invalid or missing coordinates
	WeatherDropped  int // invalid or missing coordinates
	Matched         int
	Unmatched       int // nearest observation beyond the threshold
	MeanDistanceKm  float64
}

// Matcher joins disaster and weather records by nearest neighbour.
type Matcher struct {
	maxDistanceKm float64
	logger        *slog.Logger
}

// NewMatcher creates a Matcher. A non-positive threshold selects DefaultMaxDistanceKm.
func NewMatcher(maxDistanceKm float64, logger *slog.Logger) *Matcher {
	if maxDistanceKm <= 0 {
		maxDistanceKm = DefaultMaxDistanceKm
	}
	return &Matcher{maxDistanceKm: maxDistanceKm, logger: logger}
}

// MaxDistanceKm returns the configured threshold.
func (m *Matcher) MaxDistanceKm() float64 { return m.maxDistanceKm }

// Match pairs each disaster with its nearest weather observation within the
// threshold. Output order follows disaster order. Records with unusable
// coordinates are counted in the report and skipped.
func (m *Matcher) Match(disasters []domain.DisasterRecord, weather []domain.WeatherRecord) ([]domain.MatchedRecord, Report, error) {
	report := Report{DisasterInput: len(disasters), WeatherInput: len(weather)}

	if len(disasters) == 0 {
		return nil, report, &domain.DataError{Dataset: "disasters", Reason: "no records to match"}
	}
	if len(weather) == 0 {
		return nil, report, &domain.DataError{Dataset: "weather", Reason: "no records to match"}
	}

	stations := make([]domain.WeatherRecord, 0, len(weather))
	points := make([]orb.Point, 0, len(weather))
	for _, w := range weather {
		if !domain.ValidCoordinates(w.Latitude, w.Longitude) {
			report.WeatherDropped++
			continue
		}
		stations = append(stations, w)
		points = append(points, w.Point())
	}
	m.logger.Info("weather coordinates validated",
		"input", report.WeatherInput,
		"dropped", report.WeatherDropped,
	)

	index := NewIndex(points)

	matched := make([]domain.MatchedRecord, 0, len(disasters))
	var totalKm float64
	for _, d := range disasters {
		if !domain.ValidCoordinates(d.Latitude, d.Longitude) {
			report.DisasterDropped++
			continue
		}

		nearest, angle, ok := index.Nearest(d.Point())
		if !ok {
			report.Unmatched++
			continue
		}

		km := angle * EarthRadiusKm
		if km > m.maxDistanceKm {
			report.Unmatched++
			continue
		}

		matched = append(matched, domain.MatchedRecord{
			Disaster:   d,
			Weather:    stations[nearest],
			DistanceKm: km,
		})
		totalKm += km
	}

	report.Matched = len(matched)
	if report.Matched > 0 {
		report.MeanDistanceKm = totalKm / float64(report.Matched)
	}

	m.logger.Info("disaster records matched to weather",
		"input", report.DisasterInput,
		"dropped", report.DisasterDropped,
		"matched", report.Matched,
		"unmatched", report.Unmatched,
		"mean_distance_km", report.MeanDistanceKm,
		"max_distance_km", m.maxDistanceKm,
	)

	if report.Matched == 0 {
		err := &domain.EmptyResultError{
			Candidates:    report.DisasterInput - report.DisasterDropped,
			MaxDistanceKm: m.maxDistanceKm,
		}
		m.logger.Error("spatial join produced no matches", "error", err)
		return nil, report, err
	}

	return matched, report, nil
}
