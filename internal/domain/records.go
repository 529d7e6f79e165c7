package domain

import (
	"math"

	"github.com/paulmach/orb"
)

// Canonical column names shared by ingestion, feature building, and the bundle manifest.
const (
	ColLatitude           = "latitude"
	ColLongitude          = "longitude"
	ColDisasterType       = "disaster_type"
	ColTotalDeaths        = "total_deaths"
	ColInfrastructureLoss = "infrastructure_loss"
	ColTemperature        = "temperature"
	ColPressure           = "pressure"
	ColHumidity           = "humidity"
	ColWindSpeed          = "wind_speed"
)

// FeatureColumns is the canonical feature order consumed by every model in a bundle.
var FeatureColumns = []string{
	ColLatitude,
	ColLongitude,
	ColTemperature,
	ColPressure,
	ColHumidity,
	ColWindSpeed,
}

// DisasterRecord is one historical disaster occurrence. Numeric fields are NaN
// when the source cell was missing or not numeric.
type DisasterRecord struct {
	Latitude           float64
	Longitude          float64
	DisasterType       string
	TotalDeaths        float64
	InfrastructureLoss float64
}

// Point returns the record location as an orb point (lon, lat order).
func (r DisasterRecord) Point() orb.Point {
	return orb.Point{r.Longitude, r.Latitude}
}

// WeatherRecord is one weather observation. Numeric fields are NaN when the
// source cell was missing or not numeric.
type WeatherRecord struct {
	Latitude    float64
	Longitude   float64
	Temperature float64
	Pressure    float64
	Humidity    float64
	WindSpeed   float64
}

// Point returns the observation location as an orb point (lon, lat order).
func (r WeatherRecord) Point() orb.Point {
	return orb.Point{r.Longitude, r.Latitude}
}

// MatchedRecord pairs a disaster with its nearest weather observation.
type MatchedRecord struct {
	Disaster   DisasterRecord
	Weather    WeatherRecord
	DistanceKm float64
}

// Features returns the raw (unscaled) feature vector in FeatureColumns order.
// Coordinates come from the disaster side of the pair.
func (m MatchedRecord) Features() []float64 {
	return []float64{
		m.Disaster.Latitude,
		m.Disaster.Longitude,
		m.Weather.Temperature,
		m.Weather.Pressure,
		m.Weather.Humidity,
		m.Weather.WindSpeed,
	}
}

// worldBound is the valid WGS-84 coordinate range.
var worldBound = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// ValidCoordinates reports whether lat/lon are finite and inside the WGS-84 range.
func ValidCoordinates(lat, lon float64) bool {
	if !IsFinite(lat) || !IsFinite(lon) {
		return false
	}
	return worldBound.Contains(orb.Point{lon, lat})
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
