package domain

import (
	"time"

	"github.com/google/uuid"
)

// Observation is the predictor input: a location plus the weather at that
// location. Pointers distinguish an absent parameter from a zero reading.
type Observation struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
	Humidity    *float64 `json:"humidity"`
	WindSpeed   *float64 `json:"wind_speed"`

	// Rainfall is accepted for request compatibility; no model consumes it.
	Rainfall *float64 `json:"rainfall,omitempty"`
}

// Features validates the observation and returns it in FeatureColumns order.
// Absent or non-finite parameters produce a MissingParameterError naming each one.
func (o Observation) Features() ([]float64, error) {
	fields := []struct {
		name  string
		value *float64
	}{
		{ColLatitude, o.Latitude},
		{ColLongitude, o.Longitude},
		{ColTemperature, o.Temperature},
		{ColPressure, o.Pressure},
		{ColHumidity, o.Humidity},
		{ColWindSpeed, o.WindSpeed},
	}

	features := make([]float64, 0, len(fields))
	var missing []string
	for _, f := range fields {
		if f.value == nil || !IsFinite(*f.value) {
			missing = append(missing, f.name)
			continue
		}
		features = append(features, *f.value)
	}
	if len(missing) > 0 {
		return nil, &MissingParameterError{Params: missing}
	}
	return features, nil
}

// Parameters returns the weather readings as a flat map for history records.
func (o Observation) Parameters() map[string]float64 {
	params := make(map[string]float64, 5)
	put := func(name string, v *float64) {
		if v != nil {
			params[name] = *v
		}
	}
	put(ColTemperature, o.Temperature)
	put(ColPressure, o.Pressure)
	put(ColHumidity, o.Humidity)
	put(ColWindSpeed, o.WindSpeed)
	put("rainfall", o.Rainfall)
	return params
}

// Prediction is the structured result returned to callers.
type Prediction struct {
	DisasterType       string  `json:"disaster_type"`
	TypeConfidence     float64 `json:"type_confidence"`
	PossibleDeaths     float64 `json:"possible_deaths"`
	InfrastructureLoss float64 `json:"infrastructure_loss"`
	Severity           float64 `json:"severity"`
}

// PredictionRecord is one served prediction, kept as history.
type PredictionRecord struct {
	ID            string             `json:"id"`
	Latitude      float64            `json:"latitude"`
	Longitude     float64            `json:"longitude"`
	Location      string             `json:"location,omitempty"`
	Parameters    map[string]float64 `json:"parameters"`
	Prediction    Prediction         `json:"prediction"`
	BundleVersion string             `json:"bundle_version"`
	Timestamp     time.Time          `json:"timestamp"`
}

// NewPredictionRecord stamps a history record for a served prediction.
func NewPredictionRecord(obs Observation, pred Prediction, bundleVersion string) PredictionRecord {
	rec := PredictionRecord{
		ID:            uuid.NewString(),
		Parameters:    obs.Parameters(),
		Prediction:    pred,
		BundleVersion: bundleVersion,
		Timestamp:     clock.Now().UTC(),
	}
	if obs.Latitude != nil {
		rec.Latitude = *obs.Latitude
	}
	if obs.Longitude != nil {
		rec.Longitude = *obs.Longitude
	}
	return rec
}
