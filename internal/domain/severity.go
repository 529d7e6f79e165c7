package domain

import "strings"

const (
	maxHistoricalDeaths = 10000.0
	maxHistoricalLoss   = 1e9

	deathWeight = 0.4
	infraWeight = 0.3
	typeWeight  = 0.3

	// NeutralSeverity is returned for unknown disaster types and unscorable inputs.
	NeutralSeverity = 0.5
)

// disasterTypeWeights is keyed by lower-cased disaster type.
var disasterTypeWeights = map[string]float64{
	"earthquake": 0.9,
	"cyclone":    0.8,
	"flood":      0.7,
	"landslide":  0.6,
	"drought":    0.5,
}

// TypeWeight returns the severity weight for a disaster type, NeutralSeverity when unknown.
func TypeWeight(disasterType string) float64 {
	if w, ok := disasterTypeWeights[strings.ToLower(strings.TrimSpace(disasterType))]; ok {
		return w
	}
	return NeutralSeverity
}

// Severity maps a predicted outcome to a score in [0, 1]. Non-finite inputs
// yield NeutralSeverity instead of an error.
func Severity(disasterType string, deaths, infraLoss float64) float64 {
	if !IsFinite(deaths) || !IsFinite(infraLoss) {
		return NeutralSeverity
	}

	deathImpact := min(deaths/maxHistoricalDeaths, 1.0)
	infraImpact := min(infraLoss/maxHistoricalLoss, 1.0)

	score := deathWeight*deathImpact + infraWeight*infraImpact + typeWeight*TypeWeight(disasterType)
	return min(max(score, 0.0), 1.0)
}
