// Package model trains, persists, loads, and serves the three-model
// disaster prediction bundle.
package model

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/features"
	"github.com/couchcryptid/disaster-prediction/internal/forest"
)

// Artifact file names inside a bundle directory.
const (
	ArtifactClassifier = "disaster_type_model.json"
	ArtifactDeaths     = "deaths_model.json"
	ArtifactInfraLoss  = "infra_loss_model.json"
	ArtifactScaler     = "scaler.json"
	ArtifactEncoder    = "label_encoder.json"
	ManifestFile       = "manifest.json"
)

// Artifacts lists every model artifact in write order.
var Artifacts = []string{
	ArtifactClassifier,
	ArtifactDeaths,
	ArtifactInfraLoss,
	ArtifactScaler,
	ArtifactEncoder,
}

// ModelReport records how one model scored on its training data.
type ModelReport struct {
	Name        string             `json:"name"`
	Metric      string             `json:"metric"` // "accuracy" or "r2"
	Score       float64            `json:"score"`
	BaselineR2  *float64           `json:"baseline_r2,omitempty"`
	FitSeconds  float64            `json:"fit_seconds"`
	Importances map[string]float64 `json:"feature_importances,omitempty"`
}

// TrainingReport summarizes a training run.
type TrainingReport struct {
	Rows    int           `json:"rows"`
	Classes []string      `json:"classes"`
	Models  []ModelReport `json:"models"`
}

// Manifest describes a persisted bundle.
type Manifest struct {
	Version        string            `json:"version"`
	TrainedAt      time.Time         `json:"trained_at"`
	FeatureColumns []string          `json:"feature_columns"`
	Classes        []string          `json:"classes"`
	Checksums      map[string]string `json:"checksums,omitempty"` // artifact name -> hex SHA-256
	Report         TrainingReport    `json:"report"`
}

// Bundle is the immutable set of fitted models plus the preprocessing they
// were trained with. Build it with NewBundle.
type Bundle struct {
	classifier *forest.Classifier
	deaths     *forest.Regressor
	infraLoss  *forest.Regressor
	scaler     *features.StandardScaler
	encoder    *features.LabelEncoder
	manifest   Manifest
}

// NewBundle validates that the parts agree with each other and with the
// canonical feature order.
func NewBundle(
	classifier *forest.Classifier,
	deaths, infraLoss *forest.Regressor,
	scaler *features.StandardScaler,
	encoder *features.LabelEncoder,
	manifest Manifest,
) (*Bundle, error) {
	if classifier == nil || deaths == nil || infraLoss == nil || scaler == nil || encoder == nil {
		return nil, errors.New("bundle is missing a component")
	}

	var errs []error
	check := func(name string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	check("classifier", classifier.Validate())
	check("deaths model", deaths.Validate())
	check("infra loss model", infraLoss.Validate())
	check("scaler", scaler.Validate())
	check("label encoder", encoder.Validate())
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	width := len(domain.FeatureColumns)
	if !slices.Equal(manifest.FeatureColumns, domain.FeatureColumns) {
		return nil, fmt.Errorf("feature order %v does not match %v", manifest.FeatureColumns, domain.FeatureColumns)
	}
	for name, got := range map[string]int{
		"scaler":           scaler.Width(),
		"classifier":       classifier.NumFeatures,
		"deaths model":     deaths.NumFeatures,
		"infra loss model": infraLoss.NumFeatures,
	} {
		if got != width {
			return nil, fmt.Errorf("%s expects %d features, want %d", name, got, width)
		}
	}
	if classifier.NumClasses != encoder.Len() {
		return nil, fmt.Errorf("classifier has %d classes but label encoder has %d", classifier.NumClasses, encoder.Len())
	}
	if len(manifest.Classes) > 0 && !slices.Equal(manifest.Classes, encoder.Classes) {
		return nil, fmt.Errorf("manifest classes %v do not match label encoder %v", manifest.Classes, encoder.Classes)
	}

	manifest.FeatureColumns = slices.Clone(manifest.FeatureColumns)
	manifest.Classes = slices.Clone(encoder.Classes)
	return &Bundle{
		classifier: classifier,
		deaths:     deaths,
		infraLoss:  infraLoss,
		scaler:     scaler,
		encoder:    encoder,
		manifest:   manifest,
	}, nil
}

// Manifest returns a copy of the bundle manifest.
func (b *Bundle) Manifest() Manifest {
	m := b.manifest
	m.FeatureColumns = slices.Clone(m.FeatureColumns)
	m.Classes = slices.Clone(m.Classes)
	return m
}

// Version returns the bundle version identifier.
func (b *Bundle) Version() string { return b.manifest.Version }

// Classes returns the disaster types the classifier can predict.
func (b *Bundle) Classes() []string { return slices.Clone(b.encoder.Classes) }

// artifacts pairs each artifact name with the value serialized into it.
func (b *Bundle) artifacts() map[string]any {
	return map[string]any{
		ArtifactClassifier: b.classifier,
		ArtifactDeaths:     b.deaths,
		ArtifactInfraLoss:  b.infraLoss,
		ArtifactScaler:     b.scaler,
		ArtifactEncoder:    b.encoder,
	}
}
