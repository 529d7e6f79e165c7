package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
)

// Predictor answers predictions from one immutable bundle. It is safe for
// concurrent use.
type Predictor struct {
	bundle *Bundle
	logger *slog.Logger
}

// NewPredictor wraps a loaded bundle.
func NewPredictor(bundle *Bundle, logger *slog.Logger) *Predictor {
	return &Predictor{bundle: bundle, logger: logger}
}

// Version returns the served bundle version.
func (p *Predictor) Version() string { return p.bundle.Version() }

// CheckReadiness returns nil once a bundle is loaded.
func (p *Predictor) CheckReadiness(_ context.Context) error {
	if p == nil || p.bundle == nil {
		return errors.New("model bundle not loaded")
	}
	return nil
}

// Predict runs the three models on one observation. The bundle's fitted
// scaler is applied as-is; regression outputs are reported as magnitudes.
func (p *Predictor) Predict(obs domain.Observation) (domain.Prediction, error) {
	raw, err := obs.Features()
	if err != nil {
		return domain.Prediction{}, err
	}

	x, err := p.bundle.scaler.TransformRow(raw)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("scale features: %w", err)
	}

	proba, err := p.bundle.classifier.PredictProba(x)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("classify disaster type: %w", err)
	}
	code := 0
	for i := range proba {
		if proba[i] > proba[code] {
			code = i
		}
	}
	disasterType, err := p.bundle.encoder.Decode(code)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("decode disaster type: %w", err)
	}

	deaths, err := p.bundle.deaths.Predict(x)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predict deaths: %w", err)
	}
	infraLoss, err := p.bundle.infraLoss.Predict(x)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predict infrastructure loss: %w", err)
	}

	pred := domain.Prediction{
		DisasterType:       disasterType,
		TypeConfidence:     min(max(slices.Max(proba), 0), 1),
		PossibleDeaths:     math.Abs(deaths),
		InfrastructureLoss: math.Abs(infraLoss),
	}
	pred.Severity = domain.Severity(pred.DisasterType, pred.PossibleDeaths, pred.InfrastructureLoss)

	p.logger.Debug("prediction computed",
		"disaster_type", pred.DisasterType,
		"confidence", pred.TypeConfidence,
		"severity", pred.Severity,
	)
	return pred, nil
}
