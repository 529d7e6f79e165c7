package model

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sajari/regression"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/features"
	"github.com/couchcryptid/disaster-prediction/internal/forest"
)

// Model names used in reports, logs, and metrics.
const (
	ModelClassifier = "disaster_type"
	ModelDeaths     = "deaths"
	ModelInfraLoss  = "infra_loss"
)

// TrainerConfig holds the hyperparameters of the three models.
type TrainerConfig struct {
	Classifier         forest.Params
	ClassifierBalanced bool
	Deaths             forest.Params
	InfraLoss          forest.Params
}

// DefaultTrainerConfig returns the production hyperparameters.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Classifier: forest.Params{
			Estimators: 200, MaxDepth: 15, MinSamplesSplit: 5, MinSamplesLeaf: 2,
			Bootstrap: true, Seed: 42, Jobs: 1,
		},
		ClassifierBalanced: true,
		Deaths: forest.Params{
			Estimators: 200, MaxDepth: 15, MinSamplesSplit: 5, MinSamplesLeaf: 2,
			Bootstrap: true, Seed: 42, Jobs: 1,
		},
		InfraLoss: forest.Params{
			Estimators: 300, MaxDepth: 20, MinSamplesSplit: 4, MinSamplesLeaf: 2,
			Bootstrap: true, Seed: 42, Jobs: 0,
		},
	}
}

// Trainer fits a Bundle from a prepared dataset.
type Trainer struct {
	cfg    TrainerConfig
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewTrainer creates a Trainer. A nil clock uses real time.
func NewTrainer(cfg TrainerConfig, clock clockwork.Clock, logger *slog.Logger) *Trainer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Trainer{cfg: cfg, clock: clock, logger: logger}
}

// Train fits the classifier and both regressors on the same feature matrix.
func (t *Trainer) Train(ctx context.Context, ds *features.Dataset) (*Bundle, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, &domain.InsufficientDataError{}
	}
	if ds.Encoder.Len() < 2 {
		return nil, &domain.InsufficientClassesError{Classes: ds.Encoder.Classes}
	}

	report := TrainingReport{Rows: ds.Len(), Classes: ds.Encoder.Classes}

	classifier := forest.NewClassifier(t.cfg.Classifier, t.cfg.ClassifierBalanced)
	start := t.clock.Now()
	if err := classifier.Fit(ctx, ds.X, ds.Types); err != nil {
		return nil, fmt.Errorf("train %s: %w", ModelClassifier, err)
	}
	accuracy, err := classifier.Score(ds.X, ds.Types)
	if err != nil {
		return nil, fmt.Errorf("score %s: %w", ModelClassifier, err)
	}
	report.Models = append(report.Models, ModelReport{
		Name:        ModelClassifier,
		Metric:      "accuracy",
		Score:       accuracy,
		FitSeconds:  t.clock.Since(start).Seconds(),
		Importances: named(classifier.FeatureImportances()),
	})
	t.logger.Info("model trained", "model", ModelClassifier, "accuracy", accuracy,
		"trees", len(classifier.Trees), "classes", len(ds.Encoder.Classes))

	deaths, deathsReport, err := t.fitRegressor(ctx, ModelDeaths, t.cfg.Deaths, ds.X, ds.Deaths)
	if err != nil {
		return nil, err
	}
	report.Models = append(report.Models, deathsReport)

	infra, infraReport, err := t.fitRegressor(ctx, ModelInfraLoss, t.cfg.InfraLoss, ds.X, ds.InfraLoss)
	if err != nil {
		return nil, err
	}
	report.Models = append(report.Models, infraReport)

	manifest := Manifest{
		Version:        uuid.NewString(),
		TrainedAt:      t.clock.Now().UTC(),
		FeatureColumns: domain.FeatureColumns,
		Classes:        ds.Encoder.Classes,
		Report:         report,
	}
	return NewBundle(classifier, deaths, infra, ds.Scaler, ds.Encoder, manifest)
}

func (t *Trainer) fitRegressor(ctx context.Context, name string, params forest.Params, x [][]float64, y []float64) (*forest.Regressor, ModelReport, error) {
	r := forest.NewRegressor(params)
	start := t.clock.Now()
	if err := r.Fit(ctx, x, y); err != nil {
		return nil, ModelReport{}, fmt.Errorf("train %s: %w", name, err)
	}
	score, err := r.Score(x, y)
	if err != nil {
		return nil, ModelReport{}, fmt.Errorf("score %s: %w", name, err)
	}
	rep := ModelReport{
		Name:        name,
		Metric:      "r2",
		Score:       score,
		FitSeconds:  t.clock.Since(start).Seconds(),
		Importances: named(r.FeatureImportances()),
	}

	attrs := []any{"model", name, "r2", score, "trees", len(r.Trees)}
	if baseline, err := linearBaseline(name, x, y); err != nil {
		t.logger.Warn("linear baseline failed", "model", name, "error", err)
	} else {
		rep.BaselineR2 = &baseline
		attrs = append(attrs, "baseline_r2", baseline)
	}
	t.logger.Info("model trained", attrs...)
	return r, rep, nil
}

// linearBaseline fits ordinary least squares on the same features and
// returns its training R².
func linearBaseline(observed string, x [][]float64, y []float64) (r2 float64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("linear regression: %v", p)
		}
	}()

	var r regression.Regression
	r.SetObserved(observed)
	for i, col := range domain.FeatureColumns {
		r.SetVar(i, col)
	}
	for i, row := range x {
		r.Train(regression.DataPoint(y[i], row))
	}
	if err := r.Run(); err != nil {
		return 0, err
	}
	if math.IsNaN(r.R2) || math.IsInf(r.R2, 0) {
		return 0, fmt.Errorf("linear regression produced non-finite r2")
	}
	return r.R2, nil
}

func named(importances []float64) map[string]float64 {
	out := make(map[string]float64, len(importances))
	for i, v := range importances {
		if i < len(domain.FeatureColumns) {
			out[domain.FeatureColumns[i]] = v
		}
	}
	return out
}

