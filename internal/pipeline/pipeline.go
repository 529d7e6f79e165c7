// Package pipeline runs one training job: load, match, build, train, save.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/features"
	"github.com/couchcryptid/disaster-prediction/internal/geo"
	"github.com/couchcryptid/disaster-prediction/internal/model"
	"github.com/couchcryptid/disaster-prediction/internal/observability"
)

// Stage names used in logs, metrics, and errors.
const (
	StageLoad  = "load"
	StageMatch = "match"
	StageBuild = "build"
	StageTrain = "train"
	StageSave  = "save"
)

// Source provides the raw training datasets.
type Source interface {
	LoadDisasters(ctx context.Context) ([]domain.DisasterRecord, error)
	LoadWeather(ctx context.Context) ([]domain.WeatherRecord, error)
}

// BundleSaver persists a trained bundle and returns where it was written.
type BundleSaver interface {
	Save(ctx context.Context, b *model.Bundle) (string, error)
}

// Result describes a successful run.
type Result struct {
	Version   string
	Dir       string
	Match     geo.Report
	Build     features.BuildReport
	Training  model.TrainingReport
	Durations map[string]time.Duration
}

// StageError tags a failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline wires the training stages together.
type Pipeline struct {
	source  Source
	matcher *geo.Matcher
	builder *features.Builder
	trainer *model.Trainer
	saver   BundleSaver
	logger  *slog.Logger
	metrics *observability.TrainingMetrics
	clock   clockwork.Clock
}

// New creates a Pipeline. A nil clock uses real time.
func New(
	source Source,
	matcher *geo.Matcher,
	builder *features.Builder,
	trainer *model.Trainer,
	saver BundleSaver,
	logger *slog.Logger,
	metrics *observability.TrainingMetrics,
	clock clockwork.Clock,
) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:  source,
		matcher: matcher,
		builder: builder,
		trainer: trainer,
		saver:   saver,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// Run executes every stage in order. Nothing is persisted unless all stages
// before the save succeed.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res := Result{Durations: make(map[string]time.Duration)}
	p.logger.Info("training pipeline started", "max_distance_km", p.matcher.MaxDistanceKm())

	var (
		disasters []domain.DisasterRecord
		weather   []domain.WeatherRecord
	)
	err := p.stage(ctx, &res, StageLoad, func() error {
		var err error
		if disasters, err = p.source.LoadDisasters(ctx); err != nil {
			return err
		}
		if weather, err = p.source.LoadWeather(ctx); err != nil {
			return err
		}
		p.metrics.RecordsLoaded.WithLabelValues("disasters").Set(float64(len(disasters)))
		p.metrics.RecordsLoaded.WithLabelValues("weather").Set(float64(len(weather)))
		p.logger.Info("datasets loaded", "disasters", len(disasters), "weather", len(weather))
		return nil
	})
	if err != nil {
		return res, err
	}

	var matched []domain.MatchedRecord
	err = p.stage(ctx, &res, StageMatch, func() error {
		var err error
		matched, res.Match, err = p.matcher.Match(disasters, weather)
		p.recordMatch(matched, res.Match)
		return err
	})
	if err != nil {
		return res, err
	}

	var ds *features.Dataset
	err = p.stage(ctx, &res, StageBuild, func() error {
		var err error
		ds, res.Build, err = p.builder.Build(matched)
		p.recordBuild(res.Build)
		return err
	})
	if err != nil {
		return res, err
	}

	var bundle *model.Bundle
	err = p.stage(ctx, &res, StageTrain, func() error {
		var err error
		if bundle, err = p.trainer.Train(ctx, ds); err != nil {
			return err
		}
		res.Version = bundle.Version()
		res.Training = bundle.Manifest().Report
		p.recordTraining(res.Training)
		return nil
	})
	if err != nil {
		return res, err
	}

	err = p.stage(ctx, &res, StageSave, func() error {
		var err error
		res.Dir, err = p.saver.Save(ctx, bundle)
		return err
	})
	if err != nil {
		return res, err
	}

	p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	p.logger.Info("training pipeline finished",
		"version", res.Version,
		"dir", res.Dir,
		"rows", res.Training.Rows,
		"classes", len(res.Training.Classes),
	)
	return res, nil
}

// stage runs fn, timing it and tagging any failure with the stage name.
func (p *Pipeline) stage(ctx context.Context, res *Result, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return p.fail(name, err)
	}
	start := p.clock.Now()
	err := fn()
	elapsed := p.clock.Since(start)
	res.Durations[name] = elapsed
	p.metrics.StageDuration.WithLabelValues(name).Set(elapsed.Seconds())
	if err != nil {
		return p.fail(name, err)
	}
	p.logger.Debug("stage complete", "stage", name, "duration", elapsed)
	return nil
}

func (p *Pipeline) fail(stage string, err error) error {
	p.metrics.RunFailures.WithLabelValues(stage).Inc()
	p.logger.Error("training pipeline failed", "stage", stage, "error", err)
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) recordMatch(matched []domain.MatchedRecord, r geo.Report) {
	p.metrics.MatchedRecords.Set(float64(r.Matched))
	p.metrics.RecordsDropped.WithLabelValues(StageMatch, "invalid_disaster_coordinates").Set(float64(r.DisasterDropped))
	p.metrics.RecordsDropped.WithLabelValues(StageMatch, "invalid_weather_coordinates").Set(float64(r.WeatherDropped))
	p.metrics.RecordsDropped.WithLabelValues(StageMatch, "beyond_threshold").Set(float64(r.Unmatched))
	for _, m := range matched {
		p.metrics.MatchDistance.Observe(m.DistanceKm)
	}
}

func (p *Pipeline) recordBuild(r features.BuildReport) {
	p.metrics.RecordsDropped.WithLabelValues(StageBuild, "missing_values").Set(float64(r.DroppedMissing))
	p.metrics.RecordsDropped.WithLabelValues(StageBuild, "negative_deaths").Set(float64(r.DroppedInvalid))
	p.metrics.TrainingRows.Set(float64(r.Rows))
}

func (p *Pipeline) recordTraining(r model.TrainingReport) {
	for _, m := range r.Models {
		p.metrics.ModelScore.WithLabelValues(m.Name, m.Metric).Set(m.Score)
		if m.BaselineR2 != nil {
			p.metrics.ModelScore.WithLabelValues(m.Name, "baseline_r2").Set(*m.BaselineR2)
		}
		p.metrics.ModelFitTime.WithLabelValues(m.Name).Set(m.FitSeconds)
	}
}
