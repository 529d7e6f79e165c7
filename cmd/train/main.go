// Command train fits the disaster prediction models from CSV history and
// publishes them as the current model bundle.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/disaster-prediction/internal/adapter/csvsource"
	"github.com/couchcryptid/disaster-prediction/internal/config"
	"github.com/couchcryptid/disaster-prediction/internal/features"
	"github.com/couchcryptid/disaster-prediction/internal/geo"
	"github.com/couchcryptid/disaster-prediction/internal/model"
	"github.com/couchcryptid/disaster-prediction/internal/observability"
	"github.com/couchcryptid/disaster-prediction/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadTrainer()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewTrainingMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(
		csvsource.NewSource(cfg.DisasterDataPath, cfg.WeatherDataPath, logger),
		geo.NewMatcher(cfg.MaxDistanceKm, logger),
		features.NewBuilder(logger),
		model.NewTrainer(cfg.Models, nil, logger),
		model.NewDirStore(cfg.ModelDir, cfg.BundleRetain, logger),
		logger,
		metrics,
		nil,
	)

	res, runErr := p.Run(ctx)

	if cfg.PushgatewayURL != "" {
		// Push even after a failure so the failure counter is visible.
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := metrics.Push(pushCtx, cfg.PushgatewayURL); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
		cancel()
	}

	if runErr != nil {
		logger.Error("training failed", "error", runErr)
		os.Exit(1)
	}

	for _, m := range res.Training.Models {
		logger.Info("model report", "model", m.Name, m.Metric, m.Score, "fit_seconds", m.FitSeconds)
	}
	logger.Info("training complete", "version", res.Version, "dir", res.Dir)
}
