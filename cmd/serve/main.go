// Command serve loads the current model bundle and answers prediction requests.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/disaster-prediction/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/disaster-prediction/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-prediction/internal/adapter/mapbox"
	"github.com/couchcryptid/disaster-prediction/internal/adapter/sqlite"
	"github.com/couchcryptid/disaster-prediction/internal/config"
	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/history"
	"github.com/couchcryptid/disaster-prediction/internal/model"
	"github.com/couchcryptid/disaster-prediction/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewServingMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := model.NewDirStore(cfg.ModelDir, model.DefaultRetain, logger)
	bundle, err := store.Load(ctx)
	if err != nil {
		logger.Error("failed to load model bundle", "dir", cfg.ModelDir, "error", err)
		os.Exit(1)
	}
	predictor := model.NewPredictor(bundle, logger)
	metrics.BundleInfo.WithLabelValues(bundle.Version()).Set(1)
	logger.Info("model bundle loaded", "version", bundle.Version(), "classes", bundle.Classes())
	smokeTest(predictor, logger)

	opts, recorder, closers := historyOptions(cfg, metrics, logger)
	if recorder != nil {
		// Recording outlives the signal context so queued records drain on shutdown.
		recorder.Start(context.WithoutCancel(ctx))
		opts.Recorder = recorder
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, predictor, predictor, opts, metrics, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if recorder != nil {
		recorder.Stop()
	}
	for _, c := range closers {
		if err := c.close(); err != nil {
			logger.Error("close error", "component", c.name, "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// smokeTest logs one prediction for a fixed observation near New Delhi.
func smokeTest(p *model.Predictor, logger *slog.Logger) {
	lat, lon, temp, pressure, humidity, wind := 28.6, 77.2, 25.0, 1013.0, 80.0, 5.0
	pred, err := p.Predict(domain.Observation{
		Latitude: &lat, Longitude: &lon,
		Temperature: &temp, Pressure: &pressure, Humidity: &humidity, WindSpeed: &wind,
	})
	if err != nil {
		logger.Warn("smoke prediction failed", "error", err)
		return
	}
	logger.Info("smoke prediction",
		"disaster_type", pred.DisasterType,
		"type_confidence", pred.TypeConfidence,
		"possible_deaths", pred.PossibleDeaths,
		"infrastructure_loss", pred.InfrastructureLoss,
		"severity", pred.Severity,
	)
}

type closer struct {
	name  string
	close func() error
}

// historyOptions builds the configured history sinks and their recorder.
// Sinks that fail to open are logged and skipped, since history is never
// required to serve predictions.
func historyOptions(cfg *config.Server, metrics *observability.ServingMetrics, logger *slog.Logger) (httpadapter.Options, *history.Recorder, []closer) {
	var (
		opts    httpadapter.Options
		sinks   []history.Sink
		closers []closer
	)
	metrics.GeocodeEnabled.Set(0)
	if !cfg.HistoryEnabled() {
		logger.Info("prediction history disabled")
		return opts, nil, nil
	}

	if cfg.HistoryDBPath != "" {
		db, err := sqlite.NewHistoryDB(cfg.HistoryDBPath)
		if err != nil {
			logger.Error("history database unavailable", "path", cfg.HistoryDBPath, "error", err)
		} else {
			sinks = append(sinks, db)
			opts.History = db
			closers = append(closers, closer{name: "sqlite", close: db.Close})
			logger.Info("prediction history enabled", "path", cfg.HistoryDBPath)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sinks = append(sinks, pub)
		closers = append(closers, closer{name: "kafka", close: pub.Close})
		logger.Info("prediction publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}
	if len(sinks) == 0 {
		return opts, nil, closers
	}

	var resolver domain.LocationResolver
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		resolver = mapbox.NewCachedResolver(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	recorder := history.NewRecorder(sinks, resolver, cfg.RecorderWorkers, cfg.RecorderBuffer, metrics, logger)
	return opts, recorder, closers
}
