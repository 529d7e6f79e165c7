package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "disaster_prediction"

// ServingMetrics holds the Prometheus metrics of the prediction server.
type ServingMetrics struct {
	Predictions        *prometheus.CounterVec // labels: outcome={success,invalid,error}
	PredictionDuration prometheus.Histogram
	PredictedSeverity  prometheus.Histogram
	PredictedType      *prometheus.CounterVec // labels: disaster_type
	BundleInfo         *prometheus.GaugeVec   // labels: version

	// History recording metrics.
	HistoryRecords    *prometheus.CounterVec // labels: sink={sqlite,kafka}, outcome={success,error}
	RecordingsDropped prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewServingMetrics creates and registers all serving metrics with the default Prometheus registry.
func NewServingMetrics() *ServingMetrics {
	m := newServingMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewServingMetricsForTesting creates ServingMetrics without registering them,
// avoiding "already registered" panics across tests.
func NewServingMetricsForTesting() *ServingMetrics {
	return newServingMetrics()
}

func newServingMetrics() *ServingMetrics {
	return &ServingMetrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time to compute one prediction.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		PredictedSeverity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predicted_severity",
			Help:      "Distribution of predicted severity scores.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		PredictedType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predicted_disaster_type_total",
			Help:      "Predictions by predicted disaster type.",
		}, []string{"disaster_type"}),
		BundleInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_bundle_info",
			Help:      "1 for the model bundle version being served.",
		}, []string{"version"}),
		HistoryRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_records_total",
			Help:      "Prediction history writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
		RecordingsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_records_dropped_total",
			Help:      "Prediction records dropped because the recording queue was full.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when reverse geocoding of history records is enabled, 0 otherwise.",
		}),
	}
}

func (m *ServingMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Predictions,
		m.PredictionDuration,
		m.PredictedSeverity,
		m.PredictedType,
		m.BundleInfo,
		m.HistoryRecords,
		m.RecordingsDropped,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}

// TrainingMetrics holds the Prometheus metrics of one training run.
type TrainingMetrics struct {
	RecordsLoaded  *prometheus.GaugeVec // labels: dataset={disasters,weather}
	RecordsDropped *prometheus.GaugeVec // labels: stage={match,build}, reason
	MatchedRecords prometheus.Gauge
	MatchDistance  prometheus.Histogram
	TrainingRows   prometheus.Gauge
	StageDuration  *prometheus.GaugeVec // labels: stage
	ModelScore     *prometheus.GaugeVec // labels: model, metric={accuracy,r2,baseline_r2}
	ModelFitTime   *prometheus.GaugeVec // labels: model
	LastSuccess    prometheus.Gauge
	RunFailures    *prometheus.CounterVec // labels: stage
}

// NewTrainingMetrics creates and registers all training metrics with the default Prometheus registry.
func NewTrainingMetrics() *TrainingMetrics {
	m := newTrainingMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewTrainingMetricsForTesting creates TrainingMetrics without registering them.
func NewTrainingMetricsForTesting() *TrainingMetrics {
	return newTrainingMetrics()
}

func newTrainingMetrics() *TrainingMetrics {
	return &TrainingMetrics{
		RecordsLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_records_loaded",
			Help:      "Rows read from each input dataset.",
		}, []string{"dataset"}),
		RecordsDropped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_records_dropped",
			Help:      "Rows discarded by stage and reason.",
		}, []string{"stage", "reason"}),
		MatchedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_records_matched",
			Help:      "Disaster records paired with a weather observation.",
		}),
		MatchDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_match_distance_km",
			Help:      "Great-circle distance between matched disaster and weather records.",
			Buckets:   []float64{1, 5, 10, 25, 50, 75, 100},
		}),
		TrainingRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_rows",
			Help:      "Rows in the final training matrix.",
		}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_stage_duration_seconds",
			Help:      "Wall time of each training pipeline stage.",
		}, []string{"stage"}),
		ModelScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_model_score",
			Help:      "Training-set score of each fitted model.",
		}, []string{"model", "metric"}),
		ModelFitTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_model_fit_seconds",
			Help:      "Time to fit each model.",
		}, []string{"model"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful training run.",
		}),
		RunFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_failures_total",
			Help:      "Failed training runs by the stage that failed.",
		}, []string{"stage"}),
	}
}

func (m *TrainingMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsLoaded,
		m.RecordsDropped,
		m.MatchedRecords,
		m.MatchDistance,
		m.TrainingRows,
		m.StageDuration,
		m.ModelScore,
		m.ModelFitTime,
		m.LastSuccess,
		m.RunFailures,
	}
}
