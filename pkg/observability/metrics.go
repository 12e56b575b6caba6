package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// TrainingTotal counts per-entity training outcomes
	TrainingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lossforecast_training_total",
			Help: "Total number of per-entity training attempts",
		},
		[]string{"status"}, // status: trained, skipped, failed
	)

	// TrainingDuration measures per-entity training time in seconds
	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lossforecast_training_duration_seconds",
			Help:    "Per-entity model selection and refit duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"model"},
	)

	// TrainingRunsTotal counts completed batch training passes
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lossforecast_training_runs_total",
			Help: "Total number of batch training passes",
		},
		[]string{"trigger"}, // trigger: cli, api, schedule, autopilot
	)

	// EntityCVMAE tracks the cross-validated error of each entity's current model
	EntityCVMAE = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lossforecast_entity_cv_mae",
			Help: "Cross-validated mean absolute error of the selected model",
		},
		[]string{"entity", "model"},
	)

	// ForecastsTotal counts forecast requests
	ForecastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lossforecast_forecasts_total",
			Help: "Total number of forecast requests",
		},
		[]string{"scenario", "status"}, // status: ok, no_model, failed
	)

	// ForecastDuration measures forecast latency in seconds
	ForecastDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lossforecast_forecast_duration_seconds",
			Help:    "Forecast rollout duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~0.4s
		},
		[]string{"scenario"},
	)

	// LockWait measures time spent waiting for an entity lock
	LockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lossforecast_lock_wait_seconds",
			Help:    "Time spent waiting for a per-entity writer lock",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	// TasksEnqueued counts training tasks enqueued
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lossforecast_tasks_enqueued_total",
			Help: "Total number of training tasks enqueued",
		},
		[]string{"trigger"},
	)

	// ArtifactCacheRequests counts artifact cache lookups
	ArtifactCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lossforecast_artifact_cache_requests_total",
			Help: "Total number of artifact cache lookups",
		},
		[]string{"result"}, // result: hit, miss
	)

	// ErrorsTotal counts total number of errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lossforecast_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordTraining records one entity's training outcome
func RecordTraining(status, model string, duration float64) {
	TrainingTotal.WithLabelValues(status).Inc()

	if model != "" {
		TrainingDuration.WithLabelValues(model).Observe(duration)
	}
}

// RecordTrainingRun records a completed batch pass
func RecordTrainingRun(trigger string) {
	TrainingRunsTotal.WithLabelValues(trigger).Inc()
}

// RecordEntityError sets the current CV error of an entity's model
func RecordEntityError(entity, model string, mae float64) {
	EntityCVMAE.DeletePartialMatch(prometheus.Labels{"entity": entity})
	EntityCVMAE.WithLabelValues(entity, model).Set(mae)
}

// ForgetEntity drops the CV error gauge of an entity without a model
func ForgetEntity(entity string) {
	EntityCVMAE.DeletePartialMatch(prometheus.Labels{"entity": entity})
}

// RecordForecast records a forecast request
func RecordForecast(scenario, status string, duration float64) {
	ForecastsTotal.WithLabelValues(scenario, status).Inc()
	ForecastDuration.WithLabelValues(scenario).Observe(duration)
}

// RecordLockWait records how long a writer waited for its lock
func RecordLockWait(seconds float64) {
	LockWait.Observe(seconds)
}

// RecordTaskEnqueued records task enqueue
func RecordTaskEnqueued(trigger string) {
	TasksEnqueued.WithLabelValues(trigger).Inc()
}

// RecordCacheLookup records an artifact cache hit or miss
func RecordCacheLookup(hit bool) {
	if hit {
		ArtifactCacheRequests.WithLabelValues("hit").Inc()
		return
	}

	ArtifactCacheRequests.WithLabelValues("miss").Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
