package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hazard_forecast"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast service and its request pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Provider metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,unavailable,malformed}
	ProviderRetries  *prometheus.CounterVec   // labels: provider
	ProviderDuration *prometheus.HistogramVec // labels: provider
	Fallbacks        *prometheus.CounterVec   // labels: reason={no_dedicated_provider,primary_failed}

	// Forecast assembly metrics.
	SupplementedFields *prometheus.CounterVec // labels: field
	SeverityLevels     *prometheus.CounterVec // labels: level={safe,caution,danger}
	ForecastCache      *prometheus.CounterVec // labels: result={hit,miss}
	CacheEnabled       prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total forecast requests read from the request topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total forecast results written to the result topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total requests that could not be turned into a result.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the request pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Upstream provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Retry attempts against an upstream provider.",
		}, []string{"provider"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_total",
			Help:      "Forecasts served by the global fallback, by reason.",
		}, []string{"reason"}),
		SupplementedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supplemented_fields_total",
			Help:      "Fields filled from a secondary provider.",
		}, []string{"field"}),
		SeverityLevels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "severity_levels_total",
			Help:      "Classified forecast hours by severity level.",
		}, []string{"level"}),
		ForecastCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_total",
			Help:      "Provider response cache lookups by result.",
		}, []string{"result"}),
		CacheEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_enabled",
			Help:      "1 when the provider response cache is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ProviderRequests,
		m.ProviderRetries,
		m.ProviderDuration,
		m.Fallbacks,
		m.SupplementedFields,
		m.SeverityLevels,
		m.ForecastCache,
		m.CacheEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MessagesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_consumed_total"}),
		MessagesProduced:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_produced_total"}),
		TransformErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "transform_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_processing_duration_seconds"}),
		ProviderRequests:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "provider_requests_total"}, []string{"provider", "outcome"}),
		ProviderRetries:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "provider_retries_total"}, []string{"provider"}),
		ProviderDuration:        prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "provider_request_duration_seconds"}, []string{"provider"}),
		Fallbacks:               prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fallback_total"}, []string{"reason"}),
		SupplementedFields:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "supplemented_fields_total"}, []string{"field"}),
		SeverityLevels:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "severity_levels_total"}, []string{"level"}),
		ForecastCache:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cache_total"}, []string{"result"}),
		CacheEnabled:            prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "cache_enabled"}),
	}
}
