package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "water_forecast"

// Metrics holds the Prometheus counters, histograms, and gauges for the forecast service.
type Metrics struct {
	ForecastRuns     *prometheus.CounterVec // labels: outcome={success,error}
	ForecastErrors   *prometheus.CounterVec // labels: kind (see domain.ErrorKind)
	ForecastDuration prometheus.Histogram
	HorizonMismatch  prometheus.Counter
	SmoothingWeight  *prometheus.GaugeVec // labels: series={population,per_capita_consumption}, param={alpha,beta}
	PipelineReady    prometheus.Gauge

	// Presentation cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}

	// Publishing metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.ForecastRuns,
		m.ForecastErrors,
		m.ForecastDuration,
		m.HorizonMismatch,
		m.SmoothingWeight,
		m.PipelineReady,
		m.CacheLookups,
		m.RecordsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		ForecastRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_runs_total",
			Help:      help("Forecast pipeline runs by outcome."),
		}, []string{"outcome"}),
		ForecastErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_errors_total",
			Help:      help("Forecast failures by error kind."),
		}, []string{"kind"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      help("Duration of a complete normalize-fit-merge run."),
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		HorizonMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "horizon_mismatch_total",
			Help:      help("Forecast horizons truncated because the two models disagreed on length."),
		}),
		SmoothingWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "smoothing_weight",
			Help:      help("Holt smoothing weights of the last successful fit."),
		}, []string{"series", "param"}),
		PipelineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_ready",
			Help:      help("1 once a forecast has completed successfully, 0 before."),
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      help("Forecast cache lookups by result."),
		}, []string{"result"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      help("Series records written to the forecast topic."),
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      help("Failed attempts to publish a forecast."),
		}),
	}
}
