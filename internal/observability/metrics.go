package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_etl"

// Metrics holds the Prometheus counters and histograms for the ETL stages.
type Metrics struct {
	FetchResults   *prometheus.CounterVec // labels: outcome={success,error}
	RecordsFetched prometheus.Counter

	RecordsUpserted prometheus.Counter
	CleanedRows     *prometheus.CounterVec // labels: pass={duplicates,invalid,retention,normalize}

	// Summary generation metrics.
	SummaryAttempts  *prometheus.CounterVec // labels: outcome={success,rate_limited,error}
	SummariesWritten prometheus.Counter

	RainForecastsWritten prometheus.Counter
	RainPublishErrors    prometheus.Counter

	StageDuration *prometheus.HistogramVec // labels: stage
	StageFailures *prometheus.CounterVec   // labels: stage
}

// NewMetricsForTesting creates Metrics that are not registered anywhere to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewMetricsFor creates metrics registered with reg. Batch commands use a
// private registry so a Pushgateway push carries only pipeline series.
func NewMetricsFor(reg prometheus.Registerer) (*Metrics, error) {
	m := newMetrics()
	if err := m.Register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      "Per-city forecast fetches by outcome.",
		}, []string{"outcome"}),
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Hourly forecast records parsed from the weather API.",
		}),
		RecordsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_upserted_total",
			Help:      "Forecast records written by batch upserts.",
		}),
		CleanedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleaned_rows_total",
			Help:      "Rows removed or rounded by each cleaning pass.",
		}, []string{"pass"}),
		SummaryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_attempts_total",
			Help:      "Text-generation attempts by outcome.",
		}, []string{"outcome"}),
		SummariesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_written_total",
			Help:      "City summaries stored.",
		}),
		RainForecastsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rain_forecasts_written_total",
			Help:      "Daily rain forecasts upserted.",
		}),
		RainPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rain_publish_errors_total",
			Help:      "Failed attempts to publish rain forecasts to Kafka.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Pipeline stages that ended with an error.",
		}, []string{"stage"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchResults,
		m.RecordsFetched,
		m.RecordsUpserted,
		m.CleanedRows,
		m.SummaryAttempts,
		m.SummariesWritten,
		m.RainForecastsWritten,
		m.RainPublishErrors,
		m.StageDuration,
		m.StageFailures,
	}
}

// Register adds the metrics to reg. Used when pushing from a private registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
