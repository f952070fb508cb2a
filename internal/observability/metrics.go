package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the data service.
type Metrics struct {
	FetchRequests *prometheus.CounterVec   // labels: dataset, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: dataset
	CacheLookups  *prometheus.CounterVec   // labels: dataset, result={hit,miss}

	NormalizeDuration prometheus.Histogram
	RegionsLoaded     prometheus.Gauge

	// R(t) batch job metrics.
	RtRunning     prometheus.Gauge
	RtRunDuration prometheus.Histogram
	RtRowsWritten prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the given registerer.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FetchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_etl",
			Name:      "fetch_requests_total",
			Help:      "Upstream dataset fetches by dataset kind and outcome.",
		}, []string{"dataset", "outcome"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "covid_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream dataset fetch duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"dataset"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_etl",
			Name:      "cache_lookups_total",
			Help:      "Daily payload cache lookups by dataset kind and result.",
		}, []string{"dataset", "result"}),
		NormalizeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covid_etl",
			Name:      "normalize_duration_seconds",
			Help:      "Duration of a full timeseries normalization pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		RegionsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_etl",
			Name:      "regions_loaded",
			Help:      "Number of region tables in the memoized dataset.",
		}),
		RtRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_etl",
			Name:      "rt_running",
			Help:      "1 while an R(t) estimation run is in progress.",
		}),
		RtRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covid_etl",
			Name:      "rt_run_duration_seconds",
			Help:      "Duration of a complete R(t) estimation run over all regions.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		RtRowsWritten: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_etl",
			Name:      "rt_rows_written",
			Help:      "Rows written to the most recent R(t) archive.",
		}),
	}
}
