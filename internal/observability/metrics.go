package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the feed service.
type Metrics struct {
	FeedFetches        *prometheus.CounterVec   // labels: trigger={scheduled,manual}, outcome={success,transport_error,malformed}
	FeedFetchDuration  *prometheus.HistogramVec // labels: trigger
	FeedRecords        prometheus.Gauge
	FeedLastSuccess    prometheus.Gauge
	FeedSuperseded     prometheus.Counter
	FeedPolling        prometheus.Gauge
	ManualRefreshLimit prometheus.Counter

	// Snapshot relay metrics.
	SnapshotsPublished  prometheus.Counter
	RecordsPublished    prometheus.Counter
	SnapshotPublishErrs prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "fetches_total",
			Help:      "Feed fetch attempts by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		FeedFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quake_feed",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a feed fetch including decoding.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"trigger"}),
		FeedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_feed",
			Name:      "records",
			Help:      "Number of earthquake records currently held.",
		}),
		FeedLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_feed",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful fetch.",
		}),
		FeedSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "superseded_results_total",
			Help:      "Fetch results discarded because a newer fetch had already been applied.",
		}),
		FeedPolling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_feed",
			Name:      "polling",
			Help:      "1 while the polling schedule is active, 0 otherwise.",
		}),
		ManualRefreshLimit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "manual_refresh_throttled_total",
			Help:      "Manual refresh requests rejected by the rate limiter.",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "snapshots_published_total",
			Help:      "Feed snapshots written to the sink topic.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "records_published_total",
			Help:      "Earthquake records written to the sink topic.",
		}),
		SnapshotPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "snapshot_publish_errors_total",
			Help:      "Failed snapshot publish attempts.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_feed",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_feed",
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FeedFetches,
		m.FeedFetchDuration,
		m.FeedRecords,
		m.FeedLastSuccess,
		m.FeedSuperseded,
		m.FeedPolling,
		m.ManualRefreshLimit,
		m.SnapshotsPublished,
		m.RecordsPublished,
		m.SnapshotPublishErrs,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
