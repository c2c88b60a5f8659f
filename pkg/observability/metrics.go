package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolution and resource lookup outcomes used as the "outcome" label.
const (
	OutcomeCached   = "cached"
	OutcomePlatform = "platform"
	OutcomeAllowed  = "allowed"
	OutcomeDenied   = "denied"
	OutcomeError    = "error"
)

// Plugin kinds used as the "kind" label.
const (
	KindArchive   = "archive"
	KindDirectory = "directory"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Namespace metrics
	ResolutionsTotal     *prometheus.CounterVec
	ResourceLookupsTotal *prometheus.CounterVec

	// Discovery metrics
	PluginsDiscoveredTotal *prometheus.CounterVec
	DiscoveryDuration      prometheus.Histogram
	DiscoveryErrorsTotal   prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugwall_resolutions_total",
				Help: "Total number of unit resolutions through a namespace filter",
			},
			[]string{"namespace", "outcome"},
		),
		ResourceLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugwall_resource_lookups_total",
				Help: "Total number of resource locations checked by a namespace filter",
			},
			[]string{"namespace", "outcome"},
		),
		PluginsDiscoveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugwall_plugins_discovered_total",
				Help: "Total number of plugins created during discovery",
			},
			[]string{"kind"},
		),
		DiscoveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plugwall_discovery_duration_seconds",
				Help:    "Plugin discovery duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		DiscoveryErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plugwall_discovery_errors_total",
				Help: "Total number of failed plugin discoveries",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.ResolutionsTotal,
			m.ResourceLookupsTotal,
			m.PluginsDiscoveredTotal,
			m.DiscoveryDuration,
			m.DiscoveryErrorsTotal,
		)
	}

	return m
}

// RecordResolution counts one unit resolution
func (m *Metrics) RecordResolution(namespace, outcome string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(namespace, outcome).Inc()
}

// RecordResourceLookup counts one resource location passed or rejected by a filter
func (m *Metrics) RecordResourceLookup(namespace, outcome string) {
	if m == nil {
		return
	}
	m.ResourceLookupsTotal.WithLabelValues(namespace, outcome).Inc()
}

// RecordPlugin counts one discovered plugin
func (m *Metrics) RecordPlugin(kind string) {
	if m == nil {
		return
	}
	m.PluginsDiscoveredTotal.WithLabelValues(kind).Inc()
}

// RecordDiscovery observes the duration of one discovery run
func (m *Metrics) RecordDiscovery(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DiscoveryDuration.Observe(duration.Seconds())
	if err != nil {
		m.DiscoveryErrorsTotal.Inc()
	}
}
