package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rain_alert"

// Metrics holds the Prometheus counters, histograms, and gauges for radar checks.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec // labels: result={detected,clear,error}
	RunDuration   prometheus.Histogram
	LastRunTime   prometheus.Gauge
	CoverageRatio prometheus.Gauge
	WatchRunning  prometheus.Gauge

	// Browser and time control.
	PageLoadAttempts  *prometheus.CounterVec // labels: outcome={success,error}
	AlignmentOutcomes *prometheus.CounterVec // labels: outcome={reached,blocked,exhausted}
	AlignmentSteps    prometheus.Histogram

	// Delivery.
	Notifications   *prometheus.CounterVec // labels: outcome={sent,skipped,error}
	EventsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// Registry returns a fresh registry holding only these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	return reg
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed radar checks by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete radar check, browser launch to verdict.",
			Buckets:   []float64{5, 10, 20, 30, 45, 60, 90, 120, 180},
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed radar check.",
		}),
		CoverageRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_ratio",
			Help:      "Fraction of rain-coloured pixels around the target in the last check.",
		}),
		WatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_running",
			Help:      "1 while the watch loop is active, 0 when shut down.",
		}),
		PageLoadAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_load_attempts_total",
			Help:      "Radar page navigation attempts by outcome.",
		}, []string{"outcome"}),
		AlignmentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alignment_outcomes_total",
			Help:      "Time-control alignment results by outcome.",
		}, []string{"outcome"}),
		AlignmentSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alignment_steps",
			Help:      "Forward steps taken on the map clock per check.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 40, 60},
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Webhook notifications by outcome.",
		}, []string{"outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Detection events written to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunDuration,
		m.LastRunTime,
		m.CoverageRatio,
		m.WatchRunning,
		m.PageLoadAttempts,
		m.AlignmentOutcomes,
		m.AlignmentSteps,
		m.Notifications,
		m.EventsPublished,
	}
}
