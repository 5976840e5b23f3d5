package step

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Failure stages
const (
	StageProfile = "profile"
	StageFormat  = "format"
	StageConnect = "connect"
	StagePublish = "publish"
)

// Metrics counts step outcomes. A nil *Metrics records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	messages  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	durations prometheus.Histogram
}

// NewMetrics creates the step metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mqstep_messages_published_total",
				Help: "Messages confirmed by the broker, by content type",
			},
			[]string{"content_type"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mqstep_failures_total",
				Help: "Failed publish steps, by stage",
			},
			[]string{"stage"},
		),
		durations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mqstep_publish_duration_seconds",
				Help:    "Time spent publishing a message and waiting for its confirmation",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	m.registry.MustRegister(m.messages, m.failures, m.durations)
	return m
}

// Gatherer exposes the registry
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) published(contentType string, d time.Duration) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(contentType).Inc()
	m.durations.Observe(d.Seconds())
}

func (m *Metrics) failed(stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage).Inc()
}
