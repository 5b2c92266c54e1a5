// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_care_assistant"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Transcript metrics
	SegmentsIngested    *prometheus.CounterVec
	ConversationsActive prometheus.Gauge
	Subscribers         prometheus.Gauge

	// FAQ metrics
	FAQSearches    *prometheus.CounterVec
	FAQResultCount prometheus.Histogram

	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	// Token metrics
	TokensIssued *prometheus.CounterVec

	// Kafka metrics
	KafkaConsumed       *prometheus.CounterVec
	KafkaConsumeErrors  *prometheus.CounterVec
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance registered with the
// default Prometheus registry.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"route", "method"}),

		SegmentsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_segments_total",
			Help:      "Total number of transcript segments ingested, by reconciliation outcome",
		}, []string{"outcome"}),
		ConversationsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversations_active",
			Help:      "Number of conversations with live reconciled state",
		}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversation_subscribers",
			Help:      "Number of connected conversation stream subscribers",
		}),

		FAQSearches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faq_searches_total",
			Help:      "Total number of FAQ searches",
		}, []string{"locale"}),
		FAQResultCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "faq_search_results",
			Help:      "Number of items returned per FAQ search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),

		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of requests to external collaborators",
		}, []string{"service", "outcome"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "External collaborator latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"service"}),

		TokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_tokens_total",
			Help:      "Total number of room token requests, by outcome",
		}, []string{"outcome"}),

		KafkaConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_consumed_total",
			Help:      "Total number of transcript events consumed from Kafka",
		}, []string{"topic"}),
		KafkaConsumeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_consume_errors_total",
			Help:      "Total number of Kafka read or decode errors",
		}, []string{"topic", "error_type"}),
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method, status string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(durationSeconds)
}

// RecordSegment records a transcript segment and its reconciliation outcome.
func (m *Metrics) RecordSegment(outcome string) {
	m.SegmentsIngested.WithLabelValues(outcome).Inc()
}

// RecordFAQSearch records a FAQ search and its result size.
func (m *Metrics) RecordFAQSearch(locale string, results int) {
	m.FAQSearches.WithLabelValues(locale).Inc()
	m.FAQResultCount.Observe(float64(results))
}

// RecordUpstream records a call to an external collaborator.
func (m *Metrics) RecordUpstream(service string, err error, latencySeconds float64) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(service, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(service).Observe(latencySeconds)
}

// RecordToken records a room token request.
func (m *Metrics) RecordToken(outcome string) {
	m.TokensIssued.WithLabelValues(outcome).Inc()
}

// RecordKafkaConsume records a consumed Kafka message.
func (m *Metrics) RecordKafkaConsume(topic string) {
	m.KafkaConsumed.WithLabelValues(topic).Inc()
}

// RecordKafkaConsumeError records a Kafka read or decode failure.
func (m *Metrics) RecordKafkaConsumeError(topic, errorType string) {
	m.KafkaConsumeErrors.WithLabelValues(topic, errorType).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
