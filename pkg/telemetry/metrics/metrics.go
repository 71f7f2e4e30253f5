package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "ccg"
	subsystem = "gateway"
)

// Metrics holds the gateway's Prometheus collectors.
//
// Collectors:
//   - ccg_gateway_requests_total{cli_type, provider, status}
//   - ccg_gateway_request_duration_seconds{cli_type, provider}
//   - ccg_gateway_tokens_total{cli_type, provider, direction}
//   - ccg_gateway_provider_blacklists_total{provider}
//   - ccg_gateway_active_streams{cli_type}
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	tokensTotal        *prometheus.CounterVec
	providerBlacklists *prometheus.CounterVec
	activeStreams      *prometheus.GaugeVec
}

// New creates and registers the gateway collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total number of proxied requests",
			},
			[]string{"cli_type", "provider", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
			},
			[]string{"cli_type", "provider"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tokens_total",
				Help:      "Total tokens observed in upstream responses",
			},
			[]string{"cli_type", "provider", "direction"},
		),

		providerBlacklists: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "provider_blacklists_total",
				Help:      "Number of times a provider crossed its failure threshold",
			},
			[]string{"provider"},
		),

		activeStreams: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "active_streams",
				Help:      "Streaming responses currently being relayed",
			},
			[]string{"cli_type"},
		),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.tokensTotal,
		m.providerBlacklists,
		m.activeStreams,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one terminated request. A nil status (no upstream
// response) is labeled "none".
func (m *Metrics) RecordRequest(cliType, provider string, status *int64, duration time.Duration) {
	label := "none"
	if status != nil {
		label = strconv.FormatInt(*status, 10)
	}
	m.requestsTotal.WithLabelValues(cliType, provider, label).Inc()
	m.requestDuration.WithLabelValues(cliType, provider).Observe(duration.Seconds())
}

// RecordTokens adds the observed token counts for one request.
func (m *Metrics) RecordTokens(cliType, provider string, inputTokens, outputTokens int64) {
	if inputTokens > 0 {
		m.tokensTotal.WithLabelValues(cliType, provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.tokensTotal.WithLabelValues(cliType, provider, "output").Add(float64(outputTokens))
	}
}

// ProviderBlacklisted counts one threshold crossing.
func (m *Metrics) ProviderBlacklisted(provider string) {
	m.providerBlacklists.WithLabelValues(provider).Inc()
}

// StreamStarted marks a streaming relay as active.
func (m *Metrics) StreamStarted(cliType string) {
	m.activeStreams.WithLabelValues(cliType).Inc()
}

// StreamEnded marks a streaming relay as finished.
func (m *Metrics) StreamEnded(cliType string) {
	m.activeStreams.WithLabelValues(cliType).Dec()
}
