package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns the gateway's Prometheus collectors. Each collector
// registers into its own registry so several can coexist in one process.
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	decisionsTotal      *prometheus.CounterVec
	landingTotal        *prometheus.CounterVec
	policyIssues        *prometheus.GaugeVec
	probeSuccessRatio   prometheus.Gauge
	systemErrors        *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	constLabels := prometheus.Labels{"service": serviceName}

	m := &MetricsCollector{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "Duration of HTTP requests in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint"},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "authz_decisions_total",
				Help:        "Total number of route access decisions",
				ConstLabels: constLabels,
			},
			[]string{"allowed", "reason"},
		),
		landingTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "authz_landing_resolutions_total",
				Help:        "Total number of landing page resolutions",
				ConstLabels: constLabels,
			},
			[]string{"fallback"},
		),
		policyIssues: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "authz_policy_issues",
				Help:        "Structural findings in the loaded route policy",
				ConstLabels: constLabels,
			},
			[]string{"kind"},
		),
		probeSuccessRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "authz_policy_probe_success_ratio",
				Help:        "Share of verifier probes that agreed with the policy table",
				ConstLabels: constLabels,
			},
		),
		systemErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "system_errors_total",
				Help:        "Total number of system errors",
				ConstLabels: constLabels,
			},
			[]string{"error_type", "component"},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.decisionsTotal,
		m.landingTotal,
		m.policyIssues,
		m.probeSuccessRatio,
		m.systemErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the collector's registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDecision counts a route access decision by outcome and reason
func (m *MetricsCollector) RecordDecision(allowed bool, reason string) {
	m.decisionsTotal.WithLabelValues(strconv.FormatBool(allowed), reason).Inc()
}

// RecordLanding counts a landing resolution
func (m *MetricsCollector) RecordLanding(fallback bool) {
	m.landingTotal.WithLabelValues(strconv.FormatBool(fallback)).Inc()
}

// SetPolicyIssues publishes the verifier's findings per kind. Kinds absent
// from counts are reset to zero.
func (m *MetricsCollector) SetPolicyIssues(kinds []string, counts map[string]int) {
	for _, kind := range kinds {
		m.policyIssues.WithLabelValues(kind).Set(float64(counts[kind]))
	}
}

// SetProbeSuccessRatio publishes the verifier's probe success share in [0, 1]
func (m *MetricsCollector) SetProbeSuccessRatio(ratio float64) {
	m.probeSuccessRatio.Set(ratio)
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	m.systemErrors.WithLabelValues(errorType, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
