package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Lookup Metrics
	lookupCallsTotal   *prometheus.CounterVec
	lookupCallDuration *prometheus.HistogramVec
	lookupRateLimited  *prometheus.CounterVec

	// Analysis Metrics
	analysesTotal         *prometheus.CounterVec
	analysisFailuresTotal *prometheus.CounterVec
	ruleMatchesTotal      *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		lookupCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_lookup_calls_total",
				Help: "Total number of transaction lookups by source and status",
			},
			[]string{"source", "status"},
		),
		lookupCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transaction_lookup_duration_seconds",
				Help:    "Duration of transaction lookups in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"source"},
		),
		lookupRateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_lookup_rate_limit_hits_total",
				Help: "Total number of lookups rejected with 429 Too Many Requests",
			},
			[]string{"source"},
		),

		analysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_analyses_total",
				Help: "Total number of completed analyses by classification",
			},
			[]string{"classification"},
		),
		analysisFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_analysis_failures_total",
				Help: "Total number of analyses that failed, by source and reason",
			},
			[]string{"source", "reason"},
		),
		ruleMatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifier_rule_matches_total",
				Help: "Total number of times each classifier rule matched",
			},
			[]string{"rule"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
	}
}

// Lookup metric helpers

// RecordLookup records a transaction lookup with duration.
func (m *Metrics) RecordLookup(source, status string, duration float64) {
	m.lookupCallsTotal.WithLabelValues(source, status).Inc()
	m.lookupCallDuration.WithLabelValues(source).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(source string) {
	m.lookupRateLimited.WithLabelValues(source).Inc()
}

// Analysis metric helpers

// RecordAnalysis records a completed analysis.
func (m *Metrics) RecordAnalysis(classification string) {
	m.analysesTotal.WithLabelValues(classification).Inc()
}

// RecordAnalysisFailure records an analysis that could not produce a result.
func (m *Metrics) RecordAnalysisFailure(source, reason string) {
	m.analysisFailuresTotal.WithLabelValues(source, reason).Inc()
}

// RecordRuleMatch records a classifier rule match.
func (m *Metrics) RecordRuleMatch(rule string) {
	m.ruleMatchesTotal.WithLabelValues(rule).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
