// Package metrics exposes Prometheus collectors for the scanner service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider request and scan outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeStatus  = "status"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
)

var (
	providerRequestsTotal          *prometheus.CounterVec
	providerRequestDurationSeconds prometheus.Histogram
	postingsTotal                  *prometheus.CounterVec
	scansTotal                     *prometheus.CounterVec
	scanDurationSeconds            prometheus.Histogram
	scansPrunedTotal               *prometheus.CounterVec
	httpRequestsTotal              *prometheus.CounterVec
	httpRequestDurationSeconds     *prometheus.HistogramVec
	rateLimitDelaysSeconds         *prometheus.HistogramVec
	rateLimitRejectionsTotal       prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		providerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsignal_provider_requests_total",
				Help: "Job search provider calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		providerRequestDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobsignal_provider_request_duration_seconds",
				Help:    "Latency of job search provider calls.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		postingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsignal_postings_total",
				Help: "Postings seen per pipeline stage (fetched, unique, in_window, analyzed).",
			},
			[]string{"stage"},
		)

		scansTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsignal_scans_total",
				Help: "Analyses run, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scanDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobsignal_scan_duration_seconds",
				Help:    "End-to-end analysis latency.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
			},
		)

		scansPrunedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsignal_scans_pruned_total",
				Help: "Scan rows removed by retention, labeled by reason.",
			},
			[]string{"reason"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobsignal_rate_limit_delays_seconds",
				Help:    "Histogram of outbound rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)

		rateLimitRejectionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobsignal_rate_limit_rejections_total",
				Help: "Inbound API requests rejected with 429.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveProviderRequest records one provider call.
func ObserveProviderRequest(outcome string, duration time.Duration) {
	Init()
	providerRequestsTotal.WithLabelValues(outcome).Inc()
	providerRequestDurationSeconds.Observe(duration.Seconds())
}

// AddPostings adds n postings to the counter for a pipeline stage.
func AddPostings(stage string, n int) {
	Init()
	if n > 0 {
		postingsTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// ObserveScan records an analysis outcome and its duration.
func ObserveScan(outcome string, duration time.Duration) {
	Init()
	scansTotal.WithLabelValues(outcome).Inc()
	scanDurationSeconds.Observe(duration.Seconds())
}

// ObservePruned records rows removed by retention.
func ObservePruned(byAge, byCount int64) {
	Init()
	if byAge > 0 {
		scansPrunedTotal.WithLabelValues("age").Add(float64(byAge))
	}
	if byCount > 0 {
		scansPrunedTotal.WithLabelValues("count").Add(float64(byCount))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of an outbound rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(SanitizeSite(host)).Observe(duration.Seconds())
}

// IncRateLimitRejections counts an inbound request rejected by the API limiter.
func IncRateLimitRejections() {
	Init()
	rateLimitRejectionsTotal.Inc()
}
