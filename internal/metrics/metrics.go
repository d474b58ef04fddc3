// Package metrics exposes Prometheus collectors for the movie crawler.
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

	"github.com/JakeFAU/moviedb-crawler/internal/crawler"
)

var (
	sitesTotal                 *prometheus.CounterVec
	siteDurationSeconds        *prometheus.HistogramVec
	runsTotal                  *prometheus.CounterVec
	runCandidates              *prometheus.GaugeVec
	runPending                 *prometheus.GaugeVec
	runDurationSeconds         *prometheus.GaugeVec
	lastRunTimestampSeconds    *prometheus.GaugeVec
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to call
// more than once; every Observe function calls it.
func Init() {
	once.Do(func() {
		sitesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moviecrawler_sites_total",
				Help: "Sites handled, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		siteDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moviecrawler_site_duration_seconds",
				Help:    "Time spent extracting and recording one site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moviecrawler_runs_total",
				Help: "Source runs, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		runCandidates = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "moviecrawler_run_candidates",
				Help: "Candidates enumerated by the latest run.",
			},
			[]string{"source"},
		)

		runPending = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "moviecrawler_run_pending",
				Help: "Candidates left after cache reconciliation in the latest run.",
			},
			[]string{"source"},
		)

		runDurationSeconds = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "moviecrawler_run_duration_seconds",
				Help: "Wall time of the latest run.",
			},
			[]string{"source"},
		)

		lastRunTimestampSeconds = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "moviecrawler_last_run_timestamp_seconds",
				Help: "Unix time the latest run finished.",
			},
			[]string{"source"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moviecrawler_fetches_total",
				Help: "HTTP fetches, labeled by host and status class.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moviecrawler_fetch_bytes_total",
				Help: "Response bytes fetched, labeled by host.",
			},
			[]string{"site"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moviecrawler_rate_limit_delay_seconds",
				Help:    "Time fetches spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname, or "unknown" if the URL is invalid.
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

// StatusClass buckets an HTTP status code ("2xx", "4xx", ...). Zero means the
// request never produced a response.
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts one fetch of rawURL.
func ObserveFetch(rawURL string, statusCode int, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchesTotal.WithLabelValues(site, StatusClass(statusCode)).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveRateLimitDelay records time a fetch to host was held back.
func ObserveRateLimitDelay(host string, waited time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(host)).Observe(waited.Seconds())
}

// ObserveHTTPRequest records one request served by the ops endpoint.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Observer implements crawler.RunObserver on top of the package collectors.
type Observer struct {
	// Now stamps finished runs; defaults to time.Now.
	Now func() time.Time
}

var _ crawler.RunObserver = Observer{}

// ObserveSite implements crawler.RunObserver.
func (Observer) ObserveSite(source string, kind crawler.OutcomeKind, took time.Duration) {
	Init()
	sitesTotal.WithLabelValues(source, kind.String()).Inc()
	siteDurationSeconds.WithLabelValues(source).Observe(took.Seconds())
}

// ObserveRun implements crawler.RunObserver.
func (o Observer) ObserveRun(stats crawler.RunStats, err error) {
	Init()
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	runsTotal.WithLabelValues(stats.Source, status).Inc()
	runCandidates.WithLabelValues(stats.Source).Set(float64(stats.Candidates))
	runPending.WithLabelValues(stats.Source).Set(float64(stats.Pending))
	runDurationSeconds.WithLabelValues(stats.Source).Set(stats.Duration.Seconds())
	lastRunTimestampSeconds.WithLabelValues(stats.Source).Set(float64(now().Unix()))
}
