// Package metrics provides Prometheus metrics for the audiocache server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocache_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiocache_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Download pipeline metrics
	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocache_downloads_total",
			Help: "Total track download attempts by outcome",
		},
		[]string{"status"},
	)

	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audiocache_download_bytes_total",
			Help: "Total audio bytes fetched from upstream",
		},
	)

	downloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audiocache_download_duration_seconds",
			Help:    "Time to fetch and store one track",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocache_cache_lookups_total",
			Help: "Total cache index lookups by result",
		},
		[]string{"result"},
	)

	// Streaming metrics
	streamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audiocache_stream_bytes_total",
			Help: "Total bytes served to streaming clients",
		},
	)

	streamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocache_stream_requests_total",
			Help: "Total streaming requests by response kind",
		},
		[]string{"kind"},
	)

	// Upstream metrics
	upstreamAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocache_upstream_attempts_total",
			Help: "Total upstream instance attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDownload records a completed download attempt.
func RecordDownload(status string, bytes int64, duration time.Duration) {
	downloadsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		downloadBytesTotal.Add(float64(bytes))
	}
	downloadDuration.Observe(duration.Seconds())
}

// RecordCacheLookup records a cache index lookup result.
func RecordCacheLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordStream records bytes served for one streaming response.
func RecordStream(kind string, bytes int64) {
	streamRequestsTotal.WithLabelValues(kind).Inc()
	if bytes > 0 {
		streamBytesTotal.Add(float64(bytes))
	}
}

// RecordUpstreamAttempt records one upstream instance attempt.
func RecordUpstreamAttempt(outcome string) {
	upstreamAttemptsTotal.WithLabelValues(outcome).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
