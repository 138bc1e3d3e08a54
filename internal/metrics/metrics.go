package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCount counts HTTP requests
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	registerOnce sync.Once
)

var (
	// SubmissionsProcessed counts submissions by result (added, skipped)
	SubmissionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dupe_submissions_processed_total",
		Help: "Total submissions processed by result",
	}, []string{"result"})

	// Comparisons counts pairwise submission comparisons
	Comparisons = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupe_comparisons_total",
		Help: "Total pairwise submission comparisons",
	})

	// EdgesAdded counts similarity edges added to the graph
	EdgesAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupe_similarity_edges_total",
		Help: "Total similarity edges added to the graph",
	})

	// SubmissionDuration tracks the time to tokenize and compare one submission
	SubmissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dupe_submission_duration_seconds",
		Help:    "Submission processing duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	// ClusterDuration tracks cluster query latency
	ClusterDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dupe_cluster_duration_seconds",
		Help:    "Cluster query duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	})

	// IndexedSubmissions is the current size of the submission index
	IndexedSubmissions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dupe_indexed_submissions",
		Help: "Number of submissions in the index",
	})

	// FingerprintCacheSize is the current size of the matcher fingerprint cache
	FingerprintCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dupe_fingerprint_cache_entries",
		Help: "Number of cached window fingerprints",
	})

	// StreamMessages counts stream messages by outcome (processed, retried, dead_lettered)
	StreamMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dupe_stream_messages_total",
		Help: "Total stream messages by outcome",
	}, []string{"outcome"})
)

// InitPrometheus registers the HTTP collectors with the default registry
func InitPrometheus() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCount)
		prometheus.MustRegister(RequestDuration)
	})
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request count and duration per route
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RequestCount.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}
