package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsCreated counts posts added to the board.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobboard_posts_created_total",
		Help: "Total number of job posts created",
	})

	// PostsLiked counts likes applied to visible posts.
	PostsLiked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobboard_posts_liked_total",
		Help: "Total number of likes applied",
	})

	// PostsReported counts reports applied to visible posts.
	PostsReported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobboard_posts_reported_total",
		Help: "Total number of reports applied",
	})

	// PostsHidden counts posts removed for crossing the report threshold.
	PostsHidden = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobboard_posts_hidden_total",
		Help: "Total number of posts hidden by reports",
	})

	// PostsExpired counts posts purged by the expiration rule.
	PostsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobboard_posts_expired_total",
		Help: "Total number of posts purged after expiring",
	})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobboard_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// StorageLatency records key/value store latency by operation and backend.
	StorageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobboard_storage_latency_seconds",
		Help:    "Key/value storage latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "backend"})

	// WebSocketClients is the gauge of connected live-feed clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobboard_ws_clients",
		Help: "Number of connected live feed WebSocket clients",
	})

	// WebSocketDrops counts events dropped for slow live-feed clients.
	WebSocketDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobboard_ws_drops_total",
		Help: "Total number of live feed messages dropped due to backpressure",
	})
)

// TrackStorage returns a function that records storage latency when called (e.g. defer).
func TrackStorage(operation, backend string) func() {
	start := time.Now()
	return func() {
		StorageLatency.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
	}
}
