package metrics

import "github.com/prometheus/client_golang/prometheus"

// Feed Prometheus metrics.
var (
	LikesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prefeed",
			Name:      "likes_total",
			Help:      "Total like mutations by outcome",
		},
		[]string{"status"}, // "success" / "error"
	)

	UnlikesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prefeed",
			Name:      "unlikes_total",
			Help:      "Total unlike mutations by outcome",
		},
		[]string{"status"},
	)

	FeedRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prefeed",
			Name:      "feed_requests_total",
			Help:      "Total personalized feed requests",
		},
	)

	PostVectorCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prefeed",
			Name:      "post_vector_cache_total",
			Help:      "Post vector cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	LoadedUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "prefeed",
			Name:      "loaded_users",
			Help:      "Number of user vectors loaded into memory",
		},
	)
)

// RegisterFeedMetrics registers feed metrics explicitly (no init()):
// the composition root decides what is exported.
func RegisterFeedMetrics() {
	prometheus.MustRegister(LikesTotal)
	prometheus.MustRegister(UnlikesTotal)
	prometheus.MustRegister(FeedRequestsTotal)
	prometheus.MustRegister(PostVectorCacheTotal)
	prometheus.MustRegister(LoadedUsers)
}
