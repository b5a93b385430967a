package posts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	likeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiekky_client_like_toggles_total",
			Help: "Like toggle outcomes",
		},
		[]string{"outcome"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiekky_client_posts_cache_lookups_total",
			Help: "Own-posts cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	postsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiekky_client_posts_created_total",
			Help: "Posts created from this client",
		},
	)
)
