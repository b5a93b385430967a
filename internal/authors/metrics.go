package authors

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kiekky_client_author_cache_lookups_total",
		Help: "Author display record cache lookups",
	},
	[]string{"result"},
)
