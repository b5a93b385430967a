// internal/realtime/metrics.go

package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiekky_client_realtime_events_total",
			Help: "Realtime events received, by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiekky_client_realtime_reconnects_total",
			Help: "Realtime connection attempts after a disconnect",
		},
	)
)
