package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// APILatency tracks use case latency behind the risk endpoints.
	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aaverisk",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of risk API operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aaverisk",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by risk API operation and code",
		},
		[]string{"endpoint", "code"},
	)

	// BandsUnavailable counts collateral reserves evaluated without a band.
	BandsUnavailable = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aaverisk",
			Subsystem: "scenario",
			Name:      "bands_unavailable_total",
			Help:      "Collateral reserves that had no monthly band",
		},
		[]string{"chain", "reason"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, BandsUnavailable)
	})
}
