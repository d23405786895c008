package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "alpharadar",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of radar API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alpharadar",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by radar API endpoint",
		},
		[]string{"endpoint"},
	)

	FeedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "alpharadar",
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Connected live feed clients",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, FeedClients)
	})
}
