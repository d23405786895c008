package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scansTotal  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	historySize prometheus.Gauge
	appearances prometheus.Counter
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alpharadar_scans_total",
				Help: "Total number of scan polls by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alpharadar_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		historySize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "alpharadar_history_records",
				Help: "Number of scan records currently retained",
			},
		),
		appearances: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "alpharadar_symbol_appearances_total",
				Help: "Symbol appearances across recorded scans. Per-symbol counts are served by the stats API",
			},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alpharadar_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordScan records a finished poll.
func (r *Recorder) RecordScan(trigger, result string) {
	r.scansTotal.WithLabelValues(trigger, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordHistorySize(n int) {
	r.historySize.Set(float64(n))
}

// RecordAppearances counts the symbols of one kept scan record. Symbols
// are not used as labels since the set is open-ended.
func (r *Recorder) RecordAppearances(symbols []string) {
	r.appearances.Add(float64(len(symbols)))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
