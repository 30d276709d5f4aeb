package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candlesStored *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastClose     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	ingestionRuns *prometheus.CounterVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on a custom registry (useful for testing).
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		candlesStored: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aaverisk_candles_stored_total",
				Help: "Total number of candles written to a backend",
			},
			[]string{"backend", "chain_id"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aaverisk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aaverisk_last_close",
				Help: "Last ingested daily close for an asset",
			},
			[]string{"chain_id", "symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aaverisk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ingestionRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aaverisk_ingestion_runs_total",
				Help: "Daily OHLC ingestion runs by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordCandleStored records a candle written to a backend.
func (r *Recorder) RecordCandleStored(backend string, chainID int64) {
	r.candlesStored.WithLabelValues(backend, strconv.FormatInt(chainID, 10)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastClose records the last close for an asset.
func (r *Recorder) RecordLastClose(chainID int64, symbol string, price float64) {
	r.lastClose.WithLabelValues(strconv.FormatInt(chainID, 10), symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordIngestionRun counts a finished, skipped or failed ingestion run.
func (r *Recorder) RecordIngestionRun(outcome string) {
	r.ingestionRuns.WithLabelValues(outcome).Inc()
}
