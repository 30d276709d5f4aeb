package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type clientMetrics struct {
	published   *prometheus.CounterVec
	publishedB  *prometheus.CounterVec
	publishTime *prometheus.HistogramVec
	handled     *prometheus.CounterVec
	handleTime  *prometheus.HistogramVec
	backlog     *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metricsReg  prometheus.Registerer = prometheus.DefaultRegisterer
	m           *clientMetrics
)

// SetMetricsRegisterer replaces the registerer. It only has an effect before
// the first producer or consumer is created.
func SetMetricsRegisterer(reg prometheus.Registerer) {
	if reg != nil {
		metricsReg = reg
	}
}

func kafkaMetrics() *clientMetrics {
	metricsOnce.Do(func() {
		f := promauto.With(metricsReg)
		m = &clientMetrics{
			published: f.NewCounterVec(prometheus.CounterOpts{
				Name: "aaverisk_kafka_published_total",
				Help: "Messages written to Kafka by result",
			}, []string{"topic", "result"}),
			publishedB: f.NewCounterVec(prometheus.CounterOpts{
				Name: "aaverisk_kafka_published_bytes_total",
				Help: "Payload bytes written to Kafka",
			}, []string{"topic"}),
			publishTime: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "aaverisk_kafka_publish_seconds",
				Help:    "Write latency per call",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
			handled: f.NewCounterVec(prometheus.CounterOpts{
				Name: "aaverisk_kafka_consumed_total",
				Help: "Consumed messages by outcome (ok, retried_ok, dead_lettered, failed)",
			}, []string{"topic", "outcome"}),
			handleTime: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "aaverisk_kafka_handle_seconds",
				Help:    "Handling time per message including retries",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
			backlog: f.NewGaugeVec(prometheus.GaugeOpts{
				Name: "aaverisk_kafka_worker_backlog",
				Help: "Messages buffered per consumer worker",
			}, []string{"worker"}),
		}
	})
	return m
}

func (cm *clientMetrics) observePublish(topic string, bytes int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cm.published.WithLabelValues(topic, result).Add(float64(count))
	cm.publishedB.WithLabelValues(topic).Add(float64(bytes))
	cm.publishTime.WithLabelValues(topic).Observe(dur.Seconds())
}
