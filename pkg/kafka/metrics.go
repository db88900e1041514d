package kafka

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type producerMetrics struct {
	msgs    *prometheus.CounterVec
	errs    *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

type consumerMetrics struct {
	queueDepth *prometheus.GaugeVec
	handled    *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// register adds c to reg, reusing an identical collector that is already
// registered so several clients can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	return &producerMetrics{
		msgs: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "finedge_kafka_producer_messages_total", Help: "Messages published to Kafka"},
			[]string{"topic", "compression", "result"},
		)),
		errs: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "finedge_kafka_producer_errors_total", Help: "Producer errors"},
			[]string{"topic"},
		)),
		bytes: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "finedge_kafka_producer_bytes_total", Help: "Payload bytes published"},
			[]string{"topic", "compression"},
		)),
		latency: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "finedge_kafka_producer_publish_seconds", Help: "Publish latency", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		)),
	}
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	return &consumerMetrics{
		queueDepth: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "finedge_kafka_consumer_queue_depth", Help: "Messages waiting in the consumer queue"},
			[]string{"topic"},
		)),
		handled: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "finedge_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)),
		latency: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "finedge_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)),
	}
}
