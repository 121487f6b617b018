package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	producerPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "kafka_producer_messages_published_total",
		Help:      "Messages published.",
	}, []string{"topic"})

	producerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "kafka_producer_publish_errors_total",
		Help:      "Failed publishes.",
	}, []string{"topic"})

	producerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "kafka_producer_publish_duration_seconds",
		Help:      "Publish latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic"})

	consumerProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "kafka_consumer_messages_processed_total",
		Help:      "Messages handled successfully.",
	}, []string{"topic", "consumer_group"})

	consumerFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "kafka_consumer_messages_failed_total",
		Help:      "Messages that exhausted their retries.",
	}, []string{"topic", "consumer_group"})

	consumerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "kafka_consumer_processing_duration_seconds",
		Help:      "Handler latency including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic", "consumer_group"})

	consumerDLQ = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "kafka_consumer_dlq_published_total",
		Help:      "Messages forwarded to a dead-letter topic.",
	}, []string{"topic", "consumer_group"})

	consumerDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "kafka_consumer_messages_duplicate_total",
		Help:      "Events skipped because their ID was already processed.",
	}, []string{"event_type"})
)
