package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pseudonymizer"

var (
	TransformedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transformed_records_total",
			Help:      "Records returned by the batch transformer, by result",
		},
		[]string{"result"}, // "Ok", "ProcessingFailed"
	)

	TransformDeadlineExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_deadline_exceeded_total",
			Help:      "Batches returned early because the caller deadline expired",
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_batch_duration_seconds",
			Help:      "Time spent transforming one batch",
			Buckets:   prometheus.DefBuckets,
		},
	)

	PseudonymResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pseudonym_resolutions_total",
			Help:      "Pseudonym lookups, by outcome",
		},
		[]string{"outcome"}, // "reused", "created"
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pseudonym_store_errors_total",
			Help:      "Failed pseudonym store calls",
		},
		[]string{"operation"}, // "get", "put"
	)

	StoreBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pseudonym_store_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
	)

	PublishedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_events_total",
			Help:      "Events forwarded to the stream by the ingestion endpoint",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	SinkRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_records_total",
			Help:      "Transformed records written to the sink",
		},
	)

	RedeliveryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redelivery_events_total",
			Help:      "Failed records passing through the redelivery relay",
		},
		[]string{"stage"}, // "scheduled", "sent", "send_error", "released"
	)
)
