package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcards_images_processed_total",
			Help: "Total number of card images processed, by final status",
		},
		[]string{"status"},
	)

	FieldOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcards_field_outcomes_total",
			Help: "Per-field extraction outcomes",
		},
		[]string{"field", "outcome"},
	)

	ImageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medcards_image_duration_seconds",
			Help:    "Duration of a full image pipeline run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"status"},
	)

	ModelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medcards_model_request_duration_seconds",
			Help:    "Duration of model calls in seconds, including retries",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"model", "result"},
	)

	ModelRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcards_model_retries_total",
			Help: "Model call retries, by HTTP status (0 for transport errors)",
		},
		[]string{"model", "status"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medcards_queue_depth",
			Help: "Number of images waiting in the worker queue",
		},
	)

	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medcards_workers_active",
			Help: "Number of workers currently processing an image",
		},
	)
)
