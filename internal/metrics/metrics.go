// Package metrics provides Prometheus collectors for the speech queue and
// engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "readaloud"

var (
	// queueLength is a gauge of items waiting in the queue, head included.
	queueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Number of items in the speech queue",
		},
	)

	// enqueuedTotal is a counter of items added to the queue.
	enqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_enqueued_total",
			Help:      "Total number of items enqueued",
		},
	)

	// utterancesTotal is a counter of utterances by outcome.
	utterancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total number of utterances by outcome",
		},
		[]string{"outcome"}, // finished, cancelled, failed
	)

	// utteranceDuration is a histogram of wall-clock utterance duration.
	utteranceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "utterance_duration_seconds",
			Help:      "Wall-clock duration of utterances in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"outcome"},
	)

	// persistTotal is a counter of queue snapshot writes.
	persistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_persist_total",
			Help:      "Total number of queue snapshot writes",
		},
		[]string{"status"}, // success, error
	)

	// engineSpeaking is 1 while an utterance is audible.
	engineSpeaking = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_speaking",
			Help:      "Whether the speech engine is currently speaking",
		},
	)

	// articleProgress is the spoken fraction of the current utterance.
	articleProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_article_progress",
			Help:      "Spoken fraction of the current utterance",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		queueLength,
		enqueuedTotal,
		utterancesTotal,
		utteranceDuration,
		persistTotal,
		engineSpeaking,
		articleProgress,
	}
)

// SetQueueLength records the current queue length.
func SetQueueLength(n int) {
	queueLength.Set(float64(n))
}

// RecordEnqueued records n newly enqueued items.
func RecordEnqueued(n int) {
	enqueuedTotal.Add(float64(n))
}

// RecordUtterance records an utterance that ended with the given outcome.
func RecordUtterance(outcome string, durationSeconds float64) {
	utterancesTotal.WithLabelValues(outcome).Inc()
	utteranceDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordPersist records a snapshot write.
func RecordPersist(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	persistTotal.WithLabelValues(status).Inc()
}

// SetSpeaking records whether the engine is speaking.
func SetSpeaking(speaking bool) {
	if speaking {
		engineSpeaking.Set(1)
		return
	}
	engineSpeaking.Set(0)
}

// SetArticleProgress records the progress of the current utterance.
func SetArticleProgress(progress float64) {
	articleProgress.Set(progress)
}

// Register registers all collectors with reg. Collectors that are already
// registered are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range allMetrics {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler returns an HTTP handler exposing the collectors registered with
// reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
