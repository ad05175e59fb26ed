package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespaceBatch  = "batch"
	namespacePoller = "poller"
	namespaceQuote  = "quote"
	namespacePrice  = "price"
)

var (
	// BatchJobs finished jobs by executor and outcome kind
	BatchJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceBatch,
			Name:      "jobs_total",
			Help:      "",
		}, []string{"executor", "outcome"})

	// BatchCalls submitted calls by executor
	BatchCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceBatch,
			Name:      "calls_total",
			Help:      "",
		}, []string{"executor"})

	// BatchJobDuration time from submission of the first call to the
	// terminal state, in milliseconds
	BatchJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceBatch,
			Name:      "job_duration_ms",
			Help:      "",
		}, []string{"executor"})

	// PollErrors absorbed poll failures by source
	PollErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespacePoller,
			Name:      "errors_total",
			Help:      "",
		}, []string{"source"})

	// EpochStartTime epoch start of the last rig snapshot
	EpochStartTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespacePoller,
			Name:      "last_epoch_start_time",
			Help:      "",
		})

	// QuoteRequests quote API requests by kind and result
	QuoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceQuote,
			Name:      "requests_total",
			Help:      "",
		}, []string{"kind", "result"})

	// PriceCacheHits price cache lookups by result
	PriceCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespacePrice,
			Name:      "cache_lookups_total",
			Help:      "",
		}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		BatchJobs,
		BatchCalls,
		BatchJobDuration,
		PollErrors,
		EpochStartTime,
		QuoteRequests,
		PriceCacheHits,
	)
}

// MeasureDuration measure the method execution duration
// and save it into a histogram metric
func MeasureDuration(histogram *prometheus.HistogramVec, start time.Time, lvs ...string) {
	duration := time.Since(start)
	histogram.WithLabelValues(lvs...).Observe(float64(duration.Milliseconds()))
}
