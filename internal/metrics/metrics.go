// Package metrics registers the ambient Prometheus instrumentation
// named in SPEC_FULL.md's Observability section, grounded on
// jorgemgr94-go-learning/cmd/advanced/main.go's NewCounter/NewGauge/
// NewHistogram/ConstLabels/MustRegister pattern.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every counter/gauge/histogram this engine exports.
type Metrics struct {
	TaskTicksTotal      *prometheus.CounterVec
	TaskTickDuration     *prometheus.HistogramVec
	RateLimiterWait      prometheus.Histogram
	BanBarrierTripsTotal prometheus.Counter
	ThumbQueueDepth      prometheus.Gauge
	ThumbRetryTotal      prometheus.Counter
}

// New constructs and registers all metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TaskTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gallerysync",
			Name:      "task_ticks_total",
			Help:      "Number of runner ticks processed, by task type.",
		}, []string{"task_type"}),
		TaskTickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gallerysync",
			Name:      "task_tick_duration_seconds",
			Help:      "Duration of one runner tick, by task type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task_type"}),
		RateLimiterWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gallerysync",
			Name:      "rate_limiter_wait_seconds",
			Help:      "Time spent blocked on the site rate limiter.",
			Buckets:   prometheus.DefBuckets,
		}),
		BanBarrierTripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gallerysync",
			Name:      "ban_barrier_trips_total",
			Help:      "Number of times the ban barrier was raised.",
		}),
		ThumbQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gallerysync",
			Name:      "thumb_queue_depth",
			Help:      "Number of pending thumbnail downloads.",
		}),
		ThumbRetryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gallerysync",
			Name:      "thumb_retry_total",
			Help:      "Number of thumbnail download retries scheduled.",
		}),
	}

	reg.MustRegister(
		m.TaskTicksTotal, m.TaskTickDuration, m.RateLimiterWait,
		m.BanBarrierTripsTotal, m.ThumbQueueDepth, m.ThumbRetryTotal,
	)

	return m
}
