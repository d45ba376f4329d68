package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	// Collection / dedup metrics
	ArticlesCollected  *prometheus.CounterVec
	ArticlesDuplicate  *prometheus.CounterVec
	ArticlesAdmitted   prometheus.Counter
	CollectionFailures *prometheus.CounterVec

	// Scoring metrics
	ImpactScoresComputed prometheus.Counter
	ImpactScoringErrors  prometheus.Counter
	ImpactScoringLatency prometheus.Histogram

	// Queue / dispatch metrics
	NotificationsEnqueued *prometheus.CounterVec
	NotificationsRejected prometheus.Counter
	NotificationsSent     *prometheus.CounterVec
	NotificationsFailed   prometheus.Counter
	NotificationsDropped  prometheus.Counter
	QueueDepth            *prometheus.GaugeVec
	DispatchLatency       prometheus.Histogram

	// Outbound request metrics
	RateLimitWaits   *prometheus.CounterVec
	RetryAttempts    *prometheus.CounterVec
	ConnectedClients prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ArticlesCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_collected_total",
			Help:      "Total number of articles pulled from collectors",
		}, []string{"source"}),
		ArticlesDuplicate: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_duplicate_total",
			Help:      "Total number of articles filtered as duplicates",
		}, []string{"reason"}),
		ArticlesAdmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_admitted_total",
			Help:      "Total number of unique articles admitted downstream",
		}),
		CollectionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_failures_total",
			Help:      "Total number of failed collector fetches",
		}, []string{"source"}),

		ImpactScoresComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "impact_scores_computed_total",
			Help:      "Total number of impact scores produced",
		}),
		ImpactScoringErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "impact_scoring_errors_total",
			Help:      "Total number of per-item scoring failures",
		}),
		ImpactScoringLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "impact_scoring_duration_seconds",
			Help:      "Time spent scoring one article against its companies",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		NotificationsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_enqueued_total",
			Help:      "Total number of notifications accepted by the queue",
		}, []string{"priority"}),
		NotificationsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_rejected_total",
			Help:      "Total number of enqueues rejected by backpressure",
		}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications delivered",
		}, []string{"channel"}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of delivery attempts that failed",
		}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Total number of notifications dropped after retries or expiry",
		}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_queue_depth",
			Help:      "Current number of queued notifications per priority",
		}, []string{"priority"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_dispatch_duration_seconds",
			Help:      "Time spent delivering one notification",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),

		RateLimitWaits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Total number of outbound requests delayed by the limiter",
		}, []string{"domain"}),
		RetryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts by failure class",
		}, []string{"class"}),
		ConnectedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Current number of live delivery channels",
		}),
	}
}
