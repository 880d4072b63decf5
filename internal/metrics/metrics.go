package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	ScanCount        prometheus.Counter
	RemindersSent    prometheus.Counter
	ReminderFailures prometheus.Counter
	FetchFailures    prometheus.Counter
	DigestsSent      prometheus.Counter
	DigestFailures   prometheus.Counter
	AdHocSends       *prometheus.CounterVec
	CacheClears      prometheus.Counter
	DedupCacheSize   prometheus.Gauge
	ScanDuration     prometheus.Histogram
}

// NewMetrics creates the service metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ScanCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "appointment_notifier_scan_count",
			Help: "Total number of reminder scan ticks",
		}),
		RemindersSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "appointment_notifier_reminders_sent",
			Help: "Total number of reminder emails sent by the scanner",
		}),
		ReminderFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "appointment_notifier_reminder_failures",
			Help: "Total number of reminder emails that failed to send",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "appointment_notifier_fetch_failures",
			Help: "Total number of failed appointment store fetches",
		}),
		DigestsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "appointment_notifier_digests_sent",
			Help: "Total number of daily digest emails sent",
		}),
		DigestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "appointment_notifier_digest_failures",
			Help: "Total number of daily digest runs that failed",
		}),
		AdHocSends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "appointment_notifier_adhoc_sends",
			Help: "Total number of caller-triggered sends by kind and outcome",
		}, []string{"kind", "outcome"}),
		CacheClears: factory.NewCounter(prometheus.CounterOpts{
			Name: "appointment_notifier_dedup_cache_clears",
			Help: "Total number of reminder dedup cache rotations",
		}),
		DedupCacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "appointment_notifier_dedup_cache_size",
			Help: "Number of recipients already reminded in the current rotation",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "appointment_notifier_scan_duration_seconds",
			Help:    "Time spent in a reminder scan tick",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
