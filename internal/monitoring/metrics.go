package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Total payments created in PENDING state",
		},
	)

	capacityRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capacity_rejections_total",
			Help: "Purchase attempts rejected for insufficient tier capacity",
		},
		[]string{"tier_id"},
	)

	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_settlements_total",
			Help: "Terminal payment transitions applied",
		},
		[]string{"status"},
	)

	webhookNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_notifications_total",
			Help: "Provider webhook notifications by processing result",
		},
		[]string{"result"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_sweep_duration_seconds",
			Help:    "Duration of background reconciliation sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

func TrackPaymentCreated() {
	paymentsCreated.Inc()
}

func TrackCapacityRejection(tierID string) {
	capacityRejections.WithLabelValues(tierID).Inc()
}

func TrackSettlement(status string) {
	settlements.WithLabelValues(status).Inc()
}

func TrackWebhook(result string) {
	webhookNotifications.WithLabelValues(result).Inc()
}

func TrackSweepDuration(seconds float64) {
	sweepDuration.Observe(seconds)
}
