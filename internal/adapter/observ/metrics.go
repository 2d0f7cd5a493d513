package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketplace"

var (
	CheckoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by result",
		},
		[]string{"result"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Processor events by type and settlement outcome",
		},
		[]string{"type", "outcome"},
	)

	SettlementAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_anomalies_total",
			Help:      "Events that need operator attention, by kind",
		},
		[]string{"kind"},
	)

	ReconcileOrders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_orders_total",
			Help:      "Orders handled by the reconciliation sweep, by action",
		},
		[]string{"action"},
	)
)

// Anomaly is the settlement anomaly hook.
func Anomaly(kind string) {
	SettlementAnomalies.WithLabelValues(kind).Inc()
}

func WebhookEvent(eventType, outcome string) {
	WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func Checkout(result string) {
	CheckoutTotal.WithLabelValues(result).Inc()
}

// ReconcileReport adds one sweep's counts.
func ReconcileReport(paid, cancelled, skipped, failed int) {
	ReconcileOrders.WithLabelValues("paid").Add(float64(paid))
	ReconcileOrders.WithLabelValues("cancelled").Add(float64(cancelled))
	ReconcileOrders.WithLabelValues("skipped").Add(float64(skipped))
	ReconcileOrders.WithLabelValues("failed").Add(float64(failed))
}
