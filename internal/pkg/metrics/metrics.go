package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "omnipos_stock"

var (
	StockMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "movements_total",
		Help:      "Stock movements recorded, by reason.",
	}, []string{"reason"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order status transitions, by target status.",
	}, []string{"status"})

	ThresholdAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "threshold_alerts_total",
		Help:      "Low stock alerts emitted.",
	})

	AuditEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Audit events appended to the chain.",
	})

	AuditVerificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_verification_failures_total",
		Help:      "Audit records that failed integrity verification.",
	})

	LockTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lock_timeouts_total",
		Help:      "Transactions aborted by lock timeout, deadlock or serialization failure.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)
