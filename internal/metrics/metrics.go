package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exported by the subscription and hiring cores.
var (
	// PaymentsVerified counts successful payment verifications per gateway.
	PaymentsVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hiredeck_payments_verified_total",
		Help: "Successful payment verifications by gateway.",
	}, []string{"gateway"})

	// WebhookEvents counts inbound webhook deliveries by gateway and result.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hiredeck_webhook_events_total",
		Help: "Inbound gateway webhook deliveries by result.",
	}, []string{"gateway", "result"})

	// QuotaDenied counts quota decrements refused because the counter hit zero.
	QuotaDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hiredeck_quota_denied_total",
		Help: "Quota consumption attempts denied by exhausted counters.",
	}, []string{"kind"})

	// StageTransitions counts hiring-stage transitions by new status.
	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hiredeck_stage_transitions_total",
		Help: "Job application hiring-stage transitions by new status.",
	}, []string{"status"})
)
