// Package metrics holds the Prometheus collectors for the automation core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RuleExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propflow_rule_executions_total",
		Help: "Automation rule executions by trigger, action and outcome.",
	}, []string{"trigger_type", "action_type", "result"})

	RuleSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propflow_rule_skips_total",
		Help: "Automation rules skipped before execution, by reason.",
	}, []string{"trigger_type", "reason"})

	DeliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propflow_webhook_delivery_attempts_total",
		Help: "Webhook delivery attempts by outcome.",
	}, []string{"result"})

	DeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "propflow_webhook_delivery_duration_seconds",
		Help:    "Latency of individual webhook delivery attempts.",
		Buckets: prometheus.DefBuckets,
	})

	DeliveriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propflow_webhook_deliveries_exhausted_total",
		Help: "Dispatch cycles that used every attempt without a 2xx response.",
	})

	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propflow_events_ingested_total",
		Help: "Events accepted by the ingestion front door.",
	}, []string{"event_type"})
)

func Result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
