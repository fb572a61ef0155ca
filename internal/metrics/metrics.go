// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchAttempts counts broadcast attempts by chain and outcome.
	DispatchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedwig_dispatch_attempts_total",
		Help: "Transaction broadcast attempts by chain and outcome",
	}, []string{"chain", "outcome"})

	// DispatchRetries counts blockhash-driven rebuild retries.
	DispatchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedwig_dispatch_retries_total",
		Help: "Dispatch retries after a transient vendor error",
	}, []string{"chain"})

	// WebhookUpdates counts inbound chat webhook updates by result.
	WebhookUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedwig_webhook_updates_total",
		Help: "Inbound chat webhook updates by handling result",
	}, []string{"result"})

	// SwallowedErrors counts downstream errors the chat webhook absorbed
	// while still returning success to the provider. This is the alerting
	// signal compensating for the deliberate swallow policy.
	SwallowedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedwig_webhook_swallowed_errors_total",
		Help: "Errors swallowed by the chat webhook to avoid provider retry storms",
	}, []string{"stage"})

	// VendorCallDuration observes vendor HTTP latency.
	VendorCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hedwig_vendor_call_duration_seconds",
		Help:    "Latency of outbound vendor calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"vendor", "operation"})

	// WalletsCreated counts custodial wallets created by chain.
	WalletsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedwig_wallets_created_total",
		Help: "Custodial wallets created by chain",
	}, []string{"chain"})

	// ReconciledTransactions counts pending rows finalized by the
	// reconciliation job.
	ReconciledTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedwig_reconciled_transactions_total",
		Help: "Pending transactions finalized by reconciliation",
	}, []string{"chain", "status"})
)
