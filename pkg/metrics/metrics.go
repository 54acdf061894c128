// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "transfers_total",
		Help:      "Wallet transfers by transfer type and resulting status.",
	}, []string{"transfer_type", "status"})

	WithdrawalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "withdrawals_total",
		Help:      "Withdrawals by provider and resulting status.",
	}, []string{"provider", "status"})

	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "withdrawal_refunds_total",
		Help:      "Compensating withdrawal refunds by outcome.",
	}, []string{"result"})

	ProviderErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "provider_errors_total",
		Help:      "Errors returned by external exchange providers.",
	}, []string{"provider", "operation"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledger",
		Name:      "operation_duration_seconds",
		Help:      "Latency of ledger operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledger",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	WorkerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "worker_runs_total",
		Help:      "Scheduled worker runs by worker and outcome.",
	}, []string{"worker", "result"})
)
