package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_sweep_runs_total",
		Help: "Reconciliation sweep runs by result (success, failed, skipped_locked).",
	}, []string{"result"})

	SweepRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_sweep_rows_total",
		Help: "Loans visited by the reconciliation sweep, by outcome.",
	}, []string{"outcome"})

	SweepLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lms_sweep_last_success_timestamp_seconds",
		Help: "Unix time of the last successful reconciliation sweep.",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lms_sweep_duration_seconds",
		Help:    "Wall time of reconciliation sweep runs.",
		Buckets: prometheus.DefBuckets,
	})

	LoanOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_loan_operations_total",
		Help: "Loan ledger operations by kind (issue, return) and result.",
	}, []string{"operation", "result"})

	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_outbox_events_total",
		Help: "Loan outbox events by dispatch result (published, retry, dead).",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lms_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
