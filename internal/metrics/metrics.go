// Package metrics exposes the ledger's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LedgerWrites counts committed ledger entries by type
var LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_writes_total",
	Help: "Committed ledger transactions by type.",
}, []string{"type"})

// LedgerDuplicates counts replayed events answered from the dedup key
var LedgerDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_duplicate_events_total",
	Help: "Replayed events that matched an existing ledger entry.",
}, []string{"type"})

// LedgerConflictRetries counts optimistic-lock conflicts that triggered a retry
var LedgerConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ledger_conflict_retries_total",
	Help: "Aggregate version conflicts retried by the ledger writer.",
})

// LedgerBusy counts writes that exhausted their retry budget
var LedgerBusy = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ledger_busy_total",
	Help: "Writes rejected as busy after exhausting retries.",
})

// LedgerWriteDuration observes the latency of a full unit of work including retries
var LedgerWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "ledger_write_duration_seconds",
	Help:    "Latency of ledger appends including retries.",
	Buckets: prometheus.DefBuckets,
})

// LedgerAnomalies counts entries booked under a fallback rule
var LedgerAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_anomalies_total",
	Help: "Ledger anomalies flagged for manual review.",
}, []string{"kind"})

// ReconciliationCorrections counts drift corrections applied by reconciliation
var ReconciliationCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_reconciliation_corrections_total",
	Help: "Cached balances corrected by the reconciliation job.",
}, []string{"target"})

// ProjectionEntries tracks how many entries the reporting projection holds
var ProjectionEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ledger_projection_entries",
	Help: "Ledger entries folded into the reporting projection.",
})
