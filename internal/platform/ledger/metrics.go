package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Swallowed audit failures must stay visible to operators even though they
// never reach callers, so the writer and digest job count them here.
var (
	metricWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interex",
		Subsystem: "audit",
		Name:      "write_failures_total",
		Help:      "Ledger appends swallowed after storage failure or retry exhaustion.",
	}, []string{"category"})

	metricSeqConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "interex",
		Subsystem: "audit",
		Name:      "seq_conflicts_total",
		Help:      "Chain sequence conflicts recovered by re-reading the tail.",
	})

	metricWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interex",
		Subsystem: "audit",
		Name:      "writes_total",
		Help:      "Ledger entries appended, by category.",
	}, []string{"category"})

	metricDigestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interex",
		Subsystem: "audit",
		Name:      "digest_runs_total",
		Help:      "Digest job invocations by outcome (created, skipped, throttled, failed).",
	}, []string{"outcome"})
)
