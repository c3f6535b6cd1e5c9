// Package metrics exposes Prometheus collectors for ledger operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Appends = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledger",
	Name:      "appends_total",
	Help:      "Append attempts by result (ok, invalid, conflict, error).",
}, []string{"result"})

var AppendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ledger",
	Name:      "append_duration_seconds",
	Help:      "Time spent inside the per-ledger append critical section.",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
})

var Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledger",
	Name:      "verifications_total",
	Help:      "Chain verifications by mode and outcome.",
}, []string{"mode", "result"})

var IntegrityViolations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledger",
	Name:      "integrity_violations_total",
	Help:      "Integrity violations found by verification, by kind.",
}, []string{"kind"})

var RechainedEntries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ledger",
	Name:      "rechained_entries_total",
	Help:      "Entries rewritten by rechain operations.",
})

var AnchorsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledger",
	Name:      "anchors_published_total",
	Help:      "Daily Merkle roots handed to the anchor publisher, by result.",
}, []string{"result"})

var TamperRiskScore = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ledger",
	Name:      "tamper_risk_score",
	Help:      "Distribution of tamper scan risk scores.",
	Buckets:   []float64{0, 20, 40, 60, 80, 100},
})

// Result labels
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultConflict = "conflict"
	ResultError    = "error"
)
