package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	LedgerOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	LedgerOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wallet_ledger",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency including lock wait.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SettlementEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_ledger",
			Name:      "settlement_events_total",
			Help:      "Total number of payment status events by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	WithdrawalTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_ledger",
			Name:      "withdrawal_transitions_total",
			Help:      "Total number of withdrawal status transitions.",
		},
		[]string{"from", "to"},
	)

	registerOnce sync.Once
)

// MustRegister adds the ledger collectors to the default registry. Safe to
// call more than once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			LedgerOperationsTotal,
			LedgerOperationDuration,
			SettlementEventsTotal,
			WithdrawalTransitionsTotal,
		)
	})
}

// Outcome buckets an error into a low-cardinality label value
func Outcome(err error, classify func(error) string) string {
	if err == nil {
		return "success"
	}
	if classify != nil {
		if label := classify(err); label != "" {
			return label
		}
	}
	return "error"
}
