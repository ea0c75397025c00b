package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// RevShareMetrics tracks revenue share engine activity.
type RevShareMetrics struct {
	operations    *prometheus.CounterVec
	claimed       prometheus.Counter
	claims        prometheus.Counter
	distributed   prometheus.Counter
	residue       prometheus.Counter
	finalizations *prometheus.CounterVec
}

var (
	revshareOnce     sync.Once
	revshareRegistry *RevShareMetrics
)

// RevShare returns the lazily registered revenue share metrics.
func RevShare() *RevShareMetrics {
	revshareOnce.Do(func() {
		revshareRegistry = &RevShareMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "revshare_operations_total",
				Help: "Count of mutating revenue share operations by operation and outcome.",
			}, []string{"operation", "outcome"}),
			claimed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "revshare_claimed_amount_total",
				Help: "Cumulative amount paid out through settled claims.",
			}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "revshare_claims_total",
				Help: "Number of successful claim calls.",
			}),
			distributed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "revshare_distributed_amount_total",
				Help: "Cumulative amount assigned to holders by finalized periods.",
			}),
			residue: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "revshare_residue_amount_total",
				Help: "Cumulative undistributed residue retained by finalized periods.",
			}),
			finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "revshare_finalizations_total",
				Help: "Count of finalized periods by whether the revenue threshold was met.",
			}, []string{"threshold"}),
		}
		prometheus.MustRegister(
			revshareRegistry.operations,
			revshareRegistry.claimed,
			revshareRegistry.claims,
			revshareRegistry.distributed,
			revshareRegistry.residue,
			revshareRegistry.finalizations,
		)
	})
	return revshareRegistry
}

func (m *RevShareMetrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *RevShareMetrics) RecordClaim(amount *big.Int) {
	if m == nil {
		return
	}
	m.claims.Inc()
	m.claimed.Add(toFloat(amount))
}

func (m *RevShareMetrics) RecordFinalization(distributed, residue *big.Int, belowThreshold bool) {
	if m == nil {
		return
	}
	label := "met"
	if belowThreshold {
		label = "below"
	}
	m.finalizations.WithLabelValues(label).Inc()
	m.distributed.Add(toFloat(distributed))
	m.residue.Add(toFloat(residue))
}

// toFloat converts a non-negative amount for a counter. Precision loss above
// 2^53 is accepted for metrics.
func toFloat(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
