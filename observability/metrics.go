package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CustodyMetrics aggregates the counters and gauges published by the custody
// engine. All methods tolerate a nil receiver so instrumentation can be
// dropped without touching call sites.
type CustodyMetrics struct {
	deposits     *prometheus.CounterVec
	withdrawals  *prometheus.CounterVec
	errors       *prometheus.CounterVec
	holdings     prometheus.Gauge
	capRemaining prometheus.Gauge
}

var (
	custodyMetricsOnce sync.Once
	custodyRegistry    *CustodyMetrics
)

// Custody returns the lazily-initialised custody metrics registry.
func Custody() *CustodyMetrics {
	custodyMetricsOnce.Do(func() {
		custodyRegistry = &CustodyMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "custodia",
				Subsystem: "bank",
				Name:      "deposits_total",
				Help:      "Total successful deposits segmented by asset.",
			}, []string{"asset"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "custodia",
				Subsystem: "bank",
				Name:      "withdrawals_total",
				Help:      "Total successful withdrawals segmented by asset.",
			}, []string{"asset"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "custodia",
				Subsystem: "bank",
				Name:      "operation_errors_total",
				Help:      "Total rejected operations segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			holdings: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "custodia",
				Subsystem: "bank",
				Name:      "native_holdings_wei",
				Help:      "Current native holdings in wei.",
			}),
			capRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "custodia",
				Subsystem: "bank",
				Name:      "capacity_remaining_wei",
				Help:      "Remaining native deposit headroom in wei.",
			}),
		}
		prometheus.MustRegister(
			custodyRegistry.deposits,
			custodyRegistry.withdrawals,
			custodyRegistry.errors,
			custodyRegistry.holdings,
			custodyRegistry.capRemaining,
		)
	})
	return custodyRegistry
}

// RecordDeposit increments the deposit counter for the asset.
func (m *CustodyMetrics) RecordDeposit(asset string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(asset).Inc()
}

// RecordWithdrawal increments the withdrawal counter for the asset.
func (m *CustodyMetrics) RecordWithdrawal(asset string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(asset).Inc()
}

// RecordError increments the error counter for the operation and reason.
func (m *CustodyMetrics) RecordError(operation, reason string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(operation, reason).Inc()
}

// SetHoldings records the current native holdings.
func (m *CustodyMetrics) SetHoldings(wei *big.Int) {
	if m == nil {
		return
	}
	m.holdings.Set(bigToFloat(wei))
}

// SetCapacityRemaining records the current deposit headroom.
func (m *CustodyMetrics) SetCapacityRemaining(wei *big.Int) {
	if m == nil {
		return
	}
	m.capRemaining.Set(bigToFloat(wei))
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	return f
}
