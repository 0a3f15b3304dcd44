// Package monitoring collects Prometheus metrics for the deduction engine and
// the stock ledger.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector handles metrics collection and reporting
type Collector struct {
	registry *prometheus.Registry

	deductionsTotal   *prometheus.CounterVec
	failuresTotal     *prometheus.CounterVec
	deductionDuration prometheus.Histogram
	transactionsTotal prometheus.Counter
	lowStockItems     prometheus.Gauge
}

// NewCollector creates a metrics collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	deductionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_deductions_total",
			Help: "Order deduction runs by outcome",
		},
		[]string{"status"},
	)

	failuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_deduction_failures_total",
			Help: "Per-ingredient deduction failures by kind",
		},
		[]string{"kind"},
	)

	deductionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inventory_deduction_duration_seconds",
			Help:    "Time taken to run a full order deduction",
			Buckets: prometheus.DefBuckets,
		},
	)

	transactionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_stock_transactions_total",
			Help: "Stock transactions appended to the ledger",
		},
	)

	lowStockItems := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "inventory_low_stock_items",
			Help: "Active ingredients at or below their reorder level",
		},
	)

	registry.MustRegister(deductionsTotal, failuresTotal, deductionDuration, transactionsTotal, lowStockItems)

	return &Collector{
		registry:          registry,
		deductionsTotal:   deductionsTotal,
		failuresTotal:     failuresTotal,
		deductionDuration: deductionDuration,
		transactionsTotal: transactionsTotal,
		lowStockItems:     lowStockItems,
	}
}

// Registry returns the collector's registry for serving via promhttp.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordDeduction records one full order deduction run.
func (c *Collector) RecordDeduction(status string, duration time.Duration, transactions int) {
	if c == nil {
		return
	}
	c.deductionsTotal.WithLabelValues(status).Inc()
	c.deductionDuration.Observe(duration.Seconds())
	c.transactionsTotal.Add(float64(transactions))
}

// RecordFailure records a per-ingredient deduction failure. Kind is one of
// unit_mismatch, insufficient_stock, not_found, persistence.
func (c *Collector) RecordFailure(kind string) {
	if c == nil {
		return
	}
	c.failuresTotal.WithLabelValues(kind).Inc()
}

// SetLowStockItems updates the low-stock gauge.
func (c *Collector) SetLowStockItems(n int) {
	if c == nil {
		return
	}
	c.lowStockItems.Set(float64(n))
}
