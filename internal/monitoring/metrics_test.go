package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecordsDeductions(t *testing.T) {
	c := NewCollector()

	c.RecordDeduction("success", 5*time.Millisecond, 3)
	c.RecordDeduction("partial_success", 2*time.Millisecond, 1)
	c.RecordFailure("insufficient_stock")
	c.RecordFailure("insufficient_stock")
	c.RecordFailure("unit_mismatch")
	c.SetLowStockItems(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.deductionsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deductionsTotal.WithLabelValues("partial_success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.failuresTotal.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failuresTotal.WithLabelValues("unit_mismatch")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.transactionsTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.lowStockItems))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordDeduction("success", time.Millisecond, 1)
	c.RecordFailure("not_found")
	c.SetLowStockItems(1)
}
