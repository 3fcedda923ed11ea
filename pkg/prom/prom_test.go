package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetrics(t *testing.T) {
	require.NoError(t, Create("test-host", "test", "cashback"))
	t.Cleanup(func() { MetricSystemEnabled = false })

	IncConflictRetry()
	IncConflictRetry()
	assert.Equal(t, 2.0, testutil.ToFloat64(MetricCollectionCounters[SystemLedger+MetricConflictRetries]))

	IncTransition("pending", "confirmed")
	assert.Equal(t, 1.0, testutil.ToFloat64(
		MetricCollectionCounterVec[SystemLedger+MetricTransitions].WithLabelValues("pending", "confirmed")))

	IncWalletClamp("pending_cashback")
	assert.Equal(t, 1.0, testutil.ToFloat64(
		MetricCollectionCounterVec[SystemLedger+MetricWalletClamps].WithLabelValues("pending_cashback")))

	IncPartialSettlement("settle")
	assert.Equal(t, 1.0, testutil.ToFloat64(
		MetricCollectionCounterVec[SystemSettlement+MetricPartialSettlements].WithLabelValues("settle")))

	assert.Error(t, CreateMetric("unknown", SystemLedger, "x"))
}

func TestDisabledMetricsAreNoops(t *testing.T) {
	MetricSystemEnabled = false
	assert.NotPanics(t, func() {
		IncConflictRetry()
		IncTransition("a", "b")
		ObserveSyncDuration(0.1)
	})
}
